package holdings

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"btc-treasury-tracker/internal/domain"
	"btc-treasury-tracker/internal/logger"
	"btc-treasury-tracker/internal/registry"
)

// Import columns. The first three are required.
const (
	colTicker        = "ticker"
	colExchange      = "exchange"
	colBTC           = "btc"
	colCostBasis     = "cost_basis"
	colLastDisclosed = "last_disclosed"
	colSourceURL     = "source_url"
	colName          = "name"
	colHeadquarters  = "headquarters"
	colRegion        = "region"
)

var requiredColumns = []string{colTicker, colExchange, colBTC}

var disclosedLayouts = []string{"2006-01-02", time.RFC3339, "02/01/2006"}

// RowError is a rejected import row. Line is 1-based and counts the header.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// ImportResult summarises an import run.
type ImportResult struct {
	Rows            int
	Imported        int
	EntitiesCreated int
	Errors          []RowError
}

// Importer loads a holdings bulk export into the registry and snapshot store.
type Importer struct {
	registry *registry.Registry
	holdings *Service
	log      *logger.Entry
}

// NewImporter creates an importer.
func NewImporter(reg *registry.Registry, svc *Service, log *logger.Log) *Importer {
	if log == nil {
		log = logger.Discard()
	}
	return &Importer{registry: reg, holdings: svc, log: log.WithComponent("importer")}
}

// Import reads CSV with a header row naming at least ticker, exchange and btc.
// Each valid row resolves its entity through the registry and appends one
// bulk-export snapshot. Bad rows are collected and skipped; only a malformed
// header or a storage failure aborts.
func (im *Importer) Import(ctx context.Context, r io.Reader) (ImportResult, error) {
	var res ImportResult

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return res, fmt.Errorf("read csv header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return res, fmt.Errorf("csv header missing column %q", c)
		}
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return res, fmt.Errorf("read csv: %w", err)
			}
			res.Errors = append(res.Errors, RowError{Line: pe.Line, Err: pe.Err})
			continue
		}
		line, _ := reader.FieldPos(0)
		if blank(record) {
			continue
		}
		res.Rows++

		field := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		entity, snap, err := parseRow(field)
		if err != nil {
			res.Errors = append(res.Errors, RowError{Line: line, Err: err})
			continue
		}

		e, created, err := im.registry.LookupOrCreate(ctx, entity)
		if err != nil {
			return res, fmt.Errorf("line %d: %w", line, err)
		}
		if created {
			res.EntitiesCreated++
		}

		snap.EntityID = e.ID
		if err := im.holdings.Append(ctx, snap); err != nil {
			return res, fmt.Errorf("line %d: %w", line, err)
		}
		res.Imported++
	}

	im.log.WithFields(logger.Fields{
		"rows":             res.Rows,
		"imported":         res.Imported,
		"entities_created": res.EntitiesCreated,
		"rejected":         len(res.Errors),
	}).Info("holdings import complete")
	return res, nil
}

func parseRow(field func(string) string) (domain.Entity, *domain.HoldingsSnapshot, error) {
	ticker := field(colTicker)
	if ticker == "" {
		return domain.Entity{}, nil, errors.New("empty ticker")
	}
	exchange := field(colExchange)
	venue := registry.VenueFromTicker(ticker)
	if exchange != "" {
		venue = domain.ParseVenue(exchange)
	}

	btc, err := decimal.NewFromString(field(colBTC))
	if err != nil {
		return domain.Entity{}, nil, fmt.Errorf("btc %q: %w", field(colBTC), err)
	}
	if btc.IsNegative() {
		return domain.Entity{}, nil, fmt.Errorf("negative btc %s", btc)
	}

	snap := &domain.HoldingsSnapshot{
		BTC:       btc,
		SourceURL: field(colSourceURL),
		Origin:    domain.OriginBulkExport,
	}

	if raw := field(colCostBasis); raw != "" {
		cb, err := decimal.NewFromString(raw)
		if err != nil {
			return domain.Entity{}, nil, fmt.Errorf("cost_basis %q: %w", raw, err)
		}
		snap.CostBasisUSD = &cb
	}

	if raw := field(colLastDisclosed); raw != "" {
		ts, err := parseDisclosed(raw)
		if err != nil {
			return domain.Entity{}, nil, err
		}
		snap.LastDisclosed = &ts
	}

	entity := domain.Entity{
		LegalName:    field(colName),
		Ticker:       ticker,
		Venue:        venue,
		Headquarters: field(colHeadquarters),
		Region:       field(colRegion),
	}
	return entity, snap, nil
}

func parseDisclosed(raw string) (time.Time, error) {
	for _, layout := range disclosedLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("last_disclosed %q: unrecognised date", raw)
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
