package discovery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"btc-treasury-tracker/internal/domain"
	"btc-treasury-tracker/internal/idhash"
	"btc-treasury-tracker/internal/logger"
	"btc-treasury-tracker/internal/observability"
	"btc-treasury-tracker/internal/storage"
)

// Scan statuses reported to metrics.
const (
	ScanOK          = "ok"
	ScanFailed      = "failed"
	ScanUnsupported = "unsupported"
)

// ScanResult is the outcome of scanning one entity.
type ScanResult struct {
	EntityID   string
	Ticker     string
	Documents  int // rows found on the index
	Matched    int // rows whose title matched a keyword
	Skipped    int // matched rows already recorded
	Candidates []*domain.FilingCandidate
	Err        error
}

// Inserted returns the number of newly recorded candidates.
func (r ScanResult) Inserted() int {
	return len(r.Candidates)
}

// BatchResult aggregates a multi-entity scan.
type BatchResult struct {
	Results  []ScanResult
	Inserted int
	Failed   int
}

// Errors returns the per-entity failures keyed by ticker.
func (b BatchResult) Errors() map[string]error {
	out := make(map[string]error)
	for _, r := range b.Results {
		if r.Err != nil {
			out[r.Ticker] = r.Err
		}
	}
	return out
}

// ScannerOptions configures a Scanner.
type ScannerOptions struct {
	Lookback time.Duration
	Now      func() time.Time
}

// Scanner checks venue filings indexes for new treasury disclosures and
// records matching documents as unverified candidates.
type Scanner struct {
	client   *IndexClient
	venues   VenueTable
	store    storage.CandidateStore
	recorder observability.Recorder
	log      *logger.Log
	lookback time.Duration
	now      func() time.Time
}

// NewScanner creates a scanner. recorder may be nil.
func NewScanner(client *IndexClient, venues VenueTable, store storage.CandidateStore, recorder observability.Recorder, log *logger.Log, opts ScannerOptions) *Scanner {
	if opts.Lookback <= 0 {
		opts.Lookback = 30 * 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Scanner{
		client:   client,
		venues:   venues,
		store:    store,
		recorder: recorder,
		log:      log,
		lookback: opts.Lookback,
		now:      opts.Now,
	}
}

// ScanEntity fetches the entity's filings index over the lookback window and
// inserts a candidate for every title-matching document not already recorded.
// Re-running over the same window inserts nothing.
func (s *Scanner) ScanEntity(ctx context.Context, e *domain.Entity) ScanResult {
	res := ScanResult{EntityID: e.ID, Ticker: e.Ticker}
	entry := s.log.WithComponent("discovery").WithFields(logger.Fields{
		"entity_id": e.ID,
		"ticker":    e.Ticker,
		"venue":     e.Venue.String(),
	})

	start := time.Now()
	err := s.scan(ctx, e, &res)
	elapsed := time.Since(start)

	if s.recorder != nil {
		s.recorder.TrackPerformance("discovery.scan", elapsed, map[string]string{
			"ticker": e.Ticker,
			"venue":  e.Venue.String(),
		})
	}

	switch {
	case errors.Is(err, ErrUnsupportedVenue):
		observability.RecordScan(ScanUnsupported)
		entry.Debug("venue has no filings index")
	case err != nil:
		observability.RecordScan(ScanFailed)
		entry.WithError(err).Warn("discovery scan failed")
		if s.recorder != nil {
			s.recorder.LogError(err, map[string]string{"component": "discovery", "ticker": e.Ticker})
		}
	default:
		observability.RecordScan(ScanOK)
		entry.WithFields(logger.Fields{
			"documents": res.Documents,
			"matched":   res.Matched,
			"inserted":  res.Inserted(),
			"skipped":   res.Skipped,
		}).Info("discovery scan complete")
	}

	res.Err = err
	return res
}

func (s *Scanner) scan(ctx context.Context, e *domain.Entity, res *ScanResult) error {
	vs, err := s.venues.Lookup(e.Venue)
	if err != nil {
		return err
	}

	now := s.now()
	rawURL := vs.SearchURL(vs.FormatCode(e.Ticker), now.Add(-s.lookback), now)
	base, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("build index url: %w", err)
	}

	body, err := s.client.Fetch(ctx, e.Venue, rawURL)
	if err != nil {
		return err
	}

	docs, err := ParseIndex(bytes.NewReader(body), base, vs.DateLayouts, vs.Location, now.UTC())
	if err != nil {
		return err
	}
	res.Documents = len(docs)

	for _, doc := range docs {
		if !MatchesTitle(doc.Title) {
			continue
		}
		res.Matched++

		exists, err := s.store.ExistsByEntityURL(ctx, e.ID, doc.URL)
		if err != nil {
			return fmt.Errorf("check candidate %s: %w", doc.URL, err)
		}
		if exists {
			res.Skipped++
			continue
		}

		c := &domain.FilingCandidate{
			ID:              idhash.ComputeCandidateID(e.ID, doc.URL),
			EntityID:        e.ID,
			DisclosedAt:     doc.PublishedAt,
			URL:             doc.URL,
			SourceTag:       e.Venue.String(),
			Title:           doc.Title,
			DetectionMethod: domain.DetectionTitleMatch,
		}
		if err := s.store.Insert(ctx, c); err != nil {
			// A concurrent scan recorded it first.
			if errors.Is(err, storage.ErrDuplicateKey) {
				res.Skipped++
				continue
			}
			return fmt.Errorf("insert candidate %s: %w", doc.URL, err)
		}
		observability.RecordCandidateCreated(e.Venue.String())
		res.Candidates = append(res.Candidates, c)
	}
	return nil
}

// ScanAll scans entities in order. A failure for one entity is recorded in
// its result and does not stop the batch; only context cancellation does.
func (s *Scanner) ScanAll(ctx context.Context, entities []*domain.Entity) BatchResult {
	var batch BatchResult
	for _, e := range entities {
		if ctx.Err() != nil {
			break
		}
		r := s.ScanEntity(ctx, e)
		if r.Err != nil && !errors.Is(r.Err, ErrUnsupportedVenue) {
			batch.Failed++
		}
		batch.Inserted += r.Inserted()
		batch.Results = append(batch.Results, r)
	}
	return batch
}
