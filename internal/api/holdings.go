package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"btc-treasury-tracker/internal/domain"
	"btc-treasury-tracker/internal/observability"
	"btc-treasury-tracker/internal/pricing"
	"btc-treasury-tracker/internal/ratelimit"
)

const holdingsCacheControl = "public, s-maxage=60, stale-while-revalidate=300"

// HoldingRecord is one entity in the holdings response.
type HoldingRecord struct {
	ID                string       `json:"id"`
	CompanyName       string       `json:"company_name"`
	Ticker            string       `json:"ticker"`
	Exchange          string       `json:"exchange"`
	Headquarters      string       `json:"headquarters"`
	Region            string       `json:"region"`
	BTC               json.Number  `json:"btc"`
	USDValue          json.Number  `json:"usd_value"`
	Delta             *json.Number `json:"delta"`
	CostBasis         *json.Number `json:"cost_basis"`
	LastDisclosed     *time.Time   `json:"last_disclosed"`
	SourceURL         string       `json:"source_url"`
	Verified          bool         `json:"verified"`
	MarketCap         *json.Number `json:"market_cap"`
	SharesOutstanding *int64       `json:"shares_outstanding"`
	LastUpdated       time.Time    `json:"last_updated"`
}

// HoldingsSummary aggregates a holdings response.
type HoldingsSummary struct {
	TotalBTC         json.Number `json:"total_btc"`
	TotalUSD         json.Number `json:"total_usd"`
	VerifiedEntities int         `json:"verified_entities"`
	TotalEntities    int         `json:"total_entities"`
	BTCPrice         json.Number `json:"btc_price"`
	PriceUpdatedAt   time.Time   `json:"price_updated_at"`
}

// HoldingsData is the success payload of GET /api/holdings.
type HoldingsData struct {
	Holdings []HoldingRecord `json:"holdings"`
	Summary  HoldingsSummary `json:"summary"`
}

func (s *Server) handleHoldings(c *gin.Context) {
	ctx := c.Request.Context()

	decision := s.deps.Limiter.Allow(ctx, ratelimit.ClientIdentifier(c.Request))
	setRateLimitHeaders(c, decision)
	if !decision.Allowed {
		c.Header("Retry-After", strconv.Itoa(decision.RetryAfter(s.now())))
		s.fail(c, http.StatusTooManyRequests, "rate limit exceeded", nil)
		return
	}

	// One rate values every entity in this response.
	price, err := s.deps.Prices.Latest(ctx)
	if err != nil {
		msg := "failed to load price data"
		if errors.Is(err, pricing.ErrNoPriceData) {
			msg = "no price data available"
		}
		s.fail(c, http.StatusInternalServerError, msg, err)
		return
	}

	rows, err := s.deps.Holdings.Latest(ctx, c.Query("region"))
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "failed to load holdings", err)
		return
	}

	held := make([]*domain.EntityHoldings, 0, len(rows))
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.Snapshot.BTC.IsPositive() {
			held = append(held, row)
			ids = append(ids, row.Entity.ID)
		}
	}

	deltas, err := s.deps.Holdings.ComputeDeltas(ctx, ids)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "failed to compute holdings deltas", err)
		return
	}

	data := buildHoldings(held, deltas, price)
	observability.RecordHoldingsServed(len(data.Holdings))

	c.Header("Cache-Control", holdingsCacheControl)
	c.JSON(http.StatusOK, envelope{Success: true, Data: data})
}

func buildHoldings(rows []*domain.EntityHoldings, deltas map[string]*decimal.Decimal, price *domain.PriceSnapshot) HoldingsData {
	data := HoldingsData{Holdings: make([]HoldingRecord, 0, len(rows))}
	totalBTC, totalUSD := decimal.Zero, decimal.Zero

	for _, row := range rows {
		e, snap := row.Entity, row.Snapshot
		value := snap.BTC.Mul(price.Rate)

		rec := HoldingRecord{
			ID:                e.ID,
			CompanyName:       e.LegalName,
			Ticker:            e.Ticker,
			Exchange:          e.Venue.String(),
			Headquarters:      e.Headquarters,
			Region:            e.Region,
			BTC:               number(snap.BTC),
			USDValue:          number(value.Round(2)),
			Delta:             optionalNumber(deltas[e.ID]),
			CostBasis:         optionalNumber(snap.CostBasisUSD),
			LastDisclosed:     snap.LastDisclosed,
			SourceURL:         snap.SourceURL,
			Verified:          row.Verified,
			MarketCap:         optionalNumber(e.MarketCap),
			SharesOutstanding: e.SharesOutstanding,
			LastUpdated:       lastUpdated(e, snap),
		}
		data.Holdings = append(data.Holdings, rec)

		totalBTC = totalBTC.Add(snap.BTC)
		totalUSD = totalUSD.Add(value)
		if row.Verified {
			data.Summary.VerifiedEntities++
		}
	}

	data.Summary.TotalBTC = number(totalBTC)
	data.Summary.TotalUSD = number(totalUSD.Round(2))
	data.Summary.TotalEntities = len(data.Holdings)
	data.Summary.BTCPrice = number(price.Rate)
	data.Summary.PriceUpdatedAt = price.CreatedAt
	return data
}

func lastUpdated(e domain.Entity, snap domain.HoldingsSnapshot) time.Time {
	if e.UpdatedAt.After(snap.CreatedAt) {
		return e.UpdatedAt
	}
	return snap.CreatedAt
}

// number renders a decimal as a JSON number without float rounding.
func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

func optionalNumber(d *decimal.Decimal) *json.Number {
	if d == nil {
		return nil
	}
	n := number(*d)
	return &n
}

func setRateLimitHeaders(c *gin.Context, r ratelimit.Result) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(r.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(r.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(r.Reset.Unix(), 10))
}
