package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"btc-treasury-tracker/internal/config"
	"btc-treasury-tracker/internal/discovery"
	"btc-treasury-tracker/internal/domain"
	"btc-treasury-tracker/internal/holdings"
	"btc-treasury-tracker/internal/logger"
	"btc-treasury-tracker/internal/marketdata"
	"btc-treasury-tracker/internal/observability"
	"btc-treasury-tracker/internal/pricing"
	"btc-treasury-tracker/internal/ratelimit"
	"btc-treasury-tracker/internal/registry"
	"btc-treasury-tracker/internal/storage/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testSecret = "s3cret"

type fakeScanner struct {
	calls  int
	result func(e *domain.Entity) discovery.ScanResult
}

func (f *fakeScanner) ScanEntity(_ context.Context, e *domain.Entity) discovery.ScanResult {
	f.calls++
	if f.result != nil {
		return f.result(e)
	}
	return discovery.ScanResult{EntityID: e.ID, Ticker: e.Ticker}
}

type fakeRefresher struct {
	region string
}

func (f *fakeRefresher) Refresh(_ context.Context, region string) (marketdata.Result, error) {
	f.region = region
	return marketdata.Result{Total: 2, Updated: 1, Failed: 1, Errors: map[string]error{"MSTR": errors.New("timeout")}}, nil
}

type fakeProbe struct {
	report   observability.HealthReport
	readyErr error
}

func (f fakeProbe) Check(context.Context) observability.HealthReport { return f.report }
func (f fakeProbe) Ready(context.Context) error                       { return f.readyErr }

type harness struct {
	server     *Server
	router     *gin.Engine
	registry   *registry.Registry
	holdings   *holdings.Service
	prices     *pricing.Service
	candidates *memory.CandidateStore
	scanner    *fakeScanner
	refresher  *fakeRefresher
	probe      *fakeProbe
	monitor    *observability.Monitor
}

func newHarness(t *testing.T, limit int) *harness {
	t.Helper()
	entities := memory.NewEntityStore()
	snapshots := memory.NewSnapshotStore()
	candidates := memory.NewCandidateStore()
	log := logger.Discard()

	h := &harness{
		registry:   registry.New(entities, log),
		holdings:   holdings.NewService(snapshots, memory.NewHoldingsView(entities, snapshots, candidates), log),
		prices:     pricing.NewService(memory.NewPriceStore(), log),
		candidates: candidates,
		scanner:    &fakeScanner{},
		refresher:  &fakeRefresher{},
		probe:      &fakeProbe{report: observability.HealthReport{Status: observability.StatusHealthy}},
	}
	h.monitor = observability.NewMonitor(observability.MonitorOptions{}, log)
	limiter := ratelimit.NewTiered(nil, ratelimit.NewMemoryLimiter(limit, time.Minute, time.Minute), log)

	h.server = NewServer(":0", time.Second, Deps{
		Limiter:     limiter,
		Prices:      h.prices,
		Holdings:    h.holdings,
		Entities:    h.registry,
		Scanner:     h.scanner,
		Refresher:   h.refresher,
		Health:      h.probe,
		Recorder:    h.monitor,
		AdminSecret: func() (string, error) { return testSecret, nil },
		Log:         log,
	})
	h.router = h.server.Router()
	return h
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h *harness) seed(t *testing.T, ticker, region string, btcs ...string) *domain.Entity {
	t.Helper()
	ctx := context.Background()
	e, _, err := h.registry.LookupOrCreate(ctx, domain.Entity{Ticker: ticker, Region: region, LegalName: ticker + " Holdings"})
	require.NoError(t, err)
	for _, b := range btcs {
		require.NoError(t, h.holdings.Append(ctx, &domain.HoldingsSnapshot{
			EntityID: e.ID,
			BTC:      decimal.RequireFromString(b),
		}))
	}
	return e
}

type holdingsBody struct {
	Success bool `json:"success"`
	Data    struct {
		Holdings []map[string]any `json:"holdings"`
		Summary  map[string]any   `json:"summary"`
	} `json:"data"`
}

func TestHoldings_Success(t *testing.T) {
	h := newHarness(t, 60)
	ctx := context.Background()

	hk := h.seed(t, "1357.HK", "APAC", "100", "150")
	h.seed(t, "MSTR", "NA", "500")
	h.seed(t, "ZERO", "NA", "0")
	require.NoError(t, h.candidates.Insert(ctx, &domain.FilingCandidate{
		ID: "c1", EntityID: hk.ID, URL: "https://example.com/a.pdf", Verified: true,
		DetectionMethod: domain.DetectionManual,
	}))
	_, err := h.prices.Record(ctx, decimal.NewFromInt(60000), "test")
	require.NoError(t, err)

	w := h.do(httptest.NewRequest(http.MethodGet, "/api/holdings", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, holdingsCacheControl, w.Header().Get("Cache-Control"))
	assert.Equal(t, "60", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "59", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))

	var body holdingsBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	require.Len(t, body.Data.Holdings, 2)

	first := body.Data.Holdings[0]
	assert.Equal(t, "MSTR", first["ticker"])
	assert.Nil(t, first["delta"])
	assert.EqualValues(t, 30000000, first["usd_value"])

	second := body.Data.Holdings[1]
	assert.Equal(t, "01357", second["ticker"])
	assert.EqualValues(t, 150, second["btc"])
	assert.EqualValues(t, 50, second["delta"])
	assert.EqualValues(t, 9000000, second["usd_value"])
	assert.Equal(t, true, second["verified"])
	assert.Equal(t, "1357.HK Holdings", second["company_name"])

	s := body.Data.Summary
	assert.EqualValues(t, 650, s["total_btc"])
	assert.EqualValues(t, 39000000, s["total_usd"])
	assert.EqualValues(t, 1, s["verified_entities"])
	assert.EqualValues(t, 2, s["total_entities"])
	assert.EqualValues(t, 60000, s["btc_price"])
}

func TestHoldings_RegionFilter(t *testing.T) {
	h := newHarness(t, 60)
	h.seed(t, "1357.HK", "APAC", "100")
	h.seed(t, "MSTR", "NA", "500")
	_, err := h.prices.Record(context.Background(), decimal.NewFromInt(1), "test")
	require.NoError(t, err)

	w := h.do(httptest.NewRequest(http.MethodGet, "/api/holdings?region=apac", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body holdingsBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data.Holdings, 1)
	assert.Equal(t, "APAC", body.Data.Holdings[0]["region"])
}

func TestHoldings_NoPriceData(t *testing.T) {
	h := newHarness(t, 60)
	h.seed(t, "MSTR", "NA", "500")

	w := h.do(httptest.NewRequest(http.MethodGet, "/api/holdings", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"no price data available"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Limit"))
}

func TestHoldings_RateLimited(t *testing.T) {
	h := newHarness(t, 2)
	_, err := h.prices.Record(context.Background(), decimal.NewFromInt(1), "test")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/holdings", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		assert.Equal(t, http.StatusOK, h.do(req).Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/holdings", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	w := h.do(req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// A different client has its own window.
	other := httptest.NewRequest(http.MethodGet, "/api/holdings", nil)
	other.Header.Set("X-Real-IP", "198.51.100.1")
	assert.Equal(t, http.StatusOK, h.do(other).Code)
}

func adminRequest(method, path, body, token string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestAdminDiscovery_Auth(t *testing.T) {
	h := newHarness(t, 60)

	w := h.do(adminRequest(http.MethodPost, "/api/admin/discovery", `{"ticker":"1357.HK"}`, ""))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(adminRequest(http.MethodPost, "/api/admin/discovery", `{"ticker":"1357.HK"}`, "wrong"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Zero(t, h.scanner.calls)
}

func TestAdminDiscovery_NotConfigured(t *testing.T) {
	h := newHarness(t, 60)
	h.server.deps.AdminSecret = (&config.Config{}).RequireAdminSecret
	router := h.server.Router()

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, adminRequest(http.MethodPost, "/api/admin/discovery", `{}`, "anything"))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	}
	assert.Zero(t, h.scanner.calls)

	// Rejections while unconfigured must not feed the error rate
	assert.Zero(t, h.monitor.Stats().TotalErrors)
	assert.Zero(t, h.monitor.ErrorRate(time.Now()))

	h.server.deps.AdminSecret = nil
	w := httptest.NewRecorder()
	h.server.Router().ServeHTTP(w, adminRequest(http.MethodPost, "/api/admin/discovery", `{}`, "anything"))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAdminDiscovery_Validation(t *testing.T) {
	h := newHarness(t, 60)

	w := h.do(adminRequest(http.MethodPost, "/api/admin/discovery", `{}`, testSecret))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(adminRequest(http.MethodPost, "/api/admin/discovery", `not json`, testSecret))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(adminRequest(http.MethodPost, "/api/admin/discovery", `{"ticker":"9999.HK"}`, testSecret))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Zero(t, h.scanner.calls)
}

func TestAdminDiscovery_Scan(t *testing.T) {
	h := newHarness(t, 60)
	e := h.seed(t, "1357.HK", "APAC")
	h.scanner.result = func(e *domain.Entity) discovery.ScanResult {
		return discovery.ScanResult{
			EntityID:  e.ID,
			Ticker:    e.Ticker,
			Documents: 2,
			Matched:   1,
			Candidates: []*domain.FilingCandidate{{
				ID: "c1", URL: "https://example.com/a.pdf", Title: "Purchase of Bitcoin",
				DetectionMethod: domain.DetectionTitleMatch,
			}},
		}
	}

	w := h.do(adminRequest(http.MethodPost, "/api/admin/discovery", `{"ticker":"1357","exchange":"HKEX"}`, testSecret))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool              `json:"success"`
		Data    discoveryResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, e.ID, body.Data.EntityID)
	assert.Equal(t, 1, body.Data.Inserted)
	require.Len(t, body.Data.Candidates, 1)
	assert.Equal(t, "title-match", body.Data.Candidates[0].Method)

	w = h.do(adminRequest(http.MethodPost, "/api/admin/discovery", `{"entity_id":"`+e.ID+`"}`, testSecret))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, h.scanner.calls)
}

func TestAdminDiscovery_ScanFailures(t *testing.T) {
	h := newHarness(t, 60)
	h.seed(t, "1357.HK", "APAC")

	h.scanner.result = func(e *domain.Entity) discovery.ScanResult {
		return discovery.ScanResult{Err: &discovery.UpstreamError{Venue: domain.VenueHKEX, Status: 503}}
	}
	w := h.do(adminRequest(http.MethodPost, "/api/admin/discovery", `{"ticker":"1357.HK"}`, testSecret))
	assert.Equal(t, http.StatusBadGateway, w.Code)

	h.scanner.result = func(e *domain.Entity) discovery.ScanResult {
		return discovery.ScanResult{Err: discovery.ErrUnsupportedVenue}
	}
	w = h.do(adminRequest(http.MethodPost, "/api/admin/discovery", `{"ticker":"1357.HK"}`, testSecret))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestAdminMarketDataRefresh(t *testing.T) {
	h := newHarness(t, 60)

	w := h.do(adminRequest(http.MethodPost, "/api/admin/market-data/refresh", `{"region":"apac"}`, testSecret))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "APAC", h.refresher.region)
	assert.Contains(t, w.Body.String(), `"MSTR":"timeout"`)

	w = h.do(adminRequest(http.MethodPost, "/api/admin/market-data/refresh", ``, testSecret))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "", h.refresher.region)
}

func TestHealthAndReady(t *testing.T) {
	h := newHarness(t, 60)

	w := h.do(httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)

	h.probe.report.Status = observability.StatusUnhealthy
	w = h.do(httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = h.do(httptest.NewRequest(http.MethodGet, "/api/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	h.probe.readyErr = errors.New("connection refused")
	w = h.do(httptest.NewRequest(http.MethodGet, "/api/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t, 60)
	h.do(httptest.NewRequest(http.MethodGet, "/api/ready", nil))

	w := h.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "btc_treasury_")
}
