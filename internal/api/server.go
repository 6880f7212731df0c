// Package api serves the public holdings endpoint, administrative triggers
// and operational probes over gin.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"btc-treasury-tracker/internal/discovery"
	"btc-treasury-tracker/internal/domain"
	"btc-treasury-tracker/internal/logger"
	"btc-treasury-tracker/internal/marketdata"
	"btc-treasury-tracker/internal/observability"
	"btc-treasury-tracker/internal/ratelimit"
)

// Admission decides whether a client may be served.
type Admission interface {
	Allow(ctx context.Context, id string) ratelimit.Result
}

// PriceSource returns the authoritative BTC/USD rate.
type PriceSource interface {
	Latest(ctx context.Context) (*domain.PriceSnapshot, error)
}

// HoldingsSource serves the latest-state projection and deltas.
type HoldingsSource interface {
	Latest(ctx context.Context, region string) ([]*domain.EntityHoldings, error)
	ComputeDeltas(ctx context.Context, entityIDs []string) (map[string]*decimal.Decimal, error)
}

// EntityResolver finds entities for administrative requests.
type EntityResolver interface {
	Get(ctx context.Context, id string) (*domain.Entity, error)
	GetByTicker(ctx context.Context, raw string, venue domain.Venue) (*domain.Entity, error)
}

// EntityScanner runs discovery for one entity.
type EntityScanner interface {
	ScanEntity(ctx context.Context, e *domain.Entity) discovery.ScanResult
}

// MarketDataRefresher runs a market-data sweep.
type MarketDataRefresher interface {
	Refresh(ctx context.Context, region string) (marketdata.Result, error)
}

// HealthProbe reports dependency health.
type HealthProbe interface {
	Check(ctx context.Context) observability.HealthReport
	Ready(ctx context.Context) error
}

// Deps are the collaborators of the HTTP layer. Refresher and Recorder may be nil.
// AdminSecret returns config.ErrNotConfigured while admin routes are disabled.
type Deps struct {
	Limiter     Admission
	Prices      PriceSource
	Holdings    HoldingsSource
	Entities    EntityResolver
	Scanner     EntityScanner
	Refresher   MarketDataRefresher
	Health      HealthProbe
	Recorder    observability.Recorder
	AdminSecret func() (string, error)
	Log         *logger.Log
}

// Server is the HTTP front end.
type Server struct {
	addr            string
	shutdownTimeout time.Duration
	deps            Deps
	log             *logger.Entry
	now             func() time.Time
	httpServer      *http.Server
}

// NewServer creates a server listening on addr.
func NewServer(addr string, shutdownTimeout time.Duration, deps Deps) *Server {
	if deps.Log == nil {
		deps.Log = logger.Discard()
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &Server{
		addr:            addr,
		shutdownTimeout: shutdownTimeout,
		deps:            deps,
		log:             deps.Log.WithComponent("api"),
		now:             time.Now,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.instrument())
	// Client identity comes from proxy headers read by the rate limiter.
	if err := router.SetTrustedProxies(nil); err != nil {
		s.log.WithError(err).Warn("failed to clear trusted proxies")
	}

	api := router.Group("/api")
	api.GET("/holdings", s.handleHoldings)
	api.GET("/health", s.handleHealth)
	api.GET("/ready", s.handleReady)

	admin := api.Group("/admin", s.requireAdmin())
	admin.POST("/discovery", s.handleDiscovery)
	admin.POST("/market-data/refresh", s.handleMarketDataRefresh)

	router.GET("/metrics", gin.WrapH(observability.Handler()))
	return router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)

	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.addr).Info("http server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		<-errCh
		s.log.Info("http server stopped")
		return nil
	case err := <-errCh:
		return err
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

type envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

func (s *Server) fail(c *gin.Context, status int, msg string, err error) {
	if err != nil {
		s.log.WithError(err).WithFields(logger.Fields{
			"route":  c.FullPath(),
			"status": status,
		}).Warn(msg)
		if s.deps.Recorder != nil && status >= http.StatusInternalServerError {
			s.deps.Recorder.LogError(err, map[string]string{"component": "api", "route": c.FullPath()})
		}
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: msg})
}
