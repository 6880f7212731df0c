package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"btc-treasury-tracker/internal/discovery"
	"btc-treasury-tracker/internal/domain"
	"btc-treasury-tracker/internal/registry"
	"btc-treasury-tracker/internal/storage"
)

type discoveryRequest struct {
	EntityID string `json:"entity_id"`
	Ticker   string `json:"ticker"`
	Exchange string `json:"exchange"`
}

type candidateView struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	DisclosedAt time.Time `json:"disclosed_at"`
	Method      string    `json:"detection_method"`
}

type discoveryResponse struct {
	EntityID   string          `json:"entity_id"`
	Ticker     string          `json:"ticker"`
	Documents  int             `json:"documents"`
	Matched    int             `json:"matched"`
	Inserted   int             `json:"inserted"`
	Skipped    int             `json:"skipped"`
	Candidates []candidateView `json:"candidates"`
}

func (s *Server) handleDiscovery(c *gin.Context) {
	ctx := c.Request.Context()

	var req discoveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	req.EntityID = strings.TrimSpace(req.EntityID)
	req.Ticker = strings.TrimSpace(req.Ticker)
	if req.EntityID == "" && req.Ticker == "" {
		s.fail(c, http.StatusBadRequest, "entity_id or ticker is required", nil)
		return
	}

	entity, err := s.resolveEntity(c, req)
	if errors.Is(err, storage.ErrNotFound) {
		s.fail(c, http.StatusNotFound, "entity not found", nil)
		return
	}
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "failed to resolve entity", err)
		return
	}

	res := s.deps.Scanner.ScanEntity(ctx, entity)
	if res.Err != nil {
		var upErr *discovery.UpstreamError
		switch {
		case errors.Is(res.Err, discovery.ErrUnsupportedVenue):
			s.fail(c, http.StatusUnprocessableEntity, "venue has no filings index", nil)
		case errors.As(res.Err, &upErr):
			s.fail(c, http.StatusBadGateway, "filings index unavailable", res.Err)
		default:
			s.fail(c, http.StatusInternalServerError, "discovery scan failed", res.Err)
		}
		return
	}

	out := discoveryResponse{
		EntityID:   res.EntityID,
		Ticker:     res.Ticker,
		Documents:  res.Documents,
		Matched:    res.Matched,
		Inserted:   res.Inserted(),
		Skipped:    res.Skipped,
		Candidates: make([]candidateView, 0, len(res.Candidates)),
	}
	for _, cand := range res.Candidates {
		out.Candidates = append(out.Candidates, candidateView{
			ID:          cand.ID,
			URL:         cand.URL,
			Title:       cand.Title,
			DisclosedAt: cand.DisclosedAt,
			Method:      string(cand.DetectionMethod),
		})
	}
	c.JSON(http.StatusOK, envelope{Success: true, Data: out})
}

func (s *Server) resolveEntity(c *gin.Context, req discoveryRequest) (*domain.Entity, error) {
	ctx := c.Request.Context()
	if req.EntityID != "" {
		return s.deps.Entities.Get(ctx, req.EntityID)
	}
	venue := registry.VenueFromTicker(req.Ticker)
	if req.Exchange != "" {
		venue = domain.ParseVenue(req.Exchange)
	}
	return s.deps.Entities.GetByTicker(ctx, req.Ticker, venue)
}

type refreshRequest struct {
	Region string `json:"region"`
}

func (s *Server) handleMarketDataRefresh(c *gin.Context) {
	if s.deps.Refresher == nil {
		s.fail(c, http.StatusServiceUnavailable, "market data provider is not configured", nil)
		return
	}

	var req refreshRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.fail(c, http.StatusBadRequest, "invalid request body", nil)
			return
		}
	}

	res, err := s.deps.Refresher.Refresh(c.Request.Context(), domain.NormalizeRegion(req.Region))
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "market data refresh failed", err)
		return
	}

	failed := make(map[string]string, len(res.Errors))
	for ticker, e := range res.Errors {
		failed[ticker] = e.Error()
	}
	c.JSON(http.StatusOK, envelope{Success: true, Data: gin.H{
		"total":   res.Total,
		"updated": res.Updated,
		"skipped": res.Skipped,
		"failed":  res.Failed,
		"errors":  failed,
	}})
}
