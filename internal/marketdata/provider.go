package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"btc-treasury-tracker/internal/domain"
)

// Quote is the market data for one entity. Nil fields are left unchanged.
type Quote struct {
	MarketCap         *decimal.Decimal `json:"market_cap"`
	SharesOutstanding *int64           `json:"shares_outstanding"`
}

// Provider supplies market data for an entity.
type Provider interface {
	Quote(ctx context.Context, e *domain.Entity) (Quote, error)
}

// HTTPProvider reads quotes from a JSON endpoint queried with the entity's
// ticker and exchange.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

// NewHTTPProvider creates a provider for baseURL.
func NewHTTPProvider(baseURL string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPProvider{baseURL: baseURL, client: &http.Client{Timeout: timeout}}
}

// Quote fetches the quote for e.
func (p *HTTPProvider) Quote(ctx context.Context, e *domain.Entity) (Quote, error) {
	u, err := url.Parse(p.baseURL)
	if err != nil {
		return Quote{}, fmt.Errorf("parse quote url: %w", err)
	}
	q := u.Query()
	q.Set("ticker", e.Ticker)
	q.Set("exchange", e.Venue.String())
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Quote{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return Quote{}, fmt.Errorf("quote %s: %w", e.Ticker, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return Quote{}, fmt.Errorf("quote %s: status %d", e.Ticker, resp.StatusCode)
	}

	var quote Quote
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return Quote{}, fmt.Errorf("decode quote %s: %w", e.Ticker, err)
	}
	return quote, nil
}
