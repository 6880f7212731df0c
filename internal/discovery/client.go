package discovery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"btc-treasury-tracker/internal/domain"
	"btc-treasury-tracker/internal/observability"
)

// maxIndexBytes caps how much of an index page is read.
const maxIndexBytes = 4 << 20

// IndexClient fetches filings index pages through a shared outbound throttle.
type IndexClient struct {
	http    *http.Client
	limiter *rate.Limiter
}

// NewIndexClient creates a client allowing rps requests per second with the given burst.
func NewIndexClient(httpClient *http.Client, rps float64, burst int) *IndexClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &IndexClient{
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Fetch GETs rawURL. Transport failures and non-2xx responses are returned
// as *UpstreamError.
func (c *IndexClient) Fetch(ctx context.Context, venue domain.Venue, rawURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &UpstreamError{Venue: venue, URL: rawURL, Err: fmt.Errorf("throttle: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &UpstreamError{Venue: venue, URL: rawURL, Err: err}
	}
	req.Header.Set("Accept", "text/html")
	req.Header.Set("User-Agent", "btc-treasury-tracker/1.0")

	start := time.Now()
	resp, err := c.http.Do(req)
	observability.RecordIndexFetch(string(venue), time.Since(start).Seconds())
	if err != nil {
		return nil, &UpstreamError{Venue: venue, URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &UpstreamError{Venue: venue, URL: rawURL, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxIndexBytes))
	if err != nil {
		return nil, &UpstreamError{Venue: venue, URL: rawURL, Err: fmt.Errorf("read body: %w", err)}
	}
	return body, nil
}
