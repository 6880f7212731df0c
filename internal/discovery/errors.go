package discovery

import (
	"errors"
	"fmt"

	"btc-treasury-tracker/internal/domain"
)

// ErrUnsupportedVenue is returned for entities listed on a venue with no
// filings index configuration.
var ErrUnsupportedVenue = errors.New("unsupported venue")

// UpstreamError is a failed fetch of a venue's filings index. Status is zero
// when the request never produced a response.
type UpstreamError struct {
	Venue  domain.Venue
	URL    string
	Status int
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s filings index %s: status %d", e.Venue, e.URL, e.Status)
	}
	return fmt.Sprintf("%s filings index %s: %v", e.Venue, e.URL, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
