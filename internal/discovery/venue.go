package discovery

import (
	"fmt"
	"net/url"
	"time"

	"btc-treasury-tracker/internal/domain"
	"btc-treasury-tracker/internal/registry"
)

// VenueSpec is how one venue's filings index is queried and parsed.
type VenueSpec struct {
	// SearchURL builds the index query for a formatted stock code and date range.
	SearchURL func(code string, from, to time.Time) string
	// FormatCode turns a normalized ticker into the index's stock code.
	FormatCode func(ticker string) string
	// DateLayouts are tried in order against date cells.
	DateLayouts []string
	// Location is the venue's local time zone for parsed dates.
	Location *time.Location
}

// VenueTable maps a venue to its index configuration.
type VenueTable map[domain.Venue]VenueSpec

// Lookup returns the entry for v or ErrUnsupportedVenue.
func (t VenueTable) Lookup(v domain.Venue) (VenueSpec, error) {
	vs, ok := t[v]
	if !ok {
		return VenueSpec{}, fmt.Errorf("%s: %w", v, ErrUnsupportedVenue)
	}
	return vs, nil
}

var hongKong = time.FixedZone("HKT", 8*60*60)

// genericLayouts are appended to every venue's own layouts.
var genericLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02",
}

// DefaultVenues returns the configured venues. Only HKEX has a filings index.
func DefaultVenues(hkexBaseURL string) VenueTable {
	return VenueTable{
		domain.VenueHKEX: {
			SearchURL: func(code string, from, to time.Time) string {
				q := url.Values{}
				q.Set("lang", "en")
				q.Set("market", "SEHK")
				q.Set("stockCode", code)
				q.Set("from", from.In(hongKong).Format("20060102"))
				q.Set("to", to.In(hongKong).Format("20060102"))
				return hkexBaseURL + "/search/titlesearch.xhtml?" + q.Encode()
			},
			FormatCode: func(ticker string) string {
				return registry.NormalizeTicker(ticker, domain.VenueHKEX)
			},
			DateLayouts: append([]string{"02/01/2006 15:04", "02/01/2006"}, genericLayouts...),
			Location:    hongKong,
		},
	}
}
