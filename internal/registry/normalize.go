package registry

import (
	"strings"

	"btc-treasury-tracker/internal/domain"
)

// tickerRule describes how a venue formats its symbols.
type tickerRule struct {
	suffixes []string // stripped before padding
	padWidth int      // numeric codes are left-padded with zeros; 0 disables
}

var tickerRules = map[domain.Venue]tickerRule{
	domain.VenueHKEX: {suffixes: []string{".HK"}, padWidth: 5},
	domain.VenueTSE:  {suffixes: []string{".T"}, padWidth: 4},
	domain.VenueLSE:  {suffixes: []string{".L"}},
	domain.VenueASX:  {suffixes: []string{".AX"}},
	domain.VenueTSXV: {suffixes: []string{".V"}},
}

// allSuffixes is used when the venue is unknown.
var allSuffixes = []string{".HK", ".T", ".L", ".AX", ".V"}

// NormalizeTicker returns the canonical form of a raw symbol for a venue:
// upper-cased, venue suffix stripped, and numeric codes zero-padded to the
// venue width. "1357.HK" on HKEX becomes "01357".
func NormalizeTicker(raw string, venue domain.Venue) string {
	t := strings.ToUpper(strings.TrimSpace(raw))

	rule, ok := tickerRules[venue]
	suffixes := rule.suffixes
	if !ok {
		suffixes = allSuffixes
	}
	for _, s := range suffixes {
		if strings.HasSuffix(t, s) && len(t) > len(s) {
			t = strings.TrimSuffix(t, s)
			break
		}
	}

	if rule.padWidth > 0 && isNumeric(t) && len(t) < rule.padWidth {
		t = strings.Repeat("0", rule.padWidth-len(t)) + t
	}
	return t
}

// VenueFromTicker infers a venue from a suffixed symbol, or VenueOther.
func VenueFromTicker(raw string) domain.Venue {
	t := strings.ToUpper(strings.TrimSpace(raw))
	for venue, rule := range tickerRules {
		for _, s := range rule.suffixes {
			if strings.HasSuffix(t, s) {
				return venue
			}
		}
	}
	return domain.VenueOther
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
