package domain

import "strings"

// Venue is a listing exchange code.
type Venue string

const (
	VenueHKEX   Venue = "HKEX"
	VenueTSE    Venue = "TSE"
	VenueNASDAQ Venue = "NASDAQ"
	VenueNYSE   Venue = "NYSE"
	VenueLSE    Venue = "LSE"
	VenueASX    Venue = "ASX"
	VenueTSXV   Venue = "TSXV"
	VenueOther  Venue = "OTHER"
)

// String returns the string representation of Venue.
func (v Venue) String() string {
	return string(v)
}

// IsValid checks if the venue is a known value.
func (v Venue) IsValid() bool {
	switch v {
	case VenueHKEX, VenueTSE, VenueNASDAQ, VenueNYSE, VenueLSE, VenueASX, VenueTSXV, VenueOther:
		return true
	}
	return false
}

// ParseVenue maps a free-form exchange code to a Venue.
// Unknown codes map to VenueOther.
func ParseVenue(s string) Venue {
	v := Venue(strings.ToUpper(strings.TrimSpace(s)))
	switch v {
	case "HK", "SEHK":
		return VenueHKEX
	case "TYO", "JPX":
		return VenueTSE
	}
	if v.IsValid() {
		return v
	}
	return VenueOther
}

// NormalizeRegion returns the canonical form of a region code.
func NormalizeRegion(region string) string {
	return strings.ToUpper(strings.TrimSpace(region))
}
