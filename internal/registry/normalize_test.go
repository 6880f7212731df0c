package registry

import (
	"testing"

	"btc-treasury-tracker/internal/domain"
)

func TestNormalizeTicker(t *testing.T) {
	tests := []struct {
		raw   string
		venue domain.Venue
		want  string
	}{
		{"1357.HK", domain.VenueHKEX, "01357"},
		{"1357", domain.VenueHKEX, "01357"},
		{"01357", domain.VenueHKEX, "01357"},
		{" 434.hk ", domain.VenueHKEX, "00434"},
		{"3350.T", domain.VenueTSE, "3350"},
		{"335.T", domain.VenueTSE, "0335"},
		{"SWC.L", domain.VenueLSE, "SWC"},
		{"mstr", domain.VenueNASDAQ, "MSTR"},
		{"DCC.AX", domain.VenueASX, "DCC"},
		{"BTCT.V", domain.VenueTSXV, "BTCT"},
		{"ABC.HK", domain.VenueOther, "ABC"},
		{"123456", domain.VenueHKEX, "123456"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := NormalizeTicker(tt.raw, tt.venue); got != tt.want {
				t.Errorf("NormalizeTicker(%q, %s) = %q, want %q", tt.raw, tt.venue, got, tt.want)
			}
		})
	}
}

func TestVenueFromTicker(t *testing.T) {
	tests := []struct {
		raw  string
		want domain.Venue
	}{
		{"1357.HK", domain.VenueHKEX},
		{"3350.t", domain.VenueTSE},
		{"MSTR", domain.VenueOther},
	}
	for _, tt := range tests {
		if got := VenueFromTicker(tt.raw); got != tt.want {
			t.Errorf("VenueFromTicker(%q) = %s, want %s", tt.raw, got, tt.want)
		}
	}
}
