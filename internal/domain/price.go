package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceSnapshot is one BTC/USD rate observation.
// The most recent snapshot is authoritative.
type PriceSnapshot struct {
	Rate      decimal.Decimal // USD per BTC
	Source    string          // feed or provider tag
	CreatedAt time.Time
}
