package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Entity is a tracked public company.
// Corresponds to entities table in PostgreSQL.
type Entity struct {
	ID                string           // uuid
	LegalName         string           // registered company name
	Ticker            string           // normalized, venue-qualified symbol (natural key)
	Venue             Venue            // listing exchange
	Headquarters      string           // jurisdiction of the head office
	Region            string           // normalized region code (APAC, NA, EU, ...)
	MarketCap         *decimal.Decimal // USD (nullable)
	SharesOutstanding *int64           // nullable
	CreatedAt         time.Time
	UpdatedAt         time.Time // bumped on any non-holdings update
}
