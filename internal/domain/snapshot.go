package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SnapshotOrigin records where a holdings observation came from.
type SnapshotOrigin string

const (
	OriginBulkExport SnapshotOrigin = "bulk-export"
	OriginFiling     SnapshotOrigin = "filing"
	OriginManual     SnapshotOrigin = "manual"
)

// IsValid checks if the origin is a valid value.
func (o SnapshotOrigin) IsValid() bool {
	return o == OriginBulkExport || o == OriginFiling || o == OriginManual
}

// HoldingsSnapshot is one timestamped observation of an entity's Bitcoin holdings.
// Corresponds to holdings_snapshots table in PostgreSQL. Append-only: CreatedAt
// totally orders an entity's history.
type HoldingsSnapshot struct {
	ID            string
	EntityID      string
	BTC           decimal.Decimal  // >= 0
	CostBasisUSD  *decimal.Decimal // nullable
	LastDisclosed *time.Time       // nullable
	SourceURL     string
	Origin        SnapshotOrigin
	CreatedAt     time.Time
}

// EntityHoldings is the latest-state projection row: an entity joined with its
// most recent snapshot.
type EntityHoldings struct {
	Entity   Entity
	Snapshot HoldingsSnapshot
	Verified bool // entity has at least one verified filing candidate
}
