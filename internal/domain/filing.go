package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DetectionMethod records how a filing candidate was flagged.
type DetectionMethod string

const (
	DetectionTitleMatch DetectionMethod = "title-match"
	DetectionBodyMatch  DetectionMethod = "body-match"
	DetectionManual     DetectionMethod = "manual"
)

// IsValid checks if the detection method is a valid value.
func (m DetectionMethod) IsValid() bool {
	return m == DetectionTitleMatch || m == DetectionBodyMatch || m == DetectionManual
}

// FilingCandidate is a discovered document suspected of disclosing a treasury change.
// Corresponds to filing_candidates table in PostgreSQL. Unique on (EntityID, URL).
type FilingCandidate struct {
	ID              string          // deterministic hash of (entity_id, url)
	EntityID        string          // FK to entities
	DisclosedAt     time.Time       // venue-reported publication time
	URL             string          // absolute document url
	SourceTag       string          // venue code the document was found on
	Title           string          // link text from the index
	DetectionMethod DetectionMethod // title-match | body-match | manual
	Verified        bool            // set by administrative review only
	BTCAmount       decimal.Decimal // zero until confirmed
	CreatedAt       time.Time
}
