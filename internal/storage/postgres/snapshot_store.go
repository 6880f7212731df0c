package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"btc-treasury-tracker/internal/domain"
	"btc-treasury-tracker/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using PostgreSQL.
// Rows are never updated or deleted.
type SnapshotStore struct {
	pool *Pool
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(pool *Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

const snapshotColumns = `id, entity_id, btc::text, cost_basis_usd::text, last_disclosed,
	source_url, origin, created_at`

// Append inserts a new observation. A zero CreatedAt is filled by the database clock.
func (s *SnapshotStore) Append(ctx context.Context, snap *domain.HoldingsSnapshot) error {
	if snap == nil || snap.ID == "" || snap.EntityID == "" || snap.BTC.IsNegative() {
		return storage.ErrInvalidInput
	}

	var createdAt *time.Time
	if !snap.CreatedAt.IsZero() {
		createdAt = &snap.CreatedAt
	}

	query := `
		INSERT INTO holdings_snapshots (
			id, entity_id, btc, cost_basis_usd, last_disclosed, source_url, origin, created_at
		) VALUES ($1, $2, $3::numeric, $4::numeric, $5, $6, $7, COALESCE($8, clock_timestamp()))
		RETURNING created_at
	`

	err := s.pool.QueryRow(ctx, query,
		snap.ID,
		snap.EntityID,
		numericArg(snap.BTC),
		nullableNumericArg(snap.CostBasisUSD),
		snap.LastDisclosed,
		snap.SourceURL,
		string(snap.Origin),
		createdAt,
	).Scan(&snap.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("append holdings snapshot: %w", err)
	}
	return nil
}

// ListByEntities retrieves every snapshot for the given entities in one query,
// ordered by created_at DESC.
func (s *SnapshotStore) ListByEntities(ctx context.Context, entityIDs []string) ([]*domain.HoldingsSnapshot, error) {
	if len(entityIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT ` + snapshotColumns + `
		FROM holdings_snapshots
		WHERE entity_id = ANY($1)
		ORDER BY created_at DESC, id DESC
	`

	rows, err := s.pool.Query(ctx, query, entityIDs)
	if err != nil {
		return nil, fmt.Errorf("list snapshots by entities: %w", err)
	}
	defer rows.Close()

	var snaps []*domain.HoldingsSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}
	return snaps, nil
}

func scanSnapshot(row pgx.Row) (*domain.HoldingsSnapshot, error) {
	var snap domain.HoldingsSnapshot
	var btc string
	var costBasis *string
	var origin string

	err := row.Scan(
		&snap.ID,
		&snap.EntityID,
		&btc,
		&costBasis,
		&snap.LastDisclosed,
		&snap.SourceURL,
		&origin,
		&snap.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	snap.Origin = domain.SnapshotOrigin(origin)
	if snap.BTC, err = parseNumeric(btc); err != nil {
		return nil, err
	}
	if snap.CostBasisUSD, err = parseNullableNumeric(costBasis); err != nil {
		return nil, err
	}
	return &snap, nil
}
