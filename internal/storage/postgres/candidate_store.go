package postgres

import (
	"context"
	"fmt"

	"btc-treasury-tracker/internal/domain"
	"btc-treasury-tracker/internal/storage"
)

// CandidateStore implements storage.CandidateStore using PostgreSQL.
type CandidateStore struct {
	pool *Pool
}

// NewCandidateStore creates a new CandidateStore.
func NewCandidateStore(pool *Pool) *CandidateStore {
	return &CandidateStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CandidateStore = (*CandidateStore)(nil)

// Insert adds a new candidate. Returns ErrDuplicateKey if (entity_id, url) exists.
func (s *CandidateStore) Insert(ctx context.Context, c *domain.FilingCandidate) error {
	if c == nil || c.ID == "" || c.EntityID == "" || c.URL == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO filing_candidates (
			id, entity_id, disclosed_at, url, source_tag, title, detection_method, verified, btc_amount
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::numeric)
		RETURNING created_at
	`

	err := s.pool.QueryRow(ctx, query,
		c.ID,
		c.EntityID,
		c.DisclosedAt,
		c.URL,
		c.SourceTag,
		c.Title,
		string(c.DetectionMethod),
		c.Verified,
		numericArg(c.BTCAmount),
	).Scan(&c.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert candidate: %w", err)
	}
	return nil
}

// ExistsByEntityURL reports whether a candidate exists for (entity_id, url).
func (s *CandidateStore) ExistsByEntityURL(ctx context.Context, entityID, url string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM filing_candidates WHERE entity_id = $1 AND url = $2
		)
	`

	var exists bool
	if err := s.pool.QueryRow(ctx, query, entityID, url).Scan(&exists); err != nil {
		return false, fmt.Errorf("check candidate exists: %w", err)
	}
	return exists, nil
}

// GetByEntity retrieves all candidates for an entity, ordered by disclosed_at DESC.
func (s *CandidateStore) GetByEntity(ctx context.Context, entityID string) ([]*domain.FilingCandidate, error) {
	query := `
		SELECT id, entity_id, disclosed_at, url, source_tag, title, detection_method,
			verified, btc_amount::text, created_at
		FROM filing_candidates
		WHERE entity_id = $1
		ORDER BY disclosed_at DESC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, entityID)
	if err != nil {
		return nil, fmt.Errorf("get candidates by entity: %w", err)
	}
	defer rows.Close()

	var candidates []*domain.FilingCandidate
	for rows.Next() {
		var c domain.FilingCandidate
		var method, btc string

		err := rows.Scan(
			&c.ID,
			&c.EntityID,
			&c.DisclosedAt,
			&c.URL,
			&c.SourceTag,
			&c.Title,
			&method,
			&c.Verified,
			&btc,
			&c.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan candidate row: %w", err)
		}

		c.DetectionMethod = domain.DetectionMethod(method)
		if c.BTCAmount, err = parseNumeric(btc); err != nil {
			return nil, err
		}
		candidates = append(candidates, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidate rows: %w", err)
	}

	return candidates, nil
}
