package linker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	qerrors "github.com/quarryintel/quarry-cli/pkg/errors"
	"github.com/quarryintel/quarry-cli/pkg/logging"
)

// Store is the storage capability the resolution pipeline needs: registry
// lookups, idempotent link inserts, and the extraction status transition.
// Tests substitute an in-memory fake; production uses PostgresStore.
type Store interface {
	// GetExtractionForLinking fetches an extraction result that is ready
	// for linking (status ai_done). A missing id or any other status
	// yields qerrors.ErrNotFound.
	GetExtractionForLinking(ctx context.Context, id int64) (*ExtractionResult, error)

	// MarkLinked transitions an extraction result to linked. Repeating
	// the transition is harmless.
	MarkLinked(ctx context.Context, id int64) error

	// FindExact looks up a registry record whose name equals the mention,
	// case-insensitively, within the tenant. The bool reports whether a
	// match was found; absence is not an error.
	FindExact(ctx context.Context, tenantID string, entityType EntityType, name string) (int64, bool, error)

	// FindFuzzy looks up a registry record whose name contains the
	// mention as a case-insensitive substring, within the tenant.
	FindFuzzy(ctx context.Context, tenantID string, entityType EntityType, name string) (int64, bool, error)

	// InsertLink inserts a link unless its natural key already exists.
	// The bool reports whether a row was actually written.
	InsertLink(ctx context.Context, link *EntityLink) (bool, error)

	// ListLinksBySource returns all links recorded for one source
	// document, for review tooling.
	ListLinksBySource(ctx context.Context, tenantID, sourceType string, sourceID int64) ([]EntityLink, error)
}

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewPostgresStore creates a store backed by the given pool.
func NewPostgresStore(pool *pgxpool.Pool, logger logging.Logger) *PostgresStore {
	return &PostgresStore{
		pool:   pool,
		logger: logger.With(logging.F("component", "link_store")),
	}
}

// GetExtractionForLinking fetches one extraction result in ai_done status.
func (s *PostgresStore) GetExtractionForLinking(ctx context.Context, id int64) (*ExtractionResult, error) {
	query := `
		SELECT id, tenant_id, source_id, status, output_json, created_at, updated_at
		FROM extraction_results
		WHERE id = $1 AND status = $2
	`

	res := &ExtractionResult{}
	var payload []byte
	err := s.pool.QueryRow(ctx, query, id, ExtractionStatusAIDone).Scan(
		&res.ID, &res.TenantID, &res.SourceID, &res.Status, &payload,
		&res.CreatedAt, &res.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("extraction result %d not ready for linking: %w", id, qerrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load extraction result %d: %w", id, err)
	}

	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &res.Output); err != nil {
			return nil, fmt.Errorf("failed to decode output payload of extraction result %d: %w", id, err)
		}
	}

	return res, nil
}

// MarkLinked transitions an extraction result to linked.
func (s *PostgresStore) MarkLinked(ctx context.Context, id int64) error {
	query := `
		UPDATE extraction_results
		SET status = $2, updated_at = NOW()
		WHERE id = $1
	`

	result, err := s.pool.Exec(ctx, query, id, ExtractionStatusLinked)
	if err != nil {
		return fmt.Errorf("failed to mark extraction result %d linked: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("extraction result %d: %w", id, qerrors.ErrNotFound)
	}

	return nil
}

// FindExact performs a case-insensitive equality lookup, tenant-scoped.
func (s *PostgresStore) FindExact(ctx context.Context, tenantID string, entityType EntityType, name string) (int64, bool, error) {
	if !entityType.Valid() {
		return 0, false, fmt.Errorf("unknown entity type %q: %w", entityType, qerrors.ErrValidation)
	}

	var id int64
	err := s.pool.QueryRow(ctx, entityType.selectExactSQL(), tenantID, name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed exact lookup in %s registry: %w", entityType, err)
	}

	return id, true, nil
}

// FindFuzzy performs a case-insensitive substring lookup, tenant-scoped.
func (s *PostgresStore) FindFuzzy(ctx context.Context, tenantID string, entityType EntityType, name string) (int64, bool, error) {
	if !entityType.Valid() {
		return 0, false, fmt.Errorf("unknown entity type %q: %w", entityType, qerrors.ErrValidation)
	}

	var id int64
	err := s.pool.QueryRow(ctx, entityType.selectFuzzySQL(), tenantID, name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed fuzzy lookup in %s registry: %w", entityType, err)
	}

	return id, true, nil
}

// InsertLink inserts one link row, treating a natural-key collision as a
// successful no-op. The insert is a single statement, so no partial state
// is possible.
func (s *PostgresStore) InsertLink(ctx context.Context, link *EntityLink) (bool, error) {
	query := `
		INSERT INTO entity_links (
			tenant_id, source_type, source_id, entity_type, entity_id,
			confidence, match_type, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (tenant_id, source_type, source_id, entity_type, entity_id) DO NOTHING
	`

	result, err := s.pool.Exec(ctx, query,
		link.TenantID,
		link.SourceType,
		link.SourceID,
		link.EntityType,
		link.EntityID,
		link.Confidence,
		link.MatchType,
		link.Status,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert entity link: %w", err)
	}

	inserted := result.RowsAffected() == 1
	if !inserted {
		s.logger.Debug("Link already exists, insert skipped",
			logging.F("tenant_id", link.TenantID),
			logging.F("source_id", link.SourceID),
			logging.F("entity_type", string(link.EntityType)),
			logging.F("entity_id", link.EntityID))
	}

	return inserted, nil
}

// ListLinksBySource returns the links recorded for one source document.
func (s *PostgresStore) ListLinksBySource(ctx context.Context, tenantID, sourceType string, sourceID int64) ([]EntityLink, error) {
	query := `
		SELECT id, tenant_id, source_type, source_id, entity_type, entity_id,
		       confidence, match_type, status, created_at
		FROM entity_links
		WHERE tenant_id = $1 AND source_type = $2 AND source_id = $3
		ORDER BY entity_type ASC, entity_id ASC
	`

	rows, err := s.pool.Query(ctx, query, tenantID, sourceType, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entity links: %w", err)
	}
	defer rows.Close()

	var links []EntityLink
	for rows.Next() {
		var l EntityLink
		if err := rows.Scan(
			&l.ID, &l.TenantID, &l.SourceType, &l.SourceID, &l.EntityType,
			&l.EntityID, &l.Confidence, &l.MatchType, &l.Status, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan entity link: %w", err)
		}
		links = append(links, l)
	}

	return links, rows.Err()
}

var _ Store = (*PostgresStore)(nil)
