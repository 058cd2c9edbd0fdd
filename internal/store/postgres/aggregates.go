package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-attend/internal/store"
)

// AggregateRepository provides PostgreSQL-backed session aggregate storage.
type AggregateRepository struct {
	pool *Pool
}

// NewAggregateRepository creates a new aggregate repository.
func NewAggregateRepository(pool *Pool) *AggregateRepository {
	return &AggregateRepository{pool: pool}
}

const aggregateColumns = "id, session_id, person_id, observation_count, best_score, band, status, resolved_by, created_at, updated_at"

func scanAggregate(row *sql.Row) (*store.SessionAggregate, error) {
	var agg store.SessionAggregate
	err := row.Scan(&agg.ID, &agg.SessionID, &agg.PersonID, &agg.ObservationCount,
		&agg.BestScore, &agg.Band, &agg.Status, &agg.ResolvedBy, &agg.CreatedAt, &agg.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan aggregate: %w", err)
	}
	return &agg, nil
}

func scanAggregates(rows *sql.Rows) ([]store.SessionAggregate, error) {
	var out []store.SessionAggregate
	for rows.Next() {
		var agg store.SessionAggregate
		if err := rows.Scan(&agg.ID, &agg.SessionID, &agg.PersonID, &agg.ObservationCount,
			&agg.BestScore, &agg.Band, &agg.Status, &agg.ResolvedBy, &agg.CreatedAt, &agg.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan aggregate: %w", err)
		}
		out = append(out, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate aggregates: %w", err)
	}
	return out, nil
}

// SaveAggregate inserts or updates an aggregate by ID.
func (r *AggregateRepository) SaveAggregate(ctx context.Context, agg store.SessionAggregate) error {
	query := `
		INSERT INTO session_aggregates
			(id, session_id, person_id, observation_count, best_score, band, status, resolved_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE(NULLIF($9, '0001-01-01 00:00:00+00'::timestamptz), NOW()), NOW())
		ON CONFLICT (id) DO UPDATE SET
			observation_count = EXCLUDED.observation_count,
			best_score = EXCLUDED.best_score,
			band = EXCLUDED.band,
			status = EXCLUDED.status,
			resolved_by = EXCLUDED.resolved_by,
			updated_at = NOW()
	`

	_, err := r.pool.Exec(ctx, query, agg.ID, agg.SessionID, agg.PersonID, agg.ObservationCount,
		agg.BestScore, agg.Band, agg.Status, agg.ResolvedBy, agg.CreatedAt)
	if err != nil {
		return fmt.Errorf("save aggregate: %w", err)
	}
	return nil
}

// GetAggregate retrieves an aggregate by ID, nil if not found.
func (r *AggregateRepository) GetAggregate(ctx context.Context, id string) (*store.SessionAggregate, error) {
	return scanAggregate(r.pool.QueryRow(ctx,
		"SELECT "+aggregateColumns+" FROM session_aggregates WHERE id = $1", id))
}

// ListBySession returns all aggregates for a session.
func (r *AggregateRepository) ListBySession(ctx context.Context, sessionID string) ([]store.SessionAggregate, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+aggregateColumns+" FROM session_aggregates WHERE session_id = $1 ORDER BY person_id", sessionID)
	if err != nil {
		return nil, fmt.Errorf("query aggregates: %w", err)
	}
	defer rows.Close()
	return scanAggregates(rows)
}

// ListByStatus returns aggregates for a session in the given status.
func (r *AggregateRepository) ListByStatus(ctx context.Context, sessionID string, status store.AggregateStatus) ([]store.SessionAggregate, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+aggregateColumns+" FROM session_aggregates WHERE session_id = $1 AND status = $2 ORDER BY person_id",
		sessionID, status)
	if err != nil {
		return nil, fmt.Errorf("query aggregates by status: %w", err)
	}
	defer rows.Close()
	return scanAggregates(rows)
}

// TransitionStatus atomically moves an aggregate between statuses. The
// WHERE clause on the current status is the optimistic-concurrency guard:
// a concurrent resolution makes this update match zero rows instead of
// overwriting the earlier decision.
func (r *AggregateRepository) TransitionStatus(ctx context.Context, id string, from, to store.AggregateStatus, actor string) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE session_aggregates
		SET status = $1, resolved_by = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4
	`, to, actor, id, from)
	if err != nil {
		return false, fmt.Errorf("transition aggregate status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting rows affected: %w", err)
	}
	return affected > 0, nil
}
