package postgres

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-attend/internal/store"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// EncodingRepository provides PostgreSQL-backed enrollment encoding storage.
type EncodingRepository struct {
	pool *Pool
}

// NewEncodingRepository creates a new encoding repository.
func NewEncodingRepository(pool *Pool) *EncodingRepository {
	return &EncodingRepository{pool: pool}
}

const encodingColumns = "id, person_id, embedding, dim, model, captured_at"

func scanEncodings(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]store.StoredEncoding, error) {
	var out []store.StoredEncoding
	for rows.Next() {
		var enc store.StoredEncoding
		var vec pgvector.Vector
		if err := rows.Scan(&enc.ID, &enc.PersonID, &vec, &enc.Dim, &enc.Model, &enc.CapturedAt); err != nil {
			return nil, fmt.Errorf("scan encoding: %w", err)
		}
		enc.Embedding = vec.Slice()
		out = append(out, enc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate encodings: %w", err)
	}
	return out, nil
}

// Snapshot returns all stored encodings. The query runs as a single
// statement, so it sees one consistent view of the table; enrollments
// committed afterwards are invisible to this comparison call.
func (r *EncodingRepository) Snapshot(ctx context.Context) ([]store.StoredEncoding, error) {
	rows, err := r.pool.Query(ctx, "SELECT "+encodingColumns+" FROM encodings ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query encodings: %w", err)
	}
	defer rows.Close()
	return scanEncodings(rows)
}

// GetByPerson retrieves all encodings for a person, oldest first.
func (r *EncodingRepository) GetByPerson(ctx context.Context, personID string) ([]store.StoredEncoding, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+encodingColumns+" FROM encodings WHERE person_id = $1 ORDER BY id", personID)
	if err != nil {
		return nil, fmt.Errorf("query encodings by person: %w", err)
	}
	defer rows.Close()
	return scanEncodings(rows)
}

// GetByPersons retrieves all encodings for the given persons.
func (r *EncodingRepository) GetByPersons(ctx context.Context, personIDs []string) ([]store.StoredEncoding, error) {
	if len(personIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx,
		"SELECT "+encodingColumns+" FROM encodings WHERE person_id = ANY($1) ORDER BY id", pq.Array(personIDs))
	if err != nil {
		return nil, fmt.Errorf("query encodings by persons: %w", err)
	}
	defer rows.Close()
	return scanEncodings(rows)
}

// CountByPerson returns the number of encodings stored for a person.
func (r *EncodingRepository) CountByPerson(ctx context.Context, personID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM encodings WHERE person_id = $1", personID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count encodings: %w", err)
	}
	return count, nil
}

// SaveEncoding appends a new encoding and returns its assigned ID.
// Always an INSERT: enrollment is append-only and never overwrites.
func (r *EncodingRepository) SaveEncoding(ctx context.Context, enc store.StoredEncoding) (int64, error) {
	query := `
		INSERT INTO encodings (person_id, embedding, dim, model, captured_at)
		VALUES ($1, $2, $3, $4, COALESCE(NULLIF($5, '0001-01-01 00:00:00+00'::timestamptz), NOW()))
		RETURNING id
	`

	var id int64
	err := r.pool.QueryRow(ctx, query,
		enc.PersonID, pgvector.NewVector(enc.Embedding), enc.Dim, enc.Model, enc.CapturedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert encoding: %w", err)
	}
	return id, nil
}

// RevokeEncoding removes a single encoding by ID.
func (r *EncodingRepository) RevokeEncoding(ctx context.Context, personID string, encodingID int64) (bool, error) {
	result, err := r.pool.Exec(ctx,
		"DELETE FROM encodings WHERE id = $1 AND person_id = $2", encodingID, personID)
	if err != nil {
		return false, fmt.Errorf("revoke encoding: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting rows affected: %w", err)
	}
	return affected > 0, nil
}
