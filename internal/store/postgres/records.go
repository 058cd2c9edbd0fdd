package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-attend/internal/store"
)

// RecordRepository provides PostgreSQL-backed attendance record storage.
type RecordRepository struct {
	pool *Pool
}

// NewRecordRepository creates a new record repository.
func NewRecordRepository(pool *Pool) *RecordRepository {
	return &RecordRepository{pool: pool}
}

const recordColumns = "id, session_id, person_id, status, resolved_by, COALESCE(aggregate_id::text, ''), finalized_at"

// FinalizeRecord stores a record unless one already exists for the
// (session, person) pair. ON CONFLICT DO NOTHING plus a read-back makes
// finalization idempotent across processes: the second caller simply gets
// the first caller's record and created=false.
func (r *RecordRepository) FinalizeRecord(ctx context.Context, rec store.AttendanceRecord) (store.AttendanceRecord, bool, error) {
	query := `
		INSERT INTO attendance_records (id, session_id, person_id, status, resolved_by, aggregate_id, finalized_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, '')::uuid, COALESCE(NULLIF($7, '0001-01-01 00:00:00+00'::timestamptz), NOW()))
		ON CONFLICT (session_id, person_id) DO NOTHING
	`

	result, err := r.pool.Exec(ctx, query,
		rec.ID, rec.SessionID, rec.PersonID, rec.Status, rec.ResolvedBy, rec.AggregateID, rec.FinalizedAt)
	if err != nil {
		return store.AttendanceRecord{}, false, fmt.Errorf("finalize record: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return store.AttendanceRecord{}, false, fmt.Errorf("getting rows affected: %w", err)
	}

	stored, err := r.GetRecord(ctx, rec.SessionID, rec.PersonID)
	if err != nil {
		return store.AttendanceRecord{}, false, err
	}
	if stored == nil {
		return store.AttendanceRecord{}, false, fmt.Errorf("record for session %s person %s vanished after insert", rec.SessionID, rec.PersonID)
	}
	return *stored, affected > 0, nil
}

// GetRecord retrieves the record for a (session, person) pair, nil if none.
func (r *RecordRepository) GetRecord(ctx context.Context, sessionID, personID string) (*store.AttendanceRecord, error) {
	var rec store.AttendanceRecord
	err := r.pool.QueryRow(ctx,
		"SELECT "+recordColumns+" FROM attendance_records WHERE session_id = $1 AND person_id = $2",
		sessionID, personID,
	).Scan(&rec.ID, &rec.SessionID, &rec.PersonID, &rec.Status, &rec.ResolvedBy, &rec.AggregateID, &rec.FinalizedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return &rec, nil
}

// ListRecords returns all records for a session.
func (r *RecordRepository) ListRecords(ctx context.Context, sessionID string) ([]store.AttendanceRecord, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+recordColumns+" FROM attendance_records WHERE session_id = $1 ORDER BY person_id", sessionID)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []store.AttendanceRecord
	for rows.Next() {
		var rec store.AttendanceRecord
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.PersonID, &rec.Status,
			&rec.ResolvedBy, &rec.AggregateID, &rec.FinalizedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}
