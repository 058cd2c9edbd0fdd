package store

import (
	"context"
)

// EncodingReader provides read-only access to enrollment encodings.
type EncodingReader interface {
	// Snapshot returns a consistent snapshot of all stored encodings.
	// Scoring works against the returned slice, so enrollments written
	// after the call are never visible to an in-flight comparison.
	Snapshot(ctx context.Context) ([]StoredEncoding, error)
	// GetByPerson retrieves all encodings for a person, oldest first.
	GetByPerson(ctx context.Context, personID string) ([]StoredEncoding, error)
	// GetByPersons retrieves all encodings for the given set of persons.
	GetByPersons(ctx context.Context, personIDs []string) ([]StoredEncoding, error)
	// CountByPerson returns the number of encodings stored for a person.
	CountByPerson(ctx context.Context, personID string) (int, error)
}

// EncodingWriter provides write access to enrollment encodings.
type EncodingWriter interface {
	EncodingReader

	// SaveEncoding appends a new encoding and returns its assigned ID.
	// Existing encodings are never overwritten.
	SaveEncoding(ctx context.Context, enc StoredEncoding) (int64, error)
	// RevokeEncoding removes a single encoding by ID. Returns false if no
	// such encoding exists for the person.
	RevokeEncoding(ctx context.Context, personID string, encodingID int64) (bool, error)
}

// AggregateStore persists session aggregates once they leave the in-memory
// session tracker (auto-confirmation or session close).
type AggregateStore interface {
	// SaveAggregate inserts or updates an aggregate by ID.
	SaveAggregate(ctx context.Context, agg SessionAggregate) error
	// GetAggregate retrieves an aggregate by ID, nil if not found.
	GetAggregate(ctx context.Context, id string) (*SessionAggregate, error)
	// ListBySession returns all persisted aggregates for a session.
	ListBySession(ctx context.Context, sessionID string) ([]SessionAggregate, error)
	// ListByStatus returns aggregates for a session in the given status.
	ListByStatus(ctx context.Context, sessionID string, status AggregateStatus) ([]SessionAggregate, error)
	// TransitionStatus atomically moves an aggregate from one status to
	// another, recording the actor. Returns false without mutating
	// anything when the aggregate is not currently in the from status.
	// This is the optimistic-concurrency guard that keeps individual and
	// bulk review resolutions from racing.
	TransitionStatus(ctx context.Context, id string, from, to AggregateStatus, actor string) (bool, error)
}

// RecordStore persists finalized attendance records.
type RecordStore interface {
	// FinalizeRecord stores a record unless one already exists for the
	// (session, person) pair. Returns the stored record and whether this
	// call created it. Calling twice is a no-op, never an error.
	FinalizeRecord(ctx context.Context, rec AttendanceRecord) (AttendanceRecord, bool, error)
	// GetRecord retrieves the record for a (session, person) pair, nil if none.
	GetRecord(ctx context.Context, sessionID, personID string) (*AttendanceRecord, error)
	// ListRecords returns all records for a session.
	ListRecords(ctx context.Context, sessionID string) ([]AttendanceRecord, error)
}
