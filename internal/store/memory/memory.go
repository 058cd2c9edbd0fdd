// Package memory provides in-memory implementations of the store
// interfaces. Used by unit tests and by the server's --in-memory mode
// for local development without PostgreSQL.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/face-attend/internal/store"
)

// EncodingStore is an in-memory store.EncodingWriter.
type EncodingStore struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]store.StoredEncoding

	// Error injection for tests.
	SnapshotError error
	SaveError     error
}

// NewEncodingStore creates an empty encoding store.
func NewEncodingStore() *EncodingStore {
	return &EncodingStore{byID: make(map[int64]store.StoredEncoding), nextID: 1}
}

// Snapshot returns a copy of all stored encodings.
func (s *EncodingStore) Snapshot(ctx context.Context) ([]store.StoredEncoding, error) {
	if s.SnapshotError != nil {
		return nil, s.SnapshotError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.StoredEncoding, 0, len(s.byID))
	for _, enc := range s.byID {
		out = append(out, enc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetByPerson returns all encodings for a person, oldest first.
func (s *EncodingStore) GetByPerson(ctx context.Context, personID string) ([]store.StoredEncoding, error) {
	all, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	var out []store.StoredEncoding
	for _, enc := range all {
		if enc.PersonID == personID {
			out = append(out, enc)
		}
	}
	return out, nil
}

// GetByPersons returns all encodings for the given persons.
func (s *EncodingStore) GetByPersons(ctx context.Context, personIDs []string) ([]store.StoredEncoding, error) {
	all, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	wanted := make(map[string]struct{}, len(personIDs))
	for _, id := range personIDs {
		wanted[id] = struct{}{}
	}
	var out []store.StoredEncoding
	for _, enc := range all {
		if _, ok := wanted[enc.PersonID]; ok {
			out = append(out, enc)
		}
	}
	return out, nil
}

// CountByPerson returns the number of encodings for a person.
func (s *EncodingStore) CountByPerson(ctx context.Context, personID string) (int, error) {
	encs, err := s.GetByPerson(ctx, personID)
	if err != nil {
		return 0, err
	}
	return len(encs), nil
}

// SaveEncoding appends a new encoding and returns its ID.
func (s *EncodingStore) SaveEncoding(ctx context.Context, enc store.StoredEncoding) (int64, error) {
	if s.SaveError != nil {
		return 0, s.SaveError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	enc.ID = s.nextID
	s.nextID++
	if enc.CapturedAt.IsZero() {
		enc.CapturedAt = time.Now()
	}
	s.byID[enc.ID] = enc
	return enc.ID, nil
}

// RevokeEncoding removes one encoding by ID.
func (s *EncodingStore) RevokeEncoding(ctx context.Context, personID string, encodingID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	enc, ok := s.byID[encodingID]
	if !ok || enc.PersonID != personID {
		return false, nil
	}
	delete(s.byID, encodingID)
	return true, nil
}

// AggregateStore is an in-memory store.AggregateStore.
type AggregateStore struct {
	mu   sync.RWMutex
	byID map[string]store.SessionAggregate

	SaveError       error
	TransitionError error
}

// NewAggregateStore creates an empty aggregate store.
func NewAggregateStore() *AggregateStore {
	return &AggregateStore{byID: make(map[string]store.SessionAggregate)}
}

// SaveAggregate inserts or updates an aggregate by ID.
func (s *AggregateStore) SaveAggregate(ctx context.Context, agg store.SessionAggregate) error {
	if s.SaveError != nil {
		return s.SaveError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[agg.ID] = agg
	return nil
}

// GetAggregate retrieves an aggregate by ID.
func (s *AggregateStore) GetAggregate(ctx context.Context, id string) (*store.SessionAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	agg, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	return &agg, nil
}

// ListBySession returns all aggregates for a session.
func (s *AggregateStore) ListBySession(ctx context.Context, sessionID string) ([]store.SessionAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.SessionAggregate
	for _, agg := range s.byID {
		if agg.SessionID == sessionID {
			out = append(out, agg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PersonID < out[j].PersonID })
	return out, nil
}

// ListByStatus returns aggregates for a session in the given status.
func (s *AggregateStore) ListByStatus(ctx context.Context, sessionID string, status store.AggregateStatus) ([]store.SessionAggregate, error) {
	all, err := s.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	var out []store.SessionAggregate
	for _, agg := range all {
		if agg.Status == status {
			out = append(out, agg)
		}
	}
	return out, nil
}

// TransitionStatus atomically moves an aggregate between statuses.
func (s *AggregateStore) TransitionStatus(ctx context.Context, id string, from, to store.AggregateStatus, actor string) (bool, error) {
	if s.TransitionError != nil {
		return false, s.TransitionError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	agg, ok := s.byID[id]
	if !ok || agg.Status != from {
		return false, nil
	}
	agg.Status = to
	agg.ResolvedBy = actor
	agg.UpdatedAt = time.Now()
	s.byID[id] = agg
	return true, nil
}

// RecordStore is an in-memory store.RecordStore.
type RecordStore struct {
	mu   sync.RWMutex
	recs map[string]store.AttendanceRecord // keyed by sessionID + "\x00" + personID

	FinalizeError error
}

// NewRecordStore creates an empty record store.
func NewRecordStore() *RecordStore {
	return &RecordStore{recs: make(map[string]store.AttendanceRecord)}
}

func recordKey(sessionID, personID string) string {
	return sessionID + "\x00" + personID
}

// FinalizeRecord stores a record unless one already exists for the pair.
func (s *RecordStore) FinalizeRecord(ctx context.Context, rec store.AttendanceRecord) (store.AttendanceRecord, bool, error) {
	if s.FinalizeError != nil {
		return store.AttendanceRecord{}, false, s.FinalizeError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := recordKey(rec.SessionID, rec.PersonID)
	if existing, ok := s.recs[key]; ok {
		return existing, false, nil
	}
	s.recs[key] = rec
	return rec, true, nil
}

// GetRecord retrieves the record for a (session, person) pair.
func (s *RecordStore) GetRecord(ctx context.Context, sessionID, personID string) (*store.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.recs[recordKey(sessionID, personID)]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// ListRecords returns all records for a session.
func (s *RecordStore) ListRecords(ctx context.Context, sessionID string) ([]store.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.AttendanceRecord
	for _, rec := range s.recs {
		if rec.SessionID == sessionID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PersonID < out[j].PersonID })
	return out, nil
}
