package memory

import (
	"context"
	"testing"

	"github.com/kozaktomas/face-attend/internal/store"
)

func TestEncodingStoreAppendAndRevoke(t *testing.T) {
	s := NewEncodingStore()
	ctx := context.Background()

	id1, err := s.SaveEncoding(ctx, store.StoredEncoding{PersonID: "alice", Embedding: []float32{1, 0}, Dim: 2})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	id2, err := s.SaveEncoding(ctx, store.StoredEncoding{PersonID: "alice", Embedding: []float32{0, 1}, Dim: 2})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if id1 == id2 {
		t.Errorf("expected distinct IDs, both %d", id1)
	}

	count, _ := s.CountByPerson(ctx, "alice")
	if count != 2 {
		t.Errorf("expected 2 encodings, got %d", count)
	}

	ok, err := s.RevokeEncoding(ctx, "bob", id1)
	if err != nil || ok {
		t.Errorf("wrong-person revoke = (%v, %v), want (false, nil)", ok, err)
	}
	ok, err = s.RevokeEncoding(ctx, "alice", id1)
	if err != nil || !ok {
		t.Errorf("revoke = (%v, %v), want (true, nil)", ok, err)
	}

	count, _ = s.CountByPerson(ctx, "alice")
	if count != 1 {
		t.Errorf("expected 1 encoding after revoke, got %d", count)
	}
}

func TestAggregateStoreTransitionGuard(t *testing.T) {
	s := NewAggregateStore()
	ctx := context.Background()

	if err := s.SaveAggregate(ctx, store.SessionAggregate{
		ID: "a1", SessionID: "s1", PersonID: "alice", Status: store.StatusAwaitingReview,
	}); err != nil {
		t.Fatalf("save: %v", err)
	}

	ok, err := s.TransitionStatus(ctx, "a1", store.StatusAwaitingReview, store.StatusConfirmed, "teacher-7")
	if err != nil || !ok {
		t.Fatalf("first transition = (%v, %v), want (true, nil)", ok, err)
	}

	ok, err = s.TransitionStatus(ctx, "a1", store.StatusAwaitingReview, store.StatusRejected, "teacher-8")
	if err != nil || ok {
		t.Errorf("repeated transition = (%v, %v), want (false, nil)", ok, err)
	}

	agg, _ := s.GetAggregate(ctx, "a1")
	if agg.Status != store.StatusConfirmed || agg.ResolvedBy != "teacher-7" {
		t.Errorf("aggregate = %+v, want confirmed by teacher-7", agg)
	}
}

func TestRecordStoreFinalizeIdempotent(t *testing.T) {
	s := NewRecordStore()
	ctx := context.Background()

	first, created, err := s.FinalizeRecord(ctx, store.AttendanceRecord{
		ID: "r1", SessionID: "s1", PersonID: "alice", Status: store.RecordPresent,
	})
	if err != nil || !created {
		t.Fatalf("first finalize = (%v, %v), want created", created, err)
	}

	second, created, err := s.FinalizeRecord(ctx, store.AttendanceRecord{
		ID: "r2", SessionID: "s1", PersonID: "alice", Status: store.RecordAbsent,
	})
	if err != nil {
		t.Fatalf("repeat finalize: %v", err)
	}
	if created {
		t.Error("repeat finalize must not create")
	}
	if second.ID != first.ID || second.Status != store.RecordPresent {
		t.Errorf("repeat finalize returned %+v, want the original record", second)
	}
}
