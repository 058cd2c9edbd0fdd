// Package attendance converts terminal session aggregates into persisted
// attendance records and derives absences from the enrollment roster.
package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-attend/internal/store"
)

// Roster lists the persons enrolled for a session. Implemented by the
// school information system reader; the pipeline only needs the IDs.
type Roster interface {
	ListEnrolled(ctx context.Context, sessionID string) ([]string, error)
}

// Finalizer turns resolved aggregates into attendance records. Finalization
// is idempotent: exactly one record ever exists per (session, person) pair,
// and repeated calls confirm the existing record without error.
type Finalizer struct {
	records store.RecordStore
}

// NewFinalizer creates a finalizer over a record store.
func NewFinalizer(records store.RecordStore) *Finalizer {
	return &Finalizer{records: records}
}

// FinalizeAggregate creates the PRESENT record for an auto-confirmed or
// human-confirmed aggregate. Rejected aggregates produce no record; whether
// the person ends up ABSENT is decided by the roster comparison.
func (f *Finalizer) FinalizeAggregate(ctx context.Context, agg store.SessionAggregate) (*store.AttendanceRecord, error) {
	var resolver store.Resolver
	switch agg.Status {
	case store.StatusAutoConfirmed:
		resolver = store.ResolvedBySystem
	case store.StatusConfirmed:
		resolver = store.ResolvedByHuman
	case store.StatusRejected:
		return nil, nil
	default:
		return nil, fmt.Errorf("aggregate %s is not terminal (status %s)", agg.ID, agg.Status)
	}

	rec := store.AttendanceRecord{
		ID:          uuid.NewString(),
		SessionID:   agg.SessionID,
		PersonID:    agg.PersonID,
		Status:      store.RecordPresent,
		ResolvedBy:  resolver,
		AggregateID: agg.ID,
		FinalizedAt: time.Now(),
	}

	stored, _, err := f.records.FinalizeRecord(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("finalize record for person %s: %w", agg.PersonID, err)
	}
	return &stored, nil
}

// DeriveAbsences marks every enrolled person without a record as ABSENT
// after a session has been closed and reviewed. Existing records are left
// untouched, so running it twice changes nothing.
func (f *Finalizer) DeriveAbsences(ctx context.Context, sessionID string, roster Roster) ([]store.AttendanceRecord, error) {
	enrolled, err := roster.ListEnrolled(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list enrolled persons: %w", err)
	}

	existing, err := f.records.ListRecords(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list session records: %w", err)
	}
	seen := make(map[string]struct{}, len(existing))
	for _, rec := range existing {
		seen[rec.PersonID] = struct{}{}
	}

	var created []store.AttendanceRecord
	now := time.Now()
	for _, personID := range enrolled {
		if _, ok := seen[personID]; ok {
			continue
		}
		rec := store.AttendanceRecord{
			ID:          uuid.NewString(),
			SessionID:   sessionID,
			PersonID:    personID,
			Status:      store.RecordAbsent,
			ResolvedBy:  store.ResolvedBySystem,
			FinalizedAt: now,
		}
		stored, wasCreated, err := f.records.FinalizeRecord(ctx, rec)
		if err != nil {
			return created, fmt.Errorf("finalize absence for person %s: %w", personID, err)
		}
		if wasCreated {
			created = append(created, stored)
		}
	}
	return created, nil
}

// Records returns all finalized records for a session.
func (f *Finalizer) Records(ctx context.Context, sessionID string) ([]store.AttendanceRecord, error) {
	recs, err := f.records.ListRecords(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list session records: %w", err)
	}
	return recs, nil
}
