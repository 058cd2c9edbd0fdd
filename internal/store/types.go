package store

import (
	"time"

	"github.com/kozaktomas/face-attend/internal/facematch"
)

// AggregateStatus is the lifecycle state of a session aggregate.
type AggregateStatus string

const (
	StatusPending        AggregateStatus = "pending"
	StatusAutoConfirmed  AggregateStatus = "auto_confirmed"
	StatusAwaitingReview AggregateStatus = "awaiting_review"
	StatusConfirmed      AggregateStatus = "confirmed"
	StatusRejected       AggregateStatus = "rejected"
)

// Terminal reports whether the status allows no further transitions.
func (s AggregateStatus) Terminal() bool {
	switch s {
	case StatusAutoConfirmed, StatusConfirmed, StatusRejected:
		return true
	}
	return false
}

// RecordStatus is the final attendance outcome for a person in a session.
type RecordStatus string

const (
	RecordPresent  RecordStatus = "present"
	RecordAbsent   RecordStatus = "absent"
	RecordDisputed RecordStatus = "disputed"
)

// Resolver identifies what resolved an attendance record.
type Resolver string

const (
	ResolvedBySystem Resolver = "system"
	ResolvedByHuman  Resolver = "human"
)

// StoredEncoding represents a reference face embedding for an enrolled person.
// A person may have multiple encodings captured from different angles or
// sessions; old encodings persist until explicitly revoked.
type StoredEncoding struct {
	ID         int64     `json:"id"`
	PersonID   string    `json:"person_id"`
	Embedding  []float32 `json:"embedding,omitempty"`
	Dim        int       `json:"dim"`
	Model      string    `json:"model,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
}

// SessionAggregate is the persisted decision state for one candidate person
// within one attendance session.
type SessionAggregate struct {
	ID               string          `json:"id"`
	SessionID        string          `json:"session_id"`
	PersonID         string          `json:"person_id"`
	ObservationCount int             `json:"observation_count"`
	BestScore        float64         `json:"best_score"`
	Band             facematch.Band  `json:"band"`
	Status           AggregateStatus `json:"status"`
	ResolvedBy       string          `json:"resolved_by,omitempty"` // actor name for human resolutions, empty otherwise
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// AttendanceRecord is the finalized attendance entry for a person in a session.
// Exactly one record exists per (session_id, person_id) pair.
type AttendanceRecord struct {
	ID          string       `json:"id"`
	SessionID   string       `json:"session_id"`
	PersonID    string       `json:"person_id"`
	Status      RecordStatus `json:"status"`
	ResolvedBy  Resolver     `json:"resolved_by"`
	AggregateID string       `json:"aggregate_id,omitempty"` // originating aggregate, empty for roster-derived absences
	FinalizedAt time.Time    `json:"finalized_at"`
}
