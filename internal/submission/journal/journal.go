// Package journal records submission attempts for operations review. The
// journal is best-effort: a failed append never fails the submission.
package journal

import (
	"context"
	"time"

	"github.com/google/uuid"

	"intake/internal/catalog"
)

// Outcome classifies a submission attempt.
type Outcome string

const (
	OutcomeAccepted Outcome = "accepted"
	OutcomeRejected Outcome = "rejected" // failed local validation
	OutcomeFailed   Outcome = "failed"   // remote step failed
)

// Entry is one journaled submission attempt.
type Entry struct {
	ID              uuid.UUID
	SubmittedAt     time.Time
	OperatorID      string
	ProjectID       catalog.ItemID
	ApartmentID     catalog.ItemID
	BuyerIDs        []catalog.ItemID
	CommunicationID catalog.ItemID
	Outcome         Outcome
	Detail          string
}

// Store persists journal entries.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	List(ctx context.Context, limit int) ([]Entry, error)
}
