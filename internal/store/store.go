// Package store holds the identifiers that must survive a client restart
// within one exam attempt on one device: who the student is, which exam they
// joined, when the timed window first went live for them, and the frozen
// question order. It is the Go analog of the browser's tab-scoped storage.
package store

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNoAttempt is returned when no attempt identity has been persisted;
// callers redirect to the entry flow instead of building a session.
var ErrNoAttempt = errors.New("store: no active attempt")

// Identity is the set of entry identifiers for the active attempt.
type Identity struct {
	StudentID   uuid.UUID
	ExamCode    string
	StudentName string
}

// AttemptStore persists attempt-scoped state across process restarts.
// Implementations must tolerate concurrent use from the session's tickers.
type AttemptStore interface {
	// Identity returns the active attempt's identifiers, or ErrNoAttempt.
	Identity() (*Identity, error)
	// SaveIdentity records the entry identifiers for the active attempt.
	SaveIdentity(id *Identity) error

	// QuestionOrder returns the frozen question id sequence for the attempt,
	// or nil when none has been persisted yet.
	QuestionOrder(examCode, studentName string) ([]uuid.UUID, error)
	// SaveQuestionOrder freezes the question id sequence for the attempt.
	SaveQuestionOrder(examCode, studentName string, order []uuid.UUID) error

	// ExamStartedAt returns the persisted live-transition anchor for the
	// attempt. ok is false when no anchor exists yet.
	ExamStartedAt(examCode string, studentID uuid.UUID) (at time.Time, ok bool, err error)
	// SaveExamStartedAt persists the anchor recorded the first time this
	// device observed the exam as live.
	SaveExamStartedAt(examCode string, studentID uuid.UUID, at time.Time) error

	// Clear wipes every key for the attempt. Called when the student leaves
	// the exam after reaching a terminal status.
	Clear() error
}
