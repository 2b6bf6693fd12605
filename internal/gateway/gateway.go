// Package gateway defines the remote boundary the exam-session core talks
// to: record reads, answer submission (graded remotely), status patches, and
// push subscriptions for record changes. The core never sees how records are
// stored and never computes correctness.
package gateway

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/integrityguard/examsession/internal/model"
)

// ErrNotFound is returned when the referenced exam or student record does
// not exist on the gateway.
var ErrNotFound = errors.New("gateway: record not found")

// SubmitResult reports what the gateway did with a submitted answer.
type SubmitResult string

const (
	// SubmitAccepted means the answer was recorded and graded.
	SubmitAccepted SubmitResult = "accepted"
	// SubmitAlreadyRecorded means an answer for this question was already
	// durably stored; the submission was a retry and changed nothing.
	SubmitAlreadyRecorded SubmitResult = "already_recorded"
)

// Unsubscribe releases one push subscription. Safe to call more than once.
type Unsubscribe func()

// Gateway is the abstract external service boundary. Every call takes a
// context; push callbacks are invoked in receipt order per subscription.
type Gateway interface {
	// JoinExam registers a student for the exam with the given code and
	// returns the created attempt record.
	JoinExam(ctx context.Context, examCode, studentName string) (*model.Student, error)

	// StudentAttempt fetches the authoritative attempt record.
	StudentAttempt(ctx context.Context, studentID uuid.UUID) (*model.Student, error)

	// ExamByCode fetches the exam record for an entry code.
	ExamByCode(ctx context.Context, code string) (*model.Exam, error)

	// Questions fetches the unordered question set. Correctness data is
	// never included.
	Questions(ctx context.Context, examID uuid.UUID) ([]model.Question, error)

	// SubmitAnswer submits one (question, letter) pair for remote grading.
	SubmitAnswer(ctx context.Context, studentID, examID uuid.UUID, questionID uuid.UUID, selectedLetter string) (SubmitResult, error)

	// UpdateStudent patches the student's live record.
	UpdateStudent(ctx context.Context, studentID uuid.UUID, patch model.UpdateStudentRequest) error

	// SubscribeExam delivers every change of the exam record to onChange.
	SubscribeExam(ctx context.Context, examID uuid.UUID, onChange func(*model.Exam)) (Unsubscribe, error)

	// SubscribeStudent delivers every change of the student record to
	// onChange.
	SubscribeStudent(ctx context.Context, studentID uuid.UUID, onChange func(*model.Student)) (Unsubscribe, error)
}
