package session

import (
	"context"
	"time"

	"github.com/integrityguard/examsession/internal/gateway"
	"github.com/integrityguard/examsession/internal/model"
)

// Submit records the selected option for the question at the cursor and
// advances. Submissions are serialized: a second call while one is in
// flight returns ErrSubmitInFlight and changes nothing. A question already
// in the answered set skips the network write and only advances — this
// covers retry-after-reload and double-click. A gateway failure is logged
// but the cursor still advances; the student is never blocked on a failed
// write.
func (s *Session) Submit(ctx context.Context, selected string) error {
	s.mu.Lock()
	if s.status != model.SessionStatusActive {
		s.mu.Unlock()
		return ErrNotActive
	}
	if selected == "" {
		s.mu.Unlock()
		return ErrNoSelection
	}
	if s.submitInFlight {
		s.mu.Unlock()
		return ErrSubmitInFlight
	}
	if s.currentIndex >= len(s.questions) {
		s.mu.Unlock()
		return ErrNotActive
	}

	question := s.questions[s.currentIndex]
	letter := ""
	for i, opt := range question.Options {
		if opt == selected {
			letter = model.OptionLetter(i)
			break
		}
	}
	if letter == "" {
		s.mu.Unlock()
		return ErrUnknownOption
	}

	needsWrite := !s.answered[question.ID]
	s.submitInFlight = true
	s.mu.Unlock()

	// The network write runs without the lock so ticks and pushes keep
	// flowing; the in-flight flag keeps a second Submit out.
	var submitted bool
	if needsWrite {
		callCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		result, err := s.gw.SubmitAnswer(callCtx, s.studentID, s.examID, question.ID, letter)
		cancel()
		switch {
		case err != nil:
			s.log.Warn().Err(err).Stringer("question_id", question.ID).Msg("answer submission failed, advancing anyway")
		case result == gateway.SubmitAlreadyRecorded:
			s.log.Debug().Stringer("question_id", question.ID).Msg("answer was already recorded")
			submitted = true
		default:
			submitted = true
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitInFlight = false

	// The session may have timed out or been force-finished while the
	// write was in flight; a stale advance would corrupt terminal state.
	if s.status.Terminal() {
		return nil
	}

	if submitted || !needsWrite {
		s.answered[question.ID] = true
	}

	if s.currentIndex >= len(s.questions)-1 {
		s.currentIndex = len(s.questions)
		total := len(s.questions)
		s.terminateLocked(model.SessionStatusFinished)
		s.log.Info().Msg("exam finished")
		s.pushPatch(model.UpdateStudentRequest{
			Status:               statusPtr(model.SessionStatusFinished),
			CurrentQuestionIndex: intPtr(total),
		})
		return nil
	}

	s.currentIndex++
	cursor := s.currentIndex
	s.pushPatch(model.UpdateStudentRequest{
		CurrentQuestionIndex: intPtr(cursor),
	})
	return nil
}
