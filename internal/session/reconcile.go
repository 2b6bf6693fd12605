package session

import (
	"context"
	"fmt"
	"time"

	"github.com/integrityguard/examsession/internal/model"
)

// startReconciler opens the push subscriptions and the poll fallback. Both
// transports feed the same apply functions, so a deployment where push
// delivery is unreliable still converges within one poll interval.
func (s *Session) startReconciler(ctx context.Context) error {
	unsubExam, err := s.gw.SubscribeExam(ctx, s.examID, s.applyExam)
	if err != nil {
		return fmt.Errorf("subscribe exam: %w", err)
	}
	unsubStudent, err := s.gw.SubscribeStudent(ctx, s.studentID, s.applyStudent)
	if err != nil {
		unsubExam()
		return fmt.Errorf("subscribe student: %w", err)
	}

	s.mu.Lock()
	s.unsubs = append(s.unsubs, unsubExam, unsubStudent)
	s.mu.Unlock()

	go s.pollLoop(ctx)
	return nil
}

func (s *Session) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			s.pollOnce(ctx)
		}
	}
}

func (s *Session) pollOnce(ctx context.Context) {
	callCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if exam, err := s.gw.ExamByCode(callCtx, s.examCode); err == nil {
		s.applyExam(exam)
	} else if ctx.Err() == nil {
		s.log.Debug().Err(err).Msg("exam poll failed")
	}

	if attempt, err := s.gw.StudentAttempt(callCtx, s.studentID); err == nil {
		s.applyStudent(attempt)
	} else if ctx.Err() == nil {
		s.log.Debug().Err(err).Msg("attempt poll failed")
	}
}

// applyExam folds an authoritative exam record into local state. The only
// transition it drives is waiting → live; the anchor is established the
// first time live is observed, so a time limit changed while still waiting
// is honored without back-dating.
func (s *Session) applyExam(exam *model.Exam) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.Terminal() {
		return
	}
	if exam.Live {
		s.markLiveLocked(exam.TimeLimitMinutes)
	}
}

// applyStudent folds an authoritative student record into local state with
// server-wins semantics: status, detention end time and score are taken
// verbatim. The cursor is the one exception — the local value holds unless
// the server's is strictly greater, which covers the steady state where the
// teacher touched nothing while still letting a manual correction move a
// student forward.
func (s *Session) applyStudent(attempt *model.Student) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.Terminal() {
		return
	}

	s.score = attempt.Score

	if attempt.CurrentQuestionIndex > s.currentIndex {
		s.advanceCursorLocked(attempt.CurrentQuestionIndex)
	}

	// A cursor at the question count means every question is answered,
	// whatever status the record carries (a teacher correction can move
	// the cursor without touching status).
	if s.currentIndex >= len(s.questions) {
		s.currentIndex = len(s.questions)
		total := len(s.questions)
		s.terminateLocked(model.SessionStatusFinished)
		s.log.Info().Msg("server cursor reached last question, attempt finished")
		if attempt.Status != model.SessionStatusFinished {
			s.pushPatch(model.UpdateStudentRequest{
				Status:               statusPtr(model.SessionStatusFinished),
				CurrentQuestionIndex: intPtr(total),
			})
		}
		return
	}

	switch attempt.Status {
	case model.SessionStatusFinished:
		s.currentIndex = len(s.questions)
		s.terminateLocked(model.SessionStatusFinished)
		s.log.Info().Msg("server marked attempt finished")

	case model.SessionStatusDetained:
		if attempt.DetentionEndAt == nil {
			return
		}
		// Teacher force-block, or a detention this client never saw.
		end := *attempt.DetentionEndAt
		s.detentionEndAt = &end
		if s.status != model.SessionStatusDetained {
			s.status = model.SessionStatusDetained
			s.challenge = newChallenge(s.rng)
			s.log.Info().Time("detention_end_at", end).Msg("server imposed detention")
		}

	case model.SessionStatusActive:
		// Forgiveness overrides the local countdown unconditionally. While
		// the exam is not yet live the student record already says active
		// (set at join), so it must not pull the session out of the
		// waiting room — the exam record drives that transition.
		if s.status == model.SessionStatusWaiting {
			return
		}
		if s.status == model.SessionStatusDetained {
			s.log.Info().Msg("server lifted detention")
		}
		s.status = s.releasedStatusLocked()
		s.detentionEndAt = nil
		s.challenge = nil

	case model.SessionStatusTimedOut:
		// Never sent by the gateway; timed_out is client-local.
	}
}
