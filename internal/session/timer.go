package session

import (
	"time"

	"github.com/integrityguard/examsession/internal/model"
)

// markLiveLocked anchors the exam countdown. The anchor is the first moment
// this device observed the exam as live; it is persisted so a reload does
// not reset the clock, and re-invocation always recomputes the same end
// time. Caller holds s.mu.
func (s *Session) markLiveLocked(timeLimitMinutes int) {
	if s.status.Terminal() {
		return
	}
	if s.examEndAt != nil {
		return
	}

	anchor, ok, err := s.st.ExamStartedAt(s.examCode, s.studentID)
	if err != nil || !ok {
		anchor = s.clk.Now()
		if saveErr := s.st.SaveExamStartedAt(s.examCode, s.studentID, anchor); saveErr != nil {
			s.log.Warn().Err(saveErr).Msg("persisting exam start anchor failed")
		}
	}

	end := anchor.Add(time.Duration(timeLimitMinutes) * time.Minute)
	s.examStartAt = anchor
	s.examEndAt = &end

	if s.status == model.SessionStatusWaiting {
		s.status = model.SessionStatusActive
	}
	s.log.Info().Time("exam_end_at", end).Msg("exam live, countdown anchored")
}

// tickExam is the 1 Hz expiry check for the overall exam clock. On expiry
// it fires exactly once: the session becomes timed out, any detention is
// cleared, and a best-effort completion patch is pushed so teacher views
// show the student as finished at the last question.
func (s *Session) tickExam(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.Terminal() || s.examEndAt == nil {
		return
	}
	if now.Before(*s.examEndAt) {
		return
	}

	total := len(s.questions)
	s.currentIndex = total
	s.terminateLocked(model.SessionStatusTimedOut)
	s.log.Info().Msg("exam time limit reached")

	s.pushPatch(model.UpdateStudentRequest{
		Status:               statusPtr(model.SessionStatusFinished),
		CurrentQuestionIndex: intPtr(total),
		ClearDetention:       true,
	})
}

// TimeRemaining reports the countdown value for display, clamped at zero.
// The second result is false while the session is still in the waiting room.
func (s *Session) TimeRemaining() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.examEndAt == nil {
		return 0, false
	}
	remaining := s.examEndAt.Sub(s.clk.Now())
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}
