package session

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/integrityguard/examsession/internal/model"
)

// Challenge is the arithmetic problem a detained student solves to shave
// time off the penalty.
type Challenge struct {
	Text   string
	Answer int
}

// newChallenge picks multiply (factors 2–13 × 2–10) or add/subtract
// (operands 0–99), mirroring what students can reasonably do under stress.
func newChallenge(rng *rand.Rand) *Challenge {
	switch rng.Intn(3) {
	case 0:
		a := rng.Intn(12) + 2
		b := rng.Intn(9) + 2
		return &Challenge{Text: fmt.Sprintf("%d * %d", a, b), Answer: a * b}
	case 1:
		a := rng.Intn(100)
		b := rng.Intn(100)
		return &Challenge{Text: fmt.Sprintf("%d + %d", a, b), Answer: a + b}
	default:
		a := rng.Intn(100)
		b := rng.Intn(100)
		return &Challenge{Text: fmt.Sprintf("%d - %d", a, b), Answer: a - b}
	}
}

// ReportHidden is the page-visibility trigger: the exam tab became hidden.
func (s *Session) ReportHidden() { s.triggerDetention("tab_hidden") }

// ReportBlurred is the window-focus trigger: the exam window lost focus.
func (s *Session) ReportBlurred() { s.triggerDetention("window_blur") }

// triggerDetention imposes the focus-loss penalty. It only fires from the
// active state: a student already detained, still waiting, or done cannot
// be penalized again, so stale events are no-ops.
func (s *Session) triggerDetention(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != model.SessionStatusActive {
		return
	}

	end := s.clk.Now().Add(detentionPenalty)
	s.detentionEndAt = &end
	s.status = model.SessionStatusDetained
	s.challenge = newChallenge(s.rng)
	s.log.Info().Str("reason", reason).Time("detention_end_at", end).Msg("detention triggered")

	s.pushPatch(model.UpdateStudentRequest{
		Status:         statusPtr(model.SessionStatusDetained),
		DetentionEndAt: &end,
	})
}

// tickDetention is the 1 Hz countdown check for an active detention. On
// expiry the student returns to the active state and the gateway is told.
// A detention imposed before the exam went live releases back into the
// waiting room instead; only the live transition unlocks questions.
func (s *Session) tickDetention(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != model.SessionStatusDetained || s.detentionEndAt == nil {
		return
	}
	if now.Before(*s.detentionEndAt) {
		return
	}

	s.detentionEndAt = nil
	s.challenge = nil
	s.status = s.releasedStatusLocked()
	s.log.Info().Msg("detention expired")

	s.pushPatch(model.UpdateStudentRequest{
		Status:         statusPtr(model.SessionStatusActive),
		ClearDetention: true,
	})
}

// releasedStatusLocked is where a lifted detention lands: active once the
// exam clock is anchored, waiting when it never was (a teacher can
// force-block a student who is still in the waiting room). Caller holds
// s.mu.
func (s *Session) releasedStatusLocked() model.SessionStatus {
	if s.examEndAt == nil {
		return model.SessionStatusWaiting
	}
	return model.SessionStatusActive
}

// CurrentChallenge returns the arithmetic problem to display, or "" when
// the session is not detained.
func (s *Session) CurrentChallenge() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.challenge == nil {
		return ""
	}
	return s.challenge.Text
}

// SolveChallenge grades one challenge attempt. A correct answer pulls the
// detention end time forward by 30 seconds (never before now) and pushes
// the reduced value; a wrong answer changes no timer. Either way a fresh
// challenge replaces the old one.
func (s *Session) SolveChallenge(input string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != model.SessionStatusDetained || s.challenge == nil || s.detentionEndAt == nil {
		return false
	}

	answer, err := strconv.Atoi(strings.TrimSpace(input))
	correct := err == nil && answer == s.challenge.Answer
	s.challenge = newChallenge(s.rng)

	if !correct {
		return false
	}

	now := s.clk.Now()
	reduced := s.detentionEndAt.Add(-detentionReduction)
	if reduced.Before(now) {
		reduced = now
	}
	s.detentionEndAt = &reduced
	s.log.Info().Time("detention_end_at", reduced).Msg("detention reduced")

	s.pushPatch(model.UpdateStudentRequest{
		Status:         statusPtr(model.SessionStatusDetained),
		DetentionEndAt: &reduced,
	})
	return true
}

// DetentionRemaining reports the countdown value for display; zero when not
// detained.
func (s *Session) DetentionRemaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != model.SessionStatusDetained || s.detentionEndAt == nil {
		return 0
	}
	remaining := s.detentionEndAt.Sub(s.clk.Now())
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}
