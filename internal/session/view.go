package session

import (
	"github.com/integrityguard/examsession/internal/model"
)

// View is a point-in-time copy of the session for rendering. Exactly one
// screen corresponds to each status.
type View struct {
	Status          model.SessionStatus
	ExamCode        string
	StudentName     string
	QuestionCount   int
	CurrentIndex    int
	CurrentQuestion *model.Question
	Score           float64
	ChallengeText   string
}

// Snapshot returns the current view. The question pointer is a copy; the
// caller cannot mutate session state through it.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		Status:        s.status,
		ExamCode:      s.examCode,
		StudentName:   s.studentName,
		QuestionCount: len(s.questions),
		CurrentIndex:  s.currentIndex,
		Score:         s.score,
	}
	if s.status == model.SessionStatusActive && s.currentIndex < len(s.questions) {
		q := s.questions[s.currentIndex]
		v.CurrentQuestion = &q
	}
	if s.challenge != nil {
		v.ChallengeText = s.challenge.Text
	}
	return v
}

// Status returns the current status on its own.
func (s *Session) Status() model.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}
