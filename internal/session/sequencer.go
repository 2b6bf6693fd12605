package session

import (
	"github.com/google/uuid"
	"github.com/integrityguard/examsession/internal/model"
)

// sequenceQuestions derives the stable, per-student question order for this
// attempt. The first run shuffles uniformly and freezes the id order in the
// attempt store; later runs (reloads) replay the frozen order. Questions
// added to the exam after the order was frozen are appended after the known
// order, preserving their relative order in the source set — a question
// still present in the source is never dropped.
func (s *Session) sequenceQuestions(source []model.Question) error {
	persisted, err := s.st.QuestionOrder(s.examCode, s.studentName)
	if err != nil {
		return err
	}

	byID := make(map[uuid.UUID]model.Question, len(source))
	for _, q := range source {
		byID[q.ID] = q
	}

	var ordered []model.Question
	if persisted == nil {
		ordered = append(ordered, source...)
		s.rng.Shuffle(len(ordered), func(i, j int) {
			ordered[i], ordered[j] = ordered[j], ordered[i]
		})
	} else {
		seen := make(map[uuid.UUID]bool, len(persisted))
		for _, id := range persisted {
			if q, ok := byID[id]; ok {
				ordered = append(ordered, q)
				seen[id] = true
			}
			// Ids no longer in the source set are silently skipped: the
			// teacher deleted the question after this attempt started.
		}
		for _, q := range source {
			if !seen[q.ID] {
				ordered = append(ordered, q)
			}
		}
	}

	order := make([]uuid.UUID, len(ordered))
	for i, q := range ordered {
		order[i] = q.ID
	}
	if !equalOrder(order, persisted) {
		if err := s.st.SaveQuestionOrder(s.examCode, s.studentName, order); err != nil {
			return err
		}
	}

	s.questions = ordered
	return nil
}

func equalOrder(a, b []uuid.UUID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
