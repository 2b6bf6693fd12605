package session

import (
	"testing"

	"github.com/google/uuid"
	"github.com/integrityguard/examsession/internal/model"
)

func questionIDs(qs []model.Question) []uuid.UUID {
	ids := make([]uuid.UUID, len(qs))
	for i, q := range qs {
		ids[i] = q.ID
	}
	return ids
}

func TestSequencerStableAcrossReload(t *testing.T) {
	e := newEnv(6)

	first := e.newSession(t)
	first.mu.Lock()
	firstOrder := questionIDs(first.questions)
	first.mu.Unlock()
	first.Close()

	// Same store, same source set: the reload must replay the frozen order.
	second := e.newSession(t)
	second.mu.Lock()
	secondOrder := questionIDs(second.questions)
	second.mu.Unlock()

	if len(firstOrder) != 6 || len(secondOrder) != 6 {
		t.Fatalf("order lengths = %d, %d, want 6", len(firstOrder), len(secondOrder))
	}
	for i := range firstOrder {
		if firstOrder[i] != secondOrder[i] {
			t.Fatalf("order diverged at %d: %s vs %s", i, firstOrder[i], secondOrder[i])
		}
	}
}

func TestSequencerPersistsShuffledOrder(t *testing.T) {
	e := newEnv(6)
	s := e.newSession(t)

	persisted, err := e.store.QuestionOrder(e.gw.student.ExamCode, e.gw.student.Name)
	if err != nil {
		t.Fatalf("QuestionOrder: %v", err)
	}
	s.mu.Lock()
	got := questionIDs(s.questions)
	s.mu.Unlock()

	if len(persisted) != len(got) {
		t.Fatalf("persisted %d ids, session has %d", len(persisted), len(got))
	}
	for i := range got {
		if persisted[i] != got[i] {
			t.Errorf("persisted[%d] = %s, session has %s", i, persisted[i], got[i])
		}
	}
}

func TestSequencerAppendsQuestionsAddedAfterStart(t *testing.T) {
	e := newEnv(4)
	s := e.newSession(t)
	s.mu.Lock()
	frozen := questionIDs(s.questions)
	s.mu.Unlock()
	s.Close()

	// Teacher adds two questions mid-exam; they join the tail in source
	// order, and nothing already frozen moves.
	added := []model.Question{
		{ID: uuid.New(), Text: "late one", Options: []string{"a", "b"}},
		{ID: uuid.New(), Text: "late two", Options: []string{"a", "b"}},
	}
	e.gw.mu.Lock()
	e.gw.questions = append(e.gw.questions, added...)
	e.gw.mu.Unlock()

	reloaded := e.newSession(t)
	reloaded.mu.Lock()
	got := questionIDs(reloaded.questions)
	reloaded.mu.Unlock()

	if len(got) != 6 {
		t.Fatalf("question count = %d, want 6", len(got))
	}
	for i, id := range frozen {
		if got[i] != id {
			t.Errorf("frozen order moved at %d", i)
		}
	}
	if got[4] != added[0].ID || got[5] != added[1].ID {
		t.Errorf("added questions not appended in source order: %v", got[4:])
	}
}

func TestSequencerSkipsDeletedQuestions(t *testing.T) {
	e := newEnv(5)
	s := e.newSession(t)
	s.mu.Lock()
	frozen := questionIDs(s.questions)
	s.mu.Unlock()
	s.Close()

	// Teacher deletes the question frozen in second position.
	e.gw.mu.Lock()
	var kept []model.Question
	for _, q := range e.gw.questions {
		if q.ID != frozen[1] {
			kept = append(kept, q)
		}
	}
	e.gw.questions = kept
	e.gw.mu.Unlock()

	reloaded := e.newSession(t)
	reloaded.mu.Lock()
	got := questionIDs(reloaded.questions)
	reloaded.mu.Unlock()

	if len(got) != 4 {
		t.Fatalf("question count = %d, want 4", len(got))
	}
	for _, id := range got {
		if id == frozen[1] {
			t.Error("deleted question still sequenced")
		}
	}
	// Survivors keep their frozen relative order.
	want := []uuid.UUID{frozen[0], frozen[2], frozen[3], frozen[4]}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}
