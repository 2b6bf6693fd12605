package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func runAttemptStoreTests(t *testing.T, s AttemptStore) {
	t.Helper()

	if _, err := s.Identity(); err != ErrNoAttempt {
		t.Fatalf("empty store Identity() err = %v, want ErrNoAttempt", err)
	}

	id := &Identity{
		StudentID:   uuid.New(),
		ExamCode:    "MATH01",
		StudentName: "Ada Lovelace (Grade 7)",
	}
	if err := s.SaveIdentity(id); err != nil {
		t.Fatalf("SaveIdentity: %v", err)
	}
	got, err := s.Identity()
	if err != nil {
		t.Fatalf("Identity: %v", err)
	}
	if *got != *id {
		t.Errorf("Identity = %+v, want %+v", got, id)
	}

	order, err := s.QuestionOrder(id.ExamCode, id.StudentName)
	if err != nil {
		t.Fatalf("QuestionOrder: %v", err)
	}
	if order != nil {
		t.Errorf("unpersisted order = %v, want nil", order)
	}

	want := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	if err := s.SaveQuestionOrder(id.ExamCode, id.StudentName, want); err != nil {
		t.Fatalf("SaveQuestionOrder: %v", err)
	}
	order, err = s.QuestionOrder(id.ExamCode, id.StudentName)
	if err != nil {
		t.Fatalf("QuestionOrder after save: %v", err)
	}
	if len(order) != len(want) {
		t.Fatalf("order length = %d, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, order[i], want[i])
		}
	}

	if _, ok, err := s.ExamStartedAt(id.ExamCode, id.StudentID); err != nil || ok {
		t.Fatalf("ExamStartedAt before save = ok=%v err=%v, want absent", ok, err)
	}
	anchor := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	if err := s.SaveExamStartedAt(id.ExamCode, id.StudentID, anchor); err != nil {
		t.Fatalf("SaveExamStartedAt: %v", err)
	}
	at, ok, err := s.ExamStartedAt(id.ExamCode, id.StudentID)
	if err != nil || !ok {
		t.Fatalf("ExamStartedAt = ok=%v err=%v, want present", ok, err)
	}
	if !at.Equal(anchor) {
		t.Errorf("ExamStartedAt = %v, want %v", at, anchor)
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := s.Identity(); err != ErrNoAttempt {
		t.Errorf("Identity after Clear err = %v, want ErrNoAttempt", err)
	}
	if order, _ := s.QuestionOrder(id.ExamCode, id.StudentName); order != nil {
		t.Errorf("order after Clear = %v, want nil", order)
	}
}

func TestMemoryStore(t *testing.T) {
	runAttemptStoreTests(t, NewMemory())
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attempt.db")
	s, err := OpenSQLite(context.Background(), path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer s.Close()

	runAttemptStoreTests(t, s)
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attempt.db")
	ctx := context.Background()

	s, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	id := &Identity{StudentID: uuid.New(), ExamCode: "SCI42", StudentName: "Grace"}
	if err := s.SaveIdentity(id); err != nil {
		t.Fatalf("SaveIdentity: %v", err)
	}
	anchor := time.Now().Truncate(time.Second)
	if err := s.SaveExamStartedAt(id.ExamCode, id.StudentID, anchor); err != nil {
		t.Fatalf("SaveExamStartedAt: %v", err)
	}
	s.Close()

	// Reopen simulates the client restarting mid-attempt.
	s2, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	got, err := s2.Identity()
	if err != nil {
		t.Fatalf("Identity after reopen: %v", err)
	}
	if *got != *id {
		t.Errorf("Identity after reopen = %+v, want %+v", got, id)
	}
	at, ok, err := s2.ExamStartedAt(id.ExamCode, id.StudentID)
	if err != nil || !ok {
		t.Fatalf("ExamStartedAt after reopen = ok=%v err=%v", ok, err)
	}
	if !at.Equal(anchor) {
		t.Errorf("anchor after reopen = %v, want %v", at, anchor)
	}
}
