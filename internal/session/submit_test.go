package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/integrityguard/examsession/internal/gateway"
	"github.com/integrityguard/examsession/internal/model"
)

func TestSubmitRecordsAndAdvances(t *testing.T) {
	e := newEnv(4)
	s := newLiveSession(t, e)

	if err := s.Submit(context.Background(), "green"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	v := s.Snapshot()
	if v.CurrentIndex != 1 {
		t.Errorf("cursor = %d, want 1", v.CurrentIndex)
	}
	if got := e.gw.submitCount(); got != 1 {
		t.Errorf("gateway submits = %d, want 1", got)
	}
	waitFor(t, func() bool {
		return e.gw.anyPatch(func(p model.UpdateStudentRequest) bool {
			return p.CurrentQuestionIndex != nil && *p.CurrentQuestionIndex == 1
		})
	})
}

func TestSubmitValidation(t *testing.T) {
	e := newEnv(4)
	s := newLiveSession(t, e)

	if err := s.Submit(context.Background(), ""); !errors.Is(err, ErrNoSelection) {
		t.Errorf("empty selection: err = %v, want ErrNoSelection", err)
	}
	if err := s.Submit(context.Background(), "purple"); !errors.Is(err, ErrUnknownOption) {
		t.Errorf("unknown option: err = %v, want ErrUnknownOption", err)
	}
	if got := e.gw.submitCount(); got != 0 {
		t.Errorf("gateway submits after rejected input = %d, want 0", got)
	}
}

func TestSubmitRequiresActive(t *testing.T) {
	// Waiting room.
	e := newEnv(4)
	s := e.newSession(t)
	if err := s.Submit(context.Background(), "red"); !errors.Is(err, ErrNotActive) {
		t.Errorf("waiting: err = %v, want ErrNotActive", err)
	}

	// Detention freezes the exam surface entirely.
	e2 := newEnv(4)
	s2 := newLiveSession(t, e2)
	s2.ReportHidden()
	if err := s2.Submit(context.Background(), "red"); !errors.Is(err, ErrNotActive) {
		t.Errorf("detained: err = %v, want ErrNotActive", err)
	}
}

func TestSubmitSkipsAlreadyAnsweredQuestion(t *testing.T) {
	e := newEnv(4)
	s := newLiveSession(t, e)

	// The question at the cursor is already in the answered set, as after
	// a reload-then-retry. The cursor advances but the gateway sees no
	// second write.
	s.mu.Lock()
	s.answered[s.questions[0].ID] = true
	s.mu.Unlock()

	if err := s.Submit(context.Background(), "red"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got := e.gw.submitCount(); got != 0 {
		t.Errorf("gateway submits = %d, want 0 for answered question", got)
	}
	if v := s.Snapshot(); v.CurrentIndex != 1 {
		t.Errorf("cursor = %d, want 1", v.CurrentIndex)
	}
}

func TestSubmitGatewayFailureStillAdvances(t *testing.T) {
	e := newEnv(4)
	s := newLiveSession(t, e)
	e.gw.mu.Lock()
	e.gw.submitErr = errors.New("gateway unreachable")
	e.gw.mu.Unlock()

	if err := s.Submit(context.Background(), "blue"); err != nil {
		t.Fatalf("Submit surfaced gateway error: %v", err)
	}
	v := s.Snapshot()
	if v.CurrentIndex != 1 {
		t.Errorf("cursor = %d, want 1 despite failed write", v.CurrentIndex)
	}

	// The failed question stays out of the answered set so a later retry
	// can still record it.
	s.mu.Lock()
	answered := s.answered[s.questions[0].ID]
	s.mu.Unlock()
	if answered {
		t.Error("failed write marked the question answered")
	}
}

func TestSubmitTreatsDuplicateAsRecorded(t *testing.T) {
	e := newEnv(4)
	s := newLiveSession(t, e)
	e.gw.mu.Lock()
	e.gw.submitRes = gateway.SubmitAlreadyRecorded
	e.gw.mu.Unlock()

	if err := s.Submit(context.Background(), "red"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	s.mu.Lock()
	answered := s.answered[s.questions[0].ID]
	s.mu.Unlock()
	if !answered {
		t.Error("already_recorded result not treated as a durable write")
	}
}

func TestSubmitLastQuestionFinishes(t *testing.T) {
	e := newEnv(2)
	s := newLiveSession(t, e)

	if err := s.Submit(context.Background(), "red"); err != nil {
		t.Fatalf("Submit #1: %v", err)
	}
	if err := s.Submit(context.Background(), "green"); err != nil {
		t.Fatalf("Submit #2: %v", err)
	}

	if got := s.Status(); got != model.SessionStatusFinished {
		t.Fatalf("status = %s, want finished", got)
	}
	select {
	case <-s.Done():
	default:
		t.Error("Done() not closed after final submission")
	}
	waitFor(t, func() bool {
		return e.gw.anyPatch(func(p model.UpdateStudentRequest) bool {
			return p.Status != nil && *p.Status == model.SessionStatusFinished &&
				p.CurrentQuestionIndex != nil && *p.CurrentQuestionIndex == 2
		})
	})
}

func TestSubmitSerializedWhileInFlight(t *testing.T) {
	e := newEnv(4)
	s := newLiveSession(t, e)

	gate := make(chan struct{})
	e.gw.mu.Lock()
	e.gw.submitGate = gate
	e.gw.mu.Unlock()

	first := make(chan error, 1)
	go func() { first <- s.Submit(context.Background(), "red") }()

	waitFor(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.submitInFlight
	})
	if err := s.Submit(context.Background(), "green"); !errors.Is(err, ErrSubmitInFlight) {
		t.Errorf("concurrent submit: err = %v, want ErrSubmitInFlight", err)
	}

	close(gate)
	if err := <-first; err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if v := s.Snapshot(); v.CurrentIndex != 1 {
		t.Errorf("cursor = %d, want 1 after single advance", v.CurrentIndex)
	}
	if got := e.gw.submitCount(); got != 1 {
		t.Errorf("gateway submits = %d, want 1", got)
	}
}

func TestSubmitAbortsWhenTerminalMidFlight(t *testing.T) {
	e := newEnv(4)
	s := newLiveSession(t, e)

	gate := make(chan struct{})
	e.gw.mu.Lock()
	e.gw.submitGate = gate
	e.gw.mu.Unlock()

	first := make(chan error, 1)
	go func() { first <- s.Submit(context.Background(), "red") }()
	waitFor(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.submitInFlight
	})

	// The teacher force-finishes the attempt while the write is on the
	// wire. The late completion must not move the cursor afterwards.
	fin := model.Student{
		ID:                   e.gw.student.ID,
		Status:               model.SessionStatusFinished,
		CurrentQuestionIndex: 4,
	}
	s.applyStudent(&fin)
	close(gate)
	if err := <-first; err != nil {
		t.Fatalf("first Submit: %v", err)
	}

	if got := s.Status(); got != model.SessionStatusFinished {
		t.Fatalf("status = %s, want finished", got)
	}
	if v := s.Snapshot(); v.CurrentIndex != 4 {
		t.Errorf("cursor = %d, want 4 from the forced finish", v.CurrentIndex)
	}
	// Give any stray patch goroutine time to land before asserting.
	time.Sleep(20 * time.Millisecond)
}
