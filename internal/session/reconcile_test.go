package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/integrityguard/examsession/internal/model"
)

func TestServerScoreOverridesLocal(t *testing.T) {
	e := newEnv(4)
	s := newLiveSession(t, e)

	// A regrade on the teacher side lands verbatim, up or down.
	st := e.gw.student
	st.Score = 3.5
	s.applyStudent(&st)
	if v := s.Snapshot(); v.Score != 3.5 {
		t.Errorf("score = %v, want 3.5", v.Score)
	}
	st.Score = 2
	s.applyStudent(&st)
	if v := s.Snapshot(); v.Score != 2 {
		t.Errorf("score after downgrade = %v, want 2", v.Score)
	}
}

func TestServerCursorOnlyMovesForward(t *testing.T) {
	e := newEnv(5)
	e.gw.student.CurrentQuestionIndex = 3
	s := newLiveSession(t, e)

	// A stale record with a smaller cursor is ignored.
	st := e.gw.student
	st.CurrentQuestionIndex = 1
	s.applyStudent(&st)
	if v := s.Snapshot(); v.CurrentIndex != 3 {
		t.Errorf("cursor after stale record = %d, want 3", v.CurrentIndex)
	}

	// A strictly greater cursor advances and back-fills the answered set.
	st.CurrentQuestionIndex = 4
	s.applyStudent(&st)
	v := s.Snapshot()
	if v.CurrentIndex != 4 {
		t.Errorf("cursor after forward record = %d, want 4", v.CurrentIndex)
	}
	s.mu.Lock()
	backfilled := s.answered[s.questions[3].ID]
	s.mu.Unlock()
	if !backfilled {
		t.Error("question before the advanced cursor not marked answered")
	}
}

func TestPreStartForgivenessReturnsToWaiting(t *testing.T) {
	e := newEnv(3)
	s := e.newSession(t)

	end := e.clk.Now().Add(5 * time.Minute)
	st := e.gw.student
	st.Status = model.SessionStatusDetained
	st.DetentionEndAt = &end
	s.applyStudent(&st)

	// Forgiveness before the exam is live lands in the waiting room.
	st.Status = model.SessionStatusActive
	st.DetentionEndAt = nil
	s.applyStudent(&st)
	if got := s.Status(); got != model.SessionStatusWaiting {
		t.Fatalf("status = %v, want waiting", got)
	}
	if c := s.CurrentChallenge(); c != "" {
		t.Errorf("challenge = %q, want none", c)
	}
}

func TestCursorAtCountFinishesAttempt(t *testing.T) {
	e := newEnv(3)
	s := newLiveSession(t, e)

	// A teacher correction can move the cursor to the question count
	// without touching status; every question is answered, so the
	// attempt is over.
	st := e.gw.student
	st.Status = model.SessionStatusActive
	st.CurrentQuestionIndex = 3
	s.applyStudent(&st)

	v := s.Snapshot()
	if v.Status != model.SessionStatusFinished {
		t.Fatalf("status = %v, want finished", v.Status)
	}
	if v.CurrentIndex != 3 {
		t.Errorf("cursor = %d, want 3", v.CurrentIndex)
	}
	select {
	case <-s.Done():
	default:
		t.Error("Done not closed after cursor reached the question count")
	}

	if err := s.Submit(context.Background(), "green"); !errors.Is(err, ErrNotActive) {
		t.Errorf("Submit after completion = %v, want ErrNotActive", err)
	}

	waitFor(t, func() bool {
		return e.gw.anyPatch(func(p model.UpdateStudentRequest) bool {
			return p.Status != nil && *p.Status == model.SessionStatusFinished &&
				p.CurrentQuestionIndex != nil && *p.CurrentQuestionIndex == 3
		})
	})
}

func TestForgivenessLiftsDetention(t *testing.T) {
	e := newEnv(4)
	s := newLiveSession(t, e)
	s.ReportHidden()

	// The teacher forgives from the roster; the record flips to active
	// with the detention fields cleared.
	st := e.gw.student
	st.Status = model.SessionStatusActive
	s.applyStudent(&st)

	if got := s.Status(); got != model.SessionStatusActive {
		t.Fatalf("status = %s, want active after forgiveness", got)
	}
	if s.DetentionRemaining() != 0 {
		t.Error("detention countdown survived forgiveness")
	}
	if s.CurrentChallenge() != "" {
		t.Error("challenge survived forgiveness")
	}
}

func TestServerImposedDetention(t *testing.T) {
	e := newEnv(4)
	s := newLiveSession(t, e)

	end := e.clk.Now().Add(5 * time.Minute)
	st := e.gw.student
	st.Status = model.SessionStatusDetained
	st.DetentionEndAt = &end
	s.applyStudent(&st)

	if got := s.Status(); got != model.SessionStatusDetained {
		t.Fatalf("status = %s, want detention after force-block", got)
	}
	if got := s.DetentionRemaining(); got != 5*time.Minute {
		t.Errorf("remaining = %v, want 5m", got)
	}
	if s.CurrentChallenge() == "" {
		t.Error("no challenge after server-imposed detention")
	}

	// A later record with a pushed-out end time extends the countdown
	// without resetting the challenge.
	before := s.CurrentChallenge()
	later := end.Add(3 * time.Minute)
	st.DetentionEndAt = &later
	s.applyStudent(&st)
	if got := s.DetentionRemaining(); got != 8*time.Minute {
		t.Errorf("remaining after extension = %v, want 8m", got)
	}
	if s.CurrentChallenge() != before {
		t.Error("challenge reset by a detention extension")
	}
}

func TestDetainedRecordWithoutEndIsIgnored(t *testing.T) {
	e := newEnv(4)
	s := newLiveSession(t, e)

	st := e.gw.student
	st.Status = model.SessionStatusDetained
	st.DetentionEndAt = nil
	s.applyStudent(&st)

	if got := s.Status(); got != model.SessionStatusActive {
		t.Errorf("status = %s, want active for detained record without end time", got)
	}
}

func TestActiveRecordDoesNotLeaveWaitingRoom(t *testing.T) {
	e := newEnv(4)
	s := e.newSession(t)

	// The student record says active from the moment of joining; only the
	// exam going live releases the waiting room.
	st := e.gw.student
	st.Status = model.SessionStatusActive
	s.applyStudent(&st)
	if got := s.Status(); got != model.SessionStatusWaiting {
		t.Fatalf("status = %s, want waiting", got)
	}

	e.gw.mu.Lock()
	e.gw.exam.Live = true
	e.gw.exam.TimeLimitMinutes = 30
	e.gw.mu.Unlock()
	ex, _ := e.gw.ExamByCode(context.Background(), "HIST7A")
	s.applyExam(ex)
	if got := s.Status(); got != model.SessionStatusActive {
		t.Errorf("status = %s, want active once the exam is live", got)
	}
}

func TestPushedExamRecordDrivesLiveTransition(t *testing.T) {
	e := newEnv(4)
	s := e.newSession(t)
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	e.gw.mu.Lock()
	e.gw.exam.Live = true
	e.gw.exam.TimeLimitMinutes = 30
	e.gw.mu.Unlock()
	e.gw.pushExam()

	waitFor(t, func() bool { return s.Status() == model.SessionStatusActive })
}

func TestPushedFinishTerminatesAndReleases(t *testing.T) {
	e := newEnv(4)
	s := newLiveSession(t, e)
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	e.gw.mu.Lock()
	e.gw.student.Status = model.SessionStatusFinished
	e.gw.student.CurrentQuestionIndex = 4
	e.gw.mu.Unlock()
	e.gw.pushStudent()

	waitFor(t, func() bool { return s.Status() == model.SessionStatusFinished })
	select {
	case <-s.Done():
	default:
		t.Fatal("Done() not closed after pushed finish")
	}
	e.gw.mu.Lock()
	unsubs := e.gw.unsubCount
	e.gw.mu.Unlock()
	if unsubs != 2 {
		t.Errorf("unsubscribed %d times, want 2", unsubs)
	}
}

func TestPollFallbackConverges(t *testing.T) {
	e := newEnv(4)
	s := e.newSession(t)

	// No pushes arrive; a single poll pass picks up the live exam and the
	// server's cursor.
	e.gw.mu.Lock()
	e.gw.exam.Live = true
	e.gw.exam.TimeLimitMinutes = 30
	e.gw.student.CurrentQuestionIndex = 2
	e.gw.mu.Unlock()
	s.pollOnce(context.Background())

	if got := s.Status(); got != model.SessionStatusActive {
		t.Fatalf("status after poll = %s, want active", got)
	}
	if v := s.Snapshot(); v.CurrentIndex != 2 {
		t.Errorf("cursor after poll = %d, want 2", v.CurrentIndex)
	}
}

func TestTerminalSessionIgnoresLateRecords(t *testing.T) {
	e := newEnv(2)
	s := newLiveSession(t, e)

	if err := s.Submit(context.Background(), "red"); err != nil {
		t.Fatalf("Submit #1: %v", err)
	}
	if err := s.Submit(context.Background(), "red"); err != nil {
		t.Fatalf("Submit #2: %v", err)
	}
	if got := s.Status(); got != model.SessionStatusFinished {
		t.Fatalf("status = %s, want finished", got)
	}

	// A stale detained record delivered after the finish changes nothing.
	end := e.clk.Now().Add(time.Minute)
	st := e.gw.student
	st.Status = model.SessionStatusDetained
	st.DetentionEndAt = &end
	s.applyStudent(&st)
	if got := s.Status(); got != model.SessionStatusFinished {
		t.Errorf("status after stale record = %s, want finished", got)
	}
}
