// Package session implements the client state machine that runs on a
// student's device for the duration of a timed, proctored exam: the exam
// timer, the focus-loss detention engine, exactly-once answer submission,
// and reconciliation against server-pushed authoritative state.
package session

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/integrityguard/examsession/internal/clock"
	"github.com/integrityguard/examsession/internal/gateway"
	"github.com/integrityguard/examsession/internal/model"
	"github.com/integrityguard/examsession/internal/store"
	"github.com/rs/zerolog"
)

const (
	defaultTickInterval = time.Second
	defaultPollInterval = 3 * time.Second

	detentionPenalty   = 120 * time.Second
	detentionReduction = 30 * time.Second
)

// Config carries the collaborators a Session needs. Store, Gateway and
// Logger are required; the rest default sensibly.
type Config struct {
	Store   store.AttemptStore
	Gateway gateway.Gateway
	Clock   clock.Clock
	Logger  zerolog.Logger
	Rand    *rand.Rand

	// TickInterval drives the exam and detention countdowns (default 1s).
	TickInterval time.Duration
	// PollInterval drives the reconciliation poll fallback (default 3s).
	PollInterval time.Duration
}

// Session is one student's live exam attempt. All exported methods are safe
// for concurrent use; every mutating path checks the current status first so
// stale or reordered events become no-ops rather than corruption.
type Session struct {
	st   store.AttemptStore
	gw   gateway.Gateway
	clk  clock.Clock
	log  zerolog.Logger
	rng  *rand.Rand
	tick time.Duration
	poll time.Duration

	mu             sync.Mutex
	studentID      uuid.UUID
	examID         uuid.UUID
	examCode       string
	studentName    string
	status         model.SessionStatus
	questions      []model.Question
	currentIndex   int
	answered       map[uuid.UUID]bool
	score          float64
	examStartAt    time.Time
	examEndAt      *time.Time
	detentionEndAt *time.Time
	challenge      *Challenge
	submitInFlight bool

	cancelBg context.CancelFunc
	unsubs   []gateway.Unsubscribe
	done     chan struct{}
	closed   bool
}

// New hydrates a session from the attempt store and the gateway. It returns
// store.ErrNoAttempt when no entry identifiers are persisted and
// ErrNoQuestions when the exam has no questions; both are fatal to the
// session and send the caller back to the entry flow.
func New(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.Clock == nil {
		cfg.Clock = clock.System()
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}

	id, err := cfg.Store.Identity()
	if err != nil {
		return nil, err
	}

	exam, err := cfg.Gateway.ExamByCode(ctx, id.ExamCode)
	if err != nil {
		return nil, fmt.Errorf("fetch exam: %w", err)
	}

	source, err := cfg.Gateway.Questions(ctx, exam.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch questions: %w", err)
	}
	if len(source) == 0 {
		return nil, ErrNoQuestions
	}

	s := &Session{
		st:          cfg.Store,
		gw:          cfg.Gateway,
		clk:         cfg.Clock,
		log:         cfg.Logger.With().Str("component", "exam_session").Stringer("student_id", id.StudentID).Logger(),
		rng:         cfg.Rand,
		tick:        cfg.TickInterval,
		poll:        cfg.PollInterval,
		studentID:   id.StudentID,
		examID:      exam.ID,
		examCode:    id.ExamCode,
		studentName: id.StudentName,
		status:      model.SessionStatusWaiting,
		answered:    make(map[uuid.UUID]bool),
		done:        make(chan struct{}),
	}

	if err := s.sequenceQuestions(source); err != nil {
		return nil, fmt.Errorf("sequence questions: %w", err)
	}

	attempt, err := cfg.Gateway.StudentAttempt(ctx, id.StudentID)
	if err != nil {
		return nil, fmt.Errorf("fetch attempt: %w", err)
	}
	s.hydrate(attempt, exam)

	return s, nil
}

// hydrate seeds local state from the authoritative records fetched at
// startup. Must only be called before Run.
func (s *Session) hydrate(attempt *model.Student, exam *model.Exam) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.score = attempt.Score

	// A reload resumes at the server's cursor; everything before it has
	// been durably submitted already.
	if attempt.CurrentQuestionIndex > 0 {
		s.advanceCursorLocked(attempt.CurrentQuestionIndex)
	}

	if attempt.Status == model.SessionStatusFinished || s.currentIndex >= len(s.questions) {
		s.currentIndex = len(s.questions)
		s.terminateLocked(model.SessionStatusFinished)
		return
	}

	if exam.Live {
		s.markLiveLocked(exam.TimeLimitMinutes)
	}

	now := s.clk.Now()
	if attempt.DetentionEndAt != nil {
		if attempt.DetentionEndAt.After(now) {
			// Restart mid-detention: the penalty survives a reload.
			end := *attempt.DetentionEndAt
			s.detentionEndAt = &end
			s.status = model.SessionStatusDetained
			s.challenge = newChallenge(s.rng)
		} else {
			// Detention lapsed while the client was away; tell the server.
			s.pushPatch(model.UpdateStudentRequest{
				Status:         statusPtr(model.SessionStatusActive),
				ClearDetention: true,
			})
		}
	}
}

// Run starts the countdown tick loop, the reconciliation poll, and the push
// subscriptions. It returns immediately; Done() closes when the session
// reaches a terminal status or Close is called.
func (s *Session) Run(ctx context.Context) error {
	bgCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		return nil
	}
	s.cancelBg = cancel
	s.mu.Unlock()

	if err := s.startReconciler(bgCtx); err != nil {
		cancel()
		return err
	}

	go s.tickLoop(bgCtx)
	return nil
}

// tickLoop fires the 1-second countdown checks. Each tick is a non-blocking
// check; network writes it schedules run in their own goroutines.
func (s *Session) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			now := s.clk.Now()
			s.tickExam(now)
			s.tickDetention(now)
		}
	}
}

// Done closes when the session reaches a terminal status or is closed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Close releases subscriptions, tickers and handlers. Safe to call multiple
// times and after terminal transition; used for navigation away mid-exam.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked()
}

// Leave clears the persisted attempt after a terminal status so the device
// returns to the entry flow with no partial state.
func (s *Session) Leave() error {
	s.Close()
	return s.st.Clear()
}

// terminateLocked moves the session to a terminal status and synchronously
// stops every event source. Caller holds s.mu.
func (s *Session) terminateLocked(status model.SessionStatus) {
	s.status = status
	s.detentionEndAt = nil
	s.challenge = nil
	s.releaseLocked()
}

func (s *Session) releaseLocked() {
	if s.closed {
		return
	}
	s.closed = true
	if s.cancelBg != nil {
		s.cancelBg()
	}
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.unsubs = nil
	close(s.done)
}

// pushPatch sends a status update without blocking the caller. Failures are
// logged and otherwise ignored; the reconciler heals any divergence.
func (s *Session) pushPatch(patch model.UpdateStudentRequest) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.gw.UpdateStudent(ctx, s.studentID, patch); err != nil {
			s.log.Warn().Err(err).Msg("status update failed")
		}
	}()
}

// advanceCursorLocked moves the cursor forward to index (never backward) and
// marks every question before it as answered. Caller holds s.mu.
func (s *Session) advanceCursorLocked(index int) {
	if index > len(s.questions) {
		index = len(s.questions)
	}
	if index <= s.currentIndex {
		return
	}
	s.currentIndex = index
	for i := 0; i < index && i < len(s.questions); i++ {
		s.answered[s.questions[i].ID] = true
	}
}

func statusPtr(st model.SessionStatus) *model.SessionStatus { return &st }
func intPtr(n int) *int                                     { return &n }
