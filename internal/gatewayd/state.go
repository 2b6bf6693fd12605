// Package gatewayd is the reference gateway: an in-memory exam service the
// client can run against end to end. It owns the answer keys and does all
// grading; student payloads never contain correctness data.
package gatewayd

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/integrityguard/examsession/internal/gateway"
	"github.com/integrityguard/examsession/internal/model"
	"github.com/rs/zerolog"
)

var (
	ErrNotFound        = errors.New("gatewayd: record not found")
	ErrCodeTaken       = errors.New("gatewayd: exam code already in use")
	ErrBadAnswerKey    = errors.New("gatewayd: correct letter outside option range")
	ErrUnknownQuestion = errors.New("gatewayd: question does not belong to exam")
	ErrExamNotLive     = errors.New("gatewayd: exam has not been started")
	ErrNoQuestions     = errors.New("gatewayd: exam has no questions")
)

type questionRecord struct {
	question      model.Question
	correctLetter string
}

type examRecord struct {
	exam      model.Exam
	questions []questionRecord
}

type studentRecord struct {
	student model.Student
	// answers maps question ID to the first recorded letter. First write
	// wins; retries report already_recorded.
	answers map[uuid.UUID]string
}

// State is the gateway's record store. All methods return copies, so
// callers never hold references into guarded state.
type State struct {
	mu       sync.Mutex
	exams    map[uuid.UUID]*examRecord
	byCode   map[string]uuid.UUID
	students map[uuid.UUID]*studentRecord
	log      zerolog.Logger
}

// NewState creates an empty record store.
func NewState(log zerolog.Logger) *State {
	return &State{
		exams:    make(map[uuid.UUID]*examRecord),
		byCode:   make(map[string]uuid.UUID),
		students: make(map[uuid.UUID]*studentRecord),
		log:      log.With().Str("component", "gateway_state").Logger(),
	}
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CreateExam registers a new exam with its question set and answer key.
func (s *State) CreateExam(req model.CreateExamRequest) (*model.Exam, error) {
	code := normalizeCode(req.Code)

	if len(req.Questions) == 0 {
		return nil, ErrNoQuestions
	}

	questions := make([]questionRecord, 0, len(req.Questions))
	for _, in := range req.Questions {
		letter := strings.ToUpper(in.CorrectLetter)
		idx := int(letter[0] - 'A')
		if idx < 0 || idx >= len(in.Options) {
			return nil, ErrBadAnswerKey
		}
		questions = append(questions, questionRecord{
			question: model.Question{
				ID:      uuid.New(),
				Text:    in.Text,
				Options: append([]string(nil), in.Options...),
			},
			correctLetter: letter,
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byCode[code]; exists {
		return nil, ErrCodeTaken
	}

	rec := &examRecord{
		exam: model.Exam{
			ID:               uuid.New(),
			Code:             code,
			Title:            req.Title,
			TimeLimitMinutes: req.TimeLimitMinutes,
		},
		questions: questions,
	}
	s.exams[rec.exam.ID] = rec
	s.byCode[code] = rec.exam.ID
	s.log.Info().Str("code", code).Int("questions", len(questions)).Msg("exam created")

	exam := rec.exam
	return &exam, nil
}

// StartExam flips the exam live, optionally overriding the time limit.
// Starting an already-live exam is a no-op re-returning the record.
func (s *State) StartExam(ref string, req model.StartExamRequest) (*model.Exam, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.lookupExamLocked(ref)
	if err != nil {
		return nil, err
	}
	if !rec.exam.Live {
		if req.TimeLimitMinutes != nil {
			rec.exam.TimeLimitMinutes = *req.TimeLimitMinutes
		}
		rec.exam.Live = true
		s.log.Info().Str("code", rec.exam.Code).Int("limit_minutes", rec.exam.TimeLimitMinutes).Msg("exam started")
	}

	exam := rec.exam
	return &exam, nil
}

// Exam resolves an exam by entry code or by ID.
func (s *State) Exam(ref string) (*model.Exam, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.lookupExamLocked(ref)
	if err != nil {
		return nil, err
	}
	exam := rec.exam
	return &exam, nil
}

// Questions returns the student-facing question set with the answer key
// stripped.
func (s *State) Questions(ref string) ([]model.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.lookupExamLocked(ref)
	if err != nil {
		return nil, err
	}
	out := make([]model.Question, 0, len(rec.questions))
	for _, q := range rec.questions {
		q.question.Options = append([]string(nil), q.question.Options...)
		out = append(out, q.question)
	}
	return out, nil
}

// Join creates a fresh attempt record for a student entering an exam. The
// record starts active; the client holds the waiting room until the exam
// itself goes live.
func (s *State) Join(req model.JoinExamRequest) (*model.Student, error) {
	code := normalizeCode(req.ExamCode)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byCode[code]; !ok {
		return nil, ErrNotFound
	}

	rec := &studentRecord{
		student: model.Student{
			ID:       uuid.New(),
			Name:     strings.TrimSpace(req.StudentName),
			ExamCode: code,
			Status:   model.SessionStatusActive,
		},
		answers: make(map[uuid.UUID]string),
	}
	s.students[rec.student.ID] = rec
	s.log.Info().Str("code", code).Str("name", rec.student.Name).Msg("student joined")

	st := rec.student
	return &st, nil
}

// Student returns the attempt record by ID.
func (s *State) Student(id uuid.UUID) (*model.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.students[id]
	if !ok {
		return nil, ErrNotFound
	}
	st := rec.student
	return &st, nil
}

// UpdateStudent applies a partial update and returns the new record. Nil
// fields keep their value; ClearDetention nulls the detention end time.
func (s *State) UpdateStudent(id uuid.UUID, patch model.UpdateStudentRequest) (*model.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.students[id]
	if !ok {
		return nil, ErrNotFound
	}
	if patch.Status != nil {
		rec.student.Status = *patch.Status
	}
	if patch.CurrentQuestionIndex != nil {
		rec.student.CurrentQuestionIndex = *patch.CurrentQuestionIndex
	}
	if patch.Score != nil {
		rec.student.Score = *patch.Score
	}
	if patch.DetentionEndAt != nil {
		end := *patch.DetentionEndAt
		rec.student.DetentionEndAt = &end
	}
	if patch.ClearDetention {
		rec.student.DetentionEndAt = nil
	}

	st := rec.student
	return &st, nil
}

// SubmitAnswer grades one (question, letter) pair. The first answer for a
// question is final: a correct one increments the score, and any retry
// reports already_recorded without regrading.
func (s *State) SubmitAnswer(studentID uuid.UUID, req model.SubmitAnswerRequest) (gateway.SubmitResult, *model.Student, error) {
	letter := strings.ToUpper(req.SelectedLetter)

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.students[studentID]
	if !ok {
		return "", nil, ErrNotFound
	}
	examRec, ok := s.exams[req.ExamID]
	if !ok {
		return "", nil, ErrNotFound
	}
	if !examRec.exam.Live {
		return "", nil, ErrExamNotLive
	}

	var question *questionRecord
	for i := range examRec.questions {
		if examRec.questions[i].question.ID == req.QuestionID {
			question = &examRec.questions[i]
			break
		}
	}
	if question == nil {
		return "", nil, ErrUnknownQuestion
	}

	if _, dup := rec.answers[req.QuestionID]; dup {
		st := rec.student
		return gateway.SubmitAlreadyRecorded, &st, nil
	}

	rec.answers[req.QuestionID] = letter
	if letter == question.correctLetter {
		rec.student.Score++
	}
	s.log.Debug().
		Stringer("student_id", studentID).
		Stringer("question_id", req.QuestionID).
		Str("letter", letter).
		Msg("answer recorded")

	st := rec.student
	return gateway.SubmitAccepted, &st, nil
}

// Roster lists every attempt record for an exam, for the proctor view.
func (s *State) Roster(ref string) ([]model.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.lookupExamLocked(ref)
	if err != nil {
		return nil, err
	}
	out := make([]model.Student, 0)
	for _, st := range s.students {
		if st.student.ExamCode == rec.exam.Code {
			out = append(out, st.student)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// lookupExamLocked resolves ref as an entry code first, then as a UUID.
// Caller holds s.mu.
func (s *State) lookupExamLocked(ref string) (*examRecord, error) {
	if id, ok := s.byCode[normalizeCode(ref)]; ok {
		return s.exams[id], nil
	}
	if id, err := uuid.Parse(ref); err == nil {
		if rec, ok := s.exams[id]; ok {
			return rec, nil
		}
	}
	return nil, ErrNotFound
}
