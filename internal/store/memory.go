package store

import (
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process AttemptStore. It backs tests and one-shot runs
// where surviving a restart does not matter.
type Memory struct {
	mu sync.Mutex
	kv map[string]string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{kv: make(map[string]string)}
}

func (m *Memory) get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.kv[key]
	return v, ok
}

func (m *Memory) set(key, value string) {
	m.mu.Lock()
	m.kv[key] = value
	m.mu.Unlock()
}

// Identity implements AttemptStore.
func (m *Memory) Identity() (*Identity, error) {
	rawID, okID := m.get(keyStudentID)
	code, okCode := m.get(keyExamCode)
	name, _ := m.get(keyStudentName)
	if !okID || !okCode {
		return nil, ErrNoAttempt
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, ErrNoAttempt
	}
	return &Identity{StudentID: id, ExamCode: code, StudentName: name}, nil
}

// SaveIdentity implements AttemptStore.
func (m *Memory) SaveIdentity(id *Identity) error {
	m.set(keyStudentID, id.StudentID.String())
	m.set(keyExamCode, id.ExamCode)
	m.set(keyStudentName, id.StudentName)
	return nil
}

// QuestionOrder implements AttemptStore.
func (m *Memory) QuestionOrder(examCode, studentName string) ([]uuid.UUID, error) {
	raw, ok := m.get(orderKey(examCode, studentName))
	if !ok {
		return nil, nil
	}
	var order []uuid.UUID
	if err := json.Unmarshal([]byte(raw), &order); err != nil {
		// A corrupt order is treated as absent: the sequencer reshuffles.
		return nil, nil
	}
	return order, nil
}

// SaveQuestionOrder implements AttemptStore.
func (m *Memory) SaveQuestionOrder(examCode, studentName string, order []uuid.UUID) error {
	raw, err := json.Marshal(order)
	if err != nil {
		return err
	}
	m.set(orderKey(examCode, studentName), string(raw))
	return nil
}

// ExamStartedAt implements AttemptStore.
func (m *Memory) ExamStartedAt(examCode string, studentID uuid.UUID) (time.Time, bool, error) {
	raw, ok := m.get(startKey(examCode, studentID))
	if !ok {
		return time.Time{}, false, nil
	}
	unix, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, nil
	}
	return time.Unix(unix, 0), true, nil
}

// SaveExamStartedAt implements AttemptStore.
func (m *Memory) SaveExamStartedAt(examCode string, studentID uuid.UUID, at time.Time) error {
	m.set(startKey(examCode, studentID), strconv.FormatInt(at.Unix(), 10))
	return nil
}

// Clear implements AttemptStore.
func (m *Memory) Clear() error {
	m.mu.Lock()
	m.kv = make(map[string]string)
	m.mu.Unlock()
	return nil
}
