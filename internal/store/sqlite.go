package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // driver: sqlite
)

const attemptSchema = `
CREATE TABLE IF NOT EXISTS attempt_kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// SQLite is a file-backed AttemptStore. One database per device; the exam
// client reopens it after a restart and resumes the same attempt.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (and creates if needed) the attempt database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open attempt db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping attempt db: %w", err)
	}
	if _, err := db.ExecContext(ctx, attemptSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure attempt schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM attempt_kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *SQLite) set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO attempt_kv (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

// Identity implements AttemptStore.
func (s *SQLite) Identity() (*Identity, error) {
	rawID, okID, err := s.get(keyStudentID)
	if err != nil {
		return nil, err
	}
	code, okCode, err := s.get(keyExamCode)
	if err != nil {
		return nil, err
	}
	name, _, err := s.get(keyStudentName)
	if err != nil {
		return nil, err
	}
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
func (s *SQLite) SaveIdentity(id *Identity) error {
	if err := s.set(keyStudentID, id.StudentID.String()); err != nil {
		return err
	}
	if err := s.set(keyExamCode, id.ExamCode); err != nil {
		return err
	}
	return s.set(keyStudentName, id.StudentName)
}

// QuestionOrder implements AttemptStore.
func (s *SQLite) QuestionOrder(examCode, studentName string) ([]uuid.UUID, error) {
	raw, ok, err := s.get(orderKey(examCode, studentName))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var order []uuid.UUID
	if err := json.Unmarshal([]byte(raw), &order); err != nil {
		return nil, nil
	}
	return order, nil
}

// SaveQuestionOrder implements AttemptStore.
func (s *SQLite) SaveQuestionOrder(examCode, studentName string, order []uuid.UUID) error {
	raw, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return s.set(orderKey(examCode, studentName), string(raw))
}

// ExamStartedAt implements AttemptStore.
func (s *SQLite) ExamStartedAt(examCode string, studentID uuid.UUID) (time.Time, bool, error) {
	raw, ok, err := s.get(startKey(examCode, studentID))
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	unix, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, nil
	}
	return time.Unix(unix, 0), true, nil
}

// SaveExamStartedAt implements AttemptStore.
func (s *SQLite) SaveExamStartedAt(examCode string, studentID uuid.UUID, at time.Time) error {
	return s.set(startKey(examCode, studentID), strconv.FormatInt(at.Unix(), 10))
}

// Clear implements AttemptStore.
func (s *SQLite) Clear() error {
	_, err := s.db.Exec(`DELETE FROM attempt_kv`)
	return err
}
