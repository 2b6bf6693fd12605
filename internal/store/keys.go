package store

import (
	"fmt"

	"github.com/google/uuid"
)

// Key names shared by every AttemptStore implementation. Identity keys are
// fixed; order and anchor keys are scoped per attempt so switching exams on
// the same device cannot replay a stale order.
const (
	keyStudentID   = "active_student_id"
	keyExamCode    = "active_exam_code"
	keyStudentName = "active_student_name"
)

func orderKey(examCode, studentName string) string {
	return fmt.Sprintf("order:%s:%s", examCode, studentName)
}

func startKey(examCode string, studentID uuid.UUID) string {
	return fmt.Sprintf("exam_start:%s:%s", examCode, studentID)
}
