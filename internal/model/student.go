package model

import (
	"time"

	"github.com/google/uuid"
)

// Student represents a student's attempt record as the gateway stores it.
type Student struct {
	ID                   uuid.UUID     `json:"id"`
	Name                 string        `json:"name"`
	ExamCode             string        `json:"exam_code"`
	Status               SessionStatus `json:"status"`
	CurrentQuestionIndex int           `json:"current_question_index"`
	Score                float64       `json:"score"`
	DetentionEndAt       *time.Time    `json:"detention_end_time,omitempty"`
}

// JoinExamRequest is the payload for a student joining an exam.
type JoinExamRequest struct {
	ExamCode    string `json:"exam_code" binding:"required,min=4,max=20"`
	StudentName string `json:"student_name" binding:"required,min=2,max=120"`
}

// UpdateStudentRequest patches a student's live record. Nil fields are left
// untouched; ClearDetention explicitly nulls detention_end_time because a
// nil pointer alone cannot distinguish "unset" from "clear".
type UpdateStudentRequest struct {
	Status               *SessionStatus `json:"status" binding:"omitempty,oneof=waiting active detention finished"`
	CurrentQuestionIndex *int           `json:"current_question_index" binding:"omitempty,min=0"`
	Score                *float64       `json:"score" binding:"omitempty,min=0"`
	DetentionEndAt       *time.Time     `json:"detention_end_time"`
	ClearDetention       bool           `json:"clear_detention"`
}
