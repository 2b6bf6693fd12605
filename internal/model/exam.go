package model

import (
	"github.com/google/uuid"
)

// Exam represents an exam record as seen by a student client. The entry
// code doubles as the join credential, so there is no separate token.
type Exam struct {
	ID               uuid.UUID `json:"id"`
	Code             string    `json:"code"`
	Title            string    `json:"title"`
	TimeLimitMinutes int       `json:"time_limit_minutes"`
	Live             bool      `json:"live"`
}

// CreateExamRequest is the payload for a teacher creating an exam.
type CreateExamRequest struct {
	Code             string                `json:"code" binding:"required,min=4,max=20"`
	Title            string                `json:"title" binding:"required,min=3,max=255"`
	TimeLimitMinutes int                   `json:"time_limit_minutes" binding:"required,min=1,max=480"`
	Questions        []CreateQuestionInput `json:"questions" binding:"required,min=1,dive"`
}

// StartExamRequest optionally overrides the time limit at start.
type StartExamRequest struct {
	TimeLimitMinutes *int `json:"time_limit_minutes" binding:"omitempty,min=1,max=480"`
}
