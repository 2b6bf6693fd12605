package model

import (
	"github.com/google/uuid"
)

// Question is a single exam question as delivered to students. The correct
// answer never appears here; grading happens inside the gateway.
type Question struct {
	ID      uuid.UUID `json:"id"`
	Text    string    `json:"text"`
	Options []string  `json:"options"`
}

// OptionLetter returns the display letter (A, B, C, ...) for an option by
// position, or "" when the index is out of range.
func OptionLetter(index int) string {
	if index < 0 || index >= 26 {
		return ""
	}
	return string(rune('A' + index))
}

// CreateQuestionInput is one question inside a CreateExamRequest. The
// correct letter stays on the gateway side and is stripped from every
// student-facing payload.
type CreateQuestionInput struct {
	Text          string   `json:"text" binding:"required,min=1,max=2000"`
	Options       []string `json:"options" binding:"required,min=2,max=26,dive,min=1"`
	CorrectLetter string   `json:"correct_letter" binding:"required,len=1,alpha"`
}

// SubmitAnswerRequest is the payload for submitting one answer letter.
type SubmitAnswerRequest struct {
	ExamID         uuid.UUID `json:"exam_id" binding:"required"`
	QuestionID     uuid.UUID `json:"question_id" binding:"required"`
	SelectedLetter string    `json:"selected_letter" binding:"required,len=1,alpha"`
}
