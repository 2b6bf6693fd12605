package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/integrityguard/examsession/internal/model"
	"github.com/rs/zerolog"
)

// Client talks to a gateway server over HTTP for record operations and
// WebSocket for push subscriptions. It decodes the standard response
// envelope the server wraps every payload in.
type Client struct {
	baseURL string
	httpc   *http.Client
	log     zerolog.Logger
}

// NewClient creates a gateway client for the server at baseURL
// (e.g. "http://localhost:8080").
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: 10 * time.Second},
		log:     log.With().Str("component", "gateway_client").Logger(),
	}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%s %s: decode envelope: %w", method, path, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode >= 400 {
		if env.Error != nil {
			return fmt.Errorf("%s %s: %s (%s)", method, path, env.Error.Message, env.Error.Code)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%s %s: decode data: %w", method, path, err)
		}
	}
	return nil
}

// JoinExam implements Gateway.
func (c *Client) JoinExam(ctx context.Context, examCode, studentName string) (*model.Student, error) {
	var out struct {
		Student *model.Student `json:"student"`
	}
	req := model.JoinExamRequest{ExamCode: examCode, StudentName: studentName}
	if err := c.do(ctx, http.MethodPost, "/api/v1/students", req, &out); err != nil {
		return nil, err
	}
	return out.Student, nil
}

// StudentAttempt implements Gateway.
func (c *Client) StudentAttempt(ctx context.Context, studentID uuid.UUID) (*model.Student, error) {
	var out struct {
		Student *model.Student `json:"student"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/students/"+studentID.String(), nil, &out); err != nil {
		return nil, err
	}
	return out.Student, nil
}

// ExamByCode implements Gateway.
func (c *Client) ExamByCode(ctx context.Context, code string) (*model.Exam, error) {
	var out struct {
		Exam *model.Exam `json:"exam"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/exams/"+code, nil, &out); err != nil {
		return nil, err
	}
	return out.Exam, nil
}

// Questions implements Gateway.
func (c *Client) Questions(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	var out struct {
		Questions []model.Question `json:"questions"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/exams/"+examID.String()+"/questions", nil, &out); err != nil {
		return nil, err
	}
	return out.Questions, nil
}

// SubmitAnswer implements Gateway.
func (c *Client) SubmitAnswer(ctx context.Context, studentID, examID, questionID uuid.UUID, selectedLetter string) (SubmitResult, error) {
	var out struct {
		Result SubmitResult `json:"result"`
	}
	req := model.SubmitAnswerRequest{
		ExamID:         examID,
		QuestionID:     questionID,
		SelectedLetter: selectedLetter,
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/students/"+studentID.String()+"/answers", req, &out); err != nil {
		return "", err
	}
	return out.Result, nil
}

// UpdateStudent implements Gateway.
func (c *Client) UpdateStudent(ctx context.Context, studentID uuid.UUID, patch model.UpdateStudentRequest) error {
	return c.do(ctx, http.MethodPatch, "/api/v1/students/"+studentID.String(), patch, nil)
}
