package gatewayd

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/integrityguard/examsession/internal/model"
	"github.com/integrityguard/examsession/internal/response"
	"github.com/integrityguard/examsession/internal/validator"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// Handler exposes the gateway API over HTTP and WebSocket.
type Handler struct {
	state    *State
	hub      *Hub
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewHandler creates a Handler over the given state and hub.
func NewHandler(state *State, hub *Hub, log zerolog.Logger, allowedOrigins []string) *Handler {
	return &Handler{
		state:    state,
		hub:      hub,
		upgrader: buildUpgrader(allowedOrigins),
		log:      log.With().Str("component", "gateway_handler").Logger(),
	}
}

// fail maps state errors onto the response envelope.
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, ErrCodeTaken):
		response.Fail(c, http.StatusConflict, response.ErrConflict)
	case errors.Is(err, ErrBadAnswerKey):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrValidation)
	case errors.Is(err, ErrUnknownQuestion):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrUnknownQuestion)
	case errors.Is(err, ErrExamNotLive):
		response.Fail(c, http.StatusConflict, response.ErrExamNotLive)
	case errors.Is(err, ErrNoQuestions):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrNoQuestions)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// CreateExam godoc
// POST /api/v1/exams
func (h *Handler) CreateExam(c *gin.Context) {
	var req model.CreateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusUnprocessableEntity, response.ErrValidation, fields)
		return
	}

	exam, err := h.state.CreateExam(req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"exam": exam})
}

// StartExam godoc
// POST /api/v1/exams/:exam/start
func (h *Handler) StartExam(c *gin.Context) {
	var req model.StartExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusUnprocessableEntity, response.ErrValidation, fields)
		return
	}

	exam, err := h.state.StartExam(c.Param("exam"), req)
	if err != nil {
		fail(c, err)
		return
	}
	h.hub.BroadcastExam(exam)
	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// GetExam godoc
// GET /api/v1/exams/:exam  (entry code or exam ID)
func (h *Handler) GetExam(c *gin.Context) {
	exam, err := h.state.Exam(c.Param("exam"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// ListQuestions godoc
// GET /api/v1/exams/:exam/questions
func (h *Handler) ListQuestions(c *gin.Context) {
	questions, err := h.state.Questions(c.Param("exam"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}

// Roster godoc
// GET /api/v1/exams/:exam/students
func (h *Handler) Roster(c *gin.Context) {
	students, err := h.state.Roster(c.Param("exam"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"students": students})
}

// JoinExam godoc
// POST /api/v1/students
func (h *Handler) JoinExam(c *gin.Context) {
	var req model.JoinExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusUnprocessableEntity, response.ErrValidation, fields)
		return
	}

	student, err := h.state.Join(req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"student": student})
}

// GetStudent godoc
// GET /api/v1/students/:id
func (h *Handler) GetStudent(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	student, err := h.state.Student(id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"student": student})
}

// UpdateStudent godoc
// PATCH /api/v1/students/:id
func (h *Handler) UpdateStudent(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var patch model.UpdateStudentRequest
	if fields := validator.Bind(c, &patch); fields != nil {
		response.FailWithFields(c, http.StatusUnprocessableEntity, response.ErrValidation, fields)
		return
	}

	student, err := h.state.UpdateStudent(id, patch)
	if err != nil {
		fail(c, err)
		return
	}
	h.hub.BroadcastStudent(student)
	response.Success(c, http.StatusOK, gin.H{"student": student})
}

// SubmitAnswer godoc
// POST /api/v1/students/:id/answers
func (h *Handler) SubmitAnswer(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SubmitAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusUnprocessableEntity, response.ErrValidation, fields)
		return
	}

	result, student, err := h.state.SubmitAnswer(id, req)
	if err != nil {
		fail(c, err)
		return
	}
	h.hub.BroadcastStudent(student)
	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// ExamStream godoc
// WS /ws/v1/exams/:exam/stream
// Pushes the full exam record on every change, starting with the current
// snapshot so a client that connects mid-change misses nothing.
func (h *Handler) ExamStream(c *gin.Context) {
	exam, err := h.state.Exam(c.Param("exam"))
	if err != nil {
		fail(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	sub := &subscriber{conn: conn}
	if err := sub.send(exam); err != nil {
		return
	}
	h.hub.ServeExamStream(exam.ID, conn)
}

// StudentStream godoc
// WS /ws/v1/students/:id/stream
func (h *Handler) StudentStream(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	student, err := h.state.Student(id)
	if err != nil {
		fail(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	sub := &subscriber{conn: conn}
	if err := sub.send(student); err != nil {
		return
	}
	h.hub.ServeStudentStream(student.ID, conn)
}
