package gatewayd

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/integrityguard/examsession/internal/model"
	"github.com/rs/zerolog"
)

const (
	writeTimeout = 10 * time.Second
	readTimeout  = 5 * time.Minute
)

// subscriber wraps one WebSocket connection with a write lock so broadcasts
// from different goroutines never interleave frames.
type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *subscriber) send(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(v)
}

// Hub fans record changes out to stream subscribers. Every exam start and
// student update is pushed as the full record; subscribers that fail a write
// are dropped and left to reconnect.
type Hub struct {
	mu             sync.Mutex
	examStreams    map[uuid.UUID]map[*subscriber]struct{}
	studentStreams map[uuid.UUID]map[*subscriber]struct{}
	log            zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		examStreams:    make(map[uuid.UUID]map[*subscriber]struct{}),
		studentStreams: make(map[uuid.UUID]map[*subscriber]struct{}),
		log:            log.With().Str("component", "gateway_hub").Logger(),
	}
}

// ServeExamStream registers conn for exam record pushes and blocks until the
// peer disconnects. The caller closes conn afterwards.
func (h *Hub) ServeExamStream(examID uuid.UUID, conn *websocket.Conn) {
	h.serve(h.examStreams, examID, conn)
}

// ServeStudentStream registers conn for student record pushes and blocks
// until the peer disconnects.
func (h *Hub) ServeStudentStream(studentID uuid.UUID, conn *websocket.Conn) {
	h.serve(h.studentStreams, studentID, conn)
}

func (h *Hub) serve(streams map[uuid.UUID]map[*subscriber]struct{}, id uuid.UUID, conn *websocket.Conn) {
	sub := &subscriber{conn: conn}

	h.mu.Lock()
	if streams[id] == nil {
		streams[id] = make(map[*subscriber]struct{})
	}
	streams[id][sub] = struct{}{}
	h.mu.Unlock()

	// Subscribers never send payloads; this read pump only detects the
	// close and keeps control frames flowing.
	for {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	delete(streams[id], sub)
	if len(streams[id]) == 0 {
		delete(streams, id)
	}
	h.mu.Unlock()
}

// BroadcastExam pushes the exam record to every exam stream subscriber.
func (h *Hub) BroadcastExam(exam *model.Exam) {
	h.broadcast(h.examStreams, exam.ID, exam)
}

// BroadcastStudent pushes the student record to every student stream
// subscriber.
func (h *Hub) BroadcastStudent(student *model.Student) {
	h.broadcast(h.studentStreams, student.ID, student)
}

func (h *Hub) broadcast(streams map[uuid.UUID]map[*subscriber]struct{}, id uuid.UUID, v interface{}) {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(streams[id]))
	for sub := range streams[id] {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		if err := sub.send(v); err != nil {
			h.log.Debug().Err(err).Stringer("id", id).Msg("dropping stream subscriber")
			sub.conn.Close()
		}
	}
}
