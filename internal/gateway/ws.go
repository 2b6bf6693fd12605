package gateway

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/integrityguard/examsession/internal/model"
)

const (
	wsHandshakeTimeout = 10 * time.Second
	wsReadTimeout      = 5 * time.Minute
)

// wsURL rewrites the HTTP base URL for a WebSocket dial.
func (c *Client) wsURL(path string) string {
	base := c.baseURL
	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + path
}

// subscribe dials a push stream and pumps decoded messages to deliver until
// the connection drops, the context ends, or the unsubscribe fires. Messages
// are delivered in receipt order from a single goroutine.
func (c *Client) subscribe(ctx context.Context, path string, deliver func([]byte)) (Unsubscribe, error) {
	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.wsURL(path), nil)
	if err != nil {
		return nil, err
	}

	var once sync.Once
	stop := func() {
		once.Do(func() { conn.Close() })
	}

	go func() {
		// Close when the caller's context ends even if no message arrives.
		<-ctx.Done()
		stop()
	}()

	go func() {
		defer stop()
		for {
			conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
			_, raw, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					c.log.Warn().Err(err).Str("path", path).Msg("push stream closed unexpectedly")
				}
				return
			}
			deliver(raw)
		}
	}()

	return stop, nil
}

// SubscribeExam implements Gateway.
func (c *Client) SubscribeExam(ctx context.Context, examID uuid.UUID, onChange func(*model.Exam)) (Unsubscribe, error) {
	return c.subscribe(ctx, "/ws/v1/exams/"+examID.String()+"/stream", func(raw []byte) {
		var exam model.Exam
		if err := json.Unmarshal(raw, &exam); err != nil {
			c.log.Warn().Err(err).Msg("discarding malformed exam push")
			return
		}
		onChange(&exam)
	})
}

// SubscribeStudent implements Gateway.
func (c *Client) SubscribeStudent(ctx context.Context, studentID uuid.UUID, onChange func(*model.Student)) (Unsubscribe, error) {
	return c.subscribe(ctx, "/ws/v1/students/"+studentID.String()+"/stream", func(raw []byte) {
		var student model.Student
		if err := json.Unmarshal(raw, &student); err != nil {
			c.log.Warn().Err(err).Msg("discarding malformed student push")
			return
		}
		onChange(&student)
	})
}
