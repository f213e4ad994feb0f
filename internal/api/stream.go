package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lexiqai/lecture-notes/internal/pipeline"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// StreamMessage is one frame pushed to a status stream client
type StreamMessage struct {
	Type   string                   `json:"type"` // status, completed, error
	Status *pipeline.Status         `json:"status,omitempty"`
	Result *pipeline.CompleteResult `json:"result,omitempty"`
	Error  string                   `json:"error,omitempty"`
}

// statusStream is one WebSocket client watching a job
type statusStream struct {
	conn   *websocket.Conn
	mu     sync.Mutex // serializes writes
	logger zerolog.Logger
}

func (s *statusStream) send(msg StreamMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(msg)
}

func (s *statusStream) ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// readLoop drains client frames and cancels the watch when the socket closes
func (s *statusStream) readLoop(cancel context.CancelFunc) {
	defer cancel()
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}
	}
}

// streamStatus polls a job for the connected client. With a lectureId query
// parameter and an authenticated user, a terminal status is applied to the
// lecture before the socket closes.
func (h *Handler) streamStatus(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("jobId")
	lectureID := r.URL.Query().Get("lectureId")
	owner := ownerID(r)
	if lectureID != "" && owner == "" {
		h.writeError(w, r, errUnauthenticated)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("Failed to upgrade connection to WebSocket")
		return
	}
	defer conn.Close()

	logger := zerolog.Ctx(r.Context()).With().Str("job_id", jobID).Str("lecture_id", lectureID).Logger()
	stream := &statusStream{conn: conn, logger: logger}
	logger.Info().Msg("Status stream opened")

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()
	go stream.readLoop(cancel)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := stream.ping(); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	st, err := h.svc.WatchJob(ctx, jobID, func(st *pipeline.Status) error {
		return stream.send(StreamMessage{Type: "status", Status: st})
	})

	var jobErr *pipeline.JobFailedError
	switch {
	case errors.Is(err, context.Canceled):
		logger.Info().Msg("Status stream closed by client, polling stopped")
		return
	case err != nil && !errors.As(err, &jobErr):
		stream.send(StreamMessage{Type: "error", Error: errorMessage(err)})
		stream.close()
		return
	}

	msg := StreamMessage{Type: "completed", Status: st}
	if lectureID != "" {
		// The lecture is finalized even if the client leaves mid-synthesis
		res, ferr := h.svc.Finalize(context.WithoutCancel(ctx), owner, lectureID, st)
		if ferr != nil && !errors.As(ferr, &jobErr) {
			logger.Error().Err(ferr).Msg("Failed to finalize lecture from status stream")
			msg = StreamMessage{Type: "error", Status: st, Error: errorMessage(ferr)}
		}
		msg.Result = res
	}
	if jobErr != nil {
		msg.Type = "error"
		msg.Error = jobErr.Message
	}
	stream.send(msg)
	stream.close()
}

func (s *statusStream) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}
