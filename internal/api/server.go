// Package api exposes the pipeline over HTTP JSON endpoints and a WebSocket
// job status stream.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lexiqai/lecture-notes/internal/audio"
	"github.com/lexiqai/lecture-notes/internal/lecture"
	"github.com/lexiqai/lecture-notes/internal/observability"
	"github.com/lexiqai/lecture-notes/internal/pipeline"
	"github.com/lexiqai/lecture-notes/internal/transcription"
)

const (
	headerCorrelationID = "X-Correlation-ID"
	// The fronting auth layer sets the authenticated user on every request
	headerUserID = "X-User-ID"

	maxBodyBytes = 4 << 20
)

// Handler serves the pipeline API
type Handler struct {
	svc      *pipeline.Service
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates the API handler
func NewHandler(svc *pipeline.Service, logger zerolog.Logger) *Handler {
	return &Handler{
		svc:    svc,
		logger: logger.With().Str("component", "api").Logger(),
		upgrader: websocket.Upgrader{
			// Browser clients connect from the app origin; auth is enforced upstream
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

// Register mounts every route on mux
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/transcriptions", h.withRequest(h.startTranscription))
	mux.HandleFunc("GET /api/transcriptions/{jobId}", h.withRequest(h.getStatus))
	mux.HandleFunc("GET /api/lectures/{id}", h.withRequest(h.getLecture))
	mux.HandleFunc("POST /api/lectures/{id}/complete", h.withRequest(h.complete))
	mux.HandleFunc("POST /api/lectures/{id}/regenerate", h.withRequest(h.regenerate))
	mux.HandleFunc("PUT /api/lectures/{id}/notes", h.withRequest(h.editNotes))
	mux.HandleFunc("GET /ws/transcriptions/{jobId}", h.withRequest(h.streamStatus))
}

// withRequest attaches a correlation id and a request logger to the context
func (h *Handler) withRequest(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get(headerCorrelationID)
		if correlationID == "" {
			correlationID = observability.NewCorrelationID()
		}
		w.Header().Set(headerCorrelationID, correlationID)

		logger := h.logger.With().
			Str("correlation_id", correlationID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Logger()
		next(w, r.WithContext(logger.WithContext(r.Context())))
	}
}

func ownerID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(headerUserID))
}

// decodeJSON reads an optional JSON body; an empty body leaves v untouched
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps pipeline errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrMissingAudioURL),
		errors.Is(err, pipeline.ErrMissingJobID),
		errors.Is(err, pipeline.ErrMissingLectureID),
		errors.Is(err, pipeline.ErrMissingTranscript),
		errors.Is(err, pipeline.ErrInvalidMode),
		errors.Is(err, audio.ErrInvalidResource),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, errUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, lecture.ErrNotFound),
		errors.Is(err, transcription.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, audio.ErrTimeout),
		errors.Is(err, pipeline.ErrPollTimeout):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// errorMessage passes provider messages through unchanged
func errorMessage(err error) string {
	var perr *transcription.ProviderError
	if errors.As(err, &perr) {
		return perr.Message
	}
	return err.Error()
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	logger := zerolog.Ctx(r.Context())
	if code >= http.StatusInternalServerError {
		logger.Error().Err(err).Int("status", code).Msg("Request failed")
	} else {
		logger.Debug().Err(err).Int("status", code).Msg("Request rejected")
	}
	writeJSON(w, code, errorResponse{Error: errorMessage(err)})
}
