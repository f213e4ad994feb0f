package api

import (
	"errors"
	"net/http"

	"github.com/lexiqai/lecture-notes/internal/lecture"
	"github.com/lexiqai/lecture-notes/internal/pipeline"
)

var (
	errBadRequest      = errors.New("invalid request body")
	errUnauthenticated = errors.New("missing authenticated user")
)

type startRequest struct {
	AudioURL     string `json:"audioUrl"`
	LectureID    string `json:"lectureId,omitempty"`
	PreferUpload *bool  `json:"preferUpload,omitempty"`
}

type startResponse struct {
	JobID string `json:"jobId"`
}

func (h *Handler) startTranscription(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	owner := ownerID(r)
	if req.LectureID != "" && owner == "" {
		h.writeError(w, r, errUnauthenticated)
		return
	}

	preferUpload := true
	if req.PreferUpload != nil {
		preferUpload = *req.PreferUpload
	}

	jobID, err := h.svc.StartTranscription(r.Context(), pipeline.StartRequest{
		OwnerID:      owner,
		AudioURL:     req.AudioURL,
		LectureID:    req.LectureID,
		PreferUpload: preferUpload,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, startResponse{JobID: jobID})
}

func (h *Handler) getStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.GetStatus(r.Context(), r.PathValue("jobId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) getLecture(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		h.writeError(w, r, errUnauthenticated)
		return
	}
	l, err := h.svc.Store().Get(r.Context(), owner, r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

type completeRequest struct {
	Transcript string              `json:"transcript"`
	Utterances []lecture.Utterance `json:"utterances,omitempty"`
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		h.writeError(w, r, errUnauthenticated)
		return
	}
	var req completeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.svc.CompleteAndSynthesize(r.Context(), pipeline.CompleteRequest{
		OwnerID:    owner,
		LectureID:  r.PathValue("id"),
		Transcript: req.Transcript,
		Utterances: req.Utterances,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type regenerateRequest struct {
	Mode string `json:"mode,omitempty"`
}

func (h *Handler) regenerate(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		h.writeError(w, r, errUnauthenticated)
		return
	}
	var req regenerateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	mode, err := pipeline.ParseMode(req.Mode)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.svc.RegenerateNotes(r.Context(), pipeline.RegenerateRequest{
		OwnerID:   owner,
		LectureID: r.PathValue("id"),
		Mode:      mode,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type editNotesRequest struct {
	Notes *string `json:"notes"`
}

func (h *Handler) editNotes(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		h.writeError(w, r, errUnauthenticated)
		return
	}
	var req editNotesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Notes == nil {
		h.writeError(w, r, errors.Join(errBadRequest, errors.New("missing notes")))
		return
	}

	l, err := h.svc.EditNotes(r.Context(), owner, r.PathValue("id"), *req.Notes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}
