package handler

import (
	"context"
	"net/http"

	apperrors "github.com/Taichi-iskw/yt-skip/internal/errors"
	"github.com/Taichi-iskw/yt-skip/internal/model"
	"github.com/Taichi-iskw/yt-skip/internal/service/coordinator"
)

// Analyze accepts an analysis request. The timeline is delivered later on
// the session's event stream.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req model.AnalyzeRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if _, ok := h.Hub.Lookup(req.SessionID); req.SessionID != "" && !ok {
		h.writeError(w, apperrors.New(apperrors.CodeNotFound, "session not found"))
		return
	}

	// a client hanging up must not turn the cache lookup into a miss
	outcome, err := h.Coordinator.RequestAnalysis(context.WithoutCancel(r.Context()), req.VideoID, req.VideoURL, req.SessionID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, model.AnalyzeAck{Status: "processing", Outcome: string(outcome)})
}

type statusResponse struct {
	Jobs      []coordinator.JobSnapshot `json:"jobs"`
	Observers int                       `json:"observers"`
}

// Status reports the coordinator queue
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	jobs := h.Coordinator.Snapshot()
	if jobs == nil {
		jobs = []coordinator.JobSnapshot{}
	}
	writeJSON(w, http.StatusOK, statusResponse{Jobs: jobs, Observers: h.Hub.Len()})
}
