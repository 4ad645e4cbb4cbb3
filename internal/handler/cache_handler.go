package handler

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	apperrors "github.com/Taichi-iskw/yt-skip/internal/errors"
	"github.com/Taichi-iskw/yt-skip/internal/model"
)

// ClearCache removes every cached timeline
func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	removed, err := h.Cache.ClearAll(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// GetCached returns the cached timeline of one video
func (h *Handler) GetCached(w http.ResponseWriter, r *http.Request) {
	videoID := model.VideoID(mux.Vars(r)["videoId"])
	artifact, ok := h.Cache.Get(r.Context(), videoID)
	if !ok {
		h.writeError(w, apperrors.New(apperrors.CodeNotFound, "no cached timeline for video"))
		return
	}
	writeJSON(w, http.StatusOK, model.NewTimingsReady(videoID, artifact))
}

// SkipAt tells a player whether position t of the video falls inside a
// segment the user skips automatically
func (h *Handler) SkipAt(w http.ResponseWriter, r *http.Request) {
	videoID := model.VideoID(mux.Vars(r)["videoId"])
	if err := videoID.Validate(); err != nil {
		h.writeError(w, err)
		return
	}
	position, err := strconv.ParseFloat(r.URL.Query().Get("t"), 64)
	if err != nil || position < 0 {
		h.writeError(w, apperrors.New(apperrors.CodeInvalidArg, "query parameter t must be a non-negative number of seconds"))
		return
	}

	artifact, ok := h.Cache.Get(r.Context(), videoID)
	if !ok {
		h.writeError(w, apperrors.New(apperrors.CodeNotFound, "no cached timeline for video"))
		return
	}
	prefs, err := h.Settings.Load(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.DecideSkip(artifact, prefs, position))
}
