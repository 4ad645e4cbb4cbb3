package handler

import (
	"net/http"

	"github.com/Taichi-iskw/yt-skip/internal/model"
)

// GetSettings returns the auto-skip preferences
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.Settings.Load(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// PutSettings replaces the auto-skip preferences
func (h *Handler) PutSettings(w http.ResponseWriter, r *http.Request) {
	var s model.Settings
	if err := decodeBody(w, r, &s); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.Settings.Save(r.Context(), s); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.WithDefaults())
}

type categoriesResponse struct {
	Ranged  []model.Category `json:"ranged"`
	Instant []model.Category `json:"instant"`
}

// Categories lists the segment categories; only ranged ones can be skipped
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, categoriesResponse{
		Ranged:  model.RangedCategories,
		Instant: model.InstantCategories,
	})
}
