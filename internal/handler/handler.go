// Package handler exposes the coordinator to player tabs and the automation
// surface over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	apperrors "github.com/Taichi-iskw/yt-skip/internal/errors"
	"github.com/Taichi-iskw/yt-skip/internal/model"
	"github.com/Taichi-iskw/yt-skip/internal/service/cache"
	"github.com/Taichi-iskw/yt-skip/internal/service/coordinator"
	"github.com/Taichi-iskw/yt-skip/internal/service/engine"
	"github.com/Taichi-iskw/yt-skip/internal/service/notify"
	"github.com/Taichi-iskw/yt-skip/internal/service/settings"
)

// Coordinator is the part of the coordinator the HTTP surface uses
type Coordinator interface {
	RequestAnalysis(ctx context.Context, videoID model.VideoID, videoURL, observerID string) (coordinator.Outcome, error)
	Snapshot() []coordinator.JobSnapshot
}

// Automation is the automation engine's surface-facing side
type Automation interface {
	Attach(id string) *engine.Surface
	Detach(ctx context.Context, id string)
	HandleMessage(ctx context.Context, msg engine.Inbound) error
}

// Handler serves the HTTP API
type Handler struct {
	Coordinator Coordinator
	Cache       cache.Cache
	Settings    settings.Service
	Hub         *notify.Hub
	// Automation is nil unless the automation engine is configured
	Automation Automation
	Logger     *slog.Logger
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

// Router builds the API routes
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/sessions", h.CreateSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}", h.CloseSession).Methods(http.MethodDelete)
	api.HandleFunc("/sessions/{id}/events", h.SessionEvents).Methods(http.MethodGet)
	api.HandleFunc("/analyze", h.Analyze).Methods(http.MethodPost)
	api.HandleFunc("/status", h.Status).Methods(http.MethodGet)
	api.HandleFunc("/cache", h.ClearCache).Methods(http.MethodDelete)
	api.HandleFunc("/cache/{videoId}", h.GetCached).Methods(http.MethodGet)
	api.HandleFunc("/cache/{videoId}/skip", h.SkipAt).Methods(http.MethodGet)
	api.HandleFunc("/categories", h.Categories).Methods(http.MethodGet)
	api.HandleFunc("/settings", h.GetSettings).Methods(http.MethodGet)
	api.HandleFunc("/settings", h.PutSettings).Methods(http.MethodPut)

	if h.Automation != nil {
		api.HandleFunc("/engine/events", h.EngineEvents).Methods(http.MethodGet)
		api.HandleFunc("/engine/messages", h.EngineMessage).Methods(http.MethodPost)
	}

	return r
}

// Wrap adds CORS and access logging around next
func Wrap(next http.Handler, allowedOrigins []string, accessLog io.Writer) http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins(allowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)
	return handlers.LoggingHandler(accessLog, cors(next))
}

// Health reports liveness
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		h.logger().Error("request failed", "code", code, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: apperrors.UserMessage(err), Code: code})
}

func statusFor(code string) int {
	switch code {
	case apperrors.CodeInvalidArg:
		return http.StatusBadRequest
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	case apperrors.CodeConflict:
		return http.StatusConflict
	case apperrors.CodeTransport, apperrors.CodeExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return apperrors.Wrap(err, apperrors.CodeInvalidArg, "invalid JSON body")
	}
	return nil
}
