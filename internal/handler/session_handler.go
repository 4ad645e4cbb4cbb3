package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	apperrors "github.com/Taichi-iskw/yt-skip/internal/errors"
	"github.com/Taichi-iskw/yt-skip/internal/service/notify"
)

var heartbeatInterval = 15 * time.Second

type sessionResponse struct {
	ID string `json:"id"`
}

// CreateSession registers a new observer. Messages are buffered until the
// event stream is opened; a session that is never streamed expires.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	session := notify.NewSession(uuid.NewString(), notify.DefaultSessionBuffer)
	h.Hub.Attach(session)

	h.logger().Debug("session created", "observer_id", session.ID())
	writeJSON(w, http.StatusCreated, sessionResponse{ID: session.ID()})
}

// CloseSession forgets a session; its open stream, if any, ends
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	session, ok := h.lookupSession(id)
	if !ok {
		h.writeError(w, apperrors.New(apperrors.CodeNotFound, "session not found"))
		return
	}
	h.Hub.Detach(id)
	session.Close()

	h.logger().Debug("session closed", "observer_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// SessionEvents streams the session's messages as server-sent events.
// Disconnecting keeps the session so the client can reconnect.
func (h *Handler) SessionEvents(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	session, ok := h.lookupSession(id)
	if !ok {
		h.writeError(w, apperrors.New(apperrors.CodeNotFound, "session not found"))
		return
	}
	if !session.Claim() {
		h.writeError(w, apperrors.New(apperrors.CodeConflict, "session is already being streamed"))
		return
	}
	defer func() {
		session.Unclaim()
		h.logger().Debug("session stream ended", "observer_id", id)
	}()

	flusher, ok := startStream(w)
	if !ok {
		h.writeError(w, apperrors.New(apperrors.CodeInternal, "streaming unsupported"))
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case msg, open := <-session.Messages():
			if !open {
				return
			}
			if err := writeEvent(w, msg); err != nil {
				h.logger().Debug("event write failed", "observer_id", id, "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

func (h *Handler) lookupSession(id string) (*notify.Session, bool) {
	observer, ok := h.Hub.Lookup(id)
	if !ok {
		return nil, false
	}
	session, ok := observer.(*notify.Session)
	return session, ok
}

func startStream(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return flusher, true
}

func writeEvent(w http.ResponseWriter, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
