package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Taichi-iskw/yt-skip/internal/service/engine"
)

// EngineEvents attaches the automation surface and streams commands to it
func (h *Handler) EngineEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := startStream(w)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	id := uuid.NewString()
	surface := h.Automation.Attach(id)
	defer h.Automation.Detach(context.WithoutCancel(r.Context()), id)

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case cmd, open := <-surface.Commands():
			if !open {
				// replaced by a newer surface
				return
			}
			if err := writeEvent(w, cmd); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// EngineMessage receives results and signals from the automation surface
func (h *Handler) EngineMessage(w http.ResponseWriter, r *http.Request) {
	var msg engine.Inbound
	if err := decodeBody(w, r, &msg); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.Automation.HandleMessage(r.Context(), msg); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
