// Package host implements the native messaging host the bridge engine talks to.
package host

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/Taichi-iskw/yt-skip/internal/errors"
	"github.com/Taichi-iskw/yt-skip/internal/nativemsg"
)

// DefaultModel is used when a request names none
const DefaultModel = "pro"

// Host answers native messaging requests read from r on w
type Host struct {
	analyzer Analyzer
	logger   *slog.Logger
}

// New creates a Host
func New(analyzer Analyzer, logger *slog.Logger) *Host {
	if logger == nil {
		logger = slog.Default()
	}
	return &Host{analyzer: analyzer, logger: logger.With("component", "host")}
}

// Serve handles requests until r is exhausted. A clean end of input returns nil.
func (h *Host) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	h.logger.Info("native host started")
	for {
		var req nativemsg.Request
		err := nativemsg.ReadFrame(r, &req)
		if err == io.EOF {
			h.logger.Info("input closed, exiting")
			return nil
		}
		if err != nil {
			if !errors.HasCode(err, errors.CodeMalformed) {
				return err
			}
			h.logger.Warn("malformed request", "error", err)
			if err := nativemsg.WriteFrame(w, nativemsg.Response{Success: false, Error: errors.UserMessage(err)}); err != nil {
				return err
			}
			continue
		}

		h.logger.Info("request received", "action", req.Action)
		if err := nativemsg.WriteFrame(w, h.handle(ctx, req)); err != nil {
			return err
		}
	}
}

func (h *Host) handle(ctx context.Context, req nativemsg.Request) nativemsg.Response {
	switch req.Action {
	case nativemsg.ActionPing:
		return nativemsg.Response{Success: true, Status: "ok"}

	case nativemsg.ActionAnalyze:
		modelName := req.Model
		if modelName == "" {
			modelName = DefaultModel
		}
		artifact, err := h.analyzer.Analyze(ctx, req.Prompt, modelName)
		if err != nil {
			h.logger.Error("analysis failed", "model", modelName, "error", err)
			return nativemsg.Response{Success: false, Error: errors.UserMessage(err)}
		}
		data, err := json.Marshal(artifact)
		if err != nil {
			return nativemsg.Response{Success: false, Error: err.Error()}
		}
		return nativemsg.Response{Success: true, Data: data}

	default:
		return nativemsg.Response{Success: false, Error: fmt.Sprintf("Unknown action: %s", req.Action)}
	}
}
