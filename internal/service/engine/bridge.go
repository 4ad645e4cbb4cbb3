package engine

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"github.com/Taichi-iskw/yt-skip/internal/errors"
	"github.com/Taichi-iskw/yt-skip/internal/model"
	"github.com/Taichi-iskw/yt-skip/internal/nativemsg"
	"github.com/Taichi-iskw/yt-skip/internal/service/common"
	"github.com/Taichi-iskw/yt-skip/internal/service/prompt"
)

// BridgeConfig configures the native process bridge
type BridgeConfig struct {
	Command string
	Args    []string
	Model   string
	Timeout time.Duration
	Logger  *slog.Logger
}

// BridgeEngine spawns the native host for every job and exchanges one
// request/response frame pair with it over stdio
type BridgeEngine struct {
	*asyncEngine
	cmdRunner common.CmdRunner
	cfg       BridgeConfig
}

// NewBridgeEngine creates a BridgeEngine
func NewBridgeEngine(cmdRunner common.CmdRunner, cfg BridgeConfig) *BridgeEngine {
	e := &BridgeEngine{cmdRunner: cmdRunner, cfg: cfg}
	e.asyncEngine = newAsyncEngine("bridge", e.analyze, cfg.Timeout, cfg.Logger)
	return e
}

func (e *BridgeEngine) analyze(ctx context.Context, job Job) (model.Artifact, error) {
	frame, err := nativemsg.Encode(nativemsg.Request{
		Action: nativemsg.ActionAnalyze,
		Prompt: prompt.Build(job.VideoURL),
		Model:  e.cfg.Model,
	})
	if err != nil {
		return nil, err
	}

	output, err := e.cmdRunner.RunWithInput(ctx, frame, e.cfg.Command, e.cfg.Args...)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.Wrap(err, errors.CodeTimeout, "native host did not answer in time")
		}
		return nil, errors.Wrap(err, errors.CodeTransport, "native host failed")
	}

	var resp nativemsg.Response
	if err := nativemsg.ReadFrame(bytes.NewReader(output), &resp); err != nil {
		if errors.HasCode(err, errors.CodeMalformed) {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.CodeTransport, "native host closed without answering")
	}

	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "unknown error"
		}
		return nil, errors.Wrap(errors.New(errors.CodeEngine, msg), errors.CodeEngine, "native host reported an error")
	}

	return prompt.ExtractArtifact(string(resp.Data))
}

var _ Engine = (*BridgeEngine)(nil)
var _ ReporterSetter = (*BridgeEngine)(nil)
