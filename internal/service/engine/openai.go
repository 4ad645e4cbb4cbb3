package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/Taichi-iskw/yt-skip/internal/model"
	"github.com/Taichi-iskw/yt-skip/internal/service/prompt"
)

// TextAnalyzer turns a prompt into an artifact in one blocking call
type TextAnalyzer interface {
	Analyze(ctx context.Context, text, modelName string) (model.Artifact, error)
}

// ChatEngine sends every job to a chat model through a TextAnalyzer
type ChatEngine struct {
	*asyncEngine
	analyzer TextAnalyzer
	model    string
}

// NewChatEngine creates a ChatEngine. timeout bounds each request.
func NewChatEngine(analyzer TextAnalyzer, modelName string, timeout time.Duration, logger *slog.Logger) *ChatEngine {
	e := &ChatEngine{analyzer: analyzer, model: modelName}
	e.asyncEngine = newAsyncEngine("openai", e.analyze, timeout, logger)
	return e
}

func (e *ChatEngine) analyze(ctx context.Context, job Job) (model.Artifact, error) {
	return e.analyzer.Analyze(ctx, prompt.Build(job.VideoURL), e.model)
}

var _ Engine = (*ChatEngine)(nil)
