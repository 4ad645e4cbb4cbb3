package host

import (
	"context"

	"github.com/Taichi-iskw/yt-skip/internal/errors"
	"github.com/Taichi-iskw/yt-skip/internal/model"
	"github.com/Taichi-iskw/yt-skip/internal/service/common"
	"github.com/Taichi-iskw/yt-skip/internal/service/prompt"
)

// Analyzer answers one analyze request
type Analyzer interface {
	Analyze(ctx context.Context, text, modelName string) (model.Artifact, error)
}

// CLIAnalyzer runs an AI command line client as `<command> -m <model> -p <prompt>`
type CLIAnalyzer struct {
	cmdRunner common.CmdRunner
	command   string
}

// NewCLIAnalyzer creates a CLIAnalyzer
func NewCLIAnalyzer(cmdRunner common.CmdRunner, command string) *CLIAnalyzer {
	return &CLIAnalyzer{cmdRunner: cmdRunner, command: command}
}

func (a *CLIAnalyzer) Analyze(ctx context.Context, text, modelName string) (model.Artifact, error) {
	args := []string{"-p", text}
	if modelName != "" {
		args = append([]string{"-m", modelName}, args...)
	}

	output, err := a.cmdRunner.Run(ctx, a.command, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeEngine, a.command+" failed")
	}
	return prompt.ExtractArtifact(string(output))
}
