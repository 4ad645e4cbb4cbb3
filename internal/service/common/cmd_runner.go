package common

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Process represents a running process
type Process interface {
	Wait() error
	Kill() error
}

// CmdRunner is interface for executing external commands
type CmdRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
	// RunWithInput writes input to the command's stdin, closes it and returns stdout
	RunWithInput(ctx context.Context, input []byte, name string, args ...string) ([]byte, error)
	Start(ctx context.Context, name string, args ...string) (Process, error)
}

// realCmdRunner implements CmdRunner using os/exec
type realCmdRunner struct{}

// NewCmdRunner creates a new CmdRunner
func NewCmdRunner() CmdRunner {
	return &realCmdRunner{}
}

// processWrapper wraps exec.Cmd to implement Process interface
type processWrapper struct {
	cmd *exec.Cmd
}

func (p *processWrapper) Wait() error {
	return p.cmd.Wait()
}

func (p *processWrapper) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

// Run executes external command with given arguments
func (r *realCmdRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		return output, withStderr(err, stderr.String())
	}
	return output, nil
}

// RunWithInput executes external command feeding input on stdin
func (r *realCmdRunner) RunWithInput(ctx context.Context, input []byte, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(input)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		return output, withStderr(err, stderr.String())
	}
	return output, nil
}

// Start starts external command and returns Process for management
func (r *realCmdRunner) Start(ctx context.Context, name string, args ...string) (Process, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &processWrapper{cmd: cmd}, nil
}

// withStderr attaches the command's stderr to err when there is any
func withStderr(err error, stderr string) error {
	stderr = strings.TrimSpace(stderr)
	if stderr == "" {
		return err
	}
	return fmt.Errorf("%w: %s", err, stderr)
}
