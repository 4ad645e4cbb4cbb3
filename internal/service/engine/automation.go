package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Taichi-iskw/yt-skip/internal/errors"
	"github.com/Taichi-iskw/yt-skip/internal/model"
	"github.com/Taichi-iskw/yt-skip/internal/service/common"
	"github.com/Taichi-iskw/yt-skip/internal/service/prompt"
)

// Commands pushed to the automation surface
const ActionStartAnalysis = "start_analysis"

// Messages sent by the automation surface
const (
	ActionAnalysisResult = "analysis_result"
	ActionAnalysisError  = "analysis_error"
	ActionEngineReady    = "engine_ready"
)

const defaultSurfaceBuffer = 4

// Command is pushed to the automation surface
type Command struct {
	Action   string        `json:"action"`
	VideoID  model.VideoID `json:"videoId"`
	VideoURL string        `json:"videoUrl"`
	Prompt   string        `json:"prompt"`
	Attempt  string        `json:"attempt,omitempty"`
}

// Inbound is a message from the automation surface. On analysis_result
// either Timings or the raw answer Text is set. Attempt echoes the
// Command it answers; surfaces that omit it are still accepted.
type Inbound struct {
	Action  string         `json:"action"`
	VideoID model.VideoID  `json:"videoId"`
	Attempt string         `json:"attempt,omitempty"`
	Timings model.Artifact `json:"timings,omitempty"`
	Text    string         `json:"text,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Surface is the connection to the page driving the chat agent
type Surface struct {
	id       string
	commands chan Command
	mu       sync.Mutex
	closed   bool
}

// ID returns the surface id
func (s *Surface) ID() string {
	return s.id
}

// Commands returns the stream of commands for the surface
func (s *Surface) Commands() <-chan Command {
	return s.commands
}

func (s *Surface) send(cmd Command) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.commands <- cmd:
		return true
	default:
		return false
	}
}

func (s *Surface) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.commands)
	}
}

// AutomationConfig configures the automation engine
type AutomationConfig struct {
	// Opener is run when a job needs a surface and none is attached
	OpenerCommand string
	OpenerArgs    []string
	// OpenCooldown stops the opener from being run again while a surface is loading
	OpenCooldown time.Duration
	Logger       *slog.Logger
}

// AutomationEngine drives a chat agent page through an attached surface
type AutomationEngine struct {
	cmdRunner common.CmdRunner
	cfg       AutomationConfig
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.Mutex
	reporter Reporter
	surface  *Surface
	ready    bool
	current  model.VideoID
	attempt  string
	lastOpen time.Time
}

// NewAutomationEngine creates an AutomationEngine
func NewAutomationEngine(cmdRunner common.CmdRunner, cfg AutomationConfig) *AutomationEngine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.OpenCooldown <= 0 {
		cfg.OpenCooldown = 20 * time.Second
	}
	return &AutomationEngine{
		cmdRunner: cmdRunner,
		cfg:       cfg,
		logger:    logger.With("component", "engine", "engine", "automation"),
		now:       time.Now,
	}
}

func (e *AutomationEngine) SetReporter(r Reporter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reporter = r
}

// Attach connects a surface, replacing any previous one. The surface is
// not ready until it sends engine_ready.
func (e *AutomationEngine) Attach(id string) *Surface {
	s := &Surface{id: id, commands: make(chan Command, defaultSurfaceBuffer)}

	e.mu.Lock()
	previous := e.surface
	e.surface = s
	e.ready = false
	e.mu.Unlock()

	if previous != nil {
		previous.close()
	}
	e.logger.Info("surface attached", "surface_id", id)
	return s
}

// Detach disconnects the surface with id. A job in flight on it fails.
func (e *AutomationEngine) Detach(ctx context.Context, id string) {
	e.mu.Lock()
	s := e.surface
	if s == nil || s.id != id {
		e.mu.Unlock()
		return
	}
	e.surface = nil
	e.ready = false
	current, attempt := e.current, e.attempt
	e.current, e.attempt = "", ""
	reporter := e.reporter
	e.mu.Unlock()

	s.close()
	e.logger.Info("surface detached", "surface_id", id)

	if current != "" && reporter != nil {
		reporter.Fail(ctx, current, attempt, errors.New(errors.CodeTransport, "automation surface disconnected"))
	}
}

// Ensure reports whether a ready surface is attached. Without one the opener
// is launched and readiness is signalled later by the surface itself.
func (e *AutomationEngine) Ensure(ctx context.Context) (bool, error) {
	e.mu.Lock()
	if e.surface != nil {
		ready := e.ready
		e.mu.Unlock()
		return ready, nil
	}
	if !e.lastOpen.IsZero() && e.now().Sub(e.lastOpen) < e.cfg.OpenCooldown {
		e.mu.Unlock()
		return false, nil
	}
	e.lastOpen = e.now()
	e.mu.Unlock()

	if e.cfg.OpenerCommand == "" {
		e.logger.Warn("no automation surface attached and no opener configured")
		return false, nil
	}

	process, err := e.cmdRunner.Start(context.WithoutCancel(ctx), e.cfg.OpenerCommand, e.cfg.OpenerArgs...)
	if err != nil {
		e.mu.Lock()
		e.lastOpen = time.Time{}
		e.mu.Unlock()
		return false, errors.Wrap(err, errors.CodeTransport, "failed to open automation surface")
	}
	go func() {
		if err := process.Wait(); err != nil {
			e.logger.Warn("opener exited with error", "command", e.cfg.OpenerCommand, "error", err)
		}
	}()

	e.logger.Info("automation surface opening", "command", e.cfg.OpenerCommand)
	return false, nil
}

// Start pushes the job to the attached surface
func (e *AutomationEngine) Start(ctx context.Context, job Job) error {
	e.mu.Lock()
	s := e.surface
	if s == nil || !e.ready {
		e.mu.Unlock()
		return errors.New(errors.CodeTransport, "no ready automation surface")
	}
	e.current, e.attempt = job.VideoID, job.Attempt
	e.mu.Unlock()

	cmd := Command{
		Action:   ActionStartAnalysis,
		VideoID:  job.VideoID,
		VideoURL: job.VideoURL,
		Prompt:   prompt.Build(job.VideoURL),
		Attempt:  job.Attempt,
	}
	if !s.send(cmd) {
		e.mu.Lock()
		if e.current == job.VideoID && e.attempt == job.Attempt {
			e.current, e.attempt = "", ""
		}
		e.mu.Unlock()
		return errors.New(errors.CodeTransport, "automation surface is not accepting commands")
	}
	return nil
}

// Release forgets the job for videoID
func (e *AutomationEngine) Release(ctx context.Context, videoID model.VideoID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == videoID {
		e.current, e.attempt = "", ""
	}
}

// HandleMessage routes a message sent by the surface
func (e *AutomationEngine) HandleMessage(ctx context.Context, msg Inbound) error {
	e.mu.Lock()
	reporter := e.reporter
	e.mu.Unlock()
	if reporter == nil {
		return errors.New(errors.CodeInternal, "engine has no reporter")
	}

	switch msg.Action {
	case ActionEngineReady:
		e.mu.Lock()
		attached := e.surface != nil
		if attached {
			e.ready = true
		}
		e.mu.Unlock()
		if !attached {
			return errors.New(errors.CodeInvalidArg, "engine_ready from a surface that is not attached")
		}
		e.logger.Info("automation surface ready")
		reporter.EngineReady(ctx)
		return nil

	case ActionAnalysisResult:
		if err := msg.VideoID.Validate(); err != nil {
			return err
		}
		artifact := msg.Timings
		if artifact == nil {
			parsed, err := prompt.ExtractArtifact(msg.Text)
			if err != nil {
				reporter.Fail(ctx, msg.VideoID, msg.Attempt, err)
				return nil
			}
			artifact = parsed
		}
		reporter.Complete(ctx, msg.VideoID, msg.Attempt, artifact)
		return nil

	case ActionAnalysisError:
		if err := msg.VideoID.Validate(); err != nil {
			return err
		}
		reason := msg.Error
		if reason == "" {
			reason = "unknown error"
		}
		reporter.Fail(ctx, msg.VideoID, msg.Attempt, errors.Wrap(errors.New(errors.CodeEngine, reason), errors.CodeEngine, "analysis engine reported an error"))
		return nil

	default:
		return errors.New(errors.CodeInvalidArg, "unknown action: "+msg.Action)
	}
}

var _ Engine = (*AutomationEngine)(nil)
var _ ReporterSetter = (*AutomationEngine)(nil)
