package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Taichi-iskw/yt-skip/internal/errors"
	"github.com/Taichi-iskw/yt-skip/internal/model"
)

// analyzeFunc produces the artifact for one job, blocking until done
type analyzeFunc func(ctx context.Context, job Job) (model.Artifact, error)

// asyncEngine runs a blocking analyze call in the background and reports the
// result. It is always ready.
type asyncEngine struct {
	name    string
	analyze analyzeFunc
	timeout time.Duration
	logger  *slog.Logger

	mu       sync.Mutex
	reporter Reporter
	runs     map[model.VideoID]*run
	wg       sync.WaitGroup
}

type run struct {
	cancel context.CancelFunc
}

func newAsyncEngine(name string, analyze analyzeFunc, timeout time.Duration, logger *slog.Logger) *asyncEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &asyncEngine{
		name:    name,
		analyze: analyze,
		timeout: timeout,
		logger:  logger.With("component", "engine", "engine", name),
		runs:    make(map[model.VideoID]*run),
	}
}

func (e *asyncEngine) SetReporter(r Reporter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reporter = r
}

func (e *asyncEngine) Ensure(ctx context.Context) (bool, error) {
	return true, nil
}

func (e *asyncEngine) Start(ctx context.Context, job Job) error {
	e.mu.Lock()
	reporter := e.reporter
	if reporter == nil {
		e.mu.Unlock()
		return errors.New(errors.CodeInternal, "engine has no reporter")
	}
	if _, busy := e.runs[job.VideoID]; busy {
		e.mu.Unlock()
		return errors.New(errors.CodeConflict, "video is already being analyzed")
	}

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if e.timeout > 0 {
		runCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	} else {
		runCtx, cancel = context.WithCancel(context.WithoutCancel(ctx))
	}
	r := &run{cancel: cancel}
	e.runs[job.VideoID] = r
	e.wg.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.wg.Done()
		defer e.done(job.VideoID, r)

		e.logger.Info("analysis started", "video_id", job.VideoID, "attempt", job.Attempt)
		artifact, err := e.analyze(runCtx, job)
		if runCtx.Err() == context.Canceled {
			// released while running; nobody waits for this result
			e.logger.Debug("analysis released", "video_id", job.VideoID)
			return
		}
		if err != nil {
			if runCtx.Err() == context.DeadlineExceeded && !errors.HasCode(err, errors.CodeTimeout) {
				err = errors.Wrap(err, errors.CodeTimeout, "analysis timed out")
			}
			e.logger.Warn("analysis failed", "video_id", job.VideoID, "error", err)
			reporter.Fail(context.Background(), job.VideoID, job.Attempt, err)
			return
		}
		e.logger.Info("analysis finished", "video_id", job.VideoID, "segments", len(artifact))
		reporter.Complete(context.Background(), job.VideoID, job.Attempt, artifact)
	}()
	return nil
}

// Release cancels a running analysis for videoID, if any
func (e *asyncEngine) Release(ctx context.Context, videoID model.VideoID) {
	e.mu.Lock()
	r, ok := e.runs[videoID]
	delete(e.runs, videoID)
	e.mu.Unlock()
	if ok {
		r.cancel()
	}
}

func (e *asyncEngine) done(videoID model.VideoID, r *run) {
	e.mu.Lock()
	if e.runs[videoID] == r {
		delete(e.runs, videoID)
	}
	e.mu.Unlock()
	r.cancel()
}

// Wait blocks until every background analysis has returned
func (e *asyncEngine) Wait() {
	e.wg.Wait()
}
