// Package coordinator deduplicates analysis requests and serializes them
// onto the single analysis engine.
//
// Jobs wait in a FIFO queue and only the head is ever handed to the engine.
// A job is QUEUED until the engine accepts it and DISPATCHED afterwards.
// Every terminal outcome (result, engine error, timeout, dispatch failure)
// drains the waiters of that video exactly once.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Taichi-iskw/yt-skip/internal/errors"
	"github.com/Taichi-iskw/yt-skip/internal/model"
	"github.com/Taichi-iskw/yt-skip/internal/service/cache"
	"github.com/Taichi-iskw/yt-skip/internal/service/engine"
	"github.com/Taichi-iskw/yt-skip/internal/service/notify"
	"github.com/Taichi-iskw/yt-skip/internal/service/waiter"
)

// Outcome tells the caller of RequestAnalysis what happened to the request
type Outcome string

const (
	OutcomeCached  Outcome = "cached"
	OutcomeJoined  Outcome = "joined"
	OutcomeStarted Outcome = "started"
	OutcomeQueued  Outcome = "queued"
)

// JobState is the state of a job in the queue
type JobState string

const (
	StateQueued     JobState = "QUEUED"
	StateDispatched JobState = "DISPATCHED"
)

// Status texts delivered to observers
const (
	statusStarting  = "Starting analysis..."
	statusWaiting   = "Waiting for the analysis engine..."
	statusAnalyzing = "Analyzing video..."
	statusFailed    = "Analysis failed"
)

// Options tunes a Coordinator
type Options struct {
	ReadyTimeout    time.Duration
	ResponseTimeout time.Duration
	Logger          *slog.Logger
	// NewAttempt returns a fresh attempt token; defaults to uuid.NewString
	NewAttempt func() string
}

const (
	defaultReadyTimeout    = 20 * time.Second
	defaultResponseTimeout = 60 * time.Second
)

// JobSnapshot describes a queued job
type JobSnapshot struct {
	VideoID  model.VideoID `json:"videoId"`
	State    JobState      `json:"state"`
	Position int           `json:"position"`
	Waiters  int           `json:"waiters"`
}

type job struct {
	videoID  model.VideoID
	videoURL string
	state    JobState
	attempt  string
	// started is set once the job became head and Ensure was invoked for it
	started bool
	timer   *time.Timer
}

func (j *job) stopTimer() {
	if j.timer != nil {
		j.timer.Stop()
		j.timer = nil
	}
}

// Coordinator is the single-flight analysis state machine
type Coordinator struct {
	cache    cache.Cache
	waiters  *waiter.Registry
	notifier *notify.Notifier
	engine   engine.Engine
	opts     Options
	logger   *slog.Logger

	mu     sync.Mutex
	queue  []*job
	closed bool
}

// New creates a Coordinator and registers it as the engine's reporter
func New(c cache.Cache, w *waiter.Registry, n *notify.Notifier, e engine.Engine, opts Options) *Coordinator {
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = defaultReadyTimeout
	}
	if opts.ResponseTimeout <= 0 {
		opts.ResponseTimeout = defaultResponseTimeout
	}
	if opts.NewAttempt == nil {
		opts.NewAttempt = uuid.NewString
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	coord := &Coordinator{
		cache:    c,
		waiters:  w,
		notifier: n,
		engine:   e,
		opts:     opts,
		logger:   logger.With("component", "coordinator"),
	}

	if setter, ok := e.(engine.ReporterSetter); ok {
		setter.SetReporter(coord)
	}

	return coord
}

// RequestAnalysis asks for the timeline of videoID on behalf of observerID.
// The result is delivered to the observer later; the Outcome only describes
// how the request was handled.
func (c *Coordinator) RequestAnalysis(ctx context.Context, videoID model.VideoID, videoURL, observerID string) (Outcome, error) {
	if err := videoID.Validate(); err != nil {
		return "", err
	}
	if observerID == "" {
		return "", apperrors.New(apperrors.CodeInvalidArg, "observer ID is required")
	}
	if videoURL == "" {
		videoURL = "https://www.youtube.com/watch?v=" + string(videoID)
	}

	if artifact, ok := c.cache.Get(ctx, videoID); ok {
		return c.serveCached(videoID, observerID, artifact), nil
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", apperrors.New(apperrors.CodeInternal, "coordinator is closed")
	}

	if existing := c.find(videoID); existing != nil {
		if c.waiters.Has(videoID, observerID) {
			c.mu.Unlock()
			c.logger.Debug("observer already waiting", "video_id", videoID, "observer_id", observerID)
			return OutcomeJoined, nil
		}
		c.waiters.Register(videoID, observerID)
		state := existing.state
		c.mu.Unlock()
		c.logger.Info("joined in-flight analysis", "video_id", videoID, "observer_id", observerID, "state", state)
		return OutcomeJoined, nil
	}

	// A completion may have landed between the first lookup and taking the lock
	if artifact, ok := c.cache.Get(ctx, videoID); ok {
		c.mu.Unlock()
		return c.serveCached(videoID, observerID, artifact), nil
	}

	j := &job{
		videoID:  videoID,
		videoURL: videoURL,
		state:    StateQueued,
		attempt:  c.opts.NewAttempt(),
	}
	c.queue = append(c.queue, j)
	c.waiters.Register(videoID, observerID)
	position := len(c.queue)
	if position == 1 {
		j.started = true
	}
	c.mu.Unlock()

	c.notifier.Notify(observerID, model.NewStatus(videoID, statusStarting))

	if position > 1 {
		c.logger.Info("analysis queued", "video_id", videoID, "observer_id", observerID, "position", position)
		c.notifier.Notify(observerID, model.NewStatus(videoID, fmt.Sprintf("Queued behind %d other video(s)...", position-1)))
		return OutcomeQueued, nil
	}

	c.logger.Info("analysis started", "video_id", videoID, "observer_id", observerID, "attempt", j.attempt)
	c.start(engineContext(ctx), j)
	return OutcomeStarted, nil
}

// serveCached short-circuits a request with a cached artifact
func (c *Coordinator) serveCached(videoID model.VideoID, observerID string, artifact model.Artifact) Outcome {
	c.logger.Info("analysis served from cache", "video_id", videoID, "observer_id", observerID, "state", "CACHED")
	c.notifier.Notify(observerID, model.NewTimingsReady(videoID, artifact))
	return OutcomeCached
}

// start makes sure the engine can take the head job and dispatches it
func (c *Coordinator) start(ctx context.Context, j *job) {
	ready, err := c.engine.Ensure(ctx)
	if err != nil {
		c.finish(ctx, j.videoID, j.attempt, "", apperrors.Wrap(err, apperrors.CodeTransport, "analysis engine unavailable"), false)
		return
	}

	if ready {
		c.dispatch(ctx, j)
		return
	}

	c.mu.Lock()
	if !c.isHead(j) || j.state != StateQueued || j.timer != nil {
		// completed, failed or already dispatched by EngineReady meanwhile
		c.mu.Unlock()
		return
	}
	videoID, attempt := j.videoID, j.attempt
	j.timer = time.AfterFunc(c.opts.ReadyTimeout, func() {
		c.finish(context.Background(), videoID, attempt, StateQueued,
			apperrors.New(apperrors.CodeReadinessTimeout,
				fmt.Sprintf("analysis engine did not become ready within %s", c.opts.ReadyTimeout)), true)
	})
	observers := c.waiters.Peek(j.videoID)
	c.mu.Unlock()

	c.logger.Info("waiting for engine readiness", "video_id", videoID, "timeout", c.opts.ReadyTimeout)
	c.notifier.NotifyAll(observers, model.NewStatus(videoID, statusWaiting))
}

// dispatch hands the head job to the engine exactly once
func (c *Coordinator) dispatch(ctx context.Context, j *job) {
	c.mu.Lock()
	if !c.isHead(j) || j.state != StateQueued {
		c.mu.Unlock()
		return
	}
	j.stopTimer()
	j.state = StateDispatched
	videoID, attempt := j.videoID, j.attempt
	j.timer = time.AfterFunc(c.opts.ResponseTimeout, func() {
		c.finish(context.Background(), videoID, attempt, StateDispatched,
			apperrors.New(apperrors.CodeTimeout,
				fmt.Sprintf("no response from the analysis engine within %s", c.opts.ResponseTimeout)), true)
	})
	observers := c.waiters.Peek(videoID)
	engineJob := engine.Job{VideoID: videoID, VideoURL: j.videoURL, Attempt: attempt}
	c.mu.Unlock()

	// announce before Start so the status cannot overtake a fast result
	c.notifier.NotifyAll(observers, model.NewStatus(videoID, statusAnalyzing))
	c.logger.Info("job dispatched", "video_id", videoID, "attempt", attempt, "state", StateDispatched)

	if err := c.engine.Start(ctx, engineJob); err != nil {
		c.finish(ctx, videoID, attempt, "", apperrors.Wrap(err, apperrors.CodeTransport, "failed to dispatch analysis"), false)
	}
}

// EngineReady dispatches the head job if it is waiting for the engine
func (c *Coordinator) EngineReady(ctx context.Context) {
	c.mu.Lock()
	if c.closed || len(c.queue) == 0 {
		c.mu.Unlock()
		c.logger.Debug("engine ready with nothing pending")
		return
	}
	head := c.queue[0]
	if !head.started || head.state != StateQueued {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.logger.Info("engine ready", "video_id", head.videoID)
	c.dispatch(engineContext(ctx), head)
}

// Complete records a successful analysis. The artifact is cached before the
// waiters are drained so a request arriving in between sees the cache.
// A result carrying an attempt other than the current job's is dropped.
func (c *Coordinator) Complete(ctx context.Context, videoID model.VideoID, attempt string, artifact model.Artifact) {
	if err := artifact.Validate(); err != nil {
		c.Fail(ctx, videoID, attempt, apperrors.Wrap(err, apperrors.CodeMalformed, "engine returned an invalid timeline"))
		return
	}
	if artifact == nil {
		artifact = model.Artifact{}
	}

	c.mu.Lock()
	stale := c.superseded(videoID, attempt)
	c.mu.Unlock()
	if stale {
		c.logger.Info("ignoring result for superseded attempt", "video_id", videoID, "attempt", attempt)
		return
	}

	if err := c.cache.Put(ctx, videoID, artifact); err != nil {
		c.logger.Error("failed to cache analysis result", "video_id", videoID, "error", err)
	}

	c.mu.Lock()
	if c.superseded(videoID, attempt) {
		// a retry was queued while the result was being cached
		c.mu.Unlock()
		c.logger.Info("ignoring result for superseded attempt", "video_id", videoID, "attempt", attempt)
		return
	}
	j, wasHead := c.remove(videoID, attempt)
	observers := c.waiters.Drain(videoID)
	c.mu.Unlock()

	if j == nil {
		c.logger.Info("result for video not in flight", "video_id", videoID, "waiters", len(observers))
	} else {
		c.logger.Info("analysis completed", "video_id", videoID, "attempt", j.attempt,
			"segments", len(artifact), "waiters", len(observers), "state", "COMPLETED")
	}

	msg := model.NewTimingsReady(videoID, artifact)
	notified := c.notifier.NotifyAll(observers, msg)
	c.notifier.Broadcast(msg, notified)

	if j != nil {
		c.engine.Release(ctx, videoID)
	}
	if wasHead {
		c.advance(ctx)
	}
}

// Fail records a failed analysis; nothing is cached. A failure carrying an
// attempt other than the current job's is dropped.
func (c *Coordinator) Fail(ctx context.Context, videoID model.VideoID, attempt string, err error) {
	c.finish(ctx, videoID, attempt, "", err, true)
}

// finish ends the job for videoID with err. A non-empty attempt (and state)
// must match the current job or the call is ignored, so a timer that fired
// late cannot fail a newer attempt or a job that has moved on.
func (c *Coordinator) finish(ctx context.Context, videoID model.VideoID, attempt string, want JobState, err error, release bool) {
	c.mu.Lock()
	if attempt != "" {
		current := c.find(videoID)
		if current == nil || current.attempt != attempt || (want != "" && current.state != want) {
			c.mu.Unlock()
			c.logger.Debug("ignoring stale failure", "video_id", videoID, "attempt", attempt, "error", err)
			return
		}
	}
	j, wasHead := c.remove(videoID, attempt)
	observers := c.waiters.Drain(videoID)
	c.mu.Unlock()

	if j == nil && len(observers) == 0 {
		c.logger.Debug("failure for video not in flight", "video_id", videoID, "error", err)
		return
	}

	c.logger.Warn("analysis failed", "video_id", videoID, "code", apperrors.CodeOf(err),
		"waiters", len(observers), "state", "FAILED", "error", err)

	c.notifier.NotifyAll(observers, model.NewError(videoID, statusFailed+": "+apperrors.UserMessage(err)))

	if j != nil && release {
		c.engine.Release(ctx, videoID)
	}
	if wasHead {
		c.advance(ctx)
	}
}

// advance starts the next queued job, if any
func (c *Coordinator) advance(ctx context.Context) {
	c.mu.Lock()
	if c.closed || len(c.queue) == 0 {
		c.mu.Unlock()
		return
	}
	head := c.queue[0]
	if head.started {
		c.mu.Unlock()
		return
	}
	head.started = true
	c.mu.Unlock()

	c.logger.Info("starting next queued analysis", "video_id", head.videoID, "attempt", head.attempt)
	c.start(engineContext(ctx), head)
}

// Snapshot returns the current queue, head first
func (c *Coordinator) Snapshot() []JobSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := make([]JobSnapshot, 0, len(c.queue))
	for i, j := range c.queue {
		snapshot = append(snapshot, JobSnapshot{
			VideoID:  j.videoID,
			State:    j.state,
			Position: i + 1,
			Waiters:  c.waiters.Len(j.videoID),
		})
	}
	return snapshot
}

// Close stops all timers and rejects further requests
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	for _, j := range c.queue {
		j.stopTimer()
	}
}

// find returns the job for videoID; callers hold mu
func (c *Coordinator) find(videoID model.VideoID) *job {
	for _, j := range c.queue {
		if j.videoID == videoID {
			return j
		}
	}
	return nil
}

// superseded reports whether a report for attempt belongs to an older job
// than the one currently held for videoID; callers hold mu
func (c *Coordinator) superseded(videoID model.VideoID, attempt string) bool {
	if attempt == "" {
		return false
	}
	current := c.find(videoID)
	return current != nil && current.attempt != attempt
}

// isHead reports whether j is at the front of the queue; callers hold mu
func (c *Coordinator) isHead(j *job) bool {
	return len(c.queue) > 0 && c.queue[0] == j
}

// remove takes the job for videoID out of the queue and stops its timer.
// A non-empty attempt must match. Callers hold mu.
func (c *Coordinator) remove(videoID model.VideoID, attempt string) (*job, bool) {
	for i, j := range c.queue {
		if j.videoID != videoID {
			continue
		}
		if attempt != "" && j.attempt != attempt {
			return nil, false
		}
		j.stopTimer()
		c.queue = append(c.queue[:i], c.queue[i+1:]...)
		return j, i == 0
	}
	return nil, false
}

// engineContext detaches engine work from the caller's cancellation
func engineContext(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

var _ engine.Reporter = (*Coordinator)(nil)
