// Package engine defines the contract between the coordinator and the
// single, stateful analysis backend, plus its implementations.
package engine

import (
	"context"

	"github.com/Taichi-iskw/yt-skip/internal/model"
)

// Job is one analysis request handed to an engine
type Job struct {
	VideoID  model.VideoID
	VideoURL string
	// Attempt identifies this dispatch; engines echo it back in their reports
	Attempt string
}

// Engine is the analysis backend. At most one job is started at a time.
type Engine interface {
	// Ensure verifies the engine can take a job. ready=false means the engine
	// will call Reporter.EngineReady once it becomes available.
	Ensure(ctx context.Context) (ready bool, err error)
	// Start hands a job over. The result is reported asynchronously through the Reporter.
	Start(ctx context.Context, job Job) error
	// Release tells the engine the coordinator is done with the job for videoID
	Release(ctx context.Context, videoID model.VideoID)
}

// Reporter receives engine signals; implemented by the coordinator.
// attempt is the Job.Attempt the report belongs to, or empty when the
// engine cannot tell.
type Reporter interface {
	EngineReady(ctx context.Context)
	Complete(ctx context.Context, videoID model.VideoID, attempt string, artifact model.Artifact)
	Fail(ctx context.Context, videoID model.VideoID, attempt string, err error)
}

// ReporterSetter is implemented by engines that report back asynchronously
type ReporterSetter interface {
	SetReporter(r Reporter)
}
