package engine

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/Taichi-iskw/yt-skip/internal/model"
)

type reportEvent struct {
	kind     string
	videoID  model.VideoID
	attempt  string
	artifact model.Artifact
	err      error
}

// recordingReporter captures every engine signal
type recordingReporter struct {
	mu     sync.Mutex
	events []reportEvent
	signal chan struct{}
}

func newRecordingReporter() *recordingReporter {
	return &recordingReporter{signal: make(chan struct{}, 16)}
}

func (r *recordingReporter) record(ev reportEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	r.signal <- struct{}{}
}

func (r *recordingReporter) EngineReady(ctx context.Context) {
	r.record(reportEvent{kind: "ready"})
}

func (r *recordingReporter) Complete(ctx context.Context, videoID model.VideoID, attempt string, artifact model.Artifact) {
	r.record(reportEvent{kind: "complete", videoID: videoID, attempt: attempt, artifact: artifact})
}

func (r *recordingReporter) Fail(ctx context.Context, videoID model.VideoID, attempt string, err error) {
	r.record(reportEvent{kind: "fail", videoID: videoID, attempt: attempt, err: err})
}

// next waits for the next signal
func (r *recordingReporter) next() (reportEvent, bool) {
	select {
	case <-r.signal:
	case <-time.After(2 * time.Second):
		return reportEvent{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1], true
}

func (r *recordingReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func bytesReader(b []byte) *bytes.Reader {
	return bytes.NewReader(b)
}
