package engine

import (
	"context"
	"testing"
	"time"

	"github.com/Taichi-iskw/yt-skip/internal/errors"
	"github.com/Taichi-iskw/yt-skip/internal/model"
	"github.com/Taichi-iskw/yt-skip/internal/service/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAutomation(runner common.CmdRunner) (*AutomationEngine, *recordingReporter) {
	e := NewAutomationEngine(runner, AutomationConfig{
		OpenerCommand: "xdg-open",
		OpenerArgs:    []string{"https://gemini.google.com/app"},
		OpenCooldown:  time.Minute,
	})
	reporter := newRecordingReporter()
	e.SetReporter(reporter)
	return e, reporter
}

func TestAutomationEngine_EnsureOpensSurfaceOnce(t *testing.T) {
	var opened []string
	runner := &common.MockCmdRunner{
		StartFunc: func(ctx context.Context, name string, args ...string) (common.Process, error) {
			opened = append(opened, name+" "+args[0])
			return &common.MockProcess{}, nil
		},
	}
	e, _ := newTestAutomation(runner)

	ready, err := e.Ensure(context.Background())
	require.NoError(t, err)
	assert.False(t, ready)

	// still loading: the opener is not run again
	ready, err = e.Ensure(context.Background())
	require.NoError(t, err)
	assert.False(t, ready)

	assert.Equal(t, []string{"xdg-open https://gemini.google.com/app"}, opened)
}

func TestAutomationEngine_OpenerFailure(t *testing.T) {
	runner := &common.MockCmdRunner{
		StartFunc: func(ctx context.Context, name string, args ...string) (common.Process, error) {
			return nil, assert.AnError
		},
	}
	e, _ := newTestAutomation(runner)

	_, err := e.Ensure(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.CodeTransport, errors.CodeOf(err))
}

func TestAutomationEngine_ReadyAndStart(t *testing.T) {
	e, reporter := newTestAutomation(&common.MockCmdRunner{})
	surface := e.Attach("tab-1")

	ready, err := e.Ensure(context.Background())
	require.NoError(t, err)
	assert.False(t, ready, "attached surface is not ready before engine_ready")

	err = e.Start(context.Background(), Job{VideoID: "abc"})
	require.Error(t, err)

	require.NoError(t, e.HandleMessage(context.Background(), Inbound{Action: ActionEngineReady}))
	ev, ok := reporter.next()
	require.True(t, ok)
	assert.Equal(t, "ready", ev.kind)

	ready, err = e.Ensure(context.Background())
	require.NoError(t, err)
	assert.True(t, ready)

	require.NoError(t, e.Start(context.Background(), Job{VideoID: "abc", VideoURL: "https://youtu.be/abc", Attempt: "a1"}))
	select {
	case cmd := <-surface.Commands():
		assert.Equal(t, ActionStartAnalysis, cmd.Action)
		assert.Equal(t, model.VideoID("abc"), cmd.VideoID)
		assert.Equal(t, "https://youtu.be/abc", cmd.VideoURL)
		assert.Equal(t, "a1", cmd.Attempt)
		assert.Contains(t, cmd.Prompt, "https://youtu.be/abc")
	case <-time.After(time.Second):
		t.Fatal("command was not pushed to the surface")
	}
}

func TestAutomationEngine_HandleMessage(t *testing.T) {
	tests := []struct {
		name     string
		msg      Inbound
		wantKind string
		wantCode string
		wantArt  model.Artifact
	}{
		{
			name:     "structured timings",
			msg:      Inbound{Action: ActionAnalysisResult, VideoID: "abc", Timings: model.Artifact{model.Instant(model.CategoryHighlight, 90, "")}},
			wantKind: "complete",
			wantArt:  model.Artifact{model.Instant(model.CategoryHighlight, 90, "")},
		},
		{
			name:     "raw answer text",
			msg:      Inbound{Action: ActionAnalysisResult, VideoID: "abc", Text: "Sure!\n[{\"type\":\"outro\",\"start\":500,\"end\":530}]"},
			wantKind: "complete",
			wantArt:  model.Artifact{model.Ranged(model.CategoryOutro, 500, 530, "")},
		},
		{
			name:     "unparseable answer",
			msg:      Inbound{Action: ActionAnalysisResult, VideoID: "abc", Text: "I can't help with that"},
			wantKind: "fail",
			wantCode: errors.CodeMalformed,
		},
		{
			name:     "agent error",
			msg:      Inbound{Action: ActionAnalysisError, VideoID: "abc", Error: "prompt input not found"},
			wantKind: "fail",
			wantCode: errors.CodeEngine,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, reporter := newTestAutomation(&common.MockCmdRunner{})

			require.NoError(t, e.HandleMessage(context.Background(), tt.msg))

			ev, ok := reporter.next()
			require.True(t, ok)
			assert.Equal(t, tt.wantKind, ev.kind)
			assert.Equal(t, model.VideoID("abc"), ev.videoID)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, errors.CodeOf(ev.err))
			} else {
				assert.Equal(t, tt.wantArt, ev.artifact)
			}
		})
	}
}

func TestAutomationEngine_HandleMessageRejects(t *testing.T) {
	e, reporter := newTestAutomation(&common.MockCmdRunner{})

	assert.Error(t, e.HandleMessage(context.Background(), Inbound{Action: "dance"}))
	assert.Error(t, e.HandleMessage(context.Background(), Inbound{Action: ActionAnalysisResult}))
	assert.Error(t, e.HandleMessage(context.Background(), Inbound{Action: ActionEngineReady}), "no surface attached")
	assert.Equal(t, 0, reporter.count())
}

func TestAutomationEngine_DetachFailsCurrentJob(t *testing.T) {
	e, reporter := newTestAutomation(&common.MockCmdRunner{})
	surface := e.Attach("tab-1")
	require.NoError(t, e.HandleMessage(context.Background(), Inbound{Action: ActionEngineReady}))
	_, _ = reporter.next()

	require.NoError(t, e.Start(context.Background(), Job{VideoID: "abc"}))
	<-surface.Commands()

	e.Detach(context.Background(), "tab-1")

	ev, ok := reporter.next()
	require.True(t, ok)
	assert.Equal(t, "fail", ev.kind)
	assert.Equal(t, model.VideoID("abc"), ev.videoID)
	assert.Equal(t, errors.CodeTransport, errors.CodeOf(ev.err))

	_, open := <-surface.Commands()
	assert.False(t, open)
}

func TestAutomationEngine_AttachReplacesSurface(t *testing.T) {
	e, reporter := newTestAutomation(&common.MockCmdRunner{})
	first := e.Attach("tab-1")
	second := e.Attach("tab-2")

	_, open := <-first.Commands()
	assert.False(t, open)

	// detaching the replaced surface is a no-op
	e.Detach(context.Background(), "tab-1")
	assert.Equal(t, 0, reporter.count())

	require.NoError(t, e.HandleMessage(context.Background(), Inbound{Action: ActionEngineReady}))
	_, _ = reporter.next()
	require.NoError(t, e.Start(context.Background(), Job{VideoID: "abc"}))
	cmd := <-second.Commands()
	assert.Equal(t, model.VideoID("abc"), cmd.VideoID)
}

func TestAutomationEngine_ReleaseClearsCurrent(t *testing.T) {
	e, reporter := newTestAutomation(&common.MockCmdRunner{})
	surface := e.Attach("tab-1")
	require.NoError(t, e.HandleMessage(context.Background(), Inbound{Action: ActionEngineReady}))
	_, _ = reporter.next()

	require.NoError(t, e.Start(context.Background(), Job{VideoID: "abc"}))
	<-surface.Commands()
	e.Release(context.Background(), "abc")
	e.Detach(context.Background(), "tab-1")

	assert.Equal(t, 1, reporter.count())
}

func TestAutomationEngine_ReportsCarryAttempt(t *testing.T) {
	e, reporter := newTestAutomation(&common.MockCmdRunner{})
	surface := e.Attach("tab-1")
	require.NoError(t, e.HandleMessage(context.Background(), Inbound{Action: ActionEngineReady}))
	_, _ = reporter.next()

	require.NoError(t, e.HandleMessage(context.Background(), Inbound{
		Action:  ActionAnalysisError,
		VideoID: "abc",
		Attempt: "a7",
		Error:   "page timed out",
	}))
	ev, ok := reporter.next()
	require.True(t, ok)
	assert.Equal(t, "a7", ev.attempt)

	// surfaces that do not echo the attempt report an empty one
	require.NoError(t, e.HandleMessage(context.Background(), Inbound{Action: ActionAnalysisResult, VideoID: "abc", Timings: model.Artifact{}}))
	ev, ok = reporter.next()
	require.True(t, ok)
	assert.Empty(t, ev.attempt)

	require.NoError(t, e.Start(context.Background(), Job{VideoID: "def", Attempt: "a8"}))
	<-surface.Commands()
	e.Detach(context.Background(), "tab-1")
	ev, ok = reporter.next()
	require.True(t, ok)
	assert.Equal(t, "fail", ev.kind)
	assert.Equal(t, "a8", ev.attempt)
}
