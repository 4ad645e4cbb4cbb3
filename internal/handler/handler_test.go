package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	apperrors "github.com/Taichi-iskw/yt-skip/internal/errors"
	"github.com/Taichi-iskw/yt-skip/internal/model"
	"github.com/Taichi-iskw/yt-skip/internal/repository"
	"github.com/Taichi-iskw/yt-skip/internal/service/cache"
	"github.com/Taichi-iskw/yt-skip/internal/service/coordinator"
	"github.com/Taichi-iskw/yt-skip/internal/service/engine"
	"github.com/Taichi-iskw/yt-skip/internal/service/notify"
	"github.com/Taichi-iskw/yt-skip/internal/service/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockCoordinator implements Coordinator for testing
type mockCoordinator struct {
	RequestAnalysisFunc func(ctx context.Context, videoID model.VideoID, videoURL, observerID string) (coordinator.Outcome, error)
	SnapshotFunc        func() []coordinator.JobSnapshot
}

func (m *mockCoordinator) RequestAnalysis(ctx context.Context, videoID model.VideoID, videoURL, observerID string) (coordinator.Outcome, error) {
	if m.RequestAnalysisFunc != nil {
		return m.RequestAnalysisFunc(ctx, videoID, videoURL, observerID)
	}
	return coordinator.OutcomeStarted, nil
}

func (m *mockCoordinator) Snapshot() []coordinator.JobSnapshot {
	if m.SnapshotFunc != nil {
		return m.SnapshotFunc()
	}
	return nil
}

type testEnv struct {
	handler *Handler
	kv      repository.Store
	router  http.Handler
}

func newTestEnv(t *testing.T, coord Coordinator, automation Automation) *testEnv {
	t.Helper()
	kv := repository.NewMemoryStore()
	h := &Handler{
		Coordinator: coord,
		Cache:       cache.New(kv, nil),
		Settings:    settings.NewService(kv, nil),
		Hub:         notify.NewHub(),
		Automation:  automation,
	}
	return &testEnv{handler: h, kv: kv, router: h.Router()}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, &mockCoordinator{}, nil)

	rec := env.do(t, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCreateSession(t *testing.T) {
	env := newTestEnv(t, &mockCoordinator{}, nil)

	rec := env.do(t, http.MethodPost, "/api/v1/sessions", "")

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	_, ok := env.handler.Hub.Lookup(resp.ID)
	assert.True(t, ok)
}

func TestAnalyze(t *testing.T) {
	var gotVideo model.VideoID
	var gotURL, gotObserver string
	coord := &mockCoordinator{
		RequestAnalysisFunc: func(ctx context.Context, videoID model.VideoID, videoURL, observerID string) (coordinator.Outcome, error) {
			gotVideo, gotURL, gotObserver = videoID, videoURL, observerID
			if videoID == "" {
				return "", apperrors.New(apperrors.CodeInvalidArg, "video ID is required")
			}
			return coordinator.OutcomeJoined, nil
		},
	}
	env := newTestEnv(t, coord, nil)
	env.handler.Hub.Attach(notify.NewSession("tab-1", 4))

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "accepted",
			body:       `{"videoId":"abc","videoUrl":"https://youtu.be/abc","sessionId":"tab-1"}`,
			wantStatus: http.StatusAccepted,
			wantBody:   `{"status":"processing","outcome":"joined"}`,
		},
		{
			name:       "missing video id",
			body:       `{"sessionId":"tab-1"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown session",
			body:       `{"videoId":"abc","sessionId":"gone"}`,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "invalid json",
			body:       `{"videoId":`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/v1/analyze", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, rec.Body.String())
			}
		})
	}

	env.do(t, http.MethodPost, "/api/v1/analyze", `{"videoId":"abc","videoUrl":"https://youtu.be/abc","sessionId":"tab-1"}`)
	assert.Equal(t, model.VideoID("abc"), gotVideo)
	assert.Equal(t, "https://youtu.be/abc", gotURL)
	assert.Equal(t, "tab-1", gotObserver)
}

func TestAnalyze_IgnoresClientHangUp(t *testing.T) {
	var ctxErr error
	coord := &mockCoordinator{
		RequestAnalysisFunc: func(ctx context.Context, videoID model.VideoID, videoURL, observerID string) (coordinator.Outcome, error) {
			ctxErr = ctx.Err()
			return coordinator.OutcomeStarted, nil
		},
	}
	env := newTestEnv(t, coord, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader(`{"videoId":"abc"}`)).WithContext(ctx)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.NoError(t, ctxErr)
}

func TestStatus(t *testing.T) {
	coord := &mockCoordinator{
		SnapshotFunc: func() []coordinator.JobSnapshot {
			return []coordinator.JobSnapshot{{VideoID: "abc", State: coordinator.StateDispatched, Position: 1, Waiters: 2}}
		},
	}
	env := newTestEnv(t, coord, nil)

	rec := env.do(t, http.MethodGet, "/api/v1/status", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"jobs":[{"videoId":"abc","state":"DISPATCHED","position":1,"waiters":2}],"observers":0}`, rec.Body.String())
}

func TestStatus_Empty(t *testing.T) {
	env := newTestEnv(t, &mockCoordinator{}, nil)

	rec := env.do(t, http.MethodGet, "/api/v1/status", "")

	assert.JSONEq(t, `{"jobs":[],"observers":0}`, rec.Body.String())
}

func TestCache(t *testing.T) {
	env := newTestEnv(t, &mockCoordinator{}, nil)
	ctx := context.Background()
	require.NoError(t, env.handler.Cache.Put(ctx, "abc", model.Artifact{model.Instant(model.CategoryHighlight, 5, "")}))
	require.NoError(t, env.kv.Set(ctx, settings.Key, []byte(`{"globalAutoSkip":false,"categories":{}}`)))

	rec := env.do(t, http.MethodGet, "/api/v1/cache/abc", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"action":"timings_ready","videoId":"abc","timings":[{"type":"highlight","start":5}]}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/v1/cache/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/v1/cache", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"removed":1}`, rec.Body.String())

	_, ok, err := env.kv.Get(ctx, settings.Key)
	require.NoError(t, err)
	assert.True(t, ok, "settings survive a cache clear")
}

func TestSettings(t *testing.T) {
	env := newTestEnv(t, &mockCoordinator{}, nil)

	rec := env.do(t, http.MethodGet, "/api/v1/settings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got model.Settings
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, model.DefaultSettings(), got)

	rec = env.do(t, http.MethodPut, "/api/v1/settings", `{"globalAutoSkip":false,"categories":{"preview":true}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.False(t, got.GlobalAutoSkip)
	assert.True(t, got.Categories[model.CategoryPreview])
	assert.True(t, got.Categories[model.CategorySponsor])

	rec = env.do(t, http.MethodPut, "/api/v1/settings", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSettings_ChangeIsBroadcast(t *testing.T) {
	env := newTestEnv(t, &mockCoordinator{}, nil)
	stop := env.handler.Settings.Watch(notify.NewNotifier(env.handler.Hub, nil).SettingsChanged)
	defer stop()
	tab := notify.NewSession("tab-1", 4)
	env.handler.Hub.Attach(tab)

	rec := env.do(t, http.MethodPut, "/api/v1/settings", `{"globalAutoSkip":false,"categories":{}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	select {
	case msg := <-tab.Messages():
		assert.Equal(t, model.ActionSettingsChanged, msg.Action)
		require.NotNil(t, msg.Settings)
		assert.False(t, msg.Settings.GlobalAutoSkip)
		assert.True(t, msg.Settings.Categories[model.CategorySponsor], "defaults are filled in")
	default:
		t.Fatal("settings change was not broadcast")
	}
}

func TestSkipAt(t *testing.T) {
	env := newTestEnv(t, &mockCoordinator{}, nil)
	ctx := context.Background()
	require.NoError(t, env.handler.Cache.Put(ctx, "abc", model.Artifact{
		model.Ranged(model.CategorySponsor, 30, 90, "Sponsor"),
		model.Ranged(model.CategoryPreview, 100, 120, ""),
	}))

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "inside an enabled segment",
			path:       "/api/v1/cache/abc/skip?t=42.5",
			wantStatus: http.StatusOK,
			wantBody:   `{"skip":true,"segment":{"type":"sponsor","start":30,"end":90,"description":"Sponsor"},"seekTo":90}`,
		},
		{
			name:       "inside a disabled category",
			path:       "/api/v1/cache/abc/skip?t=110",
			wantStatus: http.StatusOK,
			wantBody:   `{"skip":false}`,
		},
		{
			name:       "missing position",
			path:       "/api/v1/cache/abc/skip",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "negative position",
			path:       "/api/v1/cache/abc/skip?t=-1",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "not cached",
			path:       "/api/v1/cache/zzz/skip?t=10",
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, tt.path, "")

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestCategories(t *testing.T) {
	env := newTestEnv(t, &mockCoordinator{}, nil)

	rec := env.do(t, http.MethodGet, "/api/v1/categories", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"ranged":["sponsor","selfpromo","interaction","outro","preview","greeting"],
		"instant":["chapter","highlight"]
	}`, rec.Body.String())
}

func TestEngineRoutesAbsentWithoutAutomation(t *testing.T) {
	env := newTestEnv(t, &mockCoordinator{}, nil)

	rec := env.do(t, http.MethodPost, "/api/v1/engine/messages", `{"action":"engine_ready"}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// mockAutomation implements Automation for testing
type mockAutomation struct {
	messages []engine.Inbound
	err      error
}

func (m *mockAutomation) Attach(id string) *engine.Surface    { return nil }
func (m *mockAutomation) Detach(ctx context.Context, id string) {}
func (m *mockAutomation) HandleMessage(ctx context.Context, msg engine.Inbound) error {
	m.messages = append(m.messages, msg)
	return m.err
}

func TestEngineMessage(t *testing.T) {
	automation := &mockAutomation{}
	env := newTestEnv(t, &mockCoordinator{}, automation)

	rec := env.do(t, http.MethodPost, "/api/v1/engine/messages", `{"action":"analysis_result","videoId":"abc","text":"[]"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, automation.messages, 1)
	assert.Equal(t, engine.ActionAnalysisResult, automation.messages[0].Action)
	assert.Equal(t, "[]", automation.messages[0].Text)

	automation.err = apperrors.New(apperrors.CodeInvalidArg, "unknown action: dance")
	rec = env.do(t, http.MethodPost, "/api/v1/engine/messages", `{"action":"dance"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// readEvent returns the payload of the next data line on the stream
func readEvent(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		}
	}
}

func TestSessionEvents_Stream(t *testing.T) {
	env := newTestEnv(t, &mockCoordinator{}, nil)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/sessions", "application/json", nil)
	require.NoError(t, err)
	var created sessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()

	// delivered before the stream opens, buffered by the session
	observer, ok := env.handler.Hub.Lookup(created.ID)
	require.True(t, ok)
	require.NoError(t, observer.Deliver(model.NewStatus("abc", "Starting analysis...")))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/sessions/"+created.ID+"/events", nil)
	require.NoError(t, err)
	stream, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer stream.Body.Close()

	assert.Equal(t, http.StatusOK, stream.StatusCode)
	assert.Equal(t, "text/event-stream", stream.Header.Get("Content-Type"))

	reader := bufio.NewReader(stream.Body)
	assert.JSONEq(t, `{"action":"status_update","videoId":"abc","text":"Starting analysis..."}`, readEvent(t, reader))

	require.NoError(t, observer.Deliver(model.NewTimingsReady("abc", nil)))
	assert.JSONEq(t, `{"action":"timings_ready","videoId":"abc","timings":[]}`, readEvent(t, reader))

	// a second concurrent stream is refused
	rec := env.do(t, http.MethodGet, "/api/v1/sessions/"+created.ID+"/events", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	cancel()
	session := observer.(*notify.Session)
	require.Eventually(t, func() bool {
		if !session.Claim() {
			return false
		}
		session.Unclaim()
		return true
	}, 2*time.Second, 10*time.Millisecond, "the stream releases the session when it closes")

	_, ok = env.handler.Hub.Lookup(created.ID)
	assert.True(t, ok, "the session survives a disconnect")
}

func TestSessionEvents_Reconnect(t *testing.T) {
	env := newTestEnv(t, &mockCoordinator{}, nil)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	session := notify.NewSession("tab-1", 4)
	env.handler.Hub.Attach(session)

	open := func(ctx context.Context) (*http.Response, *bufio.Reader) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/sessions/tab-1/events", nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		return resp, bufio.NewReader(resp.Body)
	}

	firstCtx, firstCancel := context.WithTimeout(context.Background(), 5*time.Second)
	first, _ := open(firstCtx)
	firstCancel()
	first.Body.Close()

	// delivered while no stream is open
	require.NoError(t, session.Deliver(model.NewTimingsReady("abc", nil)))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var second *http.Response
	var reader *bufio.Reader
	require.Eventually(t, func() bool {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/sessions/tab-1/events", nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return false
		}
		second, reader = resp, bufio.NewReader(resp.Body)
		return true
	}, 2*time.Second, 10*time.Millisecond)
	defer second.Body.Close()

	assert.JSONEq(t, `{"action":"timings_ready","videoId":"abc","timings":[]}`, readEvent(t, reader))
}

func TestCloseSession(t *testing.T) {
	env := newTestEnv(t, &mockCoordinator{}, nil)
	session := notify.NewSession("tab-1", 4)
	env.handler.Hub.Attach(session)

	rec := env.do(t, http.MethodDelete, "/api/v1/sessions/tab-1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, ok := env.handler.Hub.Lookup("tab-1")
	assert.False(t, ok)
	assert.False(t, session.Claim())

	rec = env.do(t, http.MethodGet, "/api/v1/sessions/tab-1/events", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(t, http.MethodDelete, "/api/v1/sessions/tab-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionEvents_UnknownSession(t *testing.T) {
	env := newTestEnv(t, &mockCoordinator{}, nil)

	rec := env.do(t, http.MethodGet, "/api/v1/sessions/nope/events", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEngineEvents_Stream(t *testing.T) {
	automation := engine.NewAutomationEngine(nil, engine.AutomationConfig{})
	env := newTestEnv(t, &mockCoordinator{}, automation)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	reporter := &noopReporter{}
	automation.SetReporter(reporter)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/engine/events", nil)
	require.NoError(t, err)
	stream, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer stream.Body.Close()
	require.Equal(t, http.StatusOK, stream.StatusCode)

	// the surface is attached once the stream headers are sent
	require.Eventually(t, func() bool {
		return automation.HandleMessage(context.Background(), engine.Inbound{Action: engine.ActionEngineReady}) == nil
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, automation.Start(context.Background(), engine.Job{VideoID: "abc", VideoURL: "https://youtu.be/abc"}))

	var cmd engine.Command
	require.NoError(t, json.Unmarshal([]byte(readEvent(t, bufio.NewReader(stream.Body))), &cmd))
	assert.Equal(t, engine.ActionStartAnalysis, cmd.Action)
	assert.Equal(t, model.VideoID("abc"), cmd.VideoID)
}

type noopReporter struct{}

func (noopReporter) EngineReady(ctx context.Context)                                                  {}
func (noopReporter) Complete(ctx context.Context, id model.VideoID, attempt string, a model.Artifact) {}
func (noopReporter) Fail(ctx context.Context, id model.VideoID, attempt string, err error)            {}
