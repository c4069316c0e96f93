package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamal-hamza/autostart/internal/core/domain"
	"github.com/kamal-hamza/autostart/internal/core/ports/mocks"
	"github.com/kamal-hamza/autostart/internal/core/services"
	"github.com/kamal-hamza/autostart/internal/logger"
)

type fakeLauncher struct {
	mu       sync.Mutex
	running  map[string]domain.TaskSnapshot
	startErr error
	started  []int
}

func newFakeLauncher() *fakeLauncher {
	return &fakeLauncher{running: make(map[string]domain.TaskSnapshot)}
}

func (f *fakeLauncher) Start(_ context.Context, name string, maxRetries int, _ services.CompletionFunc) (domain.TaskSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return domain.TaskSnapshot{}, f.startErr
	}
	if _, ok := f.running[name]; ok {
		return domain.TaskSnapshot{}, fmt.Errorf("%w: %s", domain.ErrAlreadyRunning, name)
	}
	snap := domain.TaskSnapshot{Instance: name, Status: domain.TaskStarting, MaxRetries: maxRetries}
	f.running[name] = snap
	f.started = append(f.started, maxRetries)
	return snap, nil
}

func (f *fakeLauncher) Stop(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.running[name]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotRunning, name)
	}
	delete(f.running, name)
	return nil
}

func (f *fakeLauncher) Status(name string) (domain.TaskSnapshot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap, ok := f.running[name]
	return snap, ok
}

func (f *fakeLauncher) Snapshots() []domain.TaskSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.TaskSnapshot
	for _, s := range f.running {
		out = append(out, s)
	}
	return out
}

func (f *fakeLauncher) Info() services.ModuleInfo {
	return services.ModuleInfo{Name: services.ModuleName, Version: services.ModuleVersion, Available: true}
}

type fakeChecker struct {
	report *domain.CheckReport
	err    error
}

func (f fakeChecker) Check(context.Context) (*domain.CheckReport, error) {
	return f.report, f.err
}

func newTestHandler(l Launcher, checker TemplateChecker) (*Handler, *mocks.MockHistoryRepository) {
	history := mocks.NewMockHistoryRepository()
	return NewHandler(l, history, checker, logger.Nop()), history
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandler(newFakeLauncher(), fakeChecker{})
	rec := do(t, h.Routes(), http.MethodGet, "/healthz")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var info services.ModuleInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "AutoStartGame", info.Name)
	assert.True(t, info.Available)
}

func TestTaskLifecycle(t *testing.T) {
	launcher := newFakeLauncher()
	h, _ := newTestHandler(launcher, fakeChecker{})
	router := h.Routes()

	rec := do(t, router, http.MethodPost, "/tasks/Farm-2?retries=5")
	require.Equal(t, http.StatusAccepted, rec.Code)
	var snap domain.TaskSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "Farm-2", snap.Instance)
	assert.Equal(t, 5, snap.MaxRetries)

	rec = do(t, router, http.MethodPost, "/tasks/Farm-2")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, router, http.MethodGet, "/tasks/Farm-2")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/tasks")
	require.Equal(t, http.StatusOK, rec.Code)
	var list tasksResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Tasks, 1)

	rec = do(t, router, http.MethodDelete, "/tasks/Farm-2")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, router, http.MethodDelete, "/tasks/Farm-2")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodGet, "/tasks/Farm-2")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, []int{5}, launcher.started)
}

func TestStartTask_Errors(t *testing.T) {
	tests := []struct {
		name     string
		startErr error
		target   string
		want     int
	}{
		{"bad retries", nil, "/tasks/a?retries=x", http.StatusBadRequest},
		{"negative retries", nil, "/tasks/a?retries=-1", http.StatusBadRequest},
		{"unknown instance", domain.ErrInstanceNotFound, "/tasks/a", http.StatusNotFound},
		{"memuc missing", domain.ErrNotAvailable, "/tasks/a", http.StatusServiceUnavailable},
		{"unexpected", errors.New("boom"), "/tasks/a", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			launcher := newFakeLauncher()
			launcher.startErr = tt.startErr
			h, _ := newTestHandler(launcher, fakeChecker{})

			rec := do(t, h.Routes(), http.MethodPost, tt.target)
			assert.Equal(t, tt.want, rec.Code)

			var body errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestEmptyTaskList(t *testing.T) {
	h, _ := newTestHandler(newFakeLauncher(), fakeChecker{})
	rec := do(t, h.Routes(), http.MethodGet, "/tasks")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"tasks":[]`)
}

func TestListHistory(t *testing.T) {
	h, history := newTestHandler(newFakeLauncher(), fakeChecker{})
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i, name := range []string{"a", "b", "a"} {
		require.NoError(t, history.Save(context.Background(), domain.LaunchRecord{
			Instance:   name,
			Success:    i != 1,
			Attempts:   1,
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
			FinishedAt: base.Add(time.Duration(i)*time.Minute + time.Second),
		}))
	}
	router := h.Routes()

	rec := do(t, router, http.MethodGet, "/history?instance=a&limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	var records []domain.LaunchRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "a", records[0].Instance)

	rec = do(t, router, http.MethodGet, "/history")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	assert.Len(t, records, 3)

	rec = do(t, router, http.MethodGet, "/history?limit=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/history/summary")
	require.Equal(t, http.StatusOK, rec.Code)
	var summaries []domain.InstanceSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summaries))
	assert.Len(t, summaries, 2)
}

func TestListHistory_Disabled(t *testing.T) {
	h := NewHandler(newFakeLauncher(), nil, fakeChecker{}, logger.Nop())
	rec := do(t, h.Routes(), http.MethodGet, "/history")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCheckTemplates(t *testing.T) {
	report := &domain.CheckReport{
		Dir: "/t",
		Entries: []domain.TemplateCheck{
			{Filename: "world.png", State: domain.TemplatePresent},
			{Filename: "play.png", State: domain.TemplateMissing},
		},
	}
	h, _ := newTestHandler(newFakeLauncher(), fakeChecker{report: report})

	rec := do(t, h.Routes(), http.MethodGet, "/templates/check")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Dir      string                 `json:"dir"`
		Entries  []domain.TemplateCheck `json:"entries"`
		Complete bool                   `json:"complete"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "/t", body.Dir)
	assert.Len(t, body.Entries, 2)
	assert.False(t, body.Complete)
}

func TestCheckTemplates_MissingDir(t *testing.T) {
	h, _ := newTestHandler(newFakeLauncher(), fakeChecker{err: domain.ErrTemplatesDirEmpty})
	rec := do(t, h.Routes(), http.MethodGet, "/templates/check")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	h, _ := newTestHandler(newFakeLauncher(), fakeChecker{})
	rec := do(t, h.Routes(), http.MethodPut, "/tasks/a")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	h, _ := newTestHandler(newFakeLauncher(), fakeChecker{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Serve(ctx, addr) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
