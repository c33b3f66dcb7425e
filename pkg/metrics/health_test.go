package metrics

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/cellardb/cellardb/pkg/lsm"
)

// noopOperations satisfies lsm.Operations without touching disk; it exists
// only to let a test stand up a real *lsm.Manager.
type noopOperations struct{}

func (noopOperations) Switch(context.Context, lsm.Tree) error { return nil }

func (noopOperations) Checkpoint(context.Context, lsm.Tree, lsm.Chunk) (bool, error) {
	return true, nil
}

func (noopOperations) Merge(context.Context, lsm.Tree, int) error { return nil }

func (noopOperations) BuildBloom(context.Context, lsm.Tree, lsm.Chunk) error { return nil }

func (noopOperations) OpenSession(int) (io.Closer, error) { return io.NopCloser(nil), nil }

// emptyTreeSource reports no open trees, so the Manager Thread's inspection
// pass always sleeps instead of queueing merge work.
type emptyTreeSource struct{}

func (emptyTreeSource) Trees() []lsm.Tree { return nil }

// newTestManager starts a real Manager with the minimum worker count, so
// Stats().Workers reaches Stats().MaxWorkers almost immediately.
func newTestManager(t *testing.T) *lsm.Manager {
	t.Helper()
	mgr, err := lsm.NewManager(lsm.Config{MaxWorkers: 3}, noopOperations{}, emptyTreeSource{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		_ = mgr.Shutdown(time.Second)
	})
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return mgr
}

func resetHealth() {
	health = &healthState{startTime: time.Now()}
}

func TestGetHealthReportsVersionAndUptime(t *testing.T) {
	resetHealth()
	SetVersion("1.0.0")

	h := GetHealth()

	if h.Status != "healthy" {
		t.Errorf("expected status 'healthy', got '%s'", h.Status)
	}
	if h.Version != "1.0.0" {
		t.Errorf("expected version '1.0.0', got '%s'", h.Version)
	}
	if h.Uptime == "" {
		t.Error("expected non-empty uptime")
	}
}

func TestGetReadinessNotReadyBeforeStoreOrManagerSet(t *testing.T) {
	resetHealth()

	readiness := GetReadiness()

	if readiness.Status != "not_ready" {
		t.Errorf("expected status 'not_ready', got '%s'", readiness.Status)
	}
	if readiness.Components["chunkstore"] == "ready" {
		t.Error("chunkstore should not be ready before SetStoreOpen")
	}
	if readiness.Components["lsm-manager"] != "not started" {
		t.Errorf("expected lsm-manager 'not started', got '%s'", readiness.Components["lsm-manager"])
	}
}

func TestGetReadinessNotReadyWhileStoreClosed(t *testing.T) {
	resetHealth()
	SetStoreOpen(false, "opening")
	SetManager(newTestManager(t))

	readiness := GetReadiness()

	if readiness.Status != "not_ready" {
		t.Errorf("expected status 'not_ready', got '%s'", readiness.Status)
	}
	if readiness.Components["chunkstore"] != "not ready: opening" {
		t.Errorf("unexpected chunkstore status: %s", readiness.Components["chunkstore"])
	}
}

func TestGetReadinessReadyOnceStoreOpenAndWorkersRunning(t *testing.T) {
	resetHealth()
	SetStoreOpen(true, "")
	SetManager(newTestManager(t))

	require := func(cond bool, msg string) {
		if !cond {
			t.Fatal(msg)
		}
	}
	// Worker goroutines spawn asynchronously during Start; poll briefly
	// rather than asserting readiness on the very first observation.
	deadline := time.Now().Add(time.Second)
	var readiness HealthStatus
	for time.Now().Before(deadline) {
		readiness = GetReadiness()
		if readiness.Status == "ready" {
			break
		}
		time.Sleep(time.Millisecond)
	}
	require(readiness.Status == "ready", "expected status 'ready', got '"+readiness.Status+"'")
	require(readiness.Components["chunkstore"] == "ready", "expected chunkstore ready")
}

func TestHealthHandlerReturns200(t *testing.T) {
	resetHealth()
	SetVersion("test")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	HealthHandler()(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var h HealthStatus
	if err := json.NewDecoder(w.Body).Decode(&h); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if h.Version != "test" {
		t.Errorf("expected version 'test', got %s", h.Version)
	}
}

func TestReadyHandlerReturns503WhenNotReady(t *testing.T) {
	resetHealth()

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	ReadyHandler()(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}

	var readiness HealthStatus
	if err := json.NewDecoder(w.Body).Decode(&readiness); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if readiness.Status != "not_ready" {
		t.Errorf("expected not_ready status, got %s", readiness.Status)
	}
}

func TestLivenessHandlerAlwaysReturns200(t *testing.T) {
	resetHealth()

	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	w := httptest.NewRecorder()
	LivenessHandler()(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var response map[string]string
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["status"] != "alive" {
		t.Errorf("expected status 'alive', got '%s'", response["status"])
	}
	if response["uptime"] == "" {
		t.Error("uptime should not be empty")
	}
}
