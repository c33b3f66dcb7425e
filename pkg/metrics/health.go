package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cellardb/cellardb/pkg/lsm"
)

// HealthStatus is the JSON body served from /health and /ready.
type HealthStatus struct {
	Status     string            `json:"status"` // "healthy", "ready", "not_ready"
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components,omitempty"`
	Message    string            `json:"message,omitempty"`
	Version    string            `json:"version,omitempty"`
	Uptime     string            `json:"uptime,omitempty"`
	StartTime  time.Time         `json:"-"`
}

var health = &healthState{startTime: time.Now()}

// healthState tracks the only two things that decide whether a cellardb
// process is ready to serve traffic: whether its chunk store is open, and
// whether its maintenance manager has every configured worker running.
// Unlike a generic named-component registry, there is nothing else to
// plug in here: these are the process's only two dependencies.
type healthState struct {
	mu        sync.RWMutex
	version   string
	startTime time.Time

	storeOpen    bool
	storeMessage string

	manager *lsm.Manager
}

// SetVersion sets the version string reported in health responses.
func SetVersion(version string) {
	health.mu.Lock()
	defer health.mu.Unlock()
	health.version = version
}

// SetStoreOpen records whether the chunk store backing this process is
// open and usable.
func SetStoreOpen(open bool, message string) {
	health.mu.Lock()
	defer health.mu.Unlock()
	health.storeOpen = open
	health.storeMessage = message
}

// SetManager records the manager whose worker count determines readiness.
// Call once, after Manager.Start succeeds.
func SetManager(mgr *lsm.Manager) {
	health.mu.Lock()
	defer health.mu.Unlock()
	health.manager = mgr
}

// GetHealth reports liveness: healthy as long as the process can answer
// at all. See GetReadiness for the stricter check.
func GetHealth() HealthStatus {
	health.mu.RLock()
	defer health.mu.RUnlock()

	return HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   health.version,
		Uptime:    time.Since(health.startTime).String(),
		StartTime: health.startTime,
	}
}

// GetReadiness reports whether the chunk store is open and the manager
// has every configured worker running.
func GetReadiness() HealthStatus {
	health.mu.RLock()
	defer health.mu.RUnlock()

	status := "ready"
	message := ""
	components := make(map[string]string, 2)

	if health.storeOpen {
		components["chunkstore"] = "ready"
	} else {
		status = "not_ready"
		msg := health.storeMessage
		if msg == "" {
			msg = "chunk store not open"
		}
		components["chunkstore"] = "not ready: " + msg
		message = msg
	}

	if health.manager == nil {
		status = "not_ready"
		components["lsm-manager"] = "not started"
		if message == "" {
			message = "waiting for manager to start"
		}
	} else {
		stats := health.manager.Stats()
		components["lsm-manager"] = fmt.Sprintf("%d/%d workers running", stats.Workers, stats.MaxWorkers)
		if stats.Workers < stats.MaxWorkers {
			status = "not_ready"
			if message == "" {
				message = "waiting for workers to start"
			}
		}
	}

	return HealthStatus{
		Status:     status,
		Timestamp:  time.Now(),
		Components: components,
		Message:    message,
		Version:    health.version,
		Uptime:     time.Since(health.startTime).String(),
		StartTime:  health.startTime,
	}
}

// HealthHandler returns an HTTP handler for the /health endpoint.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := GetHealth()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(h)
	}
}

// ReadyHandler returns an HTTP handler for the /ready endpoint.
func ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		readiness := GetReadiness()

		w.Header().Set("Content-Type", "application/json")
		statusCode := http.StatusOK
		if readiness.Status != "ready" {
			statusCode = http.StatusServiceUnavailable
		}
		w.WriteHeader(statusCode)

		_ = json.NewEncoder(w).Encode(readiness)
	}
}

// LivenessHandler returns a simple liveness check: 200 as long as the
// process is running.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status": "alive",
			"uptime": time.Since(health.startTime).String(),
		})
	}
}
