package lsm

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Config configures a Manager. MaxWorkers bounds the number of live worker
// goroutines; at least three are required (the Manager Thread, a
// Switch-dedicated worker, and one general worker).
type Config struct {
	MaxWorkers int

	// SwitchIdle and ManagerIdle override how long a worker (or the
	// Manager Thread) sleeps when no trees are open. ManagerBusyRetry
	// overrides how long the Manager Thread sleeps after an inspection
	// pass that queued no Merge work. Zero keeps the package default for
	// each.
	SwitchIdle       time.Duration
	ManagerIdle      time.Duration
	ManagerBusyRetry time.Duration
}

// Option customizes a Manager at construction time.
type Option func(*Manager)

// WithDispatchHook installs a hook invoked after every dispatched unit.
// Intended for tests; production callers normally leave this
// unset and read Manager.Stats() instead.
func WithDispatchHook(hook DispatchHook) Option {
	return func(m *Manager) { m.hook = hook }
}

// Manager is the container that owns the queue set, the worker registry,
// the live worker count, and the configured maximum. One Manager exists
// per storage-engine connection; its lifetime equals the connection's.
type Manager struct {
	cfg    Config
	ops    Operations
	trees  TreeSource
	logger zerolog.Logger
	hook   DispatchHook

	qs       QueueSet
	counters Counters

	mu      sync.Mutex
	workers []*Worker

	count  atomic.Int32
	wg     sync.WaitGroup
	mt     *managerThread
	cancel context.CancelFunc
	runCtx context.Context
}

// NewManager validates cfg and constructs a Manager. It does not start any
// worker goroutines; call Start for that.
func NewManager(cfg Config, ops Operations, trees TreeSource, logger zerolog.Logger, opts ...Option) (*Manager, error) {
	if cfg.MaxWorkers < 3 {
		return nil, fmt.Errorf("lsm: max workers must be at least 3 (manager thread + switch worker + general worker), got %d", cfg.MaxWorkers)
	}
	if ops == nil {
		return nil, fmt.Errorf("lsm: operations must not be nil")
	}
	if trees == nil {
		return nil, fmt.Errorf("lsm: tree source must not be nil")
	}

	m := &Manager{
		cfg:    cfg,
		ops:    ops,
		trees:  trees,
		logger: logger.With().Str("component", "lsm-manager").Logger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Start spawns the Manager Thread, which in turn spawns the Switch worker
// and the first general worker in fixed order, plus any additional general
// workers up to cfg.MaxWorkers. All of that startup work completes
// synchronously; Start returns an error if any part of it fails and tears
// down whatever had already been spawned. Once Start returns nil, the
// Manager Thread's steady-state loop and every worker's loop run in their
// own goroutines until ctx is cancelled or Shutdown is called.
func (m *Manager) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	m.runCtx = runCtx
	m.cancel = cancel

	mt := newManagerThread(m)
	if err := mt.open(); err != nil {
		cancel()
		return fmt.Errorf("lsm: failed to open manager thread session: %w", err)
	}
	m.registerWorker(mt.Worker)
	m.mt = mt

	if err := mt.startup(runCtx); err != nil {
		cancel()
		return fmt.Errorf("lsm: worker startup failed: %w", err)
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		mt.run(runCtx, func() { m.count.Add(-1) })
	}()
	return nil
}

// registerWorker adds w to the registry and bumps the live worker count.
// The count is incremented under the creating thread before the
// worker's goroutine runs, so WorkerCount never undercounts a worker
// that hasn't started its loop yet.
func (m *Manager) registerWorker(w *Worker) {
	m.mu.Lock()
	m.workers = append(m.workers, w)
	m.mu.Unlock()
	m.count.Add(1)
}

// spawnWorker opens a session for a new worker synchronously (so failure
// during startup can be reported and unwound) and, on success, registers
// it and launches its steady-state loop in a new goroutine.
func (m *Manager) spawnWorker(id int, caps Capability) (*Worker, error) {
	w := newWorker(id, caps, &m.qs, m.ops, m.trees, m.logger, &m.counters, m.hook, m.cfg.SwitchIdle)
	if err := w.open(); err != nil {
		return nil, fmt.Errorf("worker %d: %w", id, err)
	}
	m.registerWorker(w)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		w.Run(m.runCtx, func() { m.count.Add(-1) })
	}()
	return w, nil
}

// Push enqueues a unit of kind targeting tree onto the queue that admits
// it. Used by foreground callers (switch/flush/bloom requests) and by the
// Manager Thread's inspection pass (merge requests).
func (m *Manager) Push(kind WorkKind, tree Tree) error {
	return m.qs.Push(NewWorkUnit(kind, tree))
}

// WorkerCount returns the number of currently live worker goroutines.
// Readers should tolerate transient values: a worker may be
// mid-exit.
func (m *Manager) WorkerCount() int {
	return int(m.count.Load())
}

// Stats is a diagnostic snapshot of manager state.
type Stats struct {
	Workers           int
	MaxWorkers        int
	SwitchQueueDepth  int
	AppQueueDepth     int
	ManagerQueueDepth int
	Dispatched        map[WorkKind]int64
	Discarded         map[WorkKind]int64
}

// Stats returns a point-in-time snapshot for logging and metrics.
func (m *Manager) Stats() Stats {
	kinds := []WorkKind{KindSwitch, KindFlush, KindBloom, KindMerge}
	dispatched := make(map[WorkKind]int64, len(kinds))
	discarded := make(map[WorkKind]int64, len(kinds))
	for _, k := range kinds {
		dispatched[k] = m.counters.Dispatched(k)
		discarded[k] = m.counters.Discarded(k)
	}
	return Stats{
		Workers:           m.WorkerCount(),
		MaxWorkers:        m.cfg.MaxWorkers,
		SwitchQueueDepth:  m.qs.switchQ.Len(),
		AppQueueDepth:     m.qs.appQ.Len(),
		ManagerQueueDepth: m.qs.managerQ.Len(),
		Dispatched:        dispatched,
		Discarded:         discarded,
	}
}

// Shutdown cancels the Manager's running context, waits up to timeout for
// every worker (including the Manager Thread) to exit, then drains
// whatever remains in the three queues, counting discarded units. It does
// not interrupt an in-flight dispatch: shutdown waits for it to return
// naturally.
func (m *Manager) Shutdown(timeout time.Duration) error {
	if m.cancel == nil {
		return fmt.Errorf("lsm: manager was never started")
	}
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		return fmt.Errorf("lsm: shutdown timed out after %s waiting for workers to exit", timeout)
	}

	m.drainQueues()
	return nil
}

// drainQueues empties every queue and counts what was discarded. Unlike
// WiredTiger's lsm_manager, which never frees queued-but-undispatched
// Merge units on shutdown, this repository drains and accounts for all
// three queues.
func (m *Manager) drainQueues() {
	switches, app, merges := m.qs.drainAll()
	for _, u := range switches {
		m.counters.recordDiscard(u.Kind())
	}
	for _, u := range app {
		m.counters.recordDiscard(u.Kind())
	}
	for _, u := range merges {
		m.counters.recordDiscard(u.Kind())
	}
	total := len(switches) + len(app) + len(merges)
	if total > 0 {
		m.logger.Warn().
			Int("switch", len(switches)).
			Int("app", len(app)).
			Int("merge", len(merges)).
			Msg("discarded undispatched work units during shutdown")
	}
}
