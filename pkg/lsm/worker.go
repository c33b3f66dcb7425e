package lsm

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/cellardb/cellardb/pkg/log"
)

// State is a Worker's position in its lifecycle.
type State int32

const (
	StateStarting State = iota
	StateRunning
	StateDraining
	StateExited
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateExited:
		return "exited"
	default:
		return "unknown"
	}
}

// DispatchHook is invoked once per dispatched WorkUnit, after the external
// operation returns. Tests use it to count and order dispatches without
// reaching into worker internals.
type DispatchHook func(workerID int, kind WorkKind, tree Tree, err error)

// Counters are the dispatch/discard tallies shared by every worker under a
// Manager, surfaced through Manager.Stats() and pkg/metrics.
type Counters struct {
	dispatched [4]atomic.Int64
	discarded  [4]atomic.Int64
}

func (c *Counters) recordDispatch(k WorkKind) { c.dispatched[k].Add(1) }
func (c *Counters) recordDiscard(k WorkKind)  { c.discarded[k].Add(1) }

// Dispatched returns the number of units of kind k dispatched so far.
func (c *Counters) Dispatched(k WorkKind) int64 { return c.dispatched[k].Load() }

// Discarded returns the number of units of kind k dropped undispatched
// during shutdown drain.
func (c *Counters) Discarded(k WorkKind) int64 { return c.discarded[k].Load() }

// defaultIdleInterval is how long a worker sleeps when no LSM trees are
// open at all, to avoid a tight busy loop. Config.SwitchIdle/ManagerIdle
// override this per Manager.
const defaultIdleInterval = 10 * time.Millisecond

// Worker is a long-lived execution context bound at creation to a
// Capability mask and numeric id. It drains the queues in fixed priority
// order (switch, then app, then manager) and dispatches each popped unit
// to the matching Operations call.
type Worker struct {
	id     int
	caps   Capability
	qs     *QueueSet
	ops    Operations
	trees  TreeSource
	logger zerolog.Logger

	counters *Counters
	onHook   DispatchHook
	idle     time.Duration

	state   atomic.Int32
	session io.Closer
}

// newWorker constructs a Worker. Unexported: workers are always created
// and owned by a Manager.
func newWorker(id int, caps Capability, qs *QueueSet, ops Operations, trees TreeSource, logger zerolog.Logger, counters *Counters, hook DispatchHook, idle time.Duration) *Worker {
	if idle <= 0 {
		idle = defaultIdleInterval
	}
	return &Worker{
		id:       id,
		caps:     caps,
		qs:       qs,
		ops:      ops,
		trees:    trees,
		logger:   log.WithWorkerID(logger, id).With().Str("capability", caps.String()).Logger(),
		counters: counters,
		onHook:   hook,
		idle:     idle,
	}
}

// ID returns the worker's numeric identifier.
func (w *Worker) ID() int { return w.id }

// Capability returns the worker's capability mask.
func (w *Worker) Capability() Capability { return w.caps }

// State returns the worker's current lifecycle state.
func (w *Worker) State() State { return State(w.state.Load()) }

func (w *Worker) setState(s State) { w.state.Store(int32(s)) }

// open acquires the worker's session synchronously. The Manager calls this
// before launching the worker's goroutine so a failure during startup can
// be reported and the partially constructed worker torn down, rather than
// surfacing asynchronously after Start has already returned.
func (w *Worker) open() error {
	w.setState(StateStarting)
	session, err := w.ops.OpenSession(w.id)
	if err != nil {
		return err
	}
	w.session = session
	return nil
}

// Run executes the worker loop until ctx is cancelled. It is the caller's
// responsibility to run this in its own goroutine, after open has
// succeeded, and to pass an onExit callback that decrements the Manager's
// live worker count; Run invokes it just before returning, keeping the
// worker-count counter accurate.
func (w *Worker) Run(ctx context.Context, onExit func()) {
	w.setState(StateRunning)
	w.loop(ctx)

	w.setState(StateDraining)
	if w.session != nil {
		if err := w.session.Close(); err != nil {
			w.logger.Warn().Err(err).Msg("error closing worker session")
		}
	}
	onExit()
	w.setState(StateExited)
}

// loop is the steady-state Running phase: poll the shutdown signal, then
// service queues in fixed priority order.
func (w *Worker) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if len(w.trees.Trees()) == 0 {
			sleep(ctx, w.idle)
			continue
		}

		if w.caps.Has(KindSwitch) {
			w.drainSwitches(ctx)
		}
		if w.caps.Has(KindFlush) || w.caps.Has(KindBloom) {
			w.dispatchAppOnce(ctx)
		}
		if w.caps.Has(KindMerge) {
			w.dispatchMergeOnce(ctx)
		}
	}
}

// sleep blocks for d or until ctx is cancelled, whichever comes first.
func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// drainSwitches empties the switch queue before the worker looks at any
// other queue. Switches are highest priority because they unblock
// foreground writers waiting on a full active chunk.
func (w *Worker) drainSwitches(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		unit := w.qs.PopSwitch()
		if unit == nil {
			return
		}
		err := w.ops.Switch(ctx, unit.Tree())
		w.finishDispatch(unit, err, "switch failed")
	}
}

// dispatchAppOnce attempts a single pop from the App queue using this
// worker's Flush|Bloom filter and dispatches whatever it gets. One pop per
// iteration, not a drain, so a worker can't monopolize itself on one kind
// while Merge or Switch starve.
func (w *Worker) dispatchAppOnce(ctx context.Context) {
	var filter Capability
	if w.caps.Has(KindFlush) {
		filter |= CapFlush
	}
	if w.caps.Has(KindBloom) {
		filter |= CapBloom
	}
	unit := w.qs.PopApp(filter)
	if unit == nil {
		return
	}
	switch unit.Kind() {
	case KindFlush:
		w.dispatchFlush(ctx, unit)
	case KindBloom:
		w.dispatchBloom(ctx, unit)
	default:
		assertf(false, "app queue yielded non-app unit kind %s", unit.Kind())
	}
}

// dispatchFlush selects the chunk to flush and checkpoints it.
func (w *Worker) dispatchFlush(ctx context.Context, unit *WorkUnit) {
	chunk, err := w.selectFlushChunk(unit.Tree())
	if err != nil {
		w.finishDispatch(unit, err, "flush candidate selection failed")
		return
	}
	if chunk == nil {
		// Nothing to flush right now; not an error, just no-op this round.
		return
	}
	_, err = w.ops.Checkpoint(ctx, unit.Tree(), chunk)
	chunk.Unpin()
	w.finishDispatch(unit, err, "checkpoint failed")
}

// dispatchBloom selects an on-disk chunk lacking a filter and builds one.
func (w *Worker) dispatchBloom(ctx context.Context, unit *WorkUnit) {
	chunk, err := w.selectBloomChunk(unit.Tree())
	if err != nil {
		w.finishDispatch(unit, err, "bloom candidate selection failed")
		return
	}
	if chunk == nil {
		return
	}
	err = w.ops.BuildBloom(ctx, unit.Tree(), chunk)
	chunk.Unpin()
	w.finishDispatch(unit, err, "bloom build failed")
}

// dispatchMergeOnce attempts a single pop from the Manager queue and, if
// it got a unit, merges it. Defined on Worker (not just on managerThread)
// because the Manager Thread services Merge exactly like any other
// Merge-capable worker.
func (w *Worker) dispatchMergeOnce(ctx context.Context) {
	unit := w.qs.PopMerge()
	if unit == nil {
		return
	}
	assertf(unit.Kind() == KindMerge, "manager queue yielded non-merge unit kind %s", unit.Kind())
	err := w.ops.Merge(ctx, unit.Tree(), w.id)
	w.finishDispatch(unit, err, "merge failed")
	// Clear any per-session tree handle so the next iteration starts
	// fresh.
	w.resetSessionTreeState()
}

// resetSessionTreeState is a hook for session-scoped cleanup between merge
// iterations. Sessions in this implementation carry no per-tree state, so
// this is presently a no-op; it exists because the source clears
// WT_CLEAR_BTREE_IN_SESSION here and a Go session abstraction with
// per-tree caching would need the same reset point.
func (w *Worker) resetSessionTreeState() {}

// selectFlushChunk finds and pins a chunk in t likely to need flushing:
// the tree is locked, the first chunk not yet on disk is identified by a
// linear scan, its reference count is incremented, the tree is unlocked,
// and the pinned chunk is returned. Asserts if the only such chunk is the
// tree's primary chunk — the core must never flush the chunk still being
// written.
func (w *Worker) selectFlushChunk(t Tree) (Chunk, error) {
	t.Lock(LockShared)
	defer t.Unlock()

	if !t.Working() {
		return nil, nil
	}

	chunks := t.Chunks()
	var candidate Chunk
	for _, c := range chunks {
		if !c.OnDisk() {
			candidate = c
			break
		}
	}
	if candidate == nil {
		return nil, nil
	}
	assertf(!candidate.Primary(), "refusing to flush primary chunk of tree %s", t.Name())
	candidate.Pin()
	return candidate, nil
}

// selectBloomChunk finds the first on-disk chunk of t that has no Bloom
// filter yet. Mirrors selectFlushChunk's scan-and-pin shape but over the
// complementary predicate; Bloom filters are only built for chunks that
// have already been flushed.
func (w *Worker) selectBloomChunk(t Tree) (Chunk, error) {
	t.Lock(LockShared)
	defer t.Unlock()

	if !t.Working() {
		return nil, nil
	}

	for _, c := range t.Chunks() {
		if c.OnDisk() && !c.HasBloom() {
			c.Pin()
			return c, nil
		}
	}
	return nil, nil
}

// finishDispatch is the single place every dispatch funnels through: it
// logs and swallows the error (a single failed operation must never end
// the worker), bumps the shared counters, and
// fires the test dispatch hook if one was installed.
func (w *Worker) finishDispatch(unit *WorkUnit, err error, context string) {
	if err != nil {
		w.logger.Error().Err(err).Str("tree", unit.Tree().Name()).Str("kind", unit.Kind().String()).Msg(context)
	}
	if w.counters != nil {
		w.counters.recordDispatch(unit.Kind())
	}
	if w.onHook != nil {
		w.onHook(w.id, unit.Kind(), unit.Tree(), err)
	}
}
