package tree

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cellardb/cellardb/pkg/lsm"
)

// Tree is a concrete LSM tree: an ordered list of Chunks plus the merge
// throttle counter the Manager Thread's inspection pass reads. It
// implements lsm.Tree directly.
//
// Locking: this implementation does not distinguish Shared from
// Exclusive at the mutex level — both take the same sync.Mutex. The
// core only ever holds Shared for a constant-time metadata scan, never
// across I/O, and pkg/engine's mutators (Switch, Merge) hold Exclusive
// only for the brief in-memory chunk-list update that brackets their
// actual I/O, so true concurrent-reader throughput was never a
// requirement here.
type Tree struct {
	name    string
	mu      sync.Mutex
	working atomic.Bool

	chunksMu      sync.RWMutex
	chunks        []*Chunk
	mergeThrottle atomic.Int32

	pendingMu sync.Mutex
	pending   []string
}

var _ lsm.Tree = (*Tree)(nil)

// New creates an empty, working Tree with a single primary chunk.
func New(name string) *Tree {
	t := &Tree{name: name}
	t.working.Store(true)
	t.chunks = []*Chunk{newChunk()}
	return t
}

// Name identifies the tree.
func (t *Tree) Name() string { return t.name }

// Lock acquires the tree's lock. See the type doc for why mode is
// currently ignored at the mutex level.
func (t *Tree) Lock(mode lsm.LockMode) { t.mu.Lock() }

// Unlock releases the tree's lock.
func (t *Tree) Unlock() { t.mu.Unlock() }

// Working reports whether the tree currently accepts maintenance work.
func (t *Tree) Working() bool { return t.working.Load() }

// Close marks the tree as no longer working; the core stops selecting
// flush or Bloom candidates from it, though already-pinned chunks are
// unaffected.
func (t *Tree) Close() { t.working.Store(false) }

// Chunks returns a snapshot of the tree's chunk list as lsm.Chunk values,
// oldest first. The underlying *Chunk pointers are still live and
// mutable; only the slice itself is a copy.
func (t *Tree) Chunks() []lsm.Chunk {
	t.chunksMu.RLock()
	defer t.chunksMu.RUnlock()
	out := make([]lsm.Chunk, len(t.chunks))
	for i, c := range t.chunks {
		out[i] = c
	}
	return out
}

// RawChunks returns the tree's own *Chunk slice, for callers (pkg/engine)
// that need the concrete type rather than the lsm.Chunk interface.
func (t *Tree) RawChunks() []*Chunk {
	t.chunksMu.RLock()
	defer t.chunksMu.RUnlock()
	out := make([]*Chunk, len(t.chunks))
	copy(out, t.chunks)
	return out
}

// NumChunks returns the current chunk count.
func (t *Tree) NumChunks() int {
	t.chunksMu.RLock()
	defer t.chunksMu.RUnlock()
	return len(t.chunks)
}

// MergeThrottle returns the current merge throttle value. A positive
// value means the tree is backlogged enough that the Manager Thread
// should keep scheduling merges for it; zero or negative means it's
// caught up.
func (t *Tree) MergeThrottle() int { return int(t.mergeThrottle.Load()) }

// AdjustMergeThrottle adds delta to the merge throttle, floored at zero.
// pkg/engine increases it as chunks accumulate behind the primary and
// decreases it after each successful merge.
func (t *Tree) AdjustMergeThrottle(delta int32) {
	for {
		cur := t.mergeThrottle.Load()
		next := cur + delta
		if next < 0 {
			next = 0
		}
		if t.mergeThrottle.CompareAndSwap(cur, next) {
			return
		}
	}
}

// Primary returns the tree's current active chunk. Callers must hold the
// tree's lock.
func (t *Tree) Primary() *Chunk {
	t.chunksMu.RLock()
	defer t.chunksMu.RUnlock()
	if len(t.chunks) == 0 {
		return nil
	}
	return t.chunks[len(t.chunks)-1]
}

// AddKey appends key to the tree's in-memory pending set, standing in for
// the real write path (out of scope here). The next SwitchChunk call
// captures and clears this set as the sealed chunk's payload.
func (t *Tree) AddKey(key string) {
	t.pendingMu.Lock()
	t.pending = append(t.pending, key)
	t.pendingMu.Unlock()
}

// takePending returns and clears the tree's pending key set.
func (t *Tree) takePending() []string {
	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()
	pending := t.pending
	t.pending = nil
	return pending
}

// SwitchChunk seals the current primary chunk and appends a fresh one.
// Callers must hold the tree's lock in lsm.LockExclusive. Returns the
// newly sealed chunk, carrying whatever keys were added to the tree since
// the last switch as its payload.
func (t *Tree) SwitchChunk() *Chunk {
	pending := t.takePending()

	t.chunksMu.Lock()
	defer t.chunksMu.Unlock()

	var sealed *Chunk
	if len(t.chunks) > 0 {
		sealed = t.chunks[len(t.chunks)-1]
		sealed.demote()
		sealed.setPayload([]byte(strings.Join(pending, "\n")))
	}
	t.chunks = append(t.chunks, newChunk())
	return sealed
}

// ReplaceChunks atomically swaps the tree's chunk list, used after a
// merge combines several on-disk chunks into one.
func (t *Tree) ReplaceChunks(chunks []*Chunk) {
	t.chunksMu.Lock()
	defer t.chunksMu.Unlock()
	t.chunks = chunks
}
