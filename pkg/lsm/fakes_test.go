package lsm

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// fakeChunk is a minimal in-memory Chunk for tests.
type fakeChunk struct {
	mu      sync.Mutex
	onDisk  bool
	primary bool
	bloom   bool
	pins    int
}

func (c *fakeChunk) OnDisk() bool  { c.mu.Lock(); defer c.mu.Unlock(); return c.onDisk }
func (c *fakeChunk) Primary() bool { c.mu.Lock(); defer c.mu.Unlock(); return c.primary }
func (c *fakeChunk) HasBloom() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bloom
}
func (c *fakeChunk) Pin()   { c.mu.Lock(); c.pins++; c.mu.Unlock() }
func (c *fakeChunk) Unpin() { c.mu.Lock(); c.pins--; c.mu.Unlock() }

// fakeTree is a minimal in-memory Tree for tests.
type fakeTree struct {
	mu            sync.RWMutex
	name          string
	working       bool
	chunks        []Chunk
	mergeThrottle int
}

func newFakeTree(name string, working bool) *fakeTree {
	return &fakeTree{name: name, working: working}
}

func (t *fakeTree) Name() string { return t.name }

func (t *fakeTree) Lock(mode LockMode) {
	if mode == LockExclusive {
		t.mu.Lock()
	} else {
		t.mu.RLock()
	}
}

func (t *fakeTree) Unlock() {
	// Tests only ever take LockShared, so RUnlock is always correct here;
	// a real Tree implementation tracks the mode itself to unlock properly.
	t.mu.RUnlock()
}

func (t *fakeTree) Working() bool { return t.working }

func (t *fakeTree) Chunks() []Chunk {
	out := make([]Chunk, len(t.chunks))
	copy(out, t.chunks)
	return out
}

func (t *fakeTree) NumChunks() int { return len(t.chunks) }

func (t *fakeTree) MergeThrottle() int { return t.mergeThrottle }

func (t *fakeTree) addChunk(c Chunk) { t.chunks = append(t.chunks, c) }

// fakeTreeSource is a static TreeSource.
type fakeTreeSource struct {
	mu    sync.RWMutex
	trees []Tree
}

func (s *fakeTreeSource) Trees() []Tree {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Tree, len(s.trees))
	copy(out, s.trees)
	return out
}

func (s *fakeTreeSource) set(trees ...Tree) {
	s.mu.Lock()
	s.trees = trees
	s.mu.Unlock()
}

// fakeSession is the io.Closer returned by fakeOps.OpenSession.
type fakeSession struct{ closed bool }

func (s *fakeSession) Close() error { s.closed = true; return nil }

// fakeOps is a fully instrumented Operations fake: every call is recorded
// and each method's return error is configurable per tree name.
type fakeOps struct {
	mu sync.Mutex

	switchCalls []string
	flushCalls  []string
	mergeCalls  []string
	bloomCalls  []string

	switchErr map[string]error
	flushErr  map[string]error
	mergeErr  map[string]error
	bloomErr  map[string]error

	openSessionErr error
	openSessions   int
}

func newFakeOps() *fakeOps {
	return &fakeOps{
		switchErr: map[string]error{},
		flushErr:  map[string]error{},
		mergeErr:  map[string]error{},
		bloomErr:  map[string]error{},
	}
}

func (o *fakeOps) Switch(ctx context.Context, t Tree) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.switchCalls = append(o.switchCalls, t.Name())
	return o.switchErr[t.Name()]
}

func (o *fakeOps) Checkpoint(ctx context.Context, t Tree, c Chunk) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.flushCalls = append(o.flushCalls, t.Name())
	if err := o.flushErr[t.Name()]; err != nil {
		return false, err
	}
	return true, nil
}

func (o *fakeOps) Merge(ctx context.Context, t Tree, workerID int) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.mergeCalls = append(o.mergeCalls, t.Name())
	return o.mergeErr[t.Name()]
}

func (o *fakeOps) BuildBloom(ctx context.Context, t Tree, c Chunk) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.bloomCalls = append(o.bloomCalls, t.Name())
	return o.bloomErr[t.Name()]
}

func (o *fakeOps) OpenSession(workerID int) (io.Closer, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.openSessions++
	if o.openSessionErr != nil {
		return nil, o.openSessionErr
	}
	return &fakeSession{}, nil
}

func (o *fakeOps) counts() (switches, flushes, merges, blooms int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.switchCalls), len(o.flushCalls), len(o.mergeCalls), len(o.bloomCalls)
}

var errBoom = fmt.Errorf("boom")
