package tree

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/cellardb/cellardb/pkg/lsm"
)

// Chunk is one segment of a Tree's on-disk representation: either the
// primary (actively written) chunk, a sealed chunk still only in memory,
// or a sealed chunk already flushed to the chunk store. It implements
// lsm.Chunk.
type Chunk struct {
	id      string
	onDisk  atomic.Bool
	primary atomic.Bool
	bloom   atomic.Bool
	refs    atomic.Int32

	payloadMu sync.Mutex
	payload   []byte
}

var _ lsm.Chunk = (*Chunk)(nil)

// newChunk allocates a fresh primary chunk with a random id.
func newChunk() *Chunk {
	c := &Chunk{id: uuid.NewString()}
	c.primary.Store(true)
	return c
}

// NewMergedChunk allocates a fresh non-primary chunk, for use as a
// merge's output. The caller is responsible for calling MarkFlushed once
// its payload has actually been persisted.
func NewMergedChunk() *Chunk {
	return &Chunk{id: uuid.NewString()}
}

// ID identifies the chunk in the chunk store.
func (c *Chunk) ID() string { return c.id }

// OnDisk reports whether the chunk has been flushed.
func (c *Chunk) OnDisk() bool { return c.onDisk.Load() }

// Primary reports whether this is the tree's active chunk.
func (c *Chunk) Primary() bool { return c.primary.Load() }

// HasBloom reports whether a Bloom filter has been built for this chunk.
func (c *Chunk) HasBloom() bool { return c.bloom.Load() }

// Pin increments the chunk's reference count, protecting it from reuse
// while a worker is midway through flushing or merging it.
func (c *Chunk) Pin() { c.refs.Add(1) }

// Unpin releases a reference taken by Pin.
func (c *Chunk) Unpin() { c.refs.Add(-1) }

// Refs returns the current reference count, for diagnostics and tests.
func (c *Chunk) Refs() int { return int(c.refs.Load()) }

// MarkFlushed records that the chunk's contents are now durable on disk.
// Called by pkg/engine after a successful chunk store write.
func (c *Chunk) MarkFlushed() { c.onDisk.Store(true) }

// MarkBloomBuilt records that a Bloom filter now exists for this chunk.
func (c *Chunk) MarkBloomBuilt() { c.bloom.Store(true) }

// demote clears the primary flag, marking the chunk sealed. Called when a
// Switch opens a new primary chunk behind this one.
func (c *Chunk) demote() { c.primary.Store(false) }

// setPayload records the keys this chunk was sealed with. Called once, by
// Tree.SwitchChunk.
func (c *Chunk) setPayload(data []byte) {
	c.payloadMu.Lock()
	c.payload = data
	c.payloadMu.Unlock()
}

// Payload returns the chunk's sealed key set, or nil if none was ever
// recorded (e.g. a merged chunk built directly from other chunks'
// payloads via NewMergedChunk, which sets no payload of its own).
func (c *Chunk) Payload() []byte {
	c.payloadMu.Lock()
	defer c.payloadMu.Unlock()
	return c.payload
}
