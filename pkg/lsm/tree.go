package lsm

import (
	"context"
	"io"
)

// LockMode selects shared or exclusive access when a caller locks a Tree.
type LockMode int

const (
	// LockShared is taken by the core when it only reads tree metadata,
	// e.g. scanning the chunk array to pick a flush candidate.
	LockShared LockMode = iota
	// LockExclusive is taken by external operations that mutate tree
	// metadata (switch, merge).
	LockExclusive
)

// Tree is everything the core needs from an LSM tree. It is implemented by
// pkg/tree.Tree; the core never owns a Tree, only holds a non-owning
// reference to one inside a WorkUnit.
type Tree interface {
	// Name identifies the tree for logging and metrics.
	Name() string
	// Lock acquires the tree's advisory lock in the given mode. Unlock
	// releases it. The core holds this lock only for constant-time
	// metadata inspection, never across I/O.
	Lock(mode LockMode)
	Unlock()
	// Working reports whether the tree is open for business; a tree
	// that isn't working yields no flush candidates.
	Working() bool
	// Chunks returns the tree's chunk array in on-disk order, oldest
	// first. The slice is only valid while the tree is locked.
	Chunks() []Chunk
	// NumChunks and MergeThrottle mirror a tree's chunk count and merge
	// backlog; the Manager Thread's inspection pass reads both without
	// locking (diagnostic-grade reads, tolerant of races).
	NumChunks() int
	MergeThrottle() int
}

// Chunk is a single segment of a Tree: either sealed on disk, sealed but
// still only in memory, or the primary (actively being written) chunk.
type Chunk interface {
	// OnDisk reports whether the chunk has already been flushed.
	OnDisk() bool
	// Primary reports whether this is the tree's active, mutable chunk.
	// The core refuses to flush the primary chunk.
	Primary() bool
	// Pin/Unpin adjust the chunk's reference count. Pin is called while
	// the tree is still locked, during flush- or Bloom-candidate
	// selection; Unpin is called after the checkpoint or Bloom build
	// operation returns, whether or not it succeeded.
	Pin()
	Unpin()
	// HasBloom reports whether a Bloom filter has already been built for
	// this chunk. Only on-disk chunks without one are Bloom candidates.
	HasBloom() bool
}

// TreeSource is the engine-connection state the Manager Thread scans: the
// set of currently open LSM trees. Implemented by pkg/tree.Registry.
type TreeSource interface {
	Trees() []Tree
}

// Operations are the external collaborators the core invokes once it has
// classified and dequeued a WorkUnit. None of their internals
// are the core's concern; the core only needs to call them and handle
// their errors.
type Operations interface {
	// Switch seals the active chunk of t and begins a new one.
	Switch(ctx context.Context, t Tree) error
	// Checkpoint writes c to disk, reporting whether it newly flushed.
	Checkpoint(ctx context.Context, t Tree, c Chunk) (flushed bool, err error)
	// Merge performs one merge step on t using the given worker slot.
	Merge(ctx context.Context, t Tree, workerID int) error
	// BuildBloom constructs a Bloom filter over c.
	BuildBloom(ctx context.Context, t Tree, c Chunk) error
	// OpenSession acquires a per-worker session with read-uncommitted
	// isolation: all background work reads only sealed,
	// read-only chunks, so caching uncommitted updates would be wasted
	// cache space. Calling Close on the returned io.Closer releases
	// it.
	OpenSession(workerID int) (io.Closer, error)
}
