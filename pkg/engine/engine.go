// Package engine wires lsm.Operations to concrete implementations: tree
// and chunk state live in pkg/tree, durable chunk payloads live in
// pkg/chunkstore, and chunk filters are built with pkg/bloom. It is the
// seam pkg/lsm's otherwise-pure scheduler is attached to the rest of
// cellardb through.
//
// The payload Checkpoint and Merge move around is an opaque byte blob:
// building a real memtable/SSTable write path is outside this
// repository's scope (it implements the maintenance scheduler, not a
// full storage engine), so Engine treats a chunk's content as a
// newline-separated key list purely so BuildBloom has real keys to test
// membership of.
package engine

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cellardb/cellardb/pkg/bloom"
	"github.com/cellardb/cellardb/pkg/chunkstore"
	"github.com/cellardb/cellardb/pkg/lsm"
	"github.com/cellardb/cellardb/pkg/metrics"
	"github.com/cellardb/cellardb/pkg/tree"
)

// Engine implements lsm.Operations over a tree.Registry and a
// chunkstore.Store.
type Engine struct {
	Registry *tree.Registry
	Store    *chunkstore.Store
	BloomFP  float64
	logger   zerolog.Logger
}

var _ lsm.Operations = (*Engine)(nil)

// New builds an Engine. bloomFP is the target false-positive rate newly
// built Bloom filters aim for.
func New(registry *tree.Registry, store *chunkstore.Store, bloomFP float64, logger zerolog.Logger) *Engine {
	if bloomFP <= 0 || bloomFP >= 1 {
		bloomFP = 0.01
	}
	return &Engine{
		Registry: registry,
		Store:    store,
		BloomFP:  bloomFP,
		logger:   logger.With().Str("component", "engine").Logger(),
	}
}

func asTree(t lsm.Tree) *tree.Tree {
	concrete, ok := t.(*tree.Tree)
	if !ok {
		panic(fmt.Sprintf("engine: unexpected Tree implementation %T", t))
	}
	return concrete
}

func asChunk(c lsm.Chunk) *tree.Chunk {
	concrete, ok := c.(*tree.Chunk)
	if !ok {
		panic(fmt.Sprintf("engine: unexpected Chunk implementation %T", c))
	}
	return concrete
}

// Switch seals t's active chunk in memory and opens a new one. Nothing
// is written to the chunk store yet; that happens at Checkpoint.
func (e *Engine) Switch(ctx context.Context, t lsm.Tree) error {
	tr := asTree(t)
	tr.Lock(lsm.LockExclusive)
	defer tr.Unlock()

	sealed := tr.SwitchChunk()
	if sealed == nil {
		return fmt.Errorf("engine: switch on tree %s: no primary chunk to seal", tr.Name())
	}
	tr.AdjustMergeThrottle(1)
	e.logger.Debug().Str("tree", tr.Name()).Str("chunk", sealed.ID()).Msg("sealed chunk via switch")
	return nil
}

// Checkpoint writes c's contents to the chunk store and marks it on
// disk. c must already be sealed (not primary); the core never selects
// a primary chunk for flush.
func (e *Engine) Checkpoint(ctx context.Context, t lsm.Tree, c lsm.Chunk) (bool, error) {
	tr := asTree(t)
	ch := asChunk(c)

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.ChunkstoreOpDuration, "checkpoint")

	payload := ch.Payload()
	if len(payload) == 0 {
		payload = []byte(fmt.Sprintf("chunk:%s:tree:%s", ch.ID(), tr.Name()))
	}
	if err := e.Store.Write(tr.Name(), ch.ID(), payload); err != nil {
		return false, fmt.Errorf("engine: checkpoint %s/%s: %w", tr.Name(), ch.ID(), err)
	}
	ch.MarkFlushed()
	return true, nil
}

// BuildBloom constructs a Bloom filter over c's stored payload and
// writes the serialized filter back to the chunk store under a
// derived key.
func (e *Engine) BuildBloom(ctx context.Context, t lsm.Tree, c lsm.Chunk) error {
	tr := asTree(t)
	ch := asChunk(c)

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.BloomBuildDuration)

	payload, err := e.Store.Read(tr.Name(), ch.ID())
	if err != nil {
		return fmt.Errorf("engine: build bloom %s/%s: %w", tr.Name(), ch.ID(), err)
	}

	keys := strings.Split(string(payload), "\n")
	filter := bloom.New(len(keys), e.BloomFP)
	for _, k := range keys {
		filter.Add([]byte(k))
	}

	if err := e.Store.Write(tr.Name(), ch.ID()+".bloom", filter.Bytes()); err != nil {
		return fmt.Errorf("engine: persist bloom %s/%s: %w", tr.Name(), ch.ID(), err)
	}
	ch.MarkBloomBuilt()
	return nil
}

// Merge folds every non-primary on-disk chunk of t into a single new
// chunk, deleting the old chunks' payloads from the store and replacing
// t's chunk list.
func (e *Engine) Merge(ctx context.Context, t lsm.Tree, workerID int) error {
	tr := asTree(t)

	tr.Lock(lsm.LockExclusive)
	chunks := tr.RawChunks()
	tr.Unlock()

	var mergeable []*tree.Chunk
	var primary *tree.Chunk
	for _, c := range chunks {
		if c.Primary() {
			primary = c
			continue
		}
		if c.OnDisk() {
			mergeable = append(mergeable, c)
		}
	}
	if len(mergeable) < 2 {
		return nil
	}

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.ChunkstoreOpDuration, "merge")

	var combined strings.Builder
	for _, c := range mergeable {
		payload, err := e.Store.Read(tr.Name(), c.ID())
		if err != nil {
			return fmt.Errorf("engine: merge read %s/%s: %w", tr.Name(), c.ID(), err)
		}
		combined.Write(payload)
		combined.WriteByte('\n')
	}

	merged := tree.NewMergedChunk()
	if err := e.Store.Write(tr.Name(), merged.ID(), []byte(combined.String())); err != nil {
		return fmt.Errorf("engine: merge write %s/%s: %w", tr.Name(), merged.ID(), err)
	}
	merged.MarkFlushed()

	for _, c := range mergeable {
		if err := e.Store.Delete(tr.Name(), c.ID()); err != nil {
			e.logger.Warn().Err(err).Str("tree", tr.Name()).Str("chunk", c.ID()).Msg("failed to delete merged-away chunk payload")
		}
	}

	newList := []*tree.Chunk{merged}
	if primary != nil {
		newList = append(newList, primary)
	}
	tr.Lock(lsm.LockExclusive)
	tr.ReplaceChunks(newList)
	tr.Unlock()
	tr.AdjustMergeThrottle(-1)

	e.logger.Debug().Str("tree", tr.Name()).Int("worker_id", workerID).Int("merged", len(mergeable)).Msg("merge completed")
	return nil
}

// session is the io.Closer returned by OpenSession. This chunk store
// supports only whole-value reads, so there is no uncommitted-update
// cache a worker session needs to isolate itself from; the type exists
// for interface parity with lsm.Operations.
type session struct{}

func (session) Close() error { return nil }

// OpenSession returns a no-op session handle for workerID.
func (e *Engine) OpenSession(workerID int) (io.Closer, error) {
	return session{}, nil
}
