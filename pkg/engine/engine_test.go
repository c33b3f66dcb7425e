package engine

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellardb/cellardb/pkg/chunkstore"
	"github.com/cellardb/cellardb/pkg/tree"
)

func newTestEngine(t *testing.T) (*Engine, *tree.Registry) {
	t.Helper()
	store, err := chunkstore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	registry := tree.NewRegistry()
	return New(registry, store, 0.01, zerolog.Nop()), registry
}

func TestSwitchSealsActiveChunkAndRaisesThrottle(t *testing.T) {
	eng, registry := newTestEngine(t)
	tr, err := registry.Open("t1")
	require.NoError(t, err)

	require.NoError(t, eng.Switch(context.Background(), tr))

	assert.Equal(t, 2, tr.NumChunks())
	assert.Equal(t, 1, tr.MergeThrottle())
}

func TestCheckpointWritesPendingKeysAndMarksFlushed(t *testing.T) {
	eng, registry := newTestEngine(t)
	tr, err := registry.Open("t1")
	require.NoError(t, err)

	tr.AddKey("a")
	tr.AddKey("b")
	require.NoError(t, eng.Switch(context.Background(), tr))

	sealed := tr.RawChunks()[0]
	flushed, err := eng.Checkpoint(context.Background(), tr, sealed)
	require.NoError(t, err)
	assert.True(t, flushed)
	assert.True(t, sealed.OnDisk())

	payload, err := eng.Store.Read(tr.Name(), sealed.ID())
	require.NoError(t, err)
	assert.Equal(t, "a\nb", string(payload))
}

func TestBuildBloomMakesAddedKeysTestPositive(t *testing.T) {
	eng, registry := newTestEngine(t)
	tr, err := registry.Open("t1")
	require.NoError(t, err)

	tr.AddKey("needle")
	require.NoError(t, eng.Switch(context.Background(), tr))
	sealed := tr.RawChunks()[0]
	_, err = eng.Checkpoint(context.Background(), tr, sealed)
	require.NoError(t, err)

	require.NoError(t, eng.BuildBloom(context.Background(), tr, sealed))
	assert.True(t, sealed.HasBloom())

	filterBytes, err := eng.Store.Read(tr.Name(), sealed.ID()+".bloom")
	require.NoError(t, err)
	assert.NotEmpty(t, filterBytes)
}

func TestMergeSkipsWhenFewerThanTwoMergeableChunks(t *testing.T) {
	eng, registry := newTestEngine(t)
	tr, err := registry.Open("t1")
	require.NoError(t, err)

	require.NoError(t, eng.Merge(context.Background(), tr, 1))
	assert.Equal(t, 1, tr.NumChunks())
}

func TestMergeCombinesOnDiskChunksAndKeepsPrimary(t *testing.T) {
	eng, registry := newTestEngine(t)
	tr, err := registry.Open("t1")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		tr.AddKey("k")
		require.NoError(t, eng.Switch(context.Background(), tr))
	}
	require.Equal(t, 3, tr.NumChunks())

	for _, c := range tr.RawChunks() {
		if c.Primary() {
			continue
		}
		_, err := eng.Checkpoint(context.Background(), tr, c)
		require.NoError(t, err)
	}

	require.NoError(t, eng.Merge(context.Background(), tr, 1))
	assert.Equal(t, 2, tr.NumChunks())
	assert.Equal(t, 1, tr.MergeThrottle())

	var primaries int
	for _, c := range tr.RawChunks() {
		if c.Primary() {
			primaries++
		}
	}
	assert.Equal(t, 1, primaries)
}
