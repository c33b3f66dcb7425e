package lsm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFOOrder(t *testing.T) {
	var q queue
	tr := newFakeTree("t1", true)
	u1 := NewWorkUnit(KindSwitch, tr)
	u2 := NewWorkUnit(KindSwitch, tr)
	u3 := NewWorkUnit(KindSwitch, tr)

	require.NoError(t, q.Push(u1))
	require.NoError(t, q.Push(u2))
	require.NoError(t, q.Push(u3))

	assert.Same(t, u1, q.Pop(nil))
	assert.Same(t, u2, q.Pop(nil))
	assert.Same(t, u3, q.Pop(nil))
	assert.Nil(t, q.Pop(nil))
}

func TestQueueEmptyAndLen(t *testing.T) {
	var q queue
	assert.True(t, q.Empty())
	assert.Equal(t, 0, q.Len())

	tr := newFakeTree("t1", true)
	require.NoError(t, q.Push(NewWorkUnit(KindSwitch, tr)))
	assert.False(t, q.Empty())
	assert.Equal(t, 1, q.Len())

	q.Pop(nil)
	assert.True(t, q.Empty())
	assert.Equal(t, 0, q.Len())
}

func TestQueuePopNonMatchingHeadLeavesQueueIntact(t *testing.T) {
	var q queue
	tr := newFakeTree("t1", true)
	unit := NewWorkUnit(KindMerge, tr)
	require.NoError(t, q.Push(unit))

	got := q.Pop(func(u *WorkUnit) bool { return u.Kind() == KindFlush })
	assert.Nil(t, got)
	assert.Equal(t, 1, q.Len())

	got = q.Pop(func(u *WorkUnit) bool { return u.Kind() == KindMerge })
	assert.Same(t, unit, got)
}

func TestQueueDrainEmptiesAndReturnsAll(t *testing.T) {
	var q queue
	tr := newFakeTree("t1", true)
	u1 := NewWorkUnit(KindMerge, tr)
	u2 := NewWorkUnit(KindMerge, tr)
	require.NoError(t, q.Push(u1))
	require.NoError(t, q.Push(u2))

	got := q.drain()
	assert.Equal(t, []*WorkUnit{u1, u2}, got)
	assert.True(t, q.Empty())
	assert.Nil(t, q.Pop(nil))
}

func TestQueueSetRoutesByKind(t *testing.T) {
	var qs QueueSet
	tr := newFakeTree("t1", true)

	require.NoError(t, qs.Push(NewWorkUnit(KindSwitch, tr)))
	require.NoError(t, qs.Push(NewWorkUnit(KindFlush, tr)))
	require.NoError(t, qs.Push(NewWorkUnit(KindBloom, tr)))
	require.NoError(t, qs.Push(NewWorkUnit(KindMerge, tr)))

	assert.Equal(t, 1, qs.switchQ.Len())
	assert.Equal(t, 2, qs.appQ.Len())
	assert.Equal(t, 1, qs.managerQ.Len())
}

func TestQueueSetPopAppRespectsCapabilityFilter(t *testing.T) {
	var qs QueueSet
	tr := newFakeTree("t1", true)
	require.NoError(t, qs.Push(NewWorkUnit(KindBloom, tr)))

	// A Flush-only worker must not be able to pop the queued Bloom unit.
	assert.Nil(t, qs.PopApp(CapFlush))
	assert.Equal(t, 1, qs.appQ.Len())

	got := qs.PopApp(CapBloom)
	require.NotNil(t, got)
	assert.Equal(t, KindBloom, got.Kind())
}

func TestQueueSetPopMergeOnlyYieldsMergeKind(t *testing.T) {
	var qs QueueSet
	tr := newFakeTree("t1", true)
	require.NoError(t, qs.Push(NewWorkUnit(KindMerge, tr)))

	got := qs.PopMerge()
	require.NotNil(t, got)
	assert.Equal(t, KindMerge, got.Kind())
	assert.Nil(t, qs.PopMerge())
}

func TestQueueSetDrainAllCoversEveryQueue(t *testing.T) {
	var qs QueueSet
	tr := newFakeTree("t1", true)
	require.NoError(t, qs.Push(NewWorkUnit(KindSwitch, tr)))
	require.NoError(t, qs.Push(NewWorkUnit(KindFlush, tr)))
	require.NoError(t, qs.Push(NewWorkUnit(KindMerge, tr)))

	switches, app, merges := qs.drainAll()
	assert.Len(t, switches, 1)
	assert.Len(t, app, 1)
	assert.Len(t, merges, 1)
	assert.Equal(t, 0, qs.switchQ.Len())
	assert.Equal(t, 0, qs.appQ.Len())
	assert.Equal(t, 0, qs.managerQ.Len())
}
