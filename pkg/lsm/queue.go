package lsm

import (
	"sync"
	"sync/atomic"
)

// queue is a FIFO of WorkUnits guarded by its own lock. It underlies all
// three of Manager's queues (switch, app, manager); what differs between
// them is only the admission/pop rule each one is driven with.
type queue struct {
	mu    sync.Mutex
	items []*WorkUnit
	// count mirrors len(items) so Empty can be checked without taking
	// mu — the "double-checked idiom" fast path this queue is built around.
	count atomic.Int64
}

// Len reports the queue's current length. Like Empty, this is a diagnostic
// read: it does not take the lock and can be stale by the time it returns.
func (q *queue) Len() int {
	return int(q.count.Load())
}

// Empty reports whether the queue currently looks empty. It is safe to
// call without the lock; a racing push can make the answer stale the
// instant it's returned, which is fine for a fast-path hint — callers who
// care about a real answer take the lock and check again.
func (q *queue) Empty() bool {
	return q.count.Load() == 0
}

// Push appends unit to the tail of the queue. It can only fail on
// allocation failure, which a Go slice append cannot surface distinctly
// from any other out-of-memory condition; the error return exists for
// interface fidelity with the pluggable-queue abstraction this mirrors
// and is always nil in practice.
func (q *queue) Push(unit *WorkUnit) error {
	q.mu.Lock()
	q.items = append(q.items, unit)
	q.mu.Unlock()
	q.count.Add(1)
	return nil
}

// Pop returns and removes the head unit if match(head) is true (or match
// is nil). It never fails: an empty queue or a non-matching head both
// yield a nil unit. Pop applies the fast empty-check before acquiring the
// lock, then repeats the check under the lock to tolerate a racing
// popper that drained the queue in between.
func (q *queue) Pop(match func(*WorkUnit) bool) *WorkUnit {
	if q.Empty() {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	head := q.items[0]
	if match != nil && !match(head) {
		return nil
	}
	q.items = q.items[1:]
	q.count.Add(-1)
	return head
}

// drain removes and returns every unit currently queued, in FIFO order,
// without regard to kind. Used to empty the queues during shutdown teardown.
func (q *queue) drain() []*WorkUnit {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	q.count.Store(0)
	return items
}

// QueueSet is the trio {Switch, App, Manager}, each admitting a fixed
// subset of WorkKinds:
//
//	Switch  queue: Switch units only.
//	Manager queue: Merge units only.
//	App     queue: Flush and Bloom units only.
type QueueSet struct {
	switchQ  queue
	appQ     queue
	managerQ queue
}

// Push routes unit onto the queue admitting its kind.
func (qs *QueueSet) Push(unit *WorkUnit) error {
	switch unit.Kind() {
	case KindSwitch:
		return qs.switchQ.Push(unit)
	case KindMerge:
		return qs.managerQ.Push(unit)
	case KindFlush, KindBloom:
		return qs.appQ.Push(unit)
	default:
		assertf(false, "unadmitted work kind %s", unit.Kind())
		return nil
	}
}

// PopSwitch returns the head of the switch queue unconditionally, or nil
// if the queue is empty.
func (qs *QueueSet) PopSwitch() *WorkUnit {
	return qs.switchQ.Pop(nil)
}

// PopMerge returns the head of the manager queue only if it carries
// KindMerge; the manager queue never admits anything else, so in practice
// this is equivalent to an unconditional pop, but the explicit check keeps
// the contract identical to the App queue's and catches corruption.
func (qs *QueueSet) PopMerge() *WorkUnit {
	return qs.managerQ.Pop(func(u *WorkUnit) bool { return u.Kind() == KindMerge })
}

// PopApp returns the head of the app queue if its kind intersects filter,
// leaving it in place (returning nil) otherwise. filter may name both
// Flush and Bloom so a worker with narrower capability doesn't block a
// worker behind it that could service the head.
func (qs *QueueSet) PopApp(filter Capability) *WorkUnit {
	return qs.appQ.Pop(func(u *WorkUnit) bool { return filter.Has(u.Kind()) })
}

// drainAll empties all three queues and returns the discarded units,
// grouped by the queue they came from. Called once, during
// Manager.Shutdown, after every worker has exited.
func (qs *QueueSet) drainAll() (switches, app, merges []*WorkUnit) {
	return qs.switchQ.drain(), qs.appQ.drain(), qs.managerQ.drain()
}
