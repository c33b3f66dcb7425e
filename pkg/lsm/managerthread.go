package lsm

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// defaultManagerBusyRetryInterval is how long the Manager Thread sleeps
// after an inspection pass that queued no Merge work, before inspecting
// again, when Config.ManagerBusyRetry is unset. It is shorter than the
// idle interval because open trees are cheap to re-scan and merge
// eligibility can change quickly.
const defaultManagerBusyRetryInterval = time.Millisecond

// managerThread is the Manager's first worker (id 0, Merge capability).
// Beyond servicing the Manager queue like any other Merge-capable worker,
// it owns two things no other worker does: the fixed-order startup
// sequence that spawns the Switch worker and the first general worker, and
// the per-iteration tree-inspection pass that decides which trees are due
// for a merge.
type managerThread struct {
	*Worker
	mgr       *Manager
	busyRetry time.Duration
}

// newManagerThread builds the Manager Thread bound to mgr's queue set,
// operations, and tree source. It does not open a session or spawn
// anything; call open then startup.
func newManagerThread(mgr *Manager) *managerThread {
	w := newWorker(0, CapMerge, &mgr.qs, mgr.ops, mgr.trees, mgr.logger, &mgr.counters, mgr.hook, mgr.cfg.ManagerIdle)
	busyRetry := mgr.cfg.ManagerBusyRetry
	if busyRetry <= 0 {
		busyRetry = defaultManagerBusyRetryInterval
	}
	return &managerThread{Worker: w, mgr: mgr, busyRetry: busyRetry}
}

// startup spawns the Switch worker (id 1) and then the first general worker
// (id 2) via an errgroup limited to one spawn at a time, so they start in
// that fixed order, then any further general workers up to the configured
// maximum, one at a time. All of these must exist before the Manager Thread
// enters its steady-state loop; an error from any of them aborts the whole
// sequence and is returned to the Manager's Start caller.
func (mt *managerThread) startup(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(1)
	g.Go(func() error {
		_, err := mt.mgr.spawnWorker(1, CapSwitch)
		return err
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		_, err := mt.mgr.spawnWorker(2, CapGeneral)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	for id := 3; id < mt.mgr.cfg.MaxWorkers; id++ {
		if _, err := mt.mgr.spawnWorker(id, CapGeneral); err != nil {
			return err
		}
	}
	return nil
}

// run is the Manager Thread's steady-state loop: each iteration inspects
// every open tree for merge eligibility, enqueues one Merge unit per
// eligible tree, then services the Manager queue exactly like any other
// Merge-capable worker. It sleeps mt.idle when no trees are open at all,
// and mt.busyRetry when a pass queued nothing, so an unthrottled system
// doesn't spin the scan needlessly.
func (mt *managerThread) run(ctx context.Context, onExit func()) {
	mt.setState(StateRunning)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		default:
		}

		trees := mt.mgr.trees.Trees()
		if len(trees) == 0 {
			sleep(ctx, mt.idle)
			continue
		}

		queued := mt.inspectTrees(trees)
		mt.dispatchMergeOnce(ctx)
		if queued == 0 {
			sleep(ctx, mt.busyRetry)
		}
	}

	mt.setState(StateDraining)
	if mt.session != nil {
		if err := mt.session.Close(); err != nil {
			mt.logger.Warn().Err(err).Msg("error closing manager thread session")
		}
	}
	onExit()
	mt.setState(StateExited)
}

// inspectTrees enqueues a Merge unit for every tree with more than one
// chunk and a positive merge throttle, and returns how many it queued.
// Enqueue failure is logged and treated as fatal only for that tree this
// iteration; it never aborts the inspection pass or the Manager Thread
// itself.
func (mt *managerThread) inspectTrees(trees []Tree) int {
	queued := 0
	for _, t := range trees {
		if t.NumChunks() > 1 && t.MergeThrottle() > 0 {
			if err := mt.mgr.Push(KindMerge, t); err != nil {
				mt.logger.Error().Err(err).Str("tree", t.Name()).Msg("failed to enqueue merge work unit")
				continue
			}
			queued++
		}
	}
	return queued
}
