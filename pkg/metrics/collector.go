package metrics

import (
	"time"

	"github.com/cellardb/cellardb/pkg/lsm"
)

// Collector periodically samples a *lsm.Manager and republishes its
// Stats() snapshot into the package's gauges. ChunkstoreOpDuration and
// BloomBuildDuration are not touched here: those are per-call histograms
// updated directly by pkg/engine at the call site, since Stats() only
// carries cumulative counts. DispatchDuration and TreesOpenTotal are not
// touched here either, and nothing else updates them.
type Collector struct {
	manager *lsm.Manager
	stopCh  chan struct{}
}

// NewCollector builds a collector bound to mgr.
func NewCollector(mgr *lsm.Manager) *Collector {
	return &Collector{
		manager: mgr,
		stopCh:  make(chan struct{}),
	}
}

// Start begins periodic sampling in its own goroutine, every interval.
func (c *Collector) Start(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts periodic sampling.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	stats := c.manager.Stats()

	WorkersTotal.Set(float64(stats.Workers))
	WorkersConfiguredMax.Set(float64(stats.MaxWorkers))
	QueueDepth.WithLabelValues("switch").Set(float64(stats.SwitchQueueDepth))
	QueueDepth.WithLabelValues("app").Set(float64(stats.AppQueueDepth))
	QueueDepth.WithLabelValues("manager").Set(float64(stats.ManagerQueueDepth))

	for kind, count := range stats.Dispatched {
		UnitsDispatchedTotal.WithLabelValues(kind.String()).Set(float64(count))
	}
	for kind, count := range stats.Discarded {
		UnitsDiscardedTotal.WithLabelValues(kind.String()).Set(float64(count))
	}
}
