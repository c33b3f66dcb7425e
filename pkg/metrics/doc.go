/*
Package metrics defines and registers the process's Prometheus metrics and
exposes them over HTTP for scraping.

Gauges track live state (worker count, queue depth) and the cumulative
dispatched and discarded work-unit totals by kind; histograms time chunk
store operations and Bloom filter builds. Collector polls a *lsm.Manager
on an interval and republishes its Stats() snapshot into the gauges; the
histograms are updated directly at the call site in pkg/engine instead,
since they need per-call granularity Stats() doesn't carry. The
TreesOpenTotal gauge and the DispatchDuration histogram are registered but
nothing in this repository sets or observes them.

	mgr, _ := lsm.NewManager(cfg, ops, trees, logger)
	collector := metrics.NewCollector(mgr)
	collector.Start(time.Second)
	http.Handle("/metrics", metrics.Handler())

The health handlers in health.go complement this with liveness/readiness
HTTP endpoints that don't require scraping a dashboard to answer "is it up."
*/
package metrics
