/*
Package log provides structured logging built on zerolog.

The global Logger is configured once via Init, then every component (the
LSM manager, the chunk store, the CLI) derives a child logger tagged with
its own fields via WithComponent; workers further tag theirs with
WithWorkerID, so every line a component or worker emits carries that
context without the caller re-stating it at each call site.

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	logger := log.WithComponent("lsm-manager")
	logger.Info().Int("workers", 4).Msg("manager started")

Console output (JSONOutput: false) is meant for local development; JSON
output is the production default, consumed by whatever log aggregator the
deployment uses.
*/
package log
