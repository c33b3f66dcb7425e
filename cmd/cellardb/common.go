package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cellardb/cellardb/pkg/chunkstore"
	"github.com/cellardb/cellardb/pkg/config"
	"github.com/cellardb/cellardb/pkg/engine"
	"github.com/cellardb/cellardb/pkg/log"
	"github.com/cellardb/cellardb/pkg/lsm"
	"github.com/cellardb/cellardb/pkg/tree"
)

// loadConfig layers the --config file and environment over the built-in
// defaults, then applies any --data-dir override from cmd's flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if dataDir, _ := cmd.Flags().GetString("data-dir"); dataDir != "" {
		cfg.DataDir = dataDir
	}
	return cfg, nil
}

// engineStack bundles everything a one-shot command needs to open the
// chunk store, build an engine, and run a maintenance manager over it.
type engineStack struct {
	cfg      config.Config
	store    *chunkstore.Store
	registry *tree.Registry
	engine   *engine.Engine
	manager  *lsm.Manager
}

// openEngineStack loads cfg, opens the chunk store, and builds a Manager
// ready to Start. Callers are responsible for calling close once done.
func openEngineStack(cmd *cobra.Command) (*engineStack, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", cfg.DataDir, err)
	}

	store, err := chunkstore.Open(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open chunk store: %w", err)
	}

	registry := tree.NewRegistry()
	eng := engine.New(registry, store, cfg.BloomFalsePositiveRate, log.WithComponent("engine"))

	mgr, err := lsm.NewManager(lsm.Config{
		MaxWorkers:       cfg.MaxWorkers,
		SwitchIdle:       cfg.SwitchIdle,
		ManagerIdle:      cfg.ManagerIdle,
		ManagerBusyRetry: cfg.ManagerBusyRetry,
	}, eng, registry, log.WithComponent("lsm-manager"))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("build manager: %w", err)
	}

	return &engineStack{cfg: cfg, store: store, registry: registry, engine: eng, manager: mgr}, nil
}

func (s *engineStack) close() {
	if err := s.store.Close(); err != nil {
		log.Errorf("error closing chunk store", err)
	}
}
