package main

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"promai/internal/chat"
	"promai/internal/config"
	"promai/internal/extract"
	"promai/internal/logging"
	"promai/internal/manager"
	"promai/internal/metrics"
	"promai/internal/store"
)

// newRuntime builds the model runtime; tests substitute a fake.
var newRuntime = manager.NewLlamaRuntime

const recentFile = "recent.json"

// app wires the core packages for one command invocation.
type app struct {
	cfg   config.Config
	log   zerolog.Logger
	mgr   *manager.Manager
	store *store.Store
	ctl   *chat.Controller

	logCloser io.Closer
}

// newApp builds the manager, store and controller for cfg. The TUI logs to
// cfg.LogFile; other commands log to stderr.
func newApp(cfg config.Config, toFile bool) (*app, error) {
	a := &app{cfg: cfg}
	if toFile {
		l, c, err := logging.File(cfg.LogFile, cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		a.log, a.logCloser = l, c
	} else {
		a.log = logging.Console(os.Stderr, cfg.LogLevel)
	}

	budget := &chat.Budget{}
	a.mgr = manager.NewWithConfig(manager.ManagerConfig{
		Runtime:        newRuntime(),
		Params:         chat.InferParams(cfg.Sampling),
		MemoryBudgetMB: budget.MB,
		RecentPath:     filepath.Join(filepath.Dir(cfg.ConversationsDir), recentFile),
		Logger:         &a.log,
	})
	st, err := store.Open(cfg.ConversationsDir, store.Options{
		Logger: &a.log,
		OnRepair: func(r *store.RepairError) {
			if a.ctl != nil {
				a.ctl.RepairNotice(r)
			}
		},
	})
	if err != nil {
		a.mgr.Close()
		return nil, err
	}
	a.store = st
	a.ctl = chat.New(chat.Options{
		Manager:   a.mgr,
		Store:     st,
		Extractor: extract.New(),
		Config:    cfg,
		Budget:    budget,
		Logger:    &a.log,
	})
	return a, nil
}

// Close releases the model and the store and writes the metrics textfile.
func (a *app) Close() {
	a.mgr.Close()
	a.ctl.Wait()
	if err := a.store.Close(); err != nil {
		a.log.Warn().Err(err).Msg("close store")
	}
	if a.cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(a.cfg.MetricsFile); err != nil {
			a.log.Warn().Err(err).Str("path", a.cfg.MetricsFile).Msg("write metrics")
		}
	}
	if a.logCloser != nil {
		_ = a.logCloser.Close()
	}
}
