//go:build !no_automation

package main

import (
	"log/slog"

	"purifier-go-home/internal/automation"
	"purifier-go-home/internal/coordinator"
	"purifier-go-home/internal/web"
)

type autoStopper struct {
	engine  *automation.Engine
	watcher *automation.Watcher
}

func (a *autoStopper) Stop() {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.engine != nil {
		a.engine.Stop()
	}
}

func initAutomation(coord *coordinator.Coordinator, events *coordinator.EventBus, cfg *Config, logger *slog.Logger) (*autoStopper, []web.ServerOption) {
	scriptMgr, err := automation.NewManager(cfg.ScriptsDir)
	if err != nil {
		logger.Error("create script manager", "err", err)
		return &autoStopper{}, nil
	}

	engine := automation.NewEngine(coord, events, scriptMgr, logger)
	engine.Start()
	stopper := &autoStopper{engine: engine}

	if cfg.WatchScripts {
		watcher := automation.NewWatcher(engine, 0, logger)
		if err := watcher.Start(); err != nil {
			logger.Warn("script watcher disabled", "err", err)
		} else {
			stopper.watcher = watcher
		}
	}

	opts := []web.ServerOption{
		web.WithAutomation(engine, scriptMgr),
	}
	return stopper, opts
}
