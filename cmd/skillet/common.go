package main

import (
	"context"

	"github.com/jingkaihe/skillet/pkg/config"
	"github.com/jingkaihe/skillet/pkg/history"
	"github.com/jingkaihe/skillet/pkg/logger"
	"github.com/jingkaihe/skillet/pkg/service"
	"github.com/jingkaihe/skillet/pkg/skills"
	"github.com/pkg/errors"
)

// app bundles what the selection commands and servers share.
type app struct {
	cfg     config.Config
	service *service.Service
	history *history.Store
}

func (a *app) Close() {
	if a.history == nil {
		return
	}
	if err := a.history.Close(); err != nil {
		logger.G(context.Background()).WithError(err).Debug("failed to close history database")
	}
}

// historyMode says when newApp opens the history store.
type historyMode int

const (
	// historyOff never opens the store, for commands that do not record.
	historyOff historyMode = iota
	// historyIfEnabled opens the store when history.enabled is set.
	historyIfEnabled
	// historyOn always opens the store.
	historyOn
)

// newApp loads the configuration and the skill catalog, and opens the
// history store according to mode.
func newApp(ctx context.Context, mode historyMode) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	catalog, err := skills.NewCatalogFromConfig(ctx, cfg.Skills)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load skills")
	}

	rt := &app{cfg: cfg}
	opts := []service.Option{service.WithMinScore(cfg.Selector.MinScore)}
	if mode == historyOn || (mode == historyIfEnabled && cfg.History.Enabled) {
		store, err := history.Open(ctx, cfg.History.DBPath)
		if err != nil {
			return nil, err
		}
		rt.history = store
		opts = append(opts, service.WithRecorder(store))
	}

	rt.service = service.New(ctx, catalog, opts...)
	return rt, nil
}
