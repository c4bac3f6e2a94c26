package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"budgetbuddy/internal/api"
	"budgetbuddy/internal/backend"
	"budgetbuddy/internal/cli"
	"budgetbuddy/internal/config"
	"budgetbuddy/internal/log"
	"budgetbuddy/internal/services"
)

const shutdownTimeout = 10 * time.Second

// app is one command invocation's wiring.
type app struct {
	cfg     *config.Config
	log     *log.Logger
	res     *backend.Resources
	tracker *services.Tracker
}

// bootstrap reads configuration, opens the backend resources and restores
// the persisted credential. With load set, the ledger is fetched as well.
func bootstrap(ctx context.Context, envFile, logLevel string, load bool) (*app, error) {
	if err := cli.LoadEnvFile(envFile); err != nil {
		return nil, err
	}

	logger := cli.SetupLogger(os.Stderr, firstNonEmpty(logLevel, os.Getenv("LOG_LEVEL"), "warn"))
	cfg, err := cli.LoadAndValidateConfig(logger)
	if err != nil {
		return nil, err
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).Create(ctx, backendCfg)
	if err != nil {
		return nil, fmt.Errorf("open backend: %w", err)
	}

	client, err := api.NewClient(cfg.APIURL, api.NewHTTPClient(cfg.APITimeout, logger), logger)
	if err != nil {
		_ = res.Cleanup()
		return nil, err
	}

	tracker := services.NewTracker(ctx, client, res, services.Options{
		ReconcileOnUpdate: cfg.ReconcileOnUpdate,
		SummaryCacheSize:  cfg.SummaryCacheSize,
		SummaryCacheTTL:   cfg.SummaryCacheTTL,
	}, logger)

	a := &app{cfg: cfg, log: logger, res: res, tracker: tracker}

	if load {
		err = tracker.Start(ctx)
	} else {
		err = tracker.Session.Restore(ctx)
	}
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

// close drains the change feed on a fresh context so events queued before an
// interrupt still get a chance to go out.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.tracker.Close(ctx); err != nil {
		a.log.Warn("Shutdown incomplete", log.FieldError, err.Error())
	}
}

// requireLogin reports core.ErrAuth when no credential is held.
func (a *app) requireLogin() error {
	if _, err := a.tracker.Session.Token(); err != nil {
		return err
	}
	if err := a.tracker.Store.Err(); err != nil {
		return err
	}
	return nil
}

var errNoFeed = errors.New("change feed is not configured; set AMQP_URL")

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
