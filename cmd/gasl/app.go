package main

import (
	"context"
	"fmt"

	"github.com/gasl-lang/gasl/adapter"
	graphmem "github.com/gasl-lang/gasl/adapter/memory"
	"github.com/gasl-lang/gasl/config"
	"github.com/gasl-lang/gasl/llm"
	"github.com/gasl-lang/gasl/llm/openai"
	"github.com/gasl-lang/gasl/log"
	"github.com/gasl-lang/gasl/store"
	storefile "github.com/gasl-lang/gasl/store/file"
	storemem "github.com/gasl-lang/gasl/store/memory"
	storepg "github.com/gasl-lang/gasl/store/postgres"
	storeredis "github.com/gasl-lang/gasl/store/redis"
	storesqlite "github.com/gasl-lang/gasl/store/sqlite"
)

// App holds the wired components a CLI command needs.
type App struct {
	Snapshots store.SnapshotStore
	Graph     adapter.GraphAdapter
	LLM       llm.Client
	Log       log.Logger

	closers []func() error
}

// buildApp assembles the snapshot store, graph adapter and model client
// from the configuration.
func buildApp(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{Log: newLogger(cfg.LogLevel)}

	snapshots, err := buildSnapshotStore(ctx, cfg, app)
	if err != nil {
		return nil, err
	}
	app.Snapshots = snapshots

	if cfg.Graph.Path != "" {
		g, err := graphmem.LoadGraph(cfg.Graph.Path)
		if err != nil {
			return nil, err
		}
		app.Graph = g
	} else {
		app.Graph = graphmem.NewMemoryGraph()
	}

	opts := []openai.Option{}
	if cfg.LLM.APIKey != "" {
		opts = append(opts, openai.WithAPIKey(cfg.LLM.APIKey))
	}
	if cfg.LLM.Model != "" {
		opts = append(opts, openai.WithModel(cfg.LLM.Model))
	}
	if cfg.LLM.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.LLM.BaseURL))
	}
	if cfg.LLM.Temperature > 0 {
		opts = append(opts, openai.WithTemperature(float32(cfg.LLM.Temperature)))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}
	app.LLM = client

	return app, nil
}

func buildSnapshotStore(ctx context.Context, cfg *config.Config, app *App) (store.SnapshotStore, error) {
	switch cfg.Store.Backend {
	case "memory":
		return storemem.NewMemorySnapshotStore(), nil

	case "file":
		return storefile.NewFileSnapshotStore(cfg.Store.Path)

	case "sqlite":
		s, err := storesqlite.NewSqliteSnapshotStore(storesqlite.SqliteOptions{Path: cfg.Store.Path})
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, s.Close)
		return s, nil

	case "postgres":
		s, err := storepg.NewPostgresSnapshotStore(ctx, storepg.PostgresOptions{ConnString: cfg.Store.DSN})
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, func() error { s.Close(); return nil })
		return s, nil

	case "redis":
		s := storeredis.NewRedisSnapshotStore(storeredis.RedisOptions{
			Addr: cfg.Store.Addr,
			TTL:  cfg.Store.TTL,
		})
		app.closers = append(app.closers, s.Close)
		return s, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

// FreshMemoryStore returns a throwaway snapshot store for replays.
func (a *App) FreshMemoryStore() store.SnapshotStore {
	return storemem.NewMemorySnapshotStore()
}

// Close releases backend connections in reverse wiring order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Log.Warn("close: %v", err)
		}
	}
}
