package app

import (
	"context"
	"database/sql"
	"sync"

	"github.com/flowrun/flowrun/internal/config"
	"github.com/flowrun/flowrun/internal/db"
	"github.com/flowrun/flowrun/internal/flow"
	"github.com/flowrun/flowrun/internal/history"
	"github.com/flowrun/flowrun/internal/logging"
	"github.com/flowrun/flowrun/internal/worker"
)

type App struct {
	Config  *config.Config
	Workers *worker.Registry
	Flows   *flow.Service
	// History is nil when the run history store is disabled.
	History history.Service

	conn          *sql.DB
	detachHistory func()

	watcherCancelFuncs []context.CancelFunc
	cancelFuncsMutex   sync.Mutex
	watcherWG          sync.WaitGroup
}

// New wires the engine. conn may be nil, in which case runs are not recorded.
func New(ctx context.Context, cfg *config.Config, conn *sql.DB) (*App, error) {
	workers := newWorkers(ctx, cfg)
	registry := flow.NewRegistry(flow.FileLoader{Dirs: flow.DefaultDirs(cfg)})

	app := &App{
		Config:  cfg,
		Workers: workers,
		Flows:   flow.NewService(registry, workers, flow.OptionsFromConfig(cfg.Engine)),
		conn:    conn,
	}

	if conn != nil {
		app.History = history.NewService(db.NewQuerier(conn), conn)
		app.detachHistory = app.History.Attach(app.Flows.Bus())
	} else {
		logging.Debug("Run history disabled")
	}

	if _, err := registry.All(); err != nil {
		logging.Warn("Failed to load flows", "error", err)
	}
	return app, nil
}

// Shutdown stops watchers, lets the recorder drain pending events and
// closes the store.
func (app *App) Shutdown() {
	app.cancelFuncsMutex.Lock()
	for _, cancel := range app.watcherCancelFuncs {
		cancel()
	}
	app.watcherCancelFuncs = nil
	app.cancelFuncsMutex.Unlock()
	app.watcherWG.Wait()

	app.Flows.Shutdown()
	if app.detachHistory != nil {
		app.detachHistory()
	}

	if app.conn != nil {
		if err := app.conn.Close(); err != nil {
			logging.Error("Failed to close run history store", "error", err)
		}
	}
}
