package app

import (
	"context"

	"github.com/flowrun/flowrun/internal/flow"
	"github.com/flowrun/flowrun/internal/logging"
)

// WatchFlows reloads flow definitions when files under the flow
// directories change. It returns once the watcher is running.
func (app *App) WatchFlows(ctx context.Context) error {
	w, err := flow.NewWatcher(app.Flows.Flows(), flow.DefaultDirs(app.Config))
	if err != nil {
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	app.cancelFuncsMutex.Lock()
	app.watcherCancelFuncs = append(app.watcherCancelFuncs, cancel)
	app.cancelFuncsMutex.Unlock()

	app.watcherWG.Add(1)
	go app.runFlowWatcher(watchCtx, w)
	return nil
}

func (app *App) runFlowWatcher(ctx context.Context, w *flow.Watcher) {
	defer app.watcherWG.Done()
	defer logging.RecoverPanic("flow-watcher", nil)

	if err := w.Run(ctx); err != nil {
		logging.Error("Flow watcher stopped", "error", err)
		return
	}
	logging.Info("Flow watcher stopped")
}
