package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Aman-CERP/launchdex/internal/model"
)

// Dispatcher delivers notifications in the background.
//
// Dispatch never blocks on the notifier and never reports its failure to the
// caller: failures are logged with the plugin id that triggered them and are
// not retried.
type Dispatcher struct {
	notifier Notifier
	wg       sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. A nil notifier behaves like Nop.
func NewDispatcher(n Notifier) *Dispatcher {
	if n == nil {
		n = Nop{}
	}
	return &Dispatcher{notifier: n}
}

// Dispatch requests a results refresh on behalf of pluginID and returns
// immediately. Cancellation of ctx does not abort the notification.
func (d *Dispatcher) Dispatch(ctx context.Context, pluginID model.PluginID) {
	ctx = context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("notify_panicked",
					slog.String("plugin_id", string(pluginID)),
					slog.String("panic", fmt.Sprint(r)))
			}
		}()

		slog.Info("requesting search results update because search index update for plugin",
			slog.String("plugin_id", string(pluginID)))

		if err := d.notifier.NotifyResultsChanged(ctx); err != nil {
			slog.Warn("notify_failed",
				slog.String("plugin_id", string(pluginID)),
				slog.String("error", err.Error()))
		}
	}()
}

// Wait blocks until every dispatched notification has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
