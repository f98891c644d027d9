package watcher

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Organizer moves a saga file into place and returns where it ended up.
type Organizer interface {
	Organize(path string, date time.Time) (string, error)
}

// AutoOrganize files every created saga until ctx is done or the watcher
// stops. onMove is called for each file that actually moved.
func AutoOrganize(ctx context.Context, w *Watcher, org Organizer, logger *slog.Logger, onMove func(from, to string)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-w.Errors():
			logger.Warn("watch error", "err", err)
		case ev, ok := <-w.Events():
			if !ok {
				return nil
			}
			if ev.Op != OpCreate {
				continue
			}
			if _, err := os.Stat(ev.Path); err != nil {
				continue
			}
			to, err := org.Organize(ev.Path, time.Time{})
			if err != nil {
				logger.Warn("organize saga", "path", ev.RelPath, "err", err)
				continue
			}
			if to != ev.Path && onMove != nil {
				onMove(ev.Path, to)
			}
		}
	}
}
