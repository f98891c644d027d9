package app

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sagashark/internal/watcher"
)

func runWatch(args []string, g globalFlags, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(errOut)
	debounce := fs.Duration("debounce", watcher.DefaultDebounce, "Wait this long for writes to settle")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	e, err := loadEnv(g, out, errOut)
	if err != nil {
		return envError(errOut, err)
	}

	w, err := watcher.New(e.sagaDir, *debounce)
	if err != nil {
		fmt.Fprintf(errOut, "watch error: %v\n", err)
		return 1
	}
	if err := w.Start(); err != nil {
		fmt.Fprintf(errOut, "watch error: %v\n", err)
		return 1
	}
	defer w.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	org := e.organizer()
	if e.cfg.AutoOrganize {
		cleanup, ran, err := org.AutoCleanup()
		switch {
		case err != nil:
			e.logger.Warn("auto cleanup", "err", err)
		case ran:
			fmt.Fprintf(out, "📁 Reorganized %d stray sagas, removed %d empty directories\n", len(cleanup.Moves), cleanup.Removed)
		}
	}

	fmt.Fprintf(out, "👀 Watching %s for new sagas (Ctrl+C to stop)\n", e.rel(e.sagaDir))
	onMove := func(from, to string) {
		fmt.Fprintf(out, "%s 📁 %s -> %s\n", time.Now().Format("15:04:05"), e.rel(from), e.rel(to))
	}
	if err := watcher.AutoOrganize(ctx, w, org, e.logger, onMove); err != nil {
		fmt.Fprintf(errOut, "watch error: %v\n", err)
		return 1
	}
	return 0
}
