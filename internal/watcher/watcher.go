package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

type Op string

const (
	OpCreate Op = "create"
	OpModify Op = "modify"
	OpDelete Op = "delete"
)

const DefaultDebounce = 500 * time.Millisecond

type Event struct {
	Path      string
	RelPath   string
	Op        Op
	Timestamp time.Time
}

// Watcher reports debounced changes to saga markdown files under a saga
// directory. Hidden directories are never watched.
type Watcher struct {
	root      string
	fsWatcher *fsnotify.Watcher
	events    chan Event
	errors    chan error
	debounce  time.Duration
	pending   map[string]Event
	stop      chan struct{}
	stopped   chan struct{}
}

func New(root string, debounce time.Duration) (*Watcher, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("saga dir required")
	}
	if absRoot, err := filepath.Abs(root); err == nil {
		root = absRoot
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		root:      root,
		fsWatcher: fsw,
		events:    make(chan Event, 100),
		errors:    make(chan error, 10),
		debounce:  debounce,
		pending:   make(map[string]Event),
		stop:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}, nil
}

func (w *Watcher) Root() string {
	return w.root
}

func (w *Watcher) Start() error {
	if err := w.addDirRecursive(w.root); err != nil {
		return err
	}
	go w.run()
	return nil
}

func (w *Watcher) Stop() {
	close(w.stop)
	_ = w.fsWatcher.Close()
	<-w.stopped
}

func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors carries watch failures. It is lossy when nobody reads it.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

func (w *Watcher) run() {
	defer close(w.events)
	defer close(w.stopped)

	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case ev, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleFsEvent(ev)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				continue
			}
			select {
			case w.errors <- err:
			default:
			}
		case now := <-ticker.C:
			w.flushPending(now)
		}
	}
}

func (w *Watcher) handleFsEvent(ev fsnotify.Event) {
	if strings.TrimSpace(ev.Name) == "" {
		return
	}
	relPath, ok := w.relPath(ev.Name)
	if !ok || relPath == "." || hidden(relPath) {
		return
	}

	if ev.Op&fsnotify.Create != 0 && w.isDir(ev.Name) {
		_ = w.addDirRecursive(ev.Name)
		return
	}
	if filepath.Ext(ev.Name) != ".md" {
		return
	}
	if ev.Op&fsnotify.Create != 0 {
		w.queue(relPath, ev.Name, OpCreate)
	}
	if ev.Op&fsnotify.Write != 0 {
		w.queue(relPath, ev.Name, OpModify)
	}
	if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		delete(w.pending, relPath)
		w.emit(Event{Path: ev.Name, RelPath: relPath, Op: OpDelete, Timestamp: time.Now()})
	}
}

// queue keeps a create as a create when writes follow it.
func (w *Watcher) queue(relPath, path string, op Op) {
	if existing, ok := w.pending[relPath]; ok && existing.Op == OpCreate {
		op = OpCreate
	}
	w.pending[relPath] = Event{Path: path, RelPath: relPath, Op: op, Timestamp: time.Now()}
}

func (w *Watcher) flushPending(now time.Time) {
	for relPath, event := range w.pending {
		if now.Sub(event.Timestamp) < w.debounce {
			continue
		}
		delete(w.pending, relPath)
		w.emit(event)
	}
}

func (w *Watcher) emit(event Event) {
	select {
	case w.events <- event:
	case <-w.stop:
	}
}

func (w *Watcher) addDirRecursive(path string) error {
	return filepath.WalkDir(path, func(next string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type()&os.ModeSymlink != 0 || !d.IsDir() {
			return nil
		}
		relPath, ok := w.relPath(next)
		if !ok {
			return filepath.SkipDir
		}
		if relPath != "." && hidden(relPath) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(next)
	})
}

func (w *Watcher) relPath(path string) (string, bool) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if rel == "" || strings.HasPrefix(rel, "../") {
		return "", false
	}
	return rel, true
}

func (w *Watcher) isDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

func hidden(relPath string) bool {
	for _, part := range strings.Split(relPath, "/") {
		if strings.HasPrefix(part, ".") && part != "." {
			return true
		}
	}
	return false
}
