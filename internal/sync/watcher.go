package sync

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ferg-cod3s/contextcore/internal/coreerrors"
	"github.com/ferg-cod3s/contextcore/internal/ingest"
)

const defaultDebounceWindow = 200 * time.Millisecond

// Watcher watches one root recursively and emits debounced, ignore-filtered
// events, ported from the teacher's HybridWatcher fsnotify path
// (internal/watcher/hybrid.go) without its polling fallback — this module
// assumes fsnotify is always available in the target deployment.
type Watcher struct {
	fsw       *fsnotify.Watcher
	debouncer *debouncer
	root      string
	ignore    []string
}

// NewWatcher creates a Watcher over root, applying .gitignore-style
// ignorePatterns in addition to ingest.DefaultIgnorePatterns.
func NewWatcher(root string, ignorePatterns []string, debounceWindow time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindInternal, "create fsnotify watcher", err)
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		fsw.Close()
		return nil, coreerrors.Wrap(coreerrors.KindValidation, "resolve watch root", err)
	}
	if debounceWindow <= 0 {
		debounceWindow = defaultDebounceWindow
	}
	return &Watcher{
		fsw:       fsw,
		debouncer: newDebouncer(debounceWindow),
		root:      absRoot,
		ignore:    append(ingest.DefaultIgnorePatterns(), ignorePatterns...),
	}, nil
}

// Events returns debounced event batches.
func (w *Watcher) Events() <-chan []Event {
	return w.debouncer.Output()
}

// Start watches w.root recursively until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addRecursive(w.root); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return w.Stop()
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("fsnotify watcher error", slog.String("root", w.root), slog.Any("error", err))
		}
	}
}

// Stop releases the underlying fsnotify handle and the debouncer.
func (w *Watcher) Stop() error {
	w.debouncer.Stop()
	return w.fsw.Close()
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr == nil && w.shouldIgnore(rel, true) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) shouldIgnore(relPath string, isDir bool) bool {
	return ingest.MatchIgnore(w.ignore, relPath, isDir)
}

func (w *Watcher) handle(ev fsnotify.Event) {
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		rel = ev.Name
	}
	isDir := false
	if info, statErr := os.Stat(ev.Name); statErr == nil {
		isDir = info.IsDir()
	}
	if w.shouldIgnore(rel, isDir) {
		return
	}

	if isDir && ev.Op&fsnotify.Create != 0 {
		_ = w.fsw.Add(ev.Name)
	}

	var op Operation
	switch {
	case ev.Op&fsnotify.Create != 0:
		op = OpCreate
	case ev.Op&fsnotify.Remove != 0:
		op = OpDelete
	case ev.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		op = OpModify
	}

	w.debouncer.add(Event{Path: rel, Operation: op, IsDir: isDir})
}
