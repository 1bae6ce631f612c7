package sync

import (
	"context"
	gosync "sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ferg-cod3s/contextcore/internal/coreerrors"
)

// Run is the callback a Synchronizer invokes to re-ingest one root after a
// debounced batch of changes — ordinarily ingest.Orchestrator.Run bound to
// a specific Source and Options.
type Run func() error

// Synchronizer owns one Watcher + debounce-triggered Run per watched root,
// serializing re-ingestion per root via a mutex so overlapping fsnotify
// batches never race the same collection.
type Synchronizer struct {
	mu       gosync.Mutex
	watchers map[string]*watchedRoot
}

type watchedRoot struct {
	watcher *Watcher
	run     Run
	mu      gosync.Mutex
	cancel  context.CancelFunc
}

// NewSynchronizer constructs an empty Synchronizer.
func NewSynchronizer() *Synchronizer {
	return &Synchronizer{watchers: make(map[string]*watchedRoot)}
}

// Watch starts watching root, calling run every time a debounced batch of
// changes arrives. Returns coreerrors.KindAlreadyWatching if root is
// already being watched.
func (s *Synchronizer) Watch(root string, ignorePatterns []string, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.watchers[root]; exists {
		return coreerrors.New(coreerrors.KindAlreadyWatching, "root is already being watched").WithResource(root)
	}

	w, err := NewWatcher(root, ignorePatterns, 200*time.Millisecond)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	wr := &watchedRoot{watcher: w, run: run, cancel: cancel}
	s.watchers[root] = wr

	go func() { _ = w.Start(ctx) }()
	go wr.drain()

	return nil
}

func (wr *watchedRoot) drain() {
	for batch := range wr.watcher.Events() {
		if len(batch) == 0 {
			continue
		}
		wr.mu.Lock()
		_ = wr.run()
		wr.mu.Unlock()
	}
}

// Unwatch stops watching root.
func (s *Synchronizer) Unwatch(root string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wr, exists := s.watchers[root]
	if !exists {
		return nil
	}
	wr.cancel()
	delete(s.watchers, root)
	return wr.watcher.Stop()
}

// UnwatchAll stops every active watch concurrently, for process shutdown.
func (s *Synchronizer) UnwatchAll() error {
	s.mu.Lock()
	roots := make([]string, 0, len(s.watchers))
	for root := range s.watchers {
		roots = append(roots, root)
	}
	s.mu.Unlock()

	var g errgroup.Group
	for _, root := range roots {
		root := root
		g.Go(func() error { return s.Unwatch(root) })
	}
	return g.Wait()
}
