package sync

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferg-cod3s/contextcore/internal/coreerrors"
)

func TestSynchronizer_WatchTriggersRunOnChange(t *testing.T) {
	root := t.TempDir()
	s := NewSynchronizer()
	defer s.UnwatchAll()

	var runs int32
	err := s.Watch(root, nil, func() error {
		atomic.AddInt32(&runs, 1)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "f.go"), []byte("package x"), 0o644))

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&runs) >= 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSynchronizer_Watch_RejectsDuplicateRoot(t *testing.T) {
	root := t.TempDir()
	s := NewSynchronizer()
	defer s.UnwatchAll()

	require.NoError(t, s.Watch(root, nil, func() error { return nil }))

	err := s.Watch(root, nil, func() error { return nil })
	require.Error(t, err)
	var ce *coreerrors.Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, coreerrors.KindAlreadyWatching, ce.Kind)
}

func TestSynchronizer_Unwatch_StopsFiringRuns(t *testing.T) {
	root := t.TempDir()
	s := NewSynchronizer()

	var runs int32
	require.NoError(t, s.Watch(root, nil, func() error {
		atomic.AddInt32(&runs, 1)
		return nil
	}))
	require.NoError(t, s.Unwatch(root))

	require.NoError(t, os.WriteFile(filepath.Join(root, "f.go"), []byte("package x"), 0o644))
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, int32(0), atomic.LoadInt32(&runs))
}

func TestSynchronizer_Unwatch_UnknownRootIsNoop(t *testing.T) {
	s := NewSynchronizer()
	assert.NoError(t, s.Unwatch(t.TempDir()))
}

func TestSynchronizer_UnwatchAll_StopsEveryRoot(t *testing.T) {
	rootA := t.TempDir()
	rootB := t.TempDir()
	s := NewSynchronizer()

	require.NoError(t, s.Watch(rootA, nil, func() error { return nil }))
	require.NoError(t, s.Watch(rootB, nil, func() error { return nil }))

	require.NoError(t, s.UnwatchAll())

	assert.NoError(t, s.Watch(rootA, nil, func() error { return nil }))
	defer s.UnwatchAll()
}
