package ingest

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func walkAll(t *testing.T, w *LocalWalker, root string, ignore []string) []string {
	t.Helper()
	var seen []string
	err := w.Walk(context.Background(), root, ignore, func(path string, info fs.FileInfo) error {
		rel, err := filepath.Rel(root, path)
		require.NoError(t, err)
		seen = append(seen, filepath.ToSlash(rel))
		return nil
	})
	require.NoError(t, err)
	return seen
}

func TestLocalWalker_WalksRegularFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main")
	writeFile(t, root, "sub/helper.go", "package sub")

	w := NewLocalWalker(0)
	seen := walkAll(t, w, root, nil)

	assert.ElementsMatch(t, []string{"main.go", "sub/helper.go"}, seen)
}

func TestLocalWalker_AppliesIgnorePatterns(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep.go", "x")
	writeFile(t, root, "node_modules/pkg/index.js", "x")
	writeFile(t, root, ".git/HEAD", "x")

	w := NewLocalWalker(0)
	seen := walkAll(t, w, root, DefaultIgnorePatterns())

	assert.Equal(t, []string{"keep.go"}, seen)
}

func TestLocalWalker_SkipsFilesOverMaxSize(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "small.txt", "ok")
	writeFile(t, root, "big.txt", "this file is definitely larger than the cap")

	w := NewLocalWalker(10)
	seen := walkAll(t, w, root, nil)

	assert.Equal(t, []string{"small.txt"}, seen)
}

func TestLocalWalker_RespectsContextCancellation(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "x")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := NewLocalWalker(0)
	err := w.Walk(ctx, root, nil, func(path string, info fs.FileInfo) error {
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMatchIgnore(t *testing.T) {
	patterns := []string{"*.log", "build/", "!important.log"}

	assert.True(t, MatchIgnore(patterns, "debug.log", false))
	assert.False(t, MatchIgnore(patterns, "important.log", false))
	assert.True(t, MatchIgnore(patterns, "build", true))
	assert.True(t, MatchIgnore(patterns, "build/output.bin", false))
	assert.False(t, MatchIgnore(patterns, "src/main.go", false))
}

func TestLoadGitignore(t *testing.T) {
	t.Run("reads patterns, skipping comments and blanks", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, ".gitignore", "# comment\n\n*.tmp\nbuild/\n")

		patterns, err := LoadGitignore(filepath.Join(root, ".gitignore"), root)
		require.NoError(t, err)
		assert.Equal(t, []string{"*.tmp", "build/"}, patterns)
	})

	t.Run("missing file returns nil, no error", func(t *testing.T) {
		root := t.TempDir()
		patterns, err := LoadGitignore(filepath.Join(root, ".gitignore"), root)
		require.NoError(t, err)
		assert.Nil(t, patterns)
	})

	t.Run("rejects a path outside the base", func(t *testing.T) {
		root := t.TempDir()
		other := t.TempDir()
		writeFile(t, other, "secrets.gitignore", "*.env")

		_, err := LoadGitignore(filepath.Join(other, "secrets.gitignore"), root)
		assert.Error(t, err)
	})
}
