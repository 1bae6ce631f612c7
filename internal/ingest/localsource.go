package ingest

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ferg-cod3s/contextcore/internal/coreerrors"
)

// LocalSource discovers files under a local directory tree, honoring
// .gitignore-style ignore rules via LocalWalker.
type LocalSource struct {
	walker *LocalWalker
}

// NewLocalSource constructs a LocalSource with an optional per-file size cap.
func NewLocalSource(maxFileSize int64) *LocalSource {
	return &LocalSource{walker: NewLocalWalker(maxFileSize)}
}

// Discover reads every file under opts.RootPath that survives the ignore
// rules into memory, keyed by path relative to the root.
func (s *LocalSource) Discover(ctx context.Context, opts Options) (map[string][]byte, error) {
	if opts.RootPath == "" {
		return nil, coreerrors.New(coreerrors.KindValidation, "root path is required for local source")
	}

	ignore, err := LoadGitignore(opts.RootPath+"/.gitignore", opts.RootPath)
	if err != nil {
		return nil, err
	}
	patterns := append(DefaultIgnorePatterns(), ignore...)
	patterns = append(patterns, opts.IgnorePatterns...)

	out := make(map[string][]byte)
	err = s.walker.Walk(ctx, opts.RootPath, patterns, func(path string, info fs.FileInfo) error {
		content, err := os.ReadFile(path) // #nosec G304 - path is produced by Walk, already validated within opts.RootPath
		if err != nil {
			return coreerrors.Wrap(coreerrors.KindIO, "read file "+path, err)
		}
		rel, relErr := filepath.Rel(opts.RootPath, path)
		if relErr != nil {
			return coreerrors.Wrap(coreerrors.KindIO, "relative path for "+path, relErr)
		}
		out[filepath.ToSlash(rel)] = content
		return nil
	})
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindIO, "walk local source", err)
	}
	return out, nil
}
