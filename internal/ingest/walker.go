package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ferg-cod3s/contextcore/internal/validation"
)

// LocalWalker traverses a local directory tree with .gitignore-style ignore
// rules. It implements hashing.Walker so the same enumeration feeds both
// ingestion and Merkle snapshotting.
type LocalWalker struct {
	maxFileSize int64 // skip files larger than this; 0 = no limit
}

// NewLocalWalker creates a LocalWalker with an optional per-file size cap.
func NewLocalWalker(maxFileSize int64) *LocalWalker {
	return &LocalWalker{maxFileSize: maxFileSize}
}

// Walk traverses root, invoking fn for every regular file that survives the
// ignore rules and size cap. Symlinks are skipped rather than followed, to
// avoid cycles outside the declared root.
func (w *LocalWalker) Walk(ctx context.Context, root string, ignorePatterns []string, fn func(path string, info fs.FileInfo) error) error {
	root, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve root path: %w", err)
	}

	ignore := newIgnoreSet(ignorePatterns)

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relative path: %w", err)
		}
		relPath = filepath.ToSlash(relPath)

		if err := validation.IsPathSafe(relPath); err != nil {
			return fmt.Errorf("path validation failed for %s: %w", relPath, err)
		}

		if ignore.match(relPath, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("file info for %s: %w", path, err)
		}
		if w.maxFileSize > 0 && info.Size() > w.maxFileSize {
			return nil
		}

		return fn(path, info)
	})
}

// ignoreSet holds compiled .gitignore-style patterns.
type ignoreSet struct {
	patterns []ignoreRule
}

type ignoreRule struct {
	negate   bool // pattern starts with !
	dirOnly  bool // pattern ends with /
	anchored bool // pattern starts with /
	glob     string
}

func newIgnoreSet(patterns []string) *ignoreSet {
	s := &ignoreSet{patterns: make([]ignoreRule, 0, len(patterns))}
	for _, p := range patterns {
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}
		rule := ignoreRule{}
		if strings.HasPrefix(p, "!") {
			rule.negate = true
			p = p[1:]
		}
		if strings.HasSuffix(p, "/") {
			rule.dirOnly = true
			p = strings.TrimSuffix(p, "/")
		}
		if strings.HasPrefix(p, "/") {
			rule.anchored = true
			p = strings.TrimPrefix(p, "/")
		}
		rule.glob = p
		s.patterns = append(s.patterns, rule)
	}
	return s
}

// match reports whether relPath should be ignored. Later patterns override
// earlier ones, matching .gitignore semantics.
func (s *ignoreSet) match(relPath string, isDir bool) bool {
	ignored := false
	for _, rule := range s.patterns {
		if rule.dirOnly {
			if relPath == rule.glob && isDir {
				ignored = !rule.negate
				continue
			}
			if strings.HasPrefix(relPath, rule.glob+"/") {
				ignored = !rule.negate
				continue
			}
			if !rule.anchored {
				parts := strings.Split(relPath, "/")
				for i, part := range parts {
					if part != rule.glob {
						continue
					}
					if i == len(parts)-1 && isDir {
						ignored = !rule.negate
						break
					}
					if i < len(parts)-1 {
						ignored = !rule.negate
						break
					}
				}
			}
			continue
		}
		if s.matchRule(rule, relPath, isDir) {
			ignored = !rule.negate
		}
	}
	return ignored
}

func (s *ignoreSet) matchRule(rule ignoreRule, relPath string, isDir bool) bool {
	if rule.anchored {
		if matched, _ := filepath.Match(rule.glob, relPath); matched {
			return true
		}
		if isDir {
			matched, _ := filepath.Match(rule.glob, relPath+"/")
			return matched
		}
		return false
	}

	if matched, _ := filepath.Match(rule.glob, filepath.Base(relPath)); matched {
		return true
	}
	if strings.Contains(rule.glob, "/") {
		if matched, _ := filepath.Match(rule.glob, relPath); matched {
			return true
		}
	}

	parts := strings.Split(relPath, "/")
	for i := range parts {
		suffix := strings.Join(parts[i:], "/")
		if matched, _ := filepath.Match(rule.glob, suffix); matched {
			return true
		}
	}
	return false
}

// MatchIgnore reports whether relPath should be ignored under patterns,
// exposing ignoreSet.match for callers outside this package (the
// fsnotify-based watcher in internal/sync needs the same .gitignore
// semantics without re-walking a directory tree).
func MatchIgnore(patterns []string, relPath string, isDir bool) bool {
	return newIgnoreSet(patterns).match(relPath, isDir)
}

// DefaultIgnorePatterns returns the baseline ignore rules applied when a
// source has no explicit .gitignore.
func DefaultIgnorePatterns() []string {
	return []string{
		".git/", ".svn/", ".hg/",
		"node_modules/", "vendor/", "target/", "build/", "dist/",
		"*.pyc", "*.pyo", "*.class", "*.o", "*.so", "*.dylib", "*.dll", "*.exe",
		".DS_Store", "Thumbs.db",
	}
}

// LoadGitignore reads path's .gitignore rules, returning nil if the file is
// absent. path must resolve within basePath.
func LoadGitignore(path, basePath string) ([]string, error) {
	if _, err := validation.ValidatePathWithinBase(path, basePath); err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	data, err := os.ReadFile(path) // #nosec G304 - path validated above via ValidatePathWithinBase
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read .gitignore: %w", err)
	}

	var patterns []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			patterns = append(patterns, line)
		}
	}
	return patterns, nil
}
