// Package hashing builds content-addressable Merkle trees over a directory
// tree and diffs two snapshots into classified change sets, so incremental
// sync only touches what actually changed.
package hashing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ferg-cod3s/contextcore/internal/validation"
)

// Walker traverses a file tree calling fn for every regular file, mirroring
// the contract the ingest walker implements.
type Walker interface {
	Walk(ctx context.Context, root string, ignorePatterns []string, fn func(path string, info fs.FileInfo) error) error
}

// Node is a single entry in the tree, either a file (leaf) or directory.
type Node struct {
	Path     string           `json:"path"`
	Hash     string           `json:"hash"`
	IsFile   bool             `json:"isFile"`
	Size     int64            `json:"size"`
	Children map[string]*Node `json:"children,omitempty"`
}

// Snapshot is the serializable state of a tree at one point in time.
type Snapshot struct {
	Root *Node `json:"root"`
}

// Hasher computes per-file content hashes and whole-tree snapshots.
type Hasher struct {
	walker Walker
}

// NewHasher constructs a Hasher backed by the given Walker.
func NewHasher(walker Walker) *Hasher {
	return &Hasher{walker: walker}
}

// HashFile returns the SHA256 hex digest of path's contents. path must
// resolve within basePath.
func HashFile(path, basePath string) (string, error) {
	if _, err := validation.ValidatePathWithinBase(path, basePath); err != nil {
		return "", fmt.Errorf("invalid path %s: %w", path, err)
	}

	// #nosec G304 - path validated above via ValidatePathWithinBase
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// BuildSnapshot walks root and returns a Merkle snapshot of its contents.
func (h *Hasher) BuildSnapshot(ctx context.Context, root string, ignorePatterns []string) (*Snapshot, error) {
	if h.walker == nil {
		return nil, fmt.Errorf("walker cannot be nil")
	}

	tree := &Node{Path: "", IsFile: false, Children: make(map[string]*Node)}

	err := h.walker.Walk(ctx, root, ignorePatterns, func(path string, info fs.FileInfo) error {
		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relative path: %w", err)
		}
		if relPath == "." {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if info.IsDir() {
			addDirectory(tree, relPath)
			return nil
		}

		hash, err := HashFile(path, root)
		if err != nil {
			return fmt.Errorf("hash file %s: %w", path, err)
		}
		addFile(tree, relPath, hash, info.Size())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("build tree: %w", err)
	}

	computeDirectoryHashes(tree)
	return &Snapshot{Root: tree}, nil
}

// BuildSnapshotFromContent builds a Merkle snapshot directly from in-memory
// content, for sources (git clones already read into memory, crawled pages)
// that have no local directory tree to Walk.
func BuildSnapshotFromContent(files map[string][]byte) *Snapshot {
	tree := &Node{Path: "", IsFile: false, Children: make(map[string]*Node)}
	for path, content := range files {
		h := sha256.Sum256(content)
		addFile(tree, path, hex.EncodeToString(h[:]), int64(len(content)))
	}
	computeDirectoryHashes(tree)
	return &Snapshot{Root: tree}
}

// Marshal serializes a Snapshot to JSON for persistence.
func Marshal(s *Snapshot) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("serialize snapshot: %w", err)
	}
	return data, nil
}

// Unmarshal deserializes a persisted snapshot. A JSON error is surfaced
// directly; callers treat it as a corrupt-snapshot condition and fall back
// to a full rescan.
func Unmarshal(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("deserialize snapshot: %w", err)
	}
	return &s, nil
}

func addDirectory(root *Node, path string) {
	parts := strings.Split(path, "/")
	current := root
	for _, part := range parts {
		if _, ok := current.Children[part]; !ok {
			current.Children[part] = &Node{Path: filepath.Join(current.Path, part), IsFile: false, Children: make(map[string]*Node)}
		}
		current = current.Children[part]
	}
}

func addFile(root *Node, path, hash string, size int64) {
	parts := strings.Split(path, "/")
	current := root
	for i := 0; i < len(parts)-1; i++ {
		part := parts[i]
		if _, ok := current.Children[part]; !ok {
			current.Children[part] = &Node{Path: filepath.Join(current.Path, part), IsFile: false, Children: make(map[string]*Node)}
		}
		current = current.Children[part]
	}
	name := parts[len(parts)-1]
	current.Children[name] = &Node{Path: path, Hash: hash, IsFile: true, Size: size}
}

func computeDirectoryHashes(node *Node) string {
	if node.IsFile {
		return node.Hash
	}
	names := make([]string, 0, len(node.Children))
	for name := range node.Children {
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha256.New()
	for _, name := range names {
		childHash := computeDirectoryHashes(node.Children[name])
		fmt.Fprintf(h, "%s:%s\n", name, childHash)
	}
	node.Hash = hex.EncodeToString(h.Sum(nil))
	return node.Hash
}
