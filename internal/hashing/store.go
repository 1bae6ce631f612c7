package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/ferg-cod3s/contextcore/internal/coreerrors"
)

// SnapshotStore persists Merkle snapshots under its base directory, one
// file per snapshot, keyed by a hash of the root path they were taken of.
type SnapshotStore struct {
	baseDir string
}

// NewSnapshotStore creates a store rooted at baseDir (the CLI passes
// "<database path>.snapshots").
func NewSnapshotStore(baseDir string) *SnapshotStore {
	return &SnapshotStore{baseDir: baseDir}
}

func keyFor(absPath string) string {
	sum := sha256.Sum256([]byte(absPath))
	return hex.EncodeToString(sum[:])[:16]
}

func (s *SnapshotStore) pathFor(absPath string) string {
	return filepath.Join(s.baseDir, keyFor(absPath)+".json")
}

// Load reads the last snapshot for absPath. A missing snapshot returns
// (nil, nil); corrupt JSON returns a KindCorruptSnapshot error so the
// caller can fall back to a full rescan.
func (s *SnapshotStore) Load(absPath string) (*Snapshot, error) {
	data, err := os.ReadFile(s.pathFor(absPath)) // #nosec G304 - path derived from internal hash, not user input
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, coreerrors.Wrap(coreerrors.KindIO, "read snapshot", err)
	}

	snap, err := Unmarshal(data)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindCorruptSnapshot, "decode snapshot", err).WithResource(absPath)
	}
	return snap, nil
}

// Save persists a snapshot for absPath, creating the base directory if
// needed.
func (s *SnapshotStore) Save(absPath string, snap *Snapshot) error {
	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		return coreerrors.Wrap(coreerrors.KindIO, "create snapshot directory", err)
	}
	data, err := Marshal(snap)
	if err != nil {
		return coreerrors.Wrap(coreerrors.KindInternal, "encode snapshot", err)
	}
	tmp := s.pathFor(absPath) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil { // #nosec G306 - snapshot cache, not secret material
		return coreerrors.Wrap(coreerrors.KindIO, "write snapshot", err)
	}
	if err := os.Rename(tmp, s.pathFor(absPath)); err != nil {
		return coreerrors.Wrap(coreerrors.KindIO, "commit snapshot", err)
	}
	return nil
}

// Delete removes a persisted snapshot, e.g. when a watched root is removed.
func (s *SnapshotStore) Delete(absPath string) error {
	err := os.Remove(s.pathFor(absPath))
	if err != nil && !os.IsNotExist(err) {
		return coreerrors.Wrap(coreerrors.KindIO, "delete snapshot", err)
	}
	return nil
}
