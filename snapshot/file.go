package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"go.uber.org/zap"

	"github.com/spacemeshos/vdfcache/common/types"
)

const dirPerm = 0o700

// Outcome describes how the state was obtained at startup.
type Outcome string

const (
	// Loaded means the snapshot was used as is.
	Loaded Outcome = "loaded"
	// Missing means there was no snapshot.
	Missing Outcome = "missing"
	// Corrupt means the snapshot could not be read or failed validation.
	Corrupt Outcome = "corrupt"
	// Mismatch means the snapshot was made for a different base modulus.
	Mismatch Outcome = "mismatch"
)

// BackupPath is where an unusable snapshot is moved before it is superseded.
func BackupPath(path string) string {
	return path + ".bak"
}

// Save atomically replaces the snapshot at path.
func Save(path string, s *types.State, base *big.Int) error {
	data, err := Encode(s, base)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return fmt.Errorf("create snapshot dir %v: %w", filepath.Dir(path), err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write snapshot %v: %w", path, err)
	}
	return nil
}

// Load reads the snapshot at path. It never fails: when the snapshot is missing,
// unusable or made for another base modulus, a fresh state for base is returned.
// Unusable snapshots are moved to BackupPath.
func Load(logger *zap.Logger, path string, base *big.Int) (*types.State, Outcome) {
	logger = logger.With(zap.String("path", path))
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Info("no snapshot, starting fresh")
		return types.NewState(base, types.DefaultT), Missing
	case err != nil:
		logger.Warn("failed to read snapshot, starting fresh", zap.Error(err))
		return types.NewState(base, types.DefaultT), Corrupt
	}
	s, recorded, err := Decode(data)
	if err != nil {
		logger.Warn("invalid snapshot, starting fresh", zap.Error(err))
		quarantine(logger, path)
		return types.NewState(base, types.DefaultT), Corrupt
	}
	if recorded.Cmp(base) != 0 {
		logger.Warn("snapshot was made for another base modulus, starting fresh")
		quarantine(logger, path)
		return types.NewState(base, types.DefaultT), Mismatch
	}
	logger.Info("snapshot loaded",
		zap.Int("t", s.T),
		zap.Int("moduli", len(s.Pools)),
		zap.Int("solved", s.SolvedCount()),
	)
	return s, Loaded
}

func quarantine(logger *zap.Logger, path string) {
	if err := atomic.ReplaceFile(path, BackupPath(path)); err != nil {
		logger.Warn("failed to move snapshot aside", zap.Error(err))
	}
}
