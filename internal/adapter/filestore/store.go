// Package filestore stores GeoState snapshots in a local JSON file.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/lunch-locator-service/internal/domain"
	"github.com/google/renameio/v2"
)

// Store writes each snapshot over the previous one. Writes are atomic, so a
// crash leaves either the old or the new snapshot on disk.
type Store struct {
	path   string
	logger *slog.Logger
}

// NewStore creates a store at path, creating its directory if needed.
func NewStore(path string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	return &Store{path: path, logger: logger}, nil
}

// Name identifies the store in logs and metrics.
func (s *Store) Name() string { return "file" }

// LoadSnapshot replaces the snapshot file.
func (s *Store) LoadSnapshot(ctx context.Context, snap domain.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := domain.EncodeSnapshot(snap)
	if err != nil {
		return err
	}

	pendingFile, err := renameio.NewPendingFile(s.path, renameio.WithPermissions(0o644), renameio.IgnoreUmask())
	if err != nil {
		return fmt.Errorf("create pending snapshot file: %w", err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			s.logger.Debug("cleanup pending snapshot file", "error", err)
		}
	}()

	if _, err := pendingFile.Write(data); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace snapshot file: %w", err)
	}
	return nil
}

// Restore reads the snapshot file. ok is false when none was saved.
func (s *Store) Restore(ctx context.Context) (snap domain.Snapshot, ok bool, err error) {
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, false, err
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return domain.Snapshot{}, false, nil
	}
	if err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("read snapshot: %w", err)
	}
	snap, err = domain.DecodeSnapshot(data)
	if err != nil {
		return domain.Snapshot{}, false, err
	}
	return snap, true, nil
}
