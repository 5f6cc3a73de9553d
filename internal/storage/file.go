package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"veridia/pkg/session"
)

// FileStore persists sessions as JSON files under a save directory, one
// file per slot. The filename carries the schema version, mirroring the
// Redis key scheme: a save from an incompatible schema is simply not
// there. Writes go through a temp file and rename so a crash mid-save
// never leaves a truncated document.
type FileStore struct {
	dir    string
	logger *slog.Logger
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a file-backed session store rooted at dir,
// creating the directory if needed.
func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create save directory: %w", err)
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

func (f *FileStore) slotPath(slot string) string {
	return filepath.Join(f.dir, fmt.Sprintf("%s_v%d.json", slot, session.SchemaVersion))
}

func (f *FileStore) SaveSession(ctx context.Context, slot string, s *session.Session) error {
	s.Version = session.SchemaVersion
	data, err := json.Marshal(s)
	if err != nil {
		f.logger.Error("Failed to marshal session", "slot", slot, "error", err)
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	path := f.slotPath(slot)
	tmp, err := os.CreateTemp(f.dir, slot+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp save file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write save file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close save file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace save file: %w", err)
	}

	return nil
}

func (f *FileStore) LoadSession(ctx context.Context, slot string) (*session.Session, error) {
	data, err := os.ReadFile(f.slotPath(slot))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read save file: %w", err)
	}

	return decodeSession(data)
}

func (f *FileStore) DeleteSession(ctx context.Context, slot string) error {
	if err := os.Remove(f.slotPath(slot)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete save file: %w", err)
	}
	return nil
}

func (f *FileStore) Ping(ctx context.Context) error {
	if _, err := os.Stat(f.dir); err != nil {
		return fmt.Errorf("save directory unavailable: %w", err)
	}
	return nil
}

func (f *FileStore) Close() error {
	return nil
}
