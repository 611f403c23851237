package sqlite

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrNoFile is returned when a file-copy operation is attempted on an
// in-memory store.
var ErrNoFile = errors.New("store has no database file")

// Backup checkpoints the database and copies its file to dst. The
// caller holds the service write lock, so no write is in flight.
func (r *Repository) Backup(ctx context.Context, dst string) error {
	if r.path == "" {
		return ErrNoFile
	}
	if _, err := r.db.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE);`); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}
	return copyFile(r.path, dst)
}

// Restore closes the database, replaces its file with src, and reopens.
// On copy failure the previous file is left in place.
func (r *Repository) Restore(ctx context.Context, src string) error {
	if r.path == "" {
		return ErrNoFile
	}
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("backup file: %w", err)
	}
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("close before restore: %w", err)
	}
	// Stale WAL sidecars would shadow the restored file.
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(r.path + suffix); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s sidecar: %w", suffix, err)
		}
	}
	if err := copyFile(src, r.path); err != nil {
		return err
	}
	db, err := openDB(r.path)
	if err != nil {
		return err
	}
	r.db = db
	return r.migrate(ctx)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy to %s: %w", dst, err)
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return fmt.Errorf("sync %s: %w", dst, err)
	}
	return out.Close()
}
