package app

import (
	"context"
	"fmt"
)

// CreateBackup copies the store's database file to the destination path
// under the exclusive write lock, so the copy is crash-consistent.
func (s *Service) CreateBackup(ctx context.Context, dst string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	store, ok := s.repo.(BackupStore)
	if !ok {
		return ErrBackupUnsupported
	}
	if err := store.Backup(ctx, dst); err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	return nil
}

// RestoreBackup replaces the live store with a backup file, then
// verifies the restored registry against its ledger. On divergence the
// registry is rebuilt from the ledger, which is authoritative.
func (s *Service) RestoreBackup(ctx context.Context, src string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	store, ok := s.repo.(BackupStore)
	if !ok {
		return ErrBackupUnsupported
	}
	if err := store.Restore(ctx, src); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	if err := s.verifyAndRepair(ctx); err != nil {
		return err
	}
	return nil
}

// verifyAndRepair replays the ledger, and on any divergence rewrites the
// derived registry from the replay. Caller holds the write lock.
func (s *Service) verifyAndRepair(ctx context.Context) error {
	replayed, err := s.replayLedger(ctx)
	if err != nil {
		return fmt.Errorf("verify restored store: %w", err)
	}
	diffs, err := s.diffRegistry(ctx, replayed)
	if err != nil {
		return err
	}
	if len(diffs) == 0 {
		return nil
	}
	if err := s.rebuildLocked(ctx); err != nil {
		return fmt.Errorf("rebuild after restore: %w", err)
	}
	return nil
}
