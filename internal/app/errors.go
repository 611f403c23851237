package app

import "errors"

// ErrNotFound and related errors describe runtime failures surfaced by
// the service layer.
var (
	ErrNotFound = errors.New("not found")
	// ErrConsistency reports a divergence between the registry and a
	// fresh replay of the ledger.
	ErrConsistency = errors.New("registry diverges from ledger")
	// ErrBackupUnsupported is returned by stores with no file to copy.
	ErrBackupUnsupported = errors.New("store does not support file backup")
	ErrInvalidSnapshot   = errors.New("invalid snapshot")
	ErrInvalidReportKind = errors.New("invalid report kind")
)
