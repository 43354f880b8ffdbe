package store

import (
	"fmt"

	"github.com/fri-wier/besela/internal/metadata"
	"github.com/fri-wier/besela/pkg/failure"
)

type StorageErrorCause string

const (
	ErrCauseBeginTx      = "failed to open transaction"
	ErrCauseCommitTx     = "failed to commit transaction"
	ErrCauseQueryFailure = "query failed"
	ErrCauseScanFailure  = "failed to scan row"
)

type StorageError struct {
	Message   string
	Retryable bool
	Cause     StorageErrorCause
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s", e.Cause)
}

func (e *StorageError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// mapStorageErrorToMetadataCause maps store-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapStorageErrorToMetadataCause(err *StorageError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseBeginTx, ErrCauseCommitTx, ErrCauseQueryFailure, ErrCauseScanFailure:
		return metadata.CauseStorageFailure
	default:
		return metadata.CauseUnknown
	}
}
