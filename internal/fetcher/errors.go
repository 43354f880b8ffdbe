package fetcher

import (
	"fmt"

	"github.com/fri-wier/besela/internal/metadata"
	"github.com/fri-wier/besela/pkg/failure"
)

type FetchErrorCause string

const (
	ErrCauseTimeout           = "timeout"
	ErrCauseNavigationFailure = "navigation failed"
	ErrCauseEmptyDocument     = "empty document"
	ErrCauseBrowserGone       = "browser unavailable"
)

type FetchError struct {
	Message   string
	Retryable bool
	Cause     FetchErrorCause
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetcher error: %s", e.Cause)
}

func (e *FetchError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// mapFetchErrorToMetadataCause maps fetcher-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapFetchErrorToMetadataCause(err *FetchError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseTimeout, ErrCauseNavigationFailure:
		return metadata.CauseNetworkFailure
	case ErrCauseEmptyDocument:
		return metadata.CauseContentInvalid
	case ErrCauseBrowserGone:
		return metadata.CauseInvariantViolation
	default:
		return metadata.CauseUnknown
	}
}
