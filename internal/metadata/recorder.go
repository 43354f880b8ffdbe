package metadata

import (
	"time"

	"go.uber.org/zap"
)

/*
Metadata Collected
- Fetch timestamps, HTTP status codes, content digests
- Page state transitions
- Failure diagnostics

Logging Goals
- Debuggable crawl behavior
- Post-run auditability

Allowed values: primitives, timestamps, URLs as strings, hashes, status
codes, durations, identifiers (page id, site id, worker id). No objects
with behavior cross this boundary.
*/

// MetadataSink is the observational port every pipeline stage records
// through. Emission is observational only and MUST NOT influence
// scheduling or crawl termination.
type MetadataSink interface {
	RecordError(
		observedAt time.Time,
		packageName string,
		action string,
		cause ErrorCause,
		errorString string,
		attrs []Attribute,
	)
	RecordFetch(
		fetchURL string,
		httpStatus int,
		contentType string,
		duration time.Duration,
		bodyDigest string,
	)
	RecordTransition(pageID int64, pageType string, attrs []Attribute)
}

// CrawlFinalizer records the terminal summary of a completed crawl,
// exactly once, after the worker pool has terminated.
type CrawlFinalizer interface {
	RecordFinalCrawlStats(
		totalPages int,
		totalErrors int,
		totalBinaries int,
		totalDuplicates int,
		crawlDuration time.Duration,
	)
}

// Recorder is the zap-backed implementation of both ports.
type Recorder struct {
	logger  *zap.Logger
	crawlID string
}

func NewRecorder(crawlID string, logger *zap.Logger) Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Recorder{
		logger:  logger.With(zap.String("crawl_id", crawlID)),
		crawlID: crawlID,
	}
}

func (r *Recorder) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause ErrorCause,
	errorString string,
	attrs []Attribute,
) {
	fields := []zap.Field{
		zap.Time("observed_at", observedAt),
		zap.String("package", packageName),
		zap.String("action", action),
		zap.Int("cause", int(cause)),
		zap.String("error", errorString),
	}
	for _, attr := range attrs {
		fields = append(fields, zap.String(string(attr.Key), attr.Value))
	}
	r.logger.Warn("pipeline error", fields...)
}

func (r *Recorder) RecordFetch(
	fetchURL string,
	httpStatus int,
	contentType string,
	duration time.Duration,
	bodyDigest string,
) {
	r.logger.Info("fetch",
		zap.String("url", fetchURL),
		zap.Int("status", httpStatus),
		zap.String("content_type", contentType),
		zap.Duration("duration", duration),
		zap.String("digest", bodyDigest),
	)
}

func (r *Recorder) RecordTransition(pageID int64, pageType string, attrs []Attribute) {
	fields := []zap.Field{
		zap.Int64("page_id", pageID),
		zap.String("page_type", pageType),
	}
	for _, attr := range attrs {
		fields = append(fields, zap.String(string(attr.Key), attr.Value))
	}
	r.logger.Info("page transition", fields...)
}

func (r *Recorder) RecordFinalCrawlStats(
	totalPages int,
	totalErrors int,
	totalBinaries int,
	totalDuplicates int,
	crawlDuration time.Duration,
) {
	stats := crawlStats{
		totalPages:      totalPages,
		totalErrors:     totalErrors,
		totalBinaries:   totalBinaries,
		totalDuplicates: totalDuplicates,
		durationMs:      crawlDuration.Milliseconds(),
	}
	r.logger.Info("crawl finished",
		zap.Int("total_pages", stats.totalPages),
		zap.Int("total_errors", stats.totalErrors),
		zap.Int("total_binaries", stats.totalBinaries),
		zap.Int("total_duplicates", stats.totalDuplicates),
		zap.Int64("duration_ms", stats.durationMs),
	)
}
