package metadata

/*
	ErrorCause is a closed, canonical classification used exclusively for
	observability (logging, metrics, reporting).

	Rules:
	 - ErrorCause is for observability only.
	 - It must never be used to derive retry, continuation, or abort decisions.
	 - ErrorCause MUST NOT influence control flow.
	 - ErrorCause values MUST have stable, package-agnostic semantics.
	 - Pipeline packages MAY map their local errors to ErrorCause,
	   but MUST NOT invent new meanings.

If a failure does not clearly match a defined cause, CauseUnknown MUST be used.
*/
type ErrorCause int

/*
Canonical ErrorCause Table

# CauseUnknown

  - The failure does not map cleanly to any known category.
  - Used as a safe fallback.

# CauseNetworkFailure

  - Failure caused by network transport or remote availability.
  - TCP timeouts, DNS resolution failures, connection resets,
    robots.txt fetch timeout, browser navigation timeout.

# CausePolicyDisallow

  - Crawling was disallowed by an explicit policy or rule.
  - robots.txt disallow, out-of-scope host, rate-limit enforcement.

# CauseContentInvalid

  - Content was fetched but could not be processed meaningfully.
  - Unparseable HTML, broken sitemap XML, empty document bodies.

# CauseStorageFailure

  - Failure while persisting crawl state.
  - Connection loss to the database, constraint violations other than
    the expected unique-URL conflict, transaction rollbacks.

# CauseInvariantViolation

  - A system-level invariant was violated.
  - A frontier pop returning a non-FRONTIER row, a terminal row being
    re-opened, internal consistency checks failing.
*/
const (
	CauseUnknown = iota
	CauseNetworkFailure
	CausePolicyDisallow
	CauseContentInvalid
	CauseStorageFailure
	CauseInvariantViolation
)

type Attribute struct {
	Key   AttributeKey
	Value string
}

func NewAttr(key AttributeKey, val string) Attribute {
	return Attribute{
		Key:   key,
		Value: val,
	}
}

type AttributeKey string

const (
	AttrURL        AttributeKey = "url"
	AttrHost       AttributeKey = "host"
	AttrIP         AttributeKey = "ip"
	AttrPath       AttributeKey = "path"
	AttrPageID     AttributeKey = "page_id"
	AttrSiteID     AttributeKey = "site_id"
	AttrWorker     AttributeKey = "worker"
	AttrHTTPStatus AttributeKey = "http_status"
	AttrPageType   AttributeKey = "page_type"
	AttrDataType   AttributeKey = "data_type"
	AttrHash       AttributeKey = "hash"
)

/*
crawlStats
  - Represents a terminal, derived summary of a completed crawl
  - Contains only aggregate counts and the total duration
  - Is computed by the engine after the pool terminates
  - Is recorded exactly once
  - Must not influence scheduling or crawl termination
*/
type crawlStats struct {
	totalPages      int
	totalErrors     int
	totalBinaries   int
	totalDuplicates int
	durationMs      int64
}
