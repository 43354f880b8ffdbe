package fetcher

import (
	"context"
	"net/url"

	"github.com/fri-wier/besela/pkg/failure"
)

// FetchBackend renders one URL and reports what came back: the final
// URL after redirects, the HTTP status, and either the rendered HTML or
// a binary-document tag.
//
// Errors are raised to the caller; the engine marks the page FAILED,
// except after a fatal error, which leaves the page CRAWLING.
type FetchBackend interface {
	Fetch(ctx context.Context, fetchURL url.URL) (FetchResult, failure.ClassifiedError)
	Close()
}
