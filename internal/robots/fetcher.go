package robots

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fri-wier/besela/internal/metadata"
)

/*
Fetcher

Responsibilities:
- Fetch robots.txt per host using net/http
- Map HTTP status classes onto the crawl's error policy
- Record fetch failures through the metadata sink

The Fetcher returns raw robots.txt text; parsing belongs to Robot. It
does not make decisions about URL permissions, and it does not wait for
politeness slots; the engine claims the slot before calling Fetch.
*/

type Fetcher struct {
	httpClient   *http.Client
	userAgent    string
	metadataSink metadata.MetadataSink
}

func NewFetcher(metadataSink metadata.MetadataSink, userAgent string) Fetcher {
	return Fetcher{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		userAgent:    userAgent,
		metadataSink: metadataSink,
	}
}

// NewFetcherWithClient creates a Fetcher with a custom HTTP client.
// This is useful for testing.
func NewFetcherWithClient(metadataSink metadata.MetadataSink, userAgent string, httpClient *http.Client) Fetcher {
	return Fetcher{
		httpClient:   httpClient,
		userAgent:    userAgent,
		metadataSink: metadataSink,
	}
}

// Fetch retrieves scheme://host/robots.txt and returns its text.
//
// Status handling:
//   - 2xx: body text is returned
//   - 4xx: no robots.txt exists; empty text, no error
//   - 429 / 5xx / transport errors: a RobotsError, which callers treat
//     as "empty robots" per the crawl's error policy
func (f *Fetcher) Fetch(ctx context.Context, scheme string, host string) (string, *RobotsError) {
	content, robotsErr := f.fetch(ctx, scheme, host)
	if robotsErr != nil {
		f.metadataSink.RecordError(
			time.Now(),
			"robots",
			"Fetcher.Fetch",
			mapRobotsErrorToMetadataCause(robotsErr),
			robotsErr.Message,
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrHost, host),
			},
		)
		return "", robotsErr
	}
	return content, nil
}

func (f *Fetcher) fetch(ctx context.Context, scheme string, host string) (string, *RobotsError) {
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", scheme, host)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return "", &RobotsError{
			Message:   fmt.Sprintf("failed to create request: %v", err),
			Retryable: false,
			Cause:     ErrCausePreFetchFailure,
		}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/plain,text/html,*/*")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", &RobotsError{
			Message:   fmt.Sprintf("failed to fetch robots.txt: %v", err),
			Retryable: true,
			Cause:     ErrCauseHttpFetchFailure,
		}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		// Limit reading to 500 KiB; oversized files are trimmed
		const maxSize = 500 * 1024
		content, err := io.ReadAll(io.LimitReader(resp.Body, maxSize))
		if err != nil {
			return "", &RobotsError{
				Message:   fmt.Sprintf("failed to read robots.txt body: %v", err),
				Retryable: true,
				Cause:     ErrCauseReadBodyFailure,
			}
		}
		return string(content), nil

	case resp.StatusCode == 429:
		return "", &RobotsError{
			Message:   fmt.Sprintf("rate limited (429) when fetching %s", robotsURL),
			Retryable: true,
			Cause:     ErrCauseHttpTooManyRequests,
		}

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// no robots.txt exists; no restrictions
		return "", nil

	case resp.StatusCode >= 500:
		return "", &RobotsError{
			Message:   fmt.Sprintf("server error (%d) when fetching %s", resp.StatusCode, robotsURL),
			Retryable: true,
			Cause:     ErrCauseHttpServerError,
		}

	default:
		return "", &RobotsError{
			Message:   fmt.Sprintf("unexpected status code %d for %s", resp.StatusCode, robotsURL),
			Retryable: true,
			Cause:     ErrCauseHttpUnexpectedStatus,
		}
	}
}
