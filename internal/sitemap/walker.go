package sitemap

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fri-wier/besela/internal/metadata"
	"github.com/fri-wier/besela/pkg/setutil"
)

/*
Responsibilities
- Expand a sitemap index tree into its leaf URLs
- Wait for the host's politeness slot before every fetch
- Swallow broken branches: non-200 responses and XML parse failures
  terminate that branch, siblings continue

A <loc> whose target ends in ".xml" or contains "sitemap.xml" is another
sitemap and is queued for expansion; every other <loc> is a candidate
page URL handed to the admit callback.
*/

// SlotWaiter claims the politeness slot for a URL's host and sleeps out
// the wait. The engine provides it, backed by the shared limiter.
type SlotWaiter interface {
	Wait(u url.URL)
}

// AdmitFunc canonicalizes and filters one raw candidate. It returns
// false for URLs the crawl must not keep (out of scope, robots
// disallow, unparsable).
type AdmitFunc func(raw string) (url.URL, bool)

type Walker struct {
	httpClient   *http.Client
	userAgent    string
	metadataSink metadata.MetadataSink
}

func NewWalker(metadataSink metadata.MetadataSink, userAgent string) Walker {
	return Walker{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		userAgent:    userAgent,
		metadataSink: metadataSink,
	}
}

// NewWalkerWithClient creates a Walker with a custom HTTP client.
// This is useful for testing.
func NewWalkerWithClient(metadataSink metadata.MetadataSink, userAgent string, httpClient *http.Client) Walker {
	return Walker{
		httpClient:   httpClient,
		userAgent:    userAgent,
		metadataSink: metadataSink,
	}
}

// Walk expands the given sitemap roots (robots-declared, or the
// /sitemap.xml fallback) and returns every admitted leaf URL.
func (w *Walker) Walk(
	ctx context.Context,
	roots []string,
	waiter SlotWaiter,
	admit AdmitFunc,
) []url.URL {
	queue := make([]task, 0, len(roots))
	for _, root := range roots {
		queue = append(queue, task{loc: root, depth: 0})
	}

	seen := setutil.New[string]()
	admitted := setutil.New[string]()
	var collected []url.URL

	for len(queue) > 0 {
		if ctx.Err() != nil {
			break
		}
		current := queue[0]
		queue = queue[1:]

		if seen.Contains(current.loc) {
			continue
		}
		seen.Add(current.loc)

		if current.depth > MaxDepth {
			continue
		}

		locs, ok := w.fetchLocs(ctx, current.loc, waiter)
		if !ok {
			// broken branch; siblings continue
			continue
		}

		for _, loc := range locs {
			if isSitemapLoc(loc) {
				queue = append(queue, task{loc: loc, depth: current.depth + 1})
				continue
			}
			if len(collected) >= MaxURLs {
				continue
			}
			candidate, keep := admit(loc)
			if !keep {
				continue
			}
			key := candidate.String()
			if admitted.Contains(key) {
				continue
			}
			admitted.Add(key)
			collected = append(collected, candidate)
		}
	}

	return collected
}

// fetchLocs downloads one sitemap document and returns its <loc> values.
// The second return value is false when the branch is broken.
func (w *Walker) fetchLocs(ctx context.Context, loc string, waiter SlotWaiter) ([]string, bool) {
	target, err := url.Parse(loc)
	if err != nil {
		return nil, false
	}

	waiter.Wait(*target)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc, nil)
	if err != nil {
		return nil, false
	}
	req.Header.Set("User-Agent", w.userAgent)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		w.metadataSink.RecordError(
			time.Now(),
			"sitemap",
			"Walker.fetchLocs",
			metadata.CauseNetworkFailure,
			err.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, loc),
			},
		)
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, false
	}

	locs, err := parseLocs(resp.Body)
	if err != nil {
		w.metadataSink.RecordError(
			time.Now(),
			"sitemap",
			"Walker.fetchLocs",
			metadata.CauseContentInvalid,
			fmt.Sprintf("sitemap parse: %v", err),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, loc),
			},
		)
		return nil, false
	}
	return locs, true
}

// parseLocs streams the document and collects the text of every <loc>
// element, whether the parent is <sitemapindex> or <urlset>.
func parseLocs(body io.Reader) ([]string, error) {
	decoder := xml.NewDecoder(body)
	var locs []string
	var inLoc bool
	var text strings.Builder

	for {
		token, err := decoder.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local == "loc" {
				inLoc = true
				text.Reset()
			}
		case xml.CharData:
			if inLoc {
				text.Write(t)
			}
		case xml.EndElement:
			if t.Name.Local == "loc" {
				inLoc = false
				if value := strings.TrimSpace(text.String()); value != "" {
					locs = append(locs, value)
				}
			}
		}
	}
	return locs, nil
}

func isSitemapLoc(loc string) bool {
	return strings.HasSuffix(loc, ".xml") || strings.Contains(loc, "sitemap.xml")
}
