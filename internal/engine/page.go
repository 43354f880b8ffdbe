package engine

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/fri-wier/besela/internal/fetcher"
	"github.com/fri-wier/besela/internal/metadata"
	"github.com/fri-wier/besela/internal/robots"
	"github.com/fri-wier/besela/internal/store"
	"github.com/fri-wier/besela/internal/urlnorm"
	"github.com/fri-wier/besela/pkg/hashutil"
)

// processPage runs the fetch-classify-persist state machine for one
// claimed frontier row:
//
//	FRONTIER → CRAWLING → HTML          (normal success)
//	                    → BINARY        (response is a binary document)
//	                    → DUPLICATE     (content hash matches existing page)
//	                    → FAILED        (fetch/timeout/robots disallow)
//	                    → HTML(301) + new row (redirect)
func (e *Engine) processPage(ctx context.Context, backend fetcher.FetchBackend, popped store.PoppedPage) {
	// Resolve seed-style shortened spellings before anything else.
	fixed := e.deps.Normalizer.FixShortened(popped.URL)
	parsed, err := url.Parse(fixed)
	if err != nil {
		e.finalizeFailed(ctx, popped.ID)
		return
	}
	current := urlnorm.Canonicalize(*parsed)

	// Discovery filters scope, so an out-of-scope claim means a seeding
	// mistake; abandon it without a terminal state.
	if !e.deps.Normalizer.InScope(current) {
		return
	}

	domain := current.Host

	// DNS failure abandons the URL; no resolution at all means the
	// limiter skips its IP branch.
	ip, dnsErr := e.deps.ResolveIP(current.Hostname())
	if dnsErr != nil {
		e.deps.MetadataSink.RecordError(
			time.Now(),
			"engine",
			"Engine.processPage",
			metadata.CauseNetworkFailure,
			dnsErr.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrHost, current.Hostname()),
			},
		)
		return
	}

	robot, siteID, sitemapURLs, ok := e.ensureSite(ctx, current, domain, ip)
	if !ok {
		return
	}

	delay := e.deps.DefaultDelay
	if robotDelay := robot.CrawlDelay(); robotDelay != nil {
		delay = *robotDelay
	}

	// Robots legality for the page itself.
	if !robot.CanFetch(current) {
		e.finalizeFailed(ctx, popped.ID)
		return
	}

	// Politeness slot precedes the fetch; the reservation is what keeps
	// concurrent workers off this host.
	e.waitAndClaim(domain, ip, delay)

	result, fetchErr := backend.Fetch(ctx, current)
	if fetchErr != nil {
		if e.stats.countAndClassify(fetchErr) {
			// browser gone; the row is handed back through the stale sweep
			return
		}
		e.finalizeFailed(ctx, popped.ID)
		return
	}

	// A binary document is an ordinary terminal outcome.
	if result.IsBinary() {
		if storeErr := e.deps.Store.FinalizeBinary(
			ctx, popped.ID, siteID, result.Status(), string(result.BinaryTag()),
		); storeErr != nil {
			e.stats.countAndClassify(storeErr)
			return
		}
		e.stats.addBinary()
		return
	}

	body := result.Body()
	hash := hashutil.PageHash(body)

	// Content-hash dedup: the second page with this body becomes a
	// DUPLICATE linked to the original.
	ref, hit, lookupErr := e.deps.Store.LookupHash(ctx, hash)
	if lookupErr != nil {
		e.stats.countAndClassify(lookupErr)
		return
	}
	if hit {
		if storeErr := e.deps.Store.FinalizeDuplicate(
			ctx, popped.ID, ref.SiteID, result.Status(), ref.PageID,
		); storeErr != nil {
			e.stats.countAndClassify(storeErr)
			return
		}
		e.stats.addDuplicate()
		return
	}

	// Redirect: the original row keeps a bodiless HTML(301) outcome and
	// the content lands on a row for the final URL, claimed through the
	// store so no popping worker can hold the same row.
	pageID := popped.ID
	finalURL := urlnorm.Canonicalize(result.FinalURL())
	if finalURL.String() != current.String() {
		if storeErr := e.deps.Store.FinalizeHTML(ctx, popped.ID, siteID, 301, nil, ""); storeErr != nil {
			e.stats.countAndClassify(storeErr)
			return
		}
		newID, claimed, createErr := e.deps.Store.CreateEmptyPage(ctx, finalURL.String(), siteID)
		if createErr != nil {
			e.stats.countAndClassify(createErr)
			return
		}
		if !claimed {
			// the target row belongs to another worker, past or
			// present; this worker's outcome is the 301 alone
			return
		}
		pageID = newID
		current = finalURL
	}

	extraction, extractErr := e.deps.Extractor.Extract(current, body, e.admitFunc(&robot, current))
	if extractErr != nil {
		// the rendered body is still worth keeping
		e.stats.countAndClassify(extractErr)
	}

	var outbound []url.URL
	var documents []string
	for _, link := range extraction.Links() {
		if tag, isBinary := urlnorm.ClassifyBinaryLink(link); isBinary {
			if tag != urlnorm.BinaryTypeNone {
				documents = append(documents, string(tag))
			}
			continue
		}
		outbound = append(outbound, link)
	}

	if storeErr := e.deps.Store.FinalizeHTML(
		ctx, pageID, siteID, result.Status(), body, hash,
	); storeErr != nil {
		e.stats.countAndClassify(storeErr)
		return
	}
	e.stats.addPage()

	// Attachments bind to the final pageID, which differs from the
	// popped id after a redirect.
	if images := extraction.Images(); len(images) > 0 {
		rows := make([]store.ImageRow, 0, len(images))
		for _, image := range images {
			rows = append(rows, store.ImageRow{
				Filename:    image.Filename,
				ContentType: image.ContentType,
				AccessedAt:  image.AccessedAt,
			})
		}
		if storeErr := e.deps.Store.SaveImages(ctx, pageID, rows); storeErr != nil {
			e.stats.countAndClassify(storeErr)
		}
	}
	for _, dataType := range documents {
		if storeErr := e.deps.Store.SavePageData(ctx, pageID, dataType); storeErr != nil {
			e.stats.countAndClassify(storeErr)
		}
	}

	if discovered := append(outbound, sitemapURLs...); len(discovered) > 0 {
		if storeErr := e.deps.Store.Enqueue(ctx, discovered); storeErr != nil {
			e.stats.countAndClassify(storeErr)
		}
	}
}

// ensureSite returns the robots rules and site row for the host,
// fetching robots.txt and expanding sitemaps on first contact. Known
// hosts reconstruct their parser from the persisted text and skip
// sitemap re-discovery.
func (e *Engine) ensureSite(
	ctx context.Context,
	current url.URL,
	domain string,
	ip string,
) (robots.Robot, int64, []url.URL, bool) {
	site, known, getErr := e.deps.Store.GetSite(ctx, domain)
	if getErr != nil {
		e.stats.countAndClassify(getErr)
		return robots.Robot{}, 0, nil, false
	}

	if known {
		robot := robots.Permissive(e.deps.UserAgent)
		if site.RobotsContent != "" {
			robot = robots.Parse(site.RobotsContent, e.deps.UserAgent)
		}
		return robot, site.ID, nil, true
	}

	// First contact: the robots fetch itself holds the host's slot.
	e.waitAndClaim(domain, ip, e.deps.DefaultDelay)

	robotsText := ""
	if text, robotsErr := e.deps.RobotsSource.Fetch(ctx, current.Scheme, domain); robotsErr == nil {
		robotsText = text
	}
	// fetch/parse failure degrades to the permissive Robot
	robot := robots.Permissive(e.deps.UserAgent)
	if robotsText != "" {
		robot = robots.Parse(robotsText, e.deps.UserAgent)
	}

	roots := robot.Sitemaps()
	if len(roots) == 0 {
		// fall back to the conventional location
		roots = []string{current.Scheme + "://" + domain + "/sitemap.xml"}
	}

	delay := e.deps.DefaultDelay
	if robotDelay := robot.CrawlDelay(); robotDelay != nil {
		delay = *robotDelay
	}
	waiter := &slotWaiter{engine: e, delay: delay}
	sitemapURLs := e.deps.SitemapWalker.Walk(ctx, roots, waiter, e.admitFunc(&robot, current))

	siteID, saveErr := e.deps.Store.SaveSite(ctx, domain, robot.Raw(), strings.Join(roots, "\n"))
	if saveErr != nil {
		e.stats.countAndClassify(saveErr)
		return robots.Robot{}, 0, nil, false
	}

	return robot, siteID, sitemapURLs, true
}

// admitFunc is the single admission gate for discovered URLs: valid
// link shape, resolvable against the page, in scope, and allowed by the
// host's robots rules.
func (e *Engine) admitFunc(robot *robots.Robot, base url.URL) func(raw string) (url.URL, bool) {
	return func(raw string) (url.URL, bool) {
		if !urlnorm.IsURL(raw) {
			return url.URL{}, false
		}
		resolved, ok := urlnorm.Resolve(raw, base)
		if !ok {
			return url.URL{}, false
		}
		if !e.deps.Normalizer.InScope(resolved) {
			return url.URL{}, false
		}
		if robot != nil && !robot.CanFetch(resolved) {
			return url.URL{}, false
		}
		return resolved, true
	}
}

func (e *Engine) finalizeFailed(ctx context.Context, pageID int64) {
	if storeErr := e.deps.Store.FinalizeFailed(ctx, pageID); storeErr != nil {
		e.stats.countAndClassify(storeErr)
		return
	}
	e.stats.addFailure()
}
