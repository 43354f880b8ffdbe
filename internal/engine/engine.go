package engine

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/fri-wier/besela/internal/config"
	"github.com/fri-wier/besela/internal/extractor"
	"github.com/fri-wier/besela/internal/fetcher"
	"github.com/fri-wier/besela/internal/metadata"
	"github.com/fri-wier/besela/internal/robots"
	"github.com/fri-wier/besela/internal/sitemap"
	"github.com/fri-wier/besela/internal/store"
	"github.com/fri-wier/besela/internal/urlnorm"
	"github.com/fri-wier/besela/pkg/limiter"
	"github.com/fri-wier/besela/pkg/timeutil"
)

/*
Engine is the sole control-plane authority of the crawl.

Determinism and admission guarantees:
- The engine is the ONLY component that enqueues, claims, or finalizes
  page rows; pipeline stages detect and classify, never decide.
- All semantic admission checks (canonical form, scope, robots) are
  completed before a discovered URL reaches Store.Enqueue. Seeds are
  checked for canonical form and scope only; robots applies when they
  are popped.
- The politeness slot is reserved before every outbound request; the
  reservation serializes traffic per host, not request completion.

Cross-worker synchronization is exactly two things: the limiter's mutex
and the frontier's row locks. Everything else is worker-local.

Engine Responsibilities:
- Coordinate crawl lifecycle and graceful pool termination
- Run the per-URL state machine (fetch, classify, persist)
- Aggregate crawl statistics
- The sole authority on continue vs. abort
*/

type Engine struct {
	deps   Deps
	status *workerStatus
	stats  counters
}

// New wires an Engine against real infrastructure: the shared Postgres
// pool, headless-browser backends, and network robots/sitemap fetchers.
func New(cfg config.Config, pool *pgxpool.Pool, logger *zap.Logger) *Engine {
	recorder := metadata.NewRecorder(fmt.Sprintf("crawl-%d", time.Now().Unix()), logger)
	robotsFetcher := robots.NewFetcher(&recorder, cfg.UserAgent())
	walker := sitemap.NewWalker(&recorder, cfg.UserAgent())
	domExtractor := extractor.NewDomExtractor(&recorder)
	normalizer := urlnorm.NewNormalizer(cfg.ScopePattern(), &http.Client{Timeout: 30 * time.Second}, cfg.UserAgent())

	deps := Deps{
		Store:         store.NewPgStore(pool, &recorder),
		Limiter:       limiter.NewConcurrentSlotLimiter(),
		Sleeper:       timeutil.NewRealSleeper(),
		RobotsSource:  &robotsFetcher,
		SitemapWalker: &walker,
		Extractor:     &domExtractor,
		BackendFactory: func() (fetcher.FetchBackend, error) {
			return fetcher.NewChromeBackend(&recorder, cfg.UserAgent(), cfg.FetchTimeout())
		},
		Normalizer:     normalizer,
		ResolveIP:      lookupFirstIP,
		MetadataSink:   &recorder,
		CrawlFinalizer: &recorder,
		Workers:        cfg.Workers(),
		DefaultDelay:   cfg.DefaultDelay(),
		IdleProbe:      cfg.IdleProbe(),
		StaleCrawling:  cfg.StaleCrawling(),
		UserAgent:      cfg.UserAgent(),
	}
	return NewWithDeps(deps)
}

// NewWithDeps creates an Engine with injected dependencies for testing.
func NewWithDeps(deps Deps) *Engine {
	if deps.Workers < 1 {
		deps.Workers = 1
	}
	if deps.ResolveIP == nil {
		deps.ResolveIP = lookupFirstIP
	}
	return &Engine{
		deps:   deps,
		status: newWorkerStatus(deps.Workers),
	}
}

// Run seeds the frontier, reclaims rows orphaned by a previous run, and
// drives the worker pool to quiescence.
func (e *Engine) Run(ctx context.Context, seeds []url.URL) (CrawlSummary, error) {
	started := time.Now()

	defer func() {
		summary := e.stats.summary(time.Since(started))
		e.deps.CrawlFinalizer.RecordFinalCrawlStats(
			summary.Pages,
			summary.Errors,
			summary.Binaries,
			summary.Duplicates,
			summary.Duration,
		)
	}()

	if e.deps.StaleCrawling > 0 {
		if _, err := e.deps.Store.RequeueStale(ctx, e.deps.StaleCrawling); err != nil {
			e.stats.addError()
		}
	}

	if err := e.enqueueSeeds(ctx, seeds); err != nil {
		return e.stats.summary(time.Since(started)), err
	}

	var wg sync.WaitGroup
	for id := 0; id < e.deps.Workers; id++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			e.runWorker(ctx, workerID)
		}(id)
	}
	wg.Wait()

	return e.stats.summary(time.Since(started)), nil
}

// enqueueSeeds resolves shortened seed spellings, canonicalizes, scope
// filters, and admits the survivors to the frontier.
func (e *Engine) enqueueSeeds(ctx context.Context, seeds []url.URL) error {
	var admitted []url.URL
	for _, seed := range seeds {
		fixed := e.deps.Normalizer.FixShortened(seed.String())
		parsed, err := url.Parse(fixed)
		if err != nil {
			continue
		}
		canonical := urlnorm.Canonicalize(*parsed)
		if !e.deps.Normalizer.InScope(canonical) {
			continue
		}
		admitted = append(admitted, canonical)
	}
	if len(admitted) == 0 {
		return fmt.Errorf("no seed URL survived scope filtering")
	}
	if err := e.deps.Store.Enqueue(ctx, admitted); err != nil {
		return fmt.Errorf("seeding frontier: %w", err)
	}
	return nil
}

// runWorker is one worker's lifetime: claim a page, run the state
// machine, repeat. After an empty frontier the worker idles through a
// probe cycle, giving the others time to enqueue new discoveries; the
// worker exits when the whole pool has gone idle.
func (e *Engine) runWorker(ctx context.Context, workerID int) {
	backend, err := e.deps.BackendFactory()
	if err != nil {
		e.deps.MetadataSink.RecordError(
			time.Now(),
			"engine",
			"Engine.runWorker",
			metadata.CauseUnknown,
			fmt.Sprintf("fetch backend unavailable: %v", err),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrWorker, fmt.Sprintf("%d", workerID)),
			},
		)
		e.status.setActive(workerID, false)
		e.stats.addError()
		return
	}
	defer backend.Close()

	for {
		if ctx.Err() != nil {
			e.status.setActive(workerID, false)
			return
		}

		popped, ok, popErr := e.deps.Store.PopFrontier(ctx)
		if popErr != nil {
			e.stats.addError()
			e.deps.Sleeper.Sleep(e.deps.IdleProbe)
			continue
		}
		if !ok {
			e.status.setActive(workerID, false)
			e.deps.Sleeper.Sleep(e.deps.IdleProbe)
			if e.status.allIdle() {
				return
			}
			continue
		}

		e.status.setActive(workerID, true)
		e.processPageSafely(ctx, workerID, backend, popped)
	}
}

// processPageSafely is the loop boundary: an unexpected panic in one
// URL's pipeline is logged as critical and the worker proceeds to the
// next URL. Errors never cross worker boundaries.
func (e *Engine) processPageSafely(
	ctx context.Context,
	workerID int,
	backend fetcher.FetchBackend,
	popped store.PoppedPage,
) {
	defer func() {
		if r := recover(); r != nil {
			e.stats.addError()
			e.deps.MetadataSink.RecordError(
				time.Now(),
				"engine",
				"Engine.processPage",
				metadata.CauseInvariantViolation,
				fmt.Sprintf("panic: %v", r),
				[]metadata.Attribute{
					metadata.NewAttr(metadata.AttrWorker, fmt.Sprintf("%d", workerID)),
					metadata.NewAttr(metadata.AttrURL, popped.URL),
				},
			)
		}
	}()
	e.processPage(ctx, backend, popped)
}

// waitAndClaim reserves the politeness slot for domain (and its IP) and
// sleeps out the wait. Reserve-before-sleep is what keeps two workers
// from both observing "no wait needed".
func (e *Engine) waitAndClaim(domain string, ip string, delay time.Duration) {
	wait := e.deps.Limiter.ReserveSlot(domain, ip, delay)
	e.deps.Sleeper.Sleep(wait)
}

// slotWaiter adapts waitAndClaim for the sitemap walker, which claims a
// slot per sitemap document it fetches.
type slotWaiter struct {
	engine *Engine
	delay  time.Duration
}

func (w *slotWaiter) Wait(u url.URL) {
	// a sitemap fetch is throttled even when its host will not resolve
	ip, err := w.engine.deps.ResolveIP(u.Hostname())
	if err != nil {
		ip = ""
	}
	w.engine.waitAndClaim(u.Host, ip, w.delay)
}

// lookupFirstIP resolves host to its first address; "" with a nil
// error means DNS answered with no usable record.
func lookupFirstIP(host string) (string, error) {
	ips, err := net.LookupIP(host)
	if err != nil {
		return "", err
	}
	if len(ips) == 0 {
		return "", nil
	}
	return ips[0].String(), nil
}
