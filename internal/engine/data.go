package engine

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/fri-wier/besela/internal/extractor"
	"github.com/fri-wier/besela/internal/fetcher"
	"github.com/fri-wier/besela/internal/metadata"
	"github.com/fri-wier/besela/internal/robots"
	"github.com/fri-wier/besela/internal/sitemap"
	"github.com/fri-wier/besela/internal/store"
	"github.com/fri-wier/besela/internal/urlnorm"
	"github.com/fri-wier/besela/pkg/failure"
	"github.com/fri-wier/besela/pkg/limiter"
	"github.com/fri-wier/besela/pkg/timeutil"
)

// RobotsSource fetches raw robots.txt text for a host. Satisfied by
// robots.Fetcher; replaced by a stub in tests.
type RobotsSource interface {
	Fetch(ctx context.Context, scheme string, host string) (string, *robots.RobotsError)
}

// SitemapWalker expands sitemap roots into admitted leaf URLs.
// Satisfied by sitemap.Walker; replaced by a stub in tests.
type SitemapWalker interface {
	Walk(ctx context.Context, roots []string, waiter sitemap.SlotWaiter, admit sitemap.AdmitFunc) []url.URL
}

// BackendFactory builds the fetch backend a worker will own for its
// lifetime (one browser tab per worker).
type BackendFactory func() (fetcher.FetchBackend, error)

// ResolveIPFunc resolves a hostname to one IP address. An error means
// DNS failed outright and the URL is abandoned; an empty address with
// no error means resolution returned none, which merely skips the
// limiter's IP branch.
type ResolveIPFunc func(host string) (string, error)

// Deps is the full dependency set of an Engine. Everything is handed in
// at construction; the engine holds no process-wide state.
type Deps struct {
	Store          store.Store
	Limiter        limiter.SlotLimiter
	Sleeper        timeutil.Sleeper
	RobotsSource   RobotsSource
	SitemapWalker  SitemapWalker
	Extractor      extractor.Extractor
	BackendFactory BackendFactory
	Normalizer     urlnorm.Normalizer
	ResolveIP      ResolveIPFunc
	MetadataSink   metadata.MetadataSink
	CrawlFinalizer metadata.CrawlFinalizer

	Workers       int
	DefaultDelay  time.Duration
	IdleProbe     time.Duration
	StaleCrawling time.Duration
	UserAgent     string
}

// CrawlSummary is what Run reports after the pool terminates.
type CrawlSummary struct {
	Pages      int
	Binaries   int
	Duplicates int
	Failures   int
	Errors     int
	Duration   time.Duration
}

// counters aggregates worker outcomes behind one mutex. Observational
// only; never consulted for scheduling decisions.
type counters struct {
	mu         sync.Mutex
	pages      int
	binaries   int
	duplicates int
	failures   int
	errors     int
}

func (c *counters) addPage()      { c.mu.Lock(); c.pages++; c.mu.Unlock() }
func (c *counters) addBinary()    { c.mu.Lock(); c.binaries++; c.mu.Unlock() }
func (c *counters) addDuplicate() { c.mu.Lock(); c.duplicates++; c.mu.Unlock() }
func (c *counters) addFailure()   { c.mu.Lock(); c.failures++; c.mu.Unlock() }
func (c *counters) addError()     { c.mu.Lock(); c.errors++; c.mu.Unlock() }

func (c *counters) summary(duration time.Duration) CrawlSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CrawlSummary{
		Pages:      c.pages,
		Binaries:   c.binaries,
		Duplicates: c.duplicates,
		Failures:   c.failures,
		Errors:     c.errors,
		Duration:   duration,
	}
}

// countAndClassify bumps the error counter for a stage error, fatal or
// recoverable, and reports whether it was fatal.
func (c *counters) countAndClassify(err failure.ClassifiedError) (abort bool) {
	if err == nil {
		return false
	}
	c.addError()
	return failure.IsFatal(err)
}
