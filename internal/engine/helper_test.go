package engine_test

import (
	"context"
	"net/url"
	"regexp"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/fri-wier/besela/internal/engine"
	"github.com/fri-wier/besela/internal/extractor"
	"github.com/fri-wier/besela/internal/fetcher"
	"github.com/fri-wier/besela/internal/metadata"
	"github.com/fri-wier/besela/internal/robots"
	"github.com/fri-wier/besela/internal/sitemap"
	"github.com/fri-wier/besela/internal/store"
	"github.com/fri-wier/besela/internal/urlnorm"
	"github.com/fri-wier/besela/pkg/failure"
	"github.com/fri-wier/besela/pkg/limiter"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// in-memory Store fake
// ---------------------------------------------------------------------------

type fakePage struct {
	id       int64
	url      string
	pageType string
	siteID   int64
	status   int
	html     string
	hash     string
}

type fakeSite struct {
	id             int64
	domain         string
	robotsContent  string
	sitemapContent string
}

type fakeStore struct {
	mu           sync.Mutex
	nextPageID   int64
	nextSiteID   int64
	pagesByURL   map[string]*fakePage
	pagesByID    map[int64]*fakePage
	sites        map[string]*fakeSite
	links        [][2]int64
	images       map[int64][]store.ImageRow
	pageData     map[int64][]string
	requeueCalls []time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		pagesByURL: make(map[string]*fakePage),
		pagesByID:  make(map[int64]*fakePage),
		sites:      make(map[string]*fakeSite),
		images:     make(map[int64][]store.ImageRow),
		pageData:   make(map[int64][]string),
	}
}

func (f *fakeStore) insertLocked(pageURL string, pageType string, siteID int64) *fakePage {
	f.nextPageID++
	page := &fakePage{
		id:       f.nextPageID,
		url:      pageURL,
		pageType: pageType,
		siteID:   siteID,
	}
	f.pagesByURL[pageURL] = page
	f.pagesByID[page.id] = page
	return page
}

func (f *fakeStore) Enqueue(_ context.Context, urls []url.URL) failure.ClassifiedError {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range urls {
		if _, exists := f.pagesByURL[u.String()]; exists {
			continue
		}
		f.insertLocked(u.String(), store.PageTypeFrontier, 0)
	}
	return nil
}

func (f *fakeStore) PopFrontier(context.Context) (store.PoppedPage, bool, failure.ClassifiedError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var candidate *fakePage
	for _, page := range f.pagesByID {
		if page.pageType != store.PageTypeFrontier {
			continue
		}
		if candidate == nil || page.id < candidate.id {
			candidate = page
		}
	}
	if candidate == nil {
		return store.PoppedPage{}, false, nil
	}
	candidate.pageType = store.PageTypeCrawling
	return store.PoppedPage{ID: candidate.id, URL: candidate.url}, true, nil
}

func (f *fakeStore) FinalizeHTML(_ context.Context, pageID, siteID int64, status int, html []byte, hash string) failure.ClassifiedError {
	f.mu.Lock()
	defer f.mu.Unlock()
	page := f.pagesByID[pageID]
	page.pageType = store.PageTypeHTML
	page.siteID = siteID
	page.status = status
	page.html = string(html)
	page.hash = hash
	return nil
}

func (f *fakeStore) FinalizeBinary(_ context.Context, pageID, siteID int64, status int, dataType string) failure.ClassifiedError {
	f.mu.Lock()
	defer f.mu.Unlock()
	page := f.pagesByID[pageID]
	page.pageType = store.PageTypeBinary
	page.siteID = siteID
	page.status = status
	f.pageData[pageID] = append(f.pageData[pageID], dataType)
	return nil
}

func (f *fakeStore) FinalizeDuplicate(_ context.Context, pageID, siteID int64, status int, originalPageID int64) failure.ClassifiedError {
	f.mu.Lock()
	defer f.mu.Unlock()
	page := f.pagesByID[pageID]
	page.pageType = store.PageTypeDuplicate
	page.siteID = siteID
	page.status = status
	f.links = append(f.links, [2]int64{pageID, originalPageID})
	return nil
}

func (f *fakeStore) FinalizeFailed(_ context.Context, pageID int64) failure.ClassifiedError {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pagesByID[pageID].pageType = store.PageTypeFailed
	return nil
}

func (f *fakeStore) CreateEmptyPage(_ context.Context, pageURL string, siteID int64) (int64, bool, failure.ClassifiedError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, exists := f.pagesByURL[pageURL]; exists {
		// a still-poppable row is claimed; anything else stays with
		// the worker that owns or owned it
		if existing.pageType != store.PageTypeFrontier {
			return existing.id, false, nil
		}
		existing.pageType = store.PageTypeCrawling
		existing.siteID = siteID
		return existing.id, true, nil
	}
	page := f.insertLocked(pageURL, store.PageTypeCrawling, siteID)
	page.siteID = siteID
	return page.id, true, nil
}

func (f *fakeStore) GetSite(_ context.Context, domain string) (store.Site, bool, failure.ClassifiedError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	site, exists := f.sites[domain]
	if !exists {
		return store.Site{}, false, nil
	}
	return store.Site{
		ID:             site.id,
		Domain:         site.domain,
		RobotsContent:  site.robotsContent,
		SitemapContent: site.sitemapContent,
	}, true, nil
}

func (f *fakeStore) SaveSite(_ context.Context, domain, robotsContent, sitemapContent string) (int64, failure.ClassifiedError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, exists := f.sites[domain]; exists {
		return existing.id, nil
	}
	f.nextSiteID++
	f.sites[domain] = &fakeSite{
		id:             f.nextSiteID,
		domain:         domain,
		robotsContent:  robotsContent,
		sitemapContent: sitemapContent,
	}
	return f.nextSiteID, nil
}

func (f *fakeStore) LookupHash(_ context.Context, hash string) (store.DuplicateRef, bool, failure.ClassifiedError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if hash == "" {
		return store.DuplicateRef{}, false, nil
	}
	var best *fakePage
	for _, page := range f.pagesByID {
		if page.hash != hash {
			continue
		}
		if best == nil || page.id < best.id {
			best = page
		}
	}
	if best == nil {
		return store.DuplicateRef{}, false, nil
	}
	return store.DuplicateRef{PageID: best.id, SiteID: best.siteID}, true, nil
}

func (f *fakeStore) SaveImages(_ context.Context, pageID int64, images []store.ImageRow) failure.ClassifiedError {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images[pageID] = append(f.images[pageID], images...)
	return nil
}

func (f *fakeStore) SavePageData(_ context.Context, pageID int64, dataType string) failure.ClassifiedError {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageData[pageID] = append(f.pageData[pageID], dataType)
	return nil
}

func (f *fakeStore) RequeueStale(_ context.Context, olderThan time.Duration) (int64, failure.ClassifiedError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requeueCalls = append(f.requeueCalls, olderThan)
	return 0, nil
}

func (f *fakeStore) pageByURL(pageURL string) (fakePage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	page, exists := f.pagesByURL[pageURL]
	if !exists {
		return fakePage{}, false
	}
	return *page, true
}

func (f *fakeStore) pagesOfType(pageType string) []fakePage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []fakePage
	for _, page := range f.pagesByID {
		if page.pageType == pageType {
			out = append(out, *page)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// ---------------------------------------------------------------------------
// fetch backend fake
// ---------------------------------------------------------------------------

type fakeResponse struct {
	finalURL string
	body     string
	tag      urlnorm.BinaryType
	status   int
	fail     bool
}

type fakeBackend struct {
	mu        sync.Mutex
	responses map[string]fakeResponse
	fetched   []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{responses: make(map[string]fakeResponse)}
}

func (b *fakeBackend) respond(pageURL string, resp fakeResponse) {
	if resp.finalURL == "" {
		resp.finalURL = pageURL
	}
	if resp.status == 0 {
		resp.status = 200
	}
	b.responses[pageURL] = resp
}

func (b *fakeBackend) Fetch(_ context.Context, fetchURL url.URL) (fetcher.FetchResult, failure.ClassifiedError) {
	b.mu.Lock()
	b.fetched = append(b.fetched, fetchURL.String())
	resp, ok := b.responses[fetchURL.String()]
	b.mu.Unlock()

	if !ok || resp.fail {
		return fetcher.FetchResult{}, &fetcher.FetchError{
			Message:   "no response configured",
			Retryable: true,
			Cause:     fetcher.ErrCauseNavigationFailure,
		}
	}

	final, err := url.Parse(resp.finalURL)
	if err != nil {
		panic(err)
	}
	return fetcher.NewFetchResultForTest(
		*final, []byte(resp.body), resp.tag, resp.status, time.Now(),
	), nil
}

func (b *fakeBackend) Close() {}

func (b *fakeBackend) fetchedURLs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.fetched))
	copy(out, b.fetched)
	return out
}

// ---------------------------------------------------------------------------
// remaining stubs
// ---------------------------------------------------------------------------

type robotsSourceStub struct {
	byHost map[string]string
}

func (r *robotsSourceStub) Fetch(_ context.Context, _ string, host string) (string, *robots.RobotsError) {
	if r.byHost == nil {
		return "", nil
	}
	return r.byHost[host], nil
}

type walkerStub struct {
	mu    sync.Mutex
	byURL []url.URL
	calls int
}

func (w *walkerStub) Walk(_ context.Context, _ []string, _ sitemap.SlotWaiter, _ sitemap.AdmitFunc) []url.URL {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	return w.byURL
}

type recordingSleeper struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (s *recordingSleeper) Sleep(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sleeps = append(s.sleeps, d)
}

func (s *recordingSleeper) maxSleep() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var max time.Duration
	for _, d := range s.sleeps {
		if d > max {
			max = d
		}
	}
	return max
}

type sinkStub struct {
	mu     sync.Mutex
	errors []string
}

func (s *sinkStub) RecordError(_ time.Time, packageName, action string, _ metadata.ErrorCause, errorString string, _ []metadata.Attribute) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, packageName+"/"+action+": "+errorString)
}

func (s *sinkStub) RecordFetch(string, int, string, time.Duration, string) {}

func (s *sinkStub) RecordTransition(int64, string, []metadata.Attribute) {}

type finalizerStub struct {
	mu    sync.Mutex
	calls int
}

func (f *finalizerStub) RecordFinalCrawlStats(int, int, int, int, time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
}

// ---------------------------------------------------------------------------
// wiring
// ---------------------------------------------------------------------------

type testRig struct {
	store     *fakeStore
	backend   *fakeBackend
	robots    *robotsSourceStub
	walker    *walkerStub
	sleeper   *recordingSleeper
	sink      *sinkStub
	finalizer *finalizerStub
	deps      engine.Deps
}

func newTestRig(t *testing.T, workers int) *testRig {
	t.Helper()

	rig := &testRig{
		store:     newFakeStore(),
		backend:   newFakeBackend(),
		robots:    &robotsSourceStub{byHost: map[string]string{}},
		walker:    &walkerStub{},
		sleeper:   &recordingSleeper{},
		sink:      &sinkStub{},
		finalizer: &finalizerStub{},
	}

	scope := regexp.MustCompile(`.*\.gov\.si$`)
	domExtractor := extractor.NewDomExtractor(rig.sink)

	rig.deps = engine.Deps{
		Store:         rig.store,
		Limiter:       limiter.NewConcurrentSlotLimiter(),
		Sleeper:       rig.sleeper,
		RobotsSource:  rig.robots,
		SitemapWalker: rig.walker,
		Extractor:     &domExtractor,
		BackendFactory: func() (fetcher.FetchBackend, error) {
			return rig.backend, nil
		},
		Normalizer:     urlnorm.NewNormalizer(scope, nil, "fri-wier-besela"),
		ResolveIP:      func(string) (string, error) { return "93.103.1.1", nil },
		MetadataSink:   rig.sink,
		CrawlFinalizer: rig.finalizer,
		Workers:        workers,
		DefaultDelay:   5 * time.Second,
		IdleProbe:      time.Millisecond,
		StaleCrawling:  30 * time.Minute,
		UserAgent:      "fri-wier-besela",
	}
	return rig
}

func newEngineForRig(r *testRig) *engine.Engine {
	return engine.NewWithDeps(r.deps)
}

func (r *testRig) run(t *testing.T, seeds ...string) engine.CrawlSummary {
	t.Helper()
	var seedURLs []url.URL
	for _, seed := range seeds {
		u, err := url.Parse(seed)
		require.NoError(t, err)
		seedURLs = append(seedURLs, *u)
	}

	e := engine.NewWithDeps(r.deps)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	summary, err := e.Run(ctx, seedURLs)
	require.NoError(t, err)
	return summary
}
