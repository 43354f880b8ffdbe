package fetcher

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/fri-wier/besela/internal/metadata"
	"github.com/fri-wier/besela/internal/urlnorm"
	"github.com/fri-wier/besela/pkg/failure"
	"github.com/fri-wier/besela/pkg/hashutil"
)

/*
ChromeBackend

Responsibilities:
- Navigate a headless browser tab to the URL, with a per-fetch timeout
- Abort image/font/media requests before they transfer
- Classify binary-document responses by content-type without reading
  the body
- Return the fully rendered HTML and the URL the browser ended on

Each worker owns one ChromeBackend (one tab), reused across URLs.
*/

type ChromeBackend struct {
	tabCtx       context.Context
	cancelTab    context.CancelFunc
	cancelAlloc  context.CancelFunc
	timeout      time.Duration
	metadataSink metadata.MetadataSink
}

func NewChromeBackend(
	metadataSink metadata.MetadataSink,
	userAgent string,
	timeout time.Duration,
) (*ChromeBackend, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(userAgent),
		chromedp.NoSandbox,
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	// start the browser and arm interception once per tab
	if err := chromedp.Run(tabCtx,
		network.Enable(),
		fetch.Enable().WithPatterns([]*fetch.RequestPattern{
			{URLPattern: "*"},
		}),
	); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, err
	}

	backend := &ChromeBackend{
		tabCtx:       tabCtx,
		cancelTab:    cancelTab,
		cancelAlloc:  cancelAlloc,
		timeout:      timeout,
		metadataSink: metadataSink,
	}
	backend.listen()
	return backend, nil
}

// listen aborts bandwidth-heavy resource classes and lets everything
// else through. Runs for the lifetime of the tab.
func (b *ChromeBackend) listen() {
	chromedp.ListenTarget(b.tabCtx, func(ev interface{}) {
		e, ok := ev.(*fetch.EventRequestPaused)
		if !ok {
			return
		}
		go func() {
			c := chromedp.FromContext(b.tabCtx)
			execCtx := cdp.WithExecutor(b.tabCtx, c.Target)
			switch e.ResourceType {
			case network.ResourceTypeImage,
				network.ResourceTypeFont,
				network.ResourceTypeMedia:
				_ = fetch.FailRequest(e.RequestID, network.ErrorReasonBlockedByClient).Do(execCtx)
			default:
				_ = fetch.ContinueRequest(e.RequestID).Do(execCtx)
			}
		}()
	})
}

func (b *ChromeBackend) Close() {
	b.cancelTab()
	b.cancelAlloc()
}

// Fetch navigates to fetchURL and returns the rendered outcome.
func (b *ChromeBackend) Fetch(parent context.Context, fetchURL url.URL) (FetchResult, failure.ClassifiedError) {
	result, fetchErr := b.fetch(parent, fetchURL)
	if fetchErr != nil {
		b.metadataSink.RecordError(
			time.Now(),
			"fetcher",
			"ChromeBackend.Fetch",
			mapFetchErrorToMetadataCause(fetchErr),
			fetchErr.Message,
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, fetchURL.String()),
			},
		)
		return FetchResult{}, fetchErr
	}

	digest := ""
	contentType := "text/html"
	if len(result.body) > 0 {
		digest = hashutil.ShortDigest(result.body)
	}
	if result.binaryTag != urlnorm.BinaryTypeNone {
		contentType = string(result.binaryTag)
	}
	b.metadataSink.RecordFetch(
		fetchURL.String(),
		result.status,
		contentType,
		time.Since(result.fetchedAt),
		digest,
	)
	return result, nil
}

func (b *ChromeBackend) fetch(parent context.Context, fetchURL url.URL) (FetchResult, *FetchError) {
	if b.tabCtx.Err() != nil {
		return FetchResult{}, &FetchError{
			Message:   "browser tab is gone",
			Retryable: false,
			Cause:     ErrCauseBrowserGone,
		}
	}

	ctx, cancel := context.WithTimeout(b.tabCtx, b.timeout)
	defer cancel()
	if parent != nil {
		// the engine's context only matters for shutdown; the tab
		// context carries the browser session
		go func() {
			select {
			case <-parent.Done():
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	started := time.Now()

	var mu sync.Mutex
	var status int
	var binaryTag = urlnorm.BinaryTypeNone

	// capture the main document response before the body transfers
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		e, ok := ev.(*network.EventResponseReceived)
		if !ok || e.Type != network.ResourceTypeDocument {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		status = int(e.Response.Status)
		if tag, isBinary := ClassifyBinaryMIME(e.Response.MimeType); isBinary {
			binaryTag = tag
		}
	})

	navErr := chromedp.Run(ctx, chromedp.Navigate(fetchURL.String()))

	mu.Lock()
	observedStatus := status
	observedTag := binaryTag
	mu.Unlock()

	// A binary document aborts rendering (the browser would download
	// it); the classification above is the whole result.
	if observedTag != urlnorm.BinaryTypeNone {
		return FetchResult{
			finalURL:  fetchURL,
			binaryTag: observedTag,
			status:    observedStatus,
			fetchedAt: started,
		}, nil
	}

	if navErr != nil {
		if errors.Is(navErr, context.DeadlineExceeded) {
			return FetchResult{}, &FetchError{
				Message:   "navigation timed out",
				Retryable: true,
				Cause:     ErrCauseTimeout,
			}
		}
		return FetchResult{}, &FetchError{
			Message:   navErr.Error(),
			Retryable: true,
			Cause:     ErrCauseNavigationFailure,
		}
	}

	var finalLocation string
	var renderedHTML string
	if err := chromedp.Run(ctx,
		chromedp.Location(&finalLocation),
		chromedp.OuterHTML("html", &renderedHTML, chromedp.ByQuery),
	); err != nil {
		return FetchResult{}, &FetchError{
			Message:   err.Error(),
			Retryable: true,
			Cause:     ErrCauseNavigationFailure,
		}
	}

	if renderedHTML == "" {
		return FetchResult{}, &FetchError{
			Message:   "browser returned an empty document",
			Retryable: true,
			Cause:     ErrCauseEmptyDocument,
		}
	}

	final := fetchURL
	if parsed, err := url.Parse(finalLocation); err == nil && parsed.Host != "" {
		final = *parsed
	}

	return FetchResult{
		finalURL:  final,
		body:      []byte(renderedHTML),
		status:    observedStatus,
		fetchedAt: started,
	}, nil
}
