package extractor

import (
	"net/url"
	"regexp"
	"time"
)

// AdmitFunc canonicalizes and filters one raw link candidate, returning
// false for URLs the crawl must not keep (invalid, out of scope, robots
// disallow). The engine supplies it; the extractor never decides policy.
type AdmitFunc func(raw string) (url.URL, bool)

type ExtractionResult struct {
	links  []url.URL
	images []ImageRecord
}

// Links are the admitted outbound URLs, deduplicated, in document order
// of first appearance.
func (e *ExtractionResult) Links() []url.URL {
	links := make([]url.URL, len(e.links))
	copy(links, e.links)
	return links
}

func (e *ExtractionResult) Images() []ImageRecord {
	images := make([]ImageRecord, len(e.images))
	copy(images, e.images)
	return images
}

// ImageRecord is the metadata kept for an <img> element. Image bytes
// are never fetched.
type ImageRecord struct {
	Filename    string
	ContentType string
	AccessedAt  time.Time
}

// Regex to match JS redirect calls in format of e.g.:
// location.href = "/about.html". The URL is stored in group 3.
var navigationAssignRegex = regexp.MustCompile(`.*(.)?location(.href)? = ["'](.*)["']`)

// Regex to match JS redirect calls in format of e.g.:
// location.assign('/about.html'). The URL is stored in group 4.
var navigationFuncRegex = regexp.MustCompile(`.*(.)?location(.href)?.(.*)\(["'](.*)["']\)`)

// imageExtensions is the allowlist for <img src> paths.
var imageExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".jfif": {}, ".pjpeg": {}, ".pjp": {},
	".png": {}, ".apng": {}, ".avif": {}, ".gif": {}, ".webp": {},
	".svg": {}, ".eps": {}, ".pdf": {}, ".ico": {}, ".cur": {},
	".tif": {}, ".tiff": {}, ".bmp": {},
}
