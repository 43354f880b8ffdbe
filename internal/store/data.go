package store

import "time"

// Page lifecycle codes, mirrored by the page_type reference table.
//
//	FRONTIER ──pop──► CRAWLING ──outcome──► {HTML | BINARY | DUPLICATE | FAILED}
//
// Terminal states are sinks; no operation re-opens a terminal row.
const (
	PageTypeFrontier  = "FRONTIER"
	PageTypeCrawling  = "CRAWLING"
	PageTypeHTML      = "HTML"
	PageTypeBinary    = "BINARY"
	PageTypeDuplicate = "DUPLICATE"
	PageTypeFailed    = "FAILED"
)

// Document codes, mirrored by the data_type reference table.
const (
	DataTypePDF  = "PDF"
	DataTypeDOC  = "DOC"
	DataTypeDOCX = "DOCX"
	DataTypePPT  = "PPT"
	DataTypePPTX = "PPTX"
)

// PoppedPage is the claim a worker holds after PopFrontier: this row,
// now CRAWLING, belongs to exactly one worker.
type PoppedPage struct {
	ID  int64
	URL string
}

// Site is one crawled host and its persisted robots/sitemap text.
type Site struct {
	ID             int64
	Domain         string
	RobotsContent  string
	SitemapContent string
}

// ImageRow is the metadata persisted for one <img> occurrence. Binary
// image bytes are modeled but never fetched.
type ImageRow struct {
	Filename    string
	ContentType string
	AccessedAt  time.Time
}

// DuplicateRef points a DUPLICATE page at the HTML original that owns
// the content hash.
type DuplicateRef struct {
	PageID int64
	SiteID int64
}
