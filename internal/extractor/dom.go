package extractor

import (
	"bytes"
	"fmt"
	"mime"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/fri-wier/besela/internal/metadata"
	"github.com/fri-wier/besela/pkg/failure"
	"github.com/fri-wier/besela/pkg/setutil"
)

/*
Responsibilities
- Parse rendered HTML into a DOM tree
- Collect outbound URLs from <a href> and from onclick navigation
  handlers matching the two JS redirect shapes
- Collect <img> metadata for sources on the image-extension allowlist

The extractor applies no crawl policy of its own: every candidate link
goes through the injected admit callback, which owns canonicalization,
robots, and scope decisions.
*/

// Extractor turns a rendered document into outbound links and image
// records.
type Extractor interface {
	Extract(pageURL url.URL, htmlBytes []byte, admit AdmitFunc) (ExtractionResult, failure.ClassifiedError)
}

type DomExtractor struct {
	metadataSink metadata.MetadataSink
	now          func() time.Time
}

func NewDomExtractor(metadataSink metadata.MetadataSink) DomExtractor {
	return DomExtractor{
		metadataSink: metadataSink,
		now:          time.Now,
	}
}

// NewDomExtractorWithClock allows injecting a clock for testing.
func NewDomExtractorWithClock(metadataSink metadata.MetadataSink, now func() time.Time) DomExtractor {
	return DomExtractor{
		metadataSink: metadataSink,
		now:          now,
	}
}

func (d *DomExtractor) Extract(
	pageURL url.URL,
	htmlBytes []byte,
	admit AdmitFunc,
) (ExtractionResult, failure.ClassifiedError) {
	result, err := d.extract(htmlBytes, admit)
	if err != nil {
		d.metadataSink.RecordError(
			time.Now(),
			"extractor",
			"DomExtractor.Extract",
			mapExtractionErrorToMetadataCause(err),
			err.Message,
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, pageURL.String()),
			},
		)
		return ExtractionResult{}, err
	}
	return result, nil
}

func (d *DomExtractor) extract(htmlBytes []byte, admit AdmitFunc) (ExtractionResult, *ExtractionError) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(htmlBytes))
	if err != nil {
		return ExtractionResult{}, &ExtractionError{
			Message:   fmt.Sprintf("failed to parse HTML: %v", err),
			Retryable: true,
			Cause:     ErrCauseNotHTML,
		}
	}

	return ExtractionResult{
		links:  d.findLinks(doc, admit),
		images: d.findImages(doc),
	}, nil
}

// findLinks selects all navigatable elements: anchors plus anything
// with an onclick handler.
func (d *DomExtractor) findLinks(doc *goquery.Document, admit AdmitFunc) []url.URL {
	seen := setutil.New[string]()
	var links []url.URL

	doc.Find("a, [onclick]").Each(func(_ int, sel *goquery.Selection) {
		var raw string

		if href, exists := sel.Attr("href"); exists {
			raw = href
		} else if onclick, exists := sel.Attr("onclick"); exists {
			raw = navigationTarget(onclick)
		}
		if raw == "" {
			return
		}

		candidate, keep := admit(raw)
		if !keep {
			return
		}

		key := candidate.String()
		if seen.Contains(key) {
			return
		}
		seen.Add(key)
		links = append(links, candidate)
	})

	return links
}

// navigationTarget extracts the URL from an onclick JS redirect, or ""
// when the handler is not a navigation.
func navigationTarget(onclick string) string {
	// check for format when directly assigning
	if match := navigationAssignRegex.FindStringSubmatch(onclick); match != nil {
		return match[3]
	}
	// check for format when using function to assign
	if match := navigationFuncRegex.FindStringSubmatch(onclick); match != nil {
		return match[4]
	}
	return ""
}

func (d *DomExtractor) findImages(doc *goquery.Document) []ImageRecord {
	accessedAt := d.now()
	seen := setutil.New[string]()
	var images []ImageRecord

	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		src, exists := sel.Attr("src")
		if !exists || src == "" {
			return
		}

		record, ok := imageRecordFromSrc(src, accessedAt)
		if !ok {
			return
		}

		key := record.Filename + "|" + record.ContentType
		if seen.Contains(key) {
			return
		}
		seen.Add(key)
		images = append(images, record)
	})

	return images
}

// imageRecordFromSrc resolves one <img src> to its stored metadata.
// Data URIs keep their MIME and have no filename; everything else must
// carry an allowlisted extension.
func imageRecordFromSrc(src string, accessedAt time.Time) (ImageRecord, bool) {
	// Example: src='data:image/png;base64,iVBORw0...'
	if strings.HasPrefix(src, "data:image") {
		contentType := strings.TrimPrefix(src, "data:")
		if idx := strings.Index(contentType, ";"); idx != -1 {
			contentType = contentType[:idx]
		}
		return ImageRecord{
			Filename:    "",
			ContentType: contentType,
			AccessedAt:  accessedAt,
		}, true
	}

	parsed, err := url.Parse(src)
	if err != nil {
		return ImageRecord{}, false
	}

	base := path.Base(parsed.Path)
	ext := strings.ToLower(path.Ext(base))
	if _, allowed := imageExtensions[ext]; !allowed {
		return ImageRecord{}, false
	}

	contentType := mime.TypeByExtension(ext)
	if contentType == "" {
		contentType = "image/" + strings.TrimPrefix(ext, ".")
	}

	return ImageRecord{
		Filename:    strings.TrimSuffix(base, path.Ext(base)),
		ContentType: contentType,
		AccessedAt:  accessedAt,
	}, true
}
