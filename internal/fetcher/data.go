package fetcher

import (
	"net/url"
	"time"

	"github.com/fri-wier/besela/internal/urlnorm"
)

// binaryMIMEs maps binary-document content types to the data_type tag
// recorded for the page. A response with any of these types is a
// terminal BINARY outcome and its body is never read.
var binaryMIMEs = map[string]urlnorm.BinaryType{
	"application/pdf":    urlnorm.BinaryTypePDF,
	"application/msword": urlnorm.BinaryTypeDOC,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": urlnorm.BinaryTypeDOCX,
	"application/vnd.ms-powerpoint":                                           urlnorm.BinaryTypePPT,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": urlnorm.BinaryTypePPTX,
}

// ClassifyBinaryMIME returns the data_type tag for a binary-document
// content type, or ok=false for renderable content.
func ClassifyBinaryMIME(contentType string) (urlnorm.BinaryType, bool) {
	tag, ok := binaryMIMEs[contentType]
	return tag, ok
}

type FetchResult struct {
	finalURL  url.URL
	body      []byte
	binaryTag urlnorm.BinaryType
	status    int
	fetchedAt time.Time
}

// FinalURL is the URL the browser ended on after any HTTP or
// script-driven redirects.
func (f *FetchResult) FinalURL() url.URL {
	return f.finalURL
}

func (f *FetchResult) Body() []byte {
	return f.body
}

// BinaryTag is non-empty when the response was a binary document; Body
// is empty in that case.
func (f *FetchResult) BinaryTag() urlnorm.BinaryType {
	return f.binaryTag
}

func (f *FetchResult) IsBinary() bool {
	return f.binaryTag != urlnorm.BinaryTypeNone
}

func (f *FetchResult) Status() int {
	return f.status
}

func (f *FetchResult) FetchedAt() time.Time {
	return f.fetchedAt
}

// NewFetchResultForTest creates a FetchResult for testing purposes.
// This allows test packages to construct FetchResult values without
// accessing unexported fields directly.
func NewFetchResultForTest(
	finalURL url.URL,
	body []byte,
	binaryTag urlnorm.BinaryType,
	status int,
	fetchedAt time.Time,
) FetchResult {
	return FetchResult{
		finalURL:  finalURL,
		body:      body,
		binaryTag: binaryTag,
		status:    status,
		fetchedAt: fetchedAt,
	}
}
