package urlnorm

import "regexp"

// BinaryType tags a URL that points at a downloadable document rather
// than a crawlable page. The non-empty values mirror the data_type
// reference table.
type BinaryType string

const (
	BinaryTypePDF  BinaryType = "PDF"
	BinaryTypeDOC  BinaryType = "DOC"
	BinaryTypeDOCX BinaryType = "DOCX"
	BinaryTypePPT  BinaryType = "PPT"
	BinaryTypePPTX BinaryType = "PPTX"

	// Archives are excluded from crawling but have no data_type row;
	// they are skipped rather than recorded.
	BinaryTypeNone BinaryType = ""
)

// binaryExtensions maps a lowercase path extension to its tag.
var binaryExtensions = map[string]BinaryType{
	".pdf":  BinaryTypePDF,
	".doc":  BinaryTypeDOC,
	".docx": BinaryTypeDOCX,
	".ppt":  BinaryTypePPT,
	".pptx": BinaryTypePPTX,
	".zip":  BinaryTypeNone,
}

// fullURLRegex matches complete URL structure -> https://www.xyz.com
//
// Looks for url schema http:// or https://
// Looks for either www or custom subdomain -> www, evem, spot
// Looks for at least 2 repetitions of a dot followed by some text -> .gov.si
// Looks for optional continuing relative path -> some/path/to/resource
var fullURLRegex = regexp.MustCompile(`^https?://(?:www|[a-zA-Z0-9-]+)(\.[a-zA-Z]+){2,}(.*(/)?)*$`)
