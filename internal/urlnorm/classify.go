package urlnorm

import (
	"net/url"
	"path"
	"strings"
)

// IsURL reports whether s is usable as a crawl link. It accepts full
// http/https URLs and partial ones (/about/me, about.html, #top) and
// rejects every other scheme (mailto:, javascript:, tel:, ...).
func IsURL(s string) bool {
	if s == "" {
		return false
	}
	parsed, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	if parsed.Scheme != "" && parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	return parsed.Host != "" || parsed.Path != "" || parsed.Fragment != ""
}

// HasFileExtension reports whether the URL's last path segment contains
// a "." (about.html, report.pdf), meaning it addresses a file rather
// than a directory-like page.
func HasFileExtension(u url.URL) bool {
	return hasFileExtensionPath(u.Path)
}

func hasFileExtensionPath(p string) bool {
	last := p
	if idx := strings.LastIndex(p, "/"); idx != -1 {
		last = p[idx+1:]
	}
	return strings.Contains(last, ".")
}

// ClassifyBinaryLink reports whether the URL addresses a downloadable
// binary document. For the document formats the second value is true and
// the tag names the matching data_type code; archives (.zip) also return
// true but carry BinaryTypeNone.
func ClassifyBinaryLink(u url.URL) (BinaryType, bool) {
	ext := strings.ToLower(path.Ext(u.Path))
	tag, ok := binaryExtensions[ext]
	return tag, ok
}
