package urlnorm

import (
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

/*
Responsibilities
- Map equivalent URL spellings to one canonical identity
- Classify URLs (binary document, file path, in scope)
- Resolve shortened seed URLs to their real location

The canonical string is the unique identity of a page row; every URL
crosses through Canonicalize exactly once before it may touch the
frontier.
*/

type Normalizer struct {
	scope      *regexp.Regexp
	httpClient *http.Client
	userAgent  string
}

func NewNormalizer(scope *regexp.Regexp, httpClient *http.Client, userAgent string) Normalizer {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return Normalizer{
		scope:      scope,
		httpClient: httpClient,
		userAgent:  userAgent,
	}
}

// Canonicalize applies a deterministic normalization to a URL, producing
// its canonical form:
//   - Scheme and host are lowercased
//   - Default ports are omitted (:80 for http, :443 for https)
//   - Query parameters are removed
//   - Fragments are removed
//   - The path gains a trailing "/" unless its final segment contains a
//     "." (treated as a file extension)
//
// Properties:
//   - Pure: no state, no memory
//   - Deterministic: same input always produces same output
//   - Idempotent: Canonicalize(Canonicalize(url)) == Canonicalize(url)
func Canonicalize(sourceURL url.URL) url.URL {
	canonical := sourceURL

	canonical.Scheme = lowerASCII(canonical.Scheme)
	canonical.Host = lowerASCII(canonical.Host)

	if host, port := canonical.Hostname(), canonical.Port(); port != "" {
		if (canonical.Scheme == "http" && port == "80") ||
			(canonical.Scheme == "https" && port == "443") {
			canonical.Host = host
		}
	}

	canonical.Fragment = ""
	canonical.RawFragment = ""
	canonical.RawQuery = ""
	canonical.ForceQuery = false

	// Dropping RawPath forces String() to re-encode the path, so
	// percent-encoding comes out in one spelling.
	canonical.RawPath = ""

	if !hasFileExtensionPath(canonical.Path) && !strings.HasSuffix(canonical.Path, "/") {
		canonical.Path += "/"
	}

	return canonical
}

// Resolve interprets raw (absolute, host-relative, or fragment-only)
// against the page it was discovered on and returns the canonical result.
// The second return value is false when raw cannot be parsed.
func Resolve(raw string, base url.URL) (url.URL, bool) {
	ref, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return url.URL{}, false
	}
	resolved := base.ResolveReference(ref)
	return Canonicalize(*resolved), true
}

// InScope reports whether the URL's host matches the configured
// allow-pattern (reference deployment: `.*\.gov\.si$`).
func (n *Normalizer) InScope(u url.URL) bool {
	return n.scope.MatchString(u.Host)
}

// FixShortened resolves seed-style shortened URLs ('gov.si') to the full
// URL the server redirects to ('https://www.gov.si'). URLs that already
// look complete pass through untouched, and so does anything that fails
// to resolve.
func (n *Normalizer) FixShortened(raw string) string {
	if fullURLRegex.MatchString(raw) {
		return raw
	}

	target := raw
	if !strings.Contains(target, "://") {
		target = "https://" + target
	}

	req, err := http.NewRequest(http.MethodGet, target, nil)
	if err != nil {
		return raw
	}
	req.Header.Set("User-Agent", n.userAgent)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return raw
	}
	defer resp.Body.Close()

	return resp.Request.URL.String()
}

// lowerASCII converts ASCII characters to lowercase without allocating.
// This is faster than strings.ToLower for ASCII-only strings.
func lowerASCII(s string) string {
	var needsLower bool
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			needsLower = true
			break
		}
	}
	if !needsLower {
		return s
	}
	b := make([]byte, len(s))
	copy(b, s)
	for i := 0; i < len(b); i++ {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}
