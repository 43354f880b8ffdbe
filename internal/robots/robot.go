package robots

import (
	"net/url"
	"time"

	"github.com/temoto/robotstxt"
)

/*
Responsibilities
- Hold the parsed robots.txt rules for one host
- Answer allow/disallow per URL and expose the host's crawl-delay
- Surface the sitemap list robots declares

A Robot is worker-local state: each worker reconstructs one per host it
is currently on, either from a fresh fetch or from the raw text
persisted on the Site row. Parse failures degrade to a permissive Robot
(everything allowed, no delay, no sitemaps).
*/

type Robot struct {
	data      *robotstxt.RobotsData
	group     *robotstxt.Group
	userAgent string
	raw       string
}

// Parse builds a Robot from raw robots.txt text. A file that fails to
// parse yields the permissive Robot rather than an error; the crawl
// treats a broken robots.txt the same as a missing one.
func Parse(content string, userAgent string) Robot {
	data, err := robotstxt.FromString(content)
	if err != nil {
		return permissive(userAgent, content)
	}
	return Robot{
		data:      data,
		group:     data.FindGroup(userAgent),
		userAgent: userAgent,
		raw:       content,
	}
}

// Permissive returns the Robot used when no robots.txt could be
// obtained: every URL allowed, no crawl-delay, no sitemaps.
func Permissive(userAgent string) Robot {
	return permissive(userAgent, "")
}

func permissive(userAgent string, raw string) Robot {
	return Robot{
		userAgent: userAgent,
		raw:       raw,
	}
}

// Decide answers whether u may be fetched under this host's rules.
func (r *Robot) Decide(u url.URL) Decision {
	if r.group == nil {
		return Decision{
			Url:     u,
			Allowed: true,
			Reason:  EmptyRuleSet,
		}
	}

	pathPart := u.Path
	if pathPart == "" {
		pathPart = "/"
	}
	if u.RawQuery != "" {
		pathPart += "?" + u.RawQuery
	}

	if !r.group.Test(pathPart) {
		return Decision{
			Url:        u,
			Allowed:    false,
			Reason:     DisallowedByRobots,
			CrawlDelay: r.CrawlDelay(),
		}
	}
	return Decision{
		Url:        u,
		Allowed:    true,
		Reason:     AllowedByRobots,
		CrawlDelay: r.CrawlDelay(),
	}
}

// CanFetch is the boolean shortcut over Decide.
func (r *Robot) CanFetch(u url.URL) bool {
	return r.Decide(u).Allowed
}

// CrawlDelay returns the host's Crawl-delay, or nil when the file does
// not specify one.
func (r *Robot) CrawlDelay() *time.Duration {
	if r.group == nil || r.group.CrawlDelay <= 0 {
		return nil
	}
	d := r.group.CrawlDelay
	return &d
}

// Sitemaps returns the sitemap URLs declared by the robots.txt, in file
// order. Empty for permissive Robots.
func (r *Robot) Sitemaps() []string {
	if r.data == nil {
		return nil
	}
	return r.data.Sitemaps
}

// Raw returns the robots.txt text this Robot was built from, the form
// persisted on the Site row.
func (r *Robot) Raw() string {
	return r.raw
}
