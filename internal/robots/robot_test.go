package robots_test

import (
	"net/url"
	"testing"
	"time"

	"github.com/fri-wier/besela/internal/robots"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const agent = "fri-wier-besela"

func mustParse(t *testing.T, raw string) url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return *u
}

func TestParseDisallowRules(t *testing.T) {
	robot := robots.Parse(`
User-agent: *
Disallow: /private/
Allow: /private/public.html
`, agent)

	assert.True(t, robot.CanFetch(mustParse(t, "https://www.gov.si/about/")))
	assert.False(t, robot.CanFetch(mustParse(t, "https://www.gov.si/private/page")))
	assert.True(t, robot.CanFetch(mustParse(t, "https://www.gov.si/private/public.html")))
}

func TestParseCrawlDelay(t *testing.T) {
	robot := robots.Parse(`
User-agent: *
Crawl-delay: 3
Disallow: /admin
`, agent)

	delay := robot.CrawlDelay()
	require.NotNil(t, delay)
	assert.Equal(t, 3*time.Second, *delay)
}

func TestParseNoCrawlDelay(t *testing.T) {
	robot := robots.Parse("User-agent: *\nDisallow:\n", agent)
	assert.Nil(t, robot.CrawlDelay())
}

func TestParseSitemaps(t *testing.T) {
	robot := robots.Parse(`
Sitemap: https://www.gov.si/sitemap.xml
Sitemap: https://www.gov.si/novice/sitemap.xml

User-agent: *
Disallow:
`, agent)

	assert.Equal(t, []string{
		"https://www.gov.si/sitemap.xml",
		"https://www.gov.si/novice/sitemap.xml",
	}, robot.Sitemaps())
}

func TestPermissiveAllowsEverything(t *testing.T) {
	robot := robots.Permissive(agent)

	assert.True(t, robot.CanFetch(mustParse(t, "https://www.gov.si/anything")))
	assert.Nil(t, robot.CrawlDelay())
	assert.Empty(t, robot.Sitemaps())

	decision := robot.Decide(mustParse(t, "https://www.gov.si/anything"))
	assert.Equal(t, robots.EmptyRuleSet, decision.Reason)
}

func TestParseEmptyContentIsPermissive(t *testing.T) {
	robot := robots.Parse("", agent)
	assert.True(t, robot.CanFetch(mustParse(t, "https://www.gov.si/x")))
}

func TestDecideReasons(t *testing.T) {
	robot := robots.Parse("User-agent: *\nDisallow: /blocked\n", agent)

	allowed := robot.Decide(mustParse(t, "https://www.gov.si/open/"))
	assert.Equal(t, robots.AllowedByRobots, allowed.Reason)

	blocked := robot.Decide(mustParse(t, "https://www.gov.si/blocked/page"))
	assert.Equal(t, robots.DisallowedByRobots, blocked.Reason)
	assert.False(t, blocked.Allowed)
}

func TestRawRoundTrip(t *testing.T) {
	content := "User-agent: *\nDisallow: /private/\n"

	first := robots.Parse(content, agent)
	// reconstruction from the persisted Site text behaves identically
	second := robots.Parse(first.Raw(), agent)

	u := mustParse(t, "https://www.gov.si/private/x")
	assert.Equal(t, first.CanFetch(u), second.CanFetch(u))
}
