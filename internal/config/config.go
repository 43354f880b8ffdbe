package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	//===============
	//  Database
	//===============
	postgresUser     string
	postgresPassword string
	postgresDB       string
	postgresHost     string
	postgresPort     int

	//===============
	//  Crawl scope
	//===============
	// Initial pages given to the crawler to begin discovering from.
	seedURLs []url.URL
	// Hosts whose URLs may be crawled; everything else is filtered at discovery.
	scopePattern *regexp.Regexp

	//===============
	// Politeness
	//===============
	// Number of crawl workers sharing the frontier.
	workers int
	// Waiting time enforced between two requests to the same host when
	// robots.txt sets no Crawl-delay.
	defaultDelay time.Duration

	//===============
	// Fetch
	//===============
	// Maximum time of a single browser navigation.
	fetchTimeout time.Duration
	// User agent sent on every outbound request. In raw string
	userAgent string

	//===============
	// Engine
	//===============
	// How long a worker sleeps after observing an empty frontier before
	// probing again.
	idleProbe time.Duration
	// CRAWLING rows older than this are reverted to FRONTIER at startup.
	staleCrawling time.Duration
}

// envSpec is the raw environment surface; envconfig fills it, Load maps it
// onto the typed Config.
type envSpec struct {
	PostgresUser     string `envconfig:"POSTGRES_USER" required:"true"`
	PostgresPassword string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	PostgresDB       string `envconfig:"POSTGRES_DB" required:"true"`
	PostgresHost     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	PostgresPort     int    `envconfig:"POSTGRES_PORT" default:"5432"`

	NThreads int `envconfig:"N_THREADS" default:"5"`

	SeedURLs            string `envconfig:"CRAWL_SEED_URLS" default:"https://gov.si,https://evem.gov.si,https://e-uprava.gov.si,https://e-prostor.gov.si"`
	ScopePattern        string `envconfig:"CRAWL_SCOPE_PATTERN" default:".*\\.gov\\.si$"`
	DefaultDelaySeconds int    `envconfig:"CRAWL_DEFAULT_DELAY_SECONDS" default:"5"`
	FetchTimeoutSeconds int    `envconfig:"CRAWL_FETCH_TIMEOUT_SECONDS" default:"10"`
	UserAgent           string `envconfig:"CRAWL_USER_AGENT" default:"fri-wier-besela"`
	IdleProbeSeconds    int    `envconfig:"CRAWL_IDLE_PROBE_SECONDS" default:"30"`
	StaleCrawlingMin    int    `envconfig:"CRAWL_STALE_CRAWLING_MINUTES" default:"30"`
}

// Load reads the process environment, optionally overlaid from a .env file
// in the working directory, and returns a validated Config.
//
// The .env overlay loads first so container deployments keep using real
// environment variables while local runs read a checked-out .env.
func Load() (Config, error) {
	// missing .env is the normal container case
	_ = godotenv.Load()

	var spec envSpec
	if err := envconfig.Process("", &spec); err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrInvalidEnvironment, err.Error())
	}

	return fromSpec(spec)
}

func fromSpec(spec envSpec) (Config, error) {
	if spec.PostgresUser == "" || spec.PostgresPassword == "" || spec.PostgresDB == "" {
		return Config{}, fmt.Errorf("%w: POSTGRES_USER, POSTGRES_PASSWORD and POSTGRES_DB must be non-empty", ErrInvalidEnvironment)
	}
	if spec.NThreads < 1 {
		return Config{}, fmt.Errorf("%w: N_THREADS must be at least 1", ErrInvalidEnvironment)
	}

	scope, err := regexp.Compile(spec.ScopePattern)
	if err != nil {
		return Config{}, fmt.Errorf("%w: CRAWL_SCOPE_PATTERN: %s", ErrInvalidEnvironment, err.Error())
	}

	var seeds []url.URL
	for _, raw := range strings.Split(spec.SeedURLs, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		parsed, err := url.Parse(raw)
		if err != nil {
			return Config{}, fmt.Errorf("%w: seed URL %q: %s", ErrInvalidEnvironment, raw, err.Error())
		}
		seeds = append(seeds, *parsed)
	}
	if len(seeds) == 0 {
		return Config{}, fmt.Errorf("%w: CRAWL_SEED_URLS cannot be empty", ErrInvalidEnvironment)
	}

	return Config{
		postgresUser:     spec.PostgresUser,
		postgresPassword: spec.PostgresPassword,
		postgresDB:       spec.PostgresDB,
		postgresHost:     spec.PostgresHost,
		postgresPort:     spec.PostgresPort,
		seedURLs:         seeds,
		scopePattern:     scope,
		workers:          spec.NThreads,
		defaultDelay:     time.Duration(spec.DefaultDelaySeconds) * time.Second,
		fetchTimeout:     time.Duration(spec.FetchTimeoutSeconds) * time.Second,
		userAgent:        spec.UserAgent,
		idleProbe:        time.Duration(spec.IdleProbeSeconds) * time.Second,
		staleCrawling:    time.Duration(spec.StaleCrawlingMin) * time.Minute,
	}, nil
}

// DatabaseURL returns the pgx connection string. All crawl tables live in
// the crawldb schema.
func (c Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?search_path=crawldb",
		url.QueryEscape(c.postgresUser),
		url.QueryEscape(c.postgresPassword),
		c.postgresHost,
		c.postgresPort,
		c.postgresDB,
	)
}

func (c Config) SeedURLs() []url.URL {
	urls := make([]url.URL, len(c.seedURLs))
	copy(urls, c.seedURLs)
	return urls
}

func (c Config) ScopePattern() *regexp.Regexp {
	return c.scopePattern
}

func (c Config) Workers() int {
	return c.workers
}

func (c Config) DefaultDelay() time.Duration {
	return c.defaultDelay
}

func (c Config) FetchTimeout() time.Duration {
	return c.fetchTimeout
}

func (c Config) UserAgent() string {
	return c.userAgent
}

func (c Config) IdleProbe() time.Duration {
	return c.idleProbe
}

func (c Config) StaleCrawling() time.Duration {
	return c.staleCrawling
}
