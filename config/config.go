// Package config loads application settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
)

// Duration accepts Go duration strings ("30s", "5m") from the environment.
type Duration time.Duration

func (d *Duration) UnmarshalEnvironmentValue(data string) error {
	v, err := time.ParseDuration(data)
	if err != nil {
		return fmt.Errorf("config: bad duration %q: %w", data, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	// Backend API
	APIBaseURL  string   `env:"PROPBOOKS_API_URL,default=http://localhost:8000/api"`
	APIToken    string   `env:"PROPBOOKS_API_TOKEN"`
	HTTPTimeout Duration `env:"PROPBOOKS_HTTP_TIMEOUT,default=30s"`

	// View cache. Provider is one of memory, ristretto, bigcache, redis.
	CacheProvider   string   `env:"PROPBOOKS_CACHE,default=memory"`
	CacheTTL        Duration `env:"PROPBOOKS_CACHE_TTL,default=5m"`
	PendingTTL      Duration `env:"PROPBOOKS_PENDING_TTL,default=10m"`
	CacheMaxEntries int      `env:"PROPBOOKS_CACHE_MAX_ENTRIES,default=4096"`
	LocalPagination bool     `env:"PROPBOOKS_LOCAL_PAGINATION,default=true"`
	QueueMutations  bool     `env:"PROPBOOKS_QUEUE_MUTATIONS,default=false"`

	// Redis, used when CacheProvider is redis (entries and generations).
	RedisAddr     string `env:"PROPBOOKS_REDIS_ADDR,default=localhost:6379"`
	RedisPassword string `env:"PROPBOOKS_REDIS_PASSWORD"`
	RedisDB       int    `env:"PROPBOOKS_REDIS_DB,default=0"`

	// Letterhead on printed documents.
	OrgName    string `env:"PROPBOOKS_ORG_NAME,default=PropBooks"`
	OrgAddress string `env:"PROPBOOKS_ORG_ADDRESS"`
	OrgPhone   string `env:"PROPBOOKS_ORG_PHONE"`
	OrgEmail   string `env:"PROPBOOKS_ORG_EMAIL"`

	LogLevel string `env:"PROPBOOKS_LOG_LEVEL,default=info"`
}

func NewConfig() (*Config, error) {
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return nil, err
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("config: PROPBOOKS_API_URL is required")
	}
	switch c.CacheProvider {
	case "memory", "ristretto", "bigcache", "redis":
	default:
		return fmt.Errorf("config: unknown cache provider %q", c.CacheProvider)
	}
	return nil
}
