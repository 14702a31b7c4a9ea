// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMongo    = "mongo"

	// maxQueryItems is the largest page GitHub's GraphQL API accepts for a connection.
	maxQueryItems = 100
)

// Config holds all configuration for the application.
type Config struct {
	LogLevel      string `mapstructure:"LOG_LEVEL"`
	HTTPAddr      string `mapstructure:"HTTP_ADDR"`
	StorageDriver string `mapstructure:"STORAGE_DRIVER"`
	DBURL         string `mapstructure:"DB_URL"`
	MigrationsURL string `mapstructure:"MIGRATIONS_SOURCE"`
	MongoURI      string `mapstructure:"MONGODB_URI"`
	MongoDatabase string `mapstructure:"MONGODB_DATABASE"`

	GithubToken          string        `mapstructure:"GITHUB_TOKEN"`
	GithubGraphQLURL     string        `mapstructure:"GITHUB_GRAPHQL_URL"`
	GithubAPIURL         string        `mapstructure:"GITHUB_API_URL"`
	GithubRequestTimeout time.Duration `mapstructure:"GITHUB_REQUEST_TIMEOUT"`
	GithubMaxRetries     int           `mapstructure:"GITHUB_MAX_RETRIES"`
	GithubMaxConcurrency int           `mapstructure:"GITHUB_MAX_CONCURRENCY"`

	MinForkCount      int           `mapstructure:"MIN_FORK_COUNT"`
	MonthsToAnalyze   int           `mapstructure:"MONTHS_TO_ANALYZE"`
	MaxReposPerUser   int           `mapstructure:"MAX_REPOS_PER_USER"`
	MaxCommitsPerRepo int           `mapstructure:"MAX_COMMITS_PER_REPO"`
	MaxPRsPerRepo     int           `mapstructure:"MAX_PRS_PER_REPO"`
	MaxIssuesPerRepo  int           `mapstructure:"MAX_ISSUES_PER_REPO"`
	CacheTTL          time.Duration `mapstructure:"CACHE_TTL"`
	UserConcurrency   int           `mapstructure:"USER_CONCURRENCY"`
	RepoConcurrency   int           `mapstructure:"REPO_CONCURRENCY"`
	ActivityTimeout   time.Duration `mapstructure:"ACTIVITY_TIMEOUT"`

	WarmUsernames []string      `mapstructure:"WARM_USERNAMES"`
	WarmInterval  time.Duration `mapstructure:"WARM_INTERVAL"`
}

// LoadConfig reads configuration from file and/or environment variables.
func LoadConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Load from .env file if it exists
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if file not found

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Keys without a default are invisible to Unmarshal unless bound explicitly.
	for _, key := range []string{"DB_URL", "GITHUB_TOKEN", "WARM_USERNAMES"} {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("STORAGE_DRIVER", StorageDriverPostgres)
	v.SetDefault("MIGRATIONS_SOURCE", "file://migrations")
	v.SetDefault("MONGODB_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGODB_DATABASE", "github_activity")
	v.SetDefault("GITHUB_GRAPHQL_URL", "https://api.github.com/graphql")
	v.SetDefault("GITHUB_API_URL", "https://api.github.com/")
	v.SetDefault("GITHUB_REQUEST_TIMEOUT", "30s")
	v.SetDefault("GITHUB_MAX_RETRIES", 2)
	v.SetDefault("GITHUB_MAX_CONCURRENCY", 4)
	v.SetDefault("MIN_FORK_COUNT", 3)
	v.SetDefault("MONTHS_TO_ANALYZE", 6)
	v.SetDefault("MAX_REPOS_PER_USER", 100)
	v.SetDefault("MAX_COMMITS_PER_REPO", maxQueryItems)
	v.SetDefault("MAX_PRS_PER_REPO", maxQueryItems)
	v.SetDefault("MAX_ISSUES_PER_REPO", maxQueryItems)
	v.SetDefault("CACHE_TTL", "24h")
	v.SetDefault("USER_CONCURRENCY", 1)
	v.SetDefault("REPO_CONCURRENCY", 1)
	v.SetDefault("ACTIVITY_TIMEOUT", "15m")
	v.SetDefault("WARM_INTERVAL", "1h")
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverPostgres:
		if c.DBURL == "" {
			return errors.New("DB_URL is a required configuration field")
		}
	case StorageDriverMongo:
		if c.MongoURI == "" || c.MongoDatabase == "" {
			return errors.New("MONGODB_URI and MONGODB_DATABASE are required when STORAGE_DRIVER=mongo")
		}
	default:
		return fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", StorageDriverPostgres, StorageDriverMongo, c.StorageDriver)
	}
	if c.MinForkCount < 0 {
		return errors.New("MIN_FORK_COUNT must not be negative")
	}
	if c.MonthsToAnalyze <= 0 {
		return errors.New("MONTHS_TO_ANALYZE must be positive")
	}
	if c.MaxReposPerUser <= 0 {
		return errors.New("MAX_REPOS_PER_USER must be positive")
	}
	for name, limit := range map[string]int{
		"MAX_COMMITS_PER_REPO": c.MaxCommitsPerRepo,
		"MAX_PRS_PER_REPO":     c.MaxPRsPerRepo,
		"MAX_ISSUES_PER_REPO":  c.MaxIssuesPerRepo,
	} {
		if limit < 1 || limit > maxQueryItems {
			return fmt.Errorf("%s must be between 1 and %d", name, maxQueryItems)
		}
	}
	if c.CacheTTL <= 0 {
		return errors.New("CACHE_TTL must be a positive duration")
	}
	if c.ActivityTimeout < 0 {
		return errors.New("ACTIVITY_TIMEOUT must not be negative")
	}
	if c.UserConcurrency < 1 || c.RepoConcurrency < 1 || c.GithubMaxConcurrency < 1 {
		return errors.New("USER_CONCURRENCY, REPO_CONCURRENCY and GITHUB_MAX_CONCURRENCY must be at least 1")
	}
	return nil
}
