package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
)

type CacheType string

const (
	CacheTypeMemory CacheType = "memory"
	CacheTypeRedis  CacheType = "redis"
)

type DatabaseDriver string

const (
	DatabaseDriverSQLite   DatabaseDriver = "sqlite"
	DatabaseDriverPostgres DatabaseDriver = "postgres"
)

// Config holds the configuration for the showtrack server and its dependencies.
type Config struct {
	// Listen is the address the HTTP server will listen on.
	Listen string `yaml:"listen" mapstructure:"listen"`
	// Database holds the database configuration.
	Database *DatabaseConfig `yaml:"database" mapstructure:"database"`
	// Cache holds the cache configuration.
	Cache *CacheConfig `yaml:"cache" mapstructure:"cache"`
	// TMDB holds the configuration for the content metadata provider.
	TMDB *TMDBConfig `yaml:"tmdb" mapstructure:"tmdb"`
	// Loader holds the configuration for the background hierarchy loader.
	Loader *LoaderConfig `yaml:"loader" mapstructure:"loader"`
	// Refresh holds the configuration for the periodic show refresh job.
	Refresh *RefreshConfig `yaml:"refresh" mapstructure:"refresh"`
	// WebPush holds the configuration for webpush notifications.
	WebPush *WebPushConfig `yaml:"webpush" mapstructure:"webpush"`
	// Ntfy holds the configuration for ntfy notifications.
	Ntfy *NtfyConfig `yaml:"ntfy" mapstructure:"ntfy"`
}

type DatabaseConfig struct {
	// Driver selects the database backend ("sqlite" or "postgres").
	Driver DatabaseDriver `yaml:"driver" mapstructure:"driver"`
	// Path is the path to the sqlite database file.
	Path string `yaml:"path" mapstructure:"path"`
	// DSN is the postgres connection string.
	DSN string `yaml:"dsn" mapstructure:"dsn"`
}

type CacheConfig struct {
	// Type is the type of cache engine to use (e.g., "memory", "redis").
	Type CacheType `yaml:"type" mapstructure:"type"`
	// RedisURL is the URL for the Redis cache if using Redis.
	RedisURL string `yaml:"redis_url" mapstructure:"redis_url"`
	// TTL is the default lifetime of cached read models.
	TTL time.Duration `yaml:"ttl" mapstructure:"ttl"`
	// CoalesceConcurrentMisses makes concurrent misses for the same key share a single producer call.
	// When disabled, every concurrent miss recomputes the (idempotent) value on its own.
	CoalesceConcurrentMisses bool `yaml:"coalesce_concurrent_misses" mapstructure:"coalesce_concurrent_misses"`
}

type TMDBConfig struct {
	// APIKey is the TMDb v3 API key.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
	// BaseURL is the TMDb API base URL.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	// Language is passed to TMDb for localized metadata.
	Language string `yaml:"language" mapstructure:"language"`
	// Timeout is the HTTP timeout for a single TMDb request.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

type LoaderConfig struct {
	// SeasonDelay is the pause between two season fetches of one hierarchy load.
	SeasonDelay time.Duration `yaml:"season_delay" mapstructure:"season_delay"`
}

type RefreshConfig struct {
	// Enabled turns the periodic refresh of in-production shows on or off.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Schedule is the cron schedule for the refresh job.
	Schedule string `yaml:"schedule" mapstructure:"schedule"`
	// Concurrency limits how many profiles are recomputed in parallel per show.
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

type WebPushConfig struct {
	// Enabled indicates whether webpush notifications are enabled.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// VAPIDEmail is the email associated with the VAPID keys.
	VAPIDEmail string `yaml:"vapid_email" mapstructure:"vapid_email"`
	// PublicKey is the VAPID public key.
	PublicKey string `yaml:"public_key" mapstructure:"public_key"`
	// PrivateKey is the VAPID private key.
	PrivateKey string `yaml:"private_key" mapstructure:"private_key"`
	// OfflineDelivery also pushes to accounts without a live session. The push service may
	// then deliver the event later.
	OfflineDelivery bool `yaml:"offline_delivery" mapstructure:"offline_delivery"`
}

type NtfyConfig struct {
	// Enabled indicates whether ntfy notifications are enabled.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// ServerURL is the URL of the ntfy server.
	ServerURL string `yaml:"server_url" mapstructure:"server_url"`
	// TopicPrefix is prepended to the account id to form the topic of an account.
	TopicPrefix string `yaml:"topic_prefix" mapstructure:"topic_prefix"`
	// Username for basic authentication.
	Username string `yaml:"username" mapstructure:"username"`
	// Password for basic authentication.
	Password string `yaml:"password" mapstructure:"password"`
	// Token is an access token, it takes precedence over username and password.
	Token string `yaml:"token" mapstructure:"token"`
	// OfflineDelivery also publishes for accounts without a live session. ntfy caches
	// messages, so the event may be delivered later.
	OfflineDelivery bool `yaml:"offline_delivery" mapstructure:"offline_delivery"`
}

// Load reads the configuration from the specified path and returns a Config struct.
// If path is empty, it will use default search paths for config files.
func Load(path string) (*Config, error) {
	v := viper.New()

	// bind some weirdly unsupported nested env vars
	bindNestedEnv(v)

	setDefaults(v)

	v.SetConfigType("yaml")
	v.SetEnvPrefix("SHOWTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var configFileFound bool
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.showtrack")
		v.AddConfigPath("/etc/showtrack")
	}

	if err := v.ReadInConfig(); err != nil {
		// If no config file is found, use defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		configFileFound = true
	}

	if configFileFound {
		log.Debug("Using config file", "file", v.ConfigFileUsed())
		log.Debug("Some environment variables can be set with the SHOWTRACK_ prefix to override config file values")
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	sanitizeConfig(&c)

	if err := validateConfig(&c); err != nil {
		return nil, err
	}

	return &c, nil
}

// setDefaults sets default values for the configuration.
func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", "0.0.0.0:3003")

	// Database defaults
	v.SetDefault("database.driver", DatabaseDriverSQLite)
	v.SetDefault("database.path", "./data/showtrack.db")
	v.SetDefault("database.dsn", "")

	// Cache defaults
	v.SetDefault("cache.type", CacheTypeMemory) // Default to in-memory
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.coalesce_concurrent_misses", true)

	// TMDb defaults
	v.SetDefault("tmdb.base_url", "https://api.themoviedb.org/3")
	v.SetDefault("tmdb.language", "en-US")
	v.SetDefault("tmdb.timeout", 15*time.Second)

	// Loader defaults
	v.SetDefault("loader.season_delay", 500*time.Millisecond)

	// Refresh defaults
	v.SetDefault("refresh.enabled", true)
	v.SetDefault("refresh.schedule", "0 4 * * *") // Every day at 4am
	v.SetDefault("refresh.concurrency", 4)

	// WebPush defaults
	v.SetDefault("webpush.enabled", false)
	v.SetDefault("webpush.vapid_email", "")
	v.SetDefault("webpush.public_key", "")
	v.SetDefault("webpush.private_key", "")
	v.SetDefault("webpush.offline_delivery", false)

	// Ntfy defaults
	v.SetDefault("ntfy.enabled", false)
	v.SetDefault("ntfy.server_url", "https://ntfy.sh")
	v.SetDefault("ntfy.topic_prefix", "showtrack-")
	v.SetDefault("ntfy.username", "")
	v.SetDefault("ntfy.password", "")
	v.SetDefault("ntfy.token", "")
	v.SetDefault("ntfy.offline_delivery", false)
}

// the auto env function from viper only works for nested structs, if the struct to which a value binds isn't nil.
// The TMDb section has no defaults for its secrets, so the env vars have to be bound by hand.
func bindNestedEnv(v *viper.Viper) {
	v.MustBindEnv("tmdb.api_key", "SHOWTRACK_TMDB_API_KEY")
	v.MustBindEnv("database.dsn", "SHOWTRACK_DATABASE_DSN")
}

// validateConfig validates the configuration.
func validateConfig(c *Config) error {
	if c == nil {
		return fmt.Errorf("missing showtrack config")
	}

	if c.Database == nil {
		return fmt.Errorf("database config is required")
	}
	switch c.Database.Driver {
	case DatabaseDriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required for the sqlite driver")
		}
	case DatabaseDriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	if c.Cache != nil && c.Cache.Type == CacheTypeRedis && c.Cache.RedisURL == "" {
		return fmt.Errorf("redis URL is required when the redis cache is configured")
	}

	if c.Loader == nil || c.Loader.SeasonDelay <= 0 {
		return fmt.Errorf("loader season delay must be greater than zero")
	}

	if c.Refresh != nil && c.Refresh.Enabled && c.Refresh.Schedule == "" {
		return fmt.Errorf("refresh schedule is required when the refresh job is enabled")
	}

	if c.WebPush != nil && c.WebPush.Enabled {
		if c.WebPush.PublicKey == "" || c.WebPush.PrivateKey == "" {
			return fmt.Errorf("webpush keys are required when webpush is enabled")
		}
	}

	if c.Ntfy != nil && c.Ntfy.Enabled {
		if c.Ntfy.ServerURL == "" {
			return fmt.Errorf("ntfy server URL is required when ntfy is enabled")
		}
		if c.Ntfy.TopicPrefix == "" {
			return fmt.Errorf("ntfy topic prefix is required when ntfy is enabled")
		}
	}

	return nil
}

// sanitizeConfig sanitizes the configuration values.
func sanitizeConfig(c *Config) {
	if c == nil {
		return
	}

	c.Listen = urlSanitize(c.Listen)

	if c.TMDB != nil {
		c.TMDB.BaseURL = urlSanitize(c.TMDB.BaseURL)
	}

	if c.Ntfy != nil {
		c.Ntfy.ServerURL = urlSanitize(c.Ntfy.ServerURL)
	}

	if c.Cache != nil {
		c.Cache.RedisURL = strings.TrimSpace(c.Cache.RedisURL)
	}

	if c.Refresh != nil && c.Refresh.Concurrency < 1 {
		c.Refresh.Concurrency = 1
	}
}

func urlSanitize(url string) string {
	return strings.TrimSuffix(strings.TrimSpace(url), "/")
}
