package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/dig"

	"github.com/davidbz/tokentracker/internal/provider/openai"
)

// Config represents the estimator service configuration.
type Config struct {
	Server  ServerConfig
	CORS    CORSConfig
	Pricing PricingConfig
	Redis   RedisConfig
	OpenAI  openai.Config
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int `env:"SERVER_PORT"          envDefault:"8080"`
	ReadTimeout  int `env:"SERVER_READ_TIMEOUT"  envDefault:"30"`
	WriteTimeout int `env:"SERVER_WRITE_TIMEOUT" envDefault:"30"`
}

// CORSConfig contains CORS policy settings.
type CORSConfig struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS"   envSeparator:"," envDefault:"*"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS"   envSeparator:"," envDefault:"GET,POST,PUT,DELETE,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS"   envSeparator:"," envDefault:"Content-Type,Authorization"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS"                  envDefault:"true"`
	MaxAge           int      `env:"CORS_MAX_AGE"                            envDefault:"86400"`
}

// PricingConfig contains pricing store and refresh settings.
type PricingConfig struct {
	// StoreBackend selects where the document lives: "file" or "redis".
	StoreBackend string `env:"PRICING_STORE_BACKEND" envDefault:"file"`

	// DatabasePath locates the JSON document for the file backend.
	DatabasePath string `env:"PRICING_DATABASE_PATH" envDefault:"data/database.json"`

	// Currency is the default currency stamped onto new documents and
	// entries missing one.
	Currency string `env:"PRICING_CURRENCY" envDefault:"USD"`

	// RefreshTTLHours is how long cached pricing stays fresh.
	RefreshTTLHours int `env:"PRICING_REFRESH_TTL_HOURS" envDefault:"24"`

	// RefreshProvider names the refresh provider to use ("openai" or
	// "static"). Falls back to static when OpenAI is not configured.
	RefreshProvider string `env:"PRICING_REFRESH_PROVIDER" envDefault:"openai"`

	// RefreshTimeout bounds one provider fetch, in seconds.
	RefreshTimeout int `env:"PRICING_REFRESH_TIMEOUT" envDefault:"120"`

	// RefreshSchedule is a cron expression for periodic refresh. Empty
	// disables the scheduler; refreshes then only happen on demand.
	RefreshSchedule string `env:"PRICING_REFRESH_SCHEDULE" envDefault:"0 3 * * *"`
}

// RedisConfig contains settings for the Redis document store backend.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"     envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB"       envDefault:"0"`
	Key      string `env:"REDIS_PRICING_KEY" envDefault:"tokentracker:pricing"`
}

// DepConfig is used for dependency injection with dig.
type DepConfig struct {
	dig.Out
	*ServerConfig
	*CORSConfig
	*PricingConfig
	*RedisConfig
	*openai.Config
}

// Load loads environment files and parses configuration.
func Load() *Config {
	for _, file := range []string{".env"} {
		_ = godotenv.Load(file)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		panic(err)
	}

	return &cfg
}

// ParseDependenciesConfig returns pointers to sub-configs for dependency injection.
func ParseDependenciesConfig(cfg *Config) DepConfig {
	return DepConfig{
		dig.Out{},
		&cfg.Server,
		&cfg.CORS,
		&cfg.Pricing,
		&cfg.Redis,
		&cfg.OpenAI,
	}
}
