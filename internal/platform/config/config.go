package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const hoursPerDay = 24

// AppEnvLocal selects human-readable console logging.
const AppEnvLocal = "local"

type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"local"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	PostgresDSN string `env:"POSTGRES_DSN,required"`

	DBMaxConnections    int32         `env:"DB_MAX_CONNECTIONS" envDefault:"25"`
	DBMinConnections    int32         `env:"DB_MIN_CONNECTIONS" envDefault:"2"`
	DBMaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	DBMaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBHealthCheckPeriod time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"1m"`

	// Search index
	SolrEnabled    bool          `env:"SOLR_ENABLED" envDefault:"true"`
	SolrURL        string        `env:"SOLR_URL" envDefault:"http://localhost:8983/solr"`
	SolrCollection string        `env:"SOLR_COLLECTION" envDefault:"news"`
	SolrConfigSet  string        `env:"SOLR_CONFIGSET" envDefault:"_default"`
	SolrTimeout    time.Duration `env:"SOLR_TIMEOUT" envDefault:"10s"`
	SolrMaxResults int           `env:"SOLR_MAX_RESULTS" envDefault:"100"`

	// Normalizer
	LLMAPIKey      string  `env:"LLM_API_KEY"`
	LLMBaseURL     string  `env:"LLM_BASE_URL"`
	LLMModel       string  `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	TargetLanguage string  `env:"TARGET_LANGUAGE" envDefault:"English"`
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"1"`

	// Admin bot
	BotToken string  `env:"BOT_TOKEN"`
	AdminIDs []int64 `env:"ADMIN_IDS" envSeparator:","`

	HealthPort int `env:"HEALTH_PORT" envDefault:"8080"`

	WorkerBatchSize    int           `env:"WORKER_BATCH_SIZE" envDefault:"10"`
	WorkerPollInterval time.Duration `env:"WORKER_POLL_INTERVAL" envDefault:"10s"`
	WorkerClaimTimeout time.Duration `env:"WORKER_CLAIM_TIMEOUT" envDefault:"10m"`

	RSSPollInterval time.Duration `env:"RSS_POLL_INTERVAL" envDefault:"15m"`
	RSSFetchTimeout time.Duration `env:"RSS_FETCH_TIMEOUT" envDefault:"30s"`
	RSSFetchRPS     float64       `env:"RSS_FETCH_RPS" envDefault:"2"`
	RSSMaxItems     int           `env:"RSS_MAX_ITEMS" envDefault:"50"`
	SeedFeedsPath   string        `env:"SEED_FEEDS_PATH"`

	// Ingest lock; empty REDIS_ADDR disables it
	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	IngestLockTTL time.Duration `env:"INGEST_LOCK_TTL" envDefault:"30s"`

	DedupWindow time.Duration `env:"DEDUP_WINDOW" envDefault:"168h"`
}

func Load() (*Config, error) {
	_ = godotenv.Load() //nolint:errcheck // .env file is optional, error is expected when not present

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment config: %w", err)
	}

	applyAliases(cfg)

	return cfg, nil
}

// applyAliases honours the older variable names when the current ones are unset.
func applyAliases(cfg *Config) {
	if !hasEnv("DEDUP_WINDOW") {
		setDaysAsDuration("DEDUP_WINDOW_DAYS", &cfg.DedupWindow)
	}

	if !hasEnv("SOLR_URL") {
		setStringFromEnv("SOLR_BASE_URL", &cfg.SolrURL)
	}

	if !hasEnv("LLM_API_KEY") {
		setStringFromEnv("OPENAI_API_KEY", &cfg.LLMAPIKey)
	}

	if !hasEnv("RSS_FETCH_TIMEOUT") {
		setDurationFromEnv("FEED_TIMEOUT", &cfg.RSSFetchTimeout)
	}

	if !hasEnv("WORKER_BATCH_SIZE") {
		setIntFromEnv("PIPELINE_BATCH_SIZE", &cfg.WorkerBatchSize)
	}
}

// IsLocal reports whether the process runs in the local environment.
func (c *Config) IsLocal() bool {
	return strings.EqualFold(c.AppEnv, AppEnvLocal)
}

// IsAdmin reports whether a Telegram user may run bot commands.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}

	return false
}

func hasEnv(key string) bool {
	_, ok := os.LookupEnv(key)
	return ok
}

func setStringFromEnv(key string, target *string) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}

	val = strings.TrimSpace(val)
	if val == "" {
		return
	}

	*target = val
}

func setIntFromEnv(key string, target *int) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}

	parsed, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return
	}

	*target = parsed
}

func setDurationFromEnv(key string, target *time.Duration) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}

	parsed, err := time.ParseDuration(strings.TrimSpace(val))
	if err != nil {
		return
	}

	*target = parsed
}

func setDaysAsDuration(key string, target *time.Duration) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}

	parsed, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil || parsed <= 0 {
		return
	}

	*target = time.Duration(parsed*hoursPerDay) * time.Hour
}
