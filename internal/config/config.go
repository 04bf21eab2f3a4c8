// Package config centralizes the tuning constants spec.md §9 warns
// against scattering as module-scope globals (k, alpha, beta,
// default_opponent_strength, window sizes, worker counts) into one
// struct, loaded with envconfig exactly as the reference ingestion
// service does it.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration for the scraping
// pipeline and ranking engine.
type Config struct {
	// HTTP client (upstream tournament platform)
	HTTPUserAgent string        `envconfig:"HTTP_USER_AGENT" default:"divrank/1.0"`
	HTTPTimeout   time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s"`

	// Scraping pipeline (§4.1, §5)
	MaxWorkers           int           `envconfig:"MAX_WORKERS" default:"6"`
	JitterMinDelay       time.Duration `envconfig:"JITTER_MIN_DELAY" default:"1500ms"`
	JitterMaxDelay       time.Duration `envconfig:"JITTER_MAX_DELAY" default:"3500ms"`
	MaxRetries           int           `envconfig:"MAX_RETRIES" default:"3"`
	RetryBaseDelay       time.Duration `envconfig:"RETRY_BASE_DELAY" default:"2s"`
	FailureThreshold     float64       `envconfig:"FAILURE_THRESHOLD" default:"0.10"`
	FuzzyRosterThreshold float64       `envconfig:"FUZZY_ROSTER_THRESHOLD" default:"0.85"`
	FuzzySearchThreshold float64       `envconfig:"FUZZY_SEARCH_THRESHOLD" default:"0.60"`

	// Ranking engine (§4.2). MaxViewsPerTeam and ScoreCap are not
	// passed to internal/ranking, which uses its own fixed constants
	// (30 views, score cap 6); setting them has no effect.
	WindowDays              int     `envconfig:"WINDOW_DAYS" default:"365"`
	MaxViewsPerTeam         int     `envconfig:"MAX_VIEWS_PER_TEAM" default:"30"`
	ScoreCap                int     `envconfig:"SCORE_CAP" default:"6"`
	ActiveMinGames          int     `envconfig:"ACTIVE_MIN_GAMES" default:"5"`
	ActiveMaxDaysSinceGame  int     `envconfig:"ACTIVE_MAX_DAYS_SINCE_GAME" default:"180"`
	DefaultOpponentStrength float64 `envconfig:"DEFAULT_OPPONENT_STRENGTH" default:"0.35"`
	SOSIterationCap         int     `envconfig:"SOS_ITERATION_CAP" default:"10"`
	SOSConvergenceDelta     float64 `envconfig:"SOS_CONVERGENCE_DELTA" default:"0.01"`
	EloK                    float64 `envconfig:"ELO_K" default:"4"`
	LearningRateBase        float64 `envconfig:"LEARNING_RATE_BASE" default:"0.05"`
	LearningRateAlpha       float64 `envconfig:"LEARNING_RATE_ALPHA" default:"0.5"`
	LearningRateBeta        float64 `envconfig:"LEARNING_RATE_BETA" default:"0.6"`
	CrossAgeMultiplier      float64 `envconfig:"CROSS_AGE_MULTIPLIER" default:"1.05"`

	// Cache (F)
	CacheDir string `envconfig:"CACHE_DIR" default:"cache"`

	// Output directories (§6)
	BronzeDir  string `envconfig:"BRONZE_DIR" default:"bronze"`
	GoldDir    string `envconfig:"GOLD_DIR" default:"gold"`
	LogsDir    string `envconfig:"LOGS_DIR" default:"logs"`
	OutputsDir string `envconfig:"OUTPUTS_DIR" default:"outputs"`

	// Application
	AppEnv   string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Monitoring (ambient, §2.1)
	EnableMetrics bool `envconfig:"ENABLE_METRICS" default:"true"`
	MetricsPort   int  `envconfig:"METRICS_PORT" default:"9090"`

	// Periodic batch re-scrape/re-rank (§4.3 supplement)
	EnableScheduler    bool   `envconfig:"ENABLE_SCHEDULER" default:"false"`
	NightlyRefreshCron string `envconfig:"NIGHTLY_REFRESH_CRON" default:"0 2 * * *"`

	// Division Registry extension point (§4.3 supplement)
	RegistryPath string `envconfig:"REGISTRY_PATH" default:""`
}

// Load loads configuration from environment variables, optionally
// seeded from a .env file in development.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: processing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate sanity-checks the loaded configuration.
func (c *Config) Validate() error {
	if c.MaxWorkers <= 0 {
		return fmt.Errorf("MAX_WORKERS must be positive")
	}
	if c.JitterMinDelay > c.JitterMaxDelay {
		return fmt.Errorf("JITTER_MIN_DELAY must be <= JITTER_MAX_DELAY")
	}
	if c.FailureThreshold < 0 || c.FailureThreshold > 1 {
		return fmt.Errorf("FAILURE_THRESHOLD must be in [0,1]")
	}
	return nil
}

// MustLoad loads configuration or exits the process; used from main()
// where failing fast is the correct behavior.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// IsDevelopment reports whether APP_ENV is "development".
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}
