package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"race-tracker/internal/constants"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Config struct {
	DBPath     string
	ServerPort string
	LogLevel   string

	ResultsBaseURL string
	UserAgent      string

	FetchTimeout     time.Duration
	FetchMaxAttempts int
	FetchBaseDelay   time.Duration
	FetchRetryAfter  time.Duration

	PollTick             time.Duration
	PollRaceDelay        time.Duration
	PollCompetitorDelay  time.Duration
	MaxConsecutiveErrors int

	WorkerEnabled bool
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		DBPath:         getEnv("DB_PATH", "race-tracker.db"),
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		ResultsBaseURL: getEnv("RESULTS_BASE_URL", constants.ResultsBaseURL),
		UserAgent:      getEnv("USER_AGENT", constants.UserAgent),
	}

	var err error
	if cfg.FetchTimeout, err = getEnvDuration("FETCH_TIMEOUT", constants.FetchTimeout); err != nil {
		return nil, err
	}
	if cfg.FetchMaxAttempts, err = getEnvInt("FETCH_MAX_ATTEMPTS", constants.FetchMaxAttempts); err != nil {
		return nil, err
	}
	if cfg.FetchBaseDelay, err = getEnvDuration("FETCH_BASE_DELAY", constants.FetchBaseDelay); err != nil {
		return nil, err
	}
	if cfg.FetchRetryAfter, err = getEnvDuration("FETCH_RETRY_AFTER", constants.DefaultRetryAfter); err != nil {
		return nil, err
	}
	if cfg.PollTick, err = getEnvDuration("POLL_TICK", constants.PollTick); err != nil {
		return nil, err
	}
	if cfg.PollRaceDelay, err = getEnvDuration("POLL_RACE_DELAY", constants.InterRaceDelay); err != nil {
		return nil, err
	}
	if cfg.PollCompetitorDelay, err = getEnvDuration("POLL_COMPETITOR_DELAY", constants.InterCompetitorDelay); err != nil {
		return nil, err
	}
	if cfg.MaxConsecutiveErrors, err = getEnvInt("MAX_CONSECUTIVE_ERRORS", constants.MaxConsecutiveErrors); err != nil {
		return nil, err
	}
	if cfg.WorkerEnabled, err = getEnvBool("WORKER_ENABLED", true); err != nil {
		return nil, err
	}

	if cfg.FetchMaxAttempts < 1 {
		return nil, fmt.Errorf("FETCH_MAX_ATTEMPTS must be at least 1, got %d", cfg.FetchMaxAttempts)
	}
	if cfg.MaxConsecutiveErrors < 1 {
		return nil, fmt.Errorf("MAX_CONSECUTIVE_ERRORS must be at least 1, got %d", cfg.MaxConsecutiveErrors)
	}
	if cfg.PollTick <= 0 {
		return nil, fmt.Errorf("POLL_TICK must be positive, got %s", cfg.PollTick)
	}

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Str("results_base_url", cfg.ResultsBaseURL).
		Dur("poll_tick", cfg.PollTick).
		Int("fetch_max_attempts", cfg.FetchMaxAttempts).
		Int("max_consecutive_errors", cfg.MaxConsecutiveErrors).
		Bool("worker_enabled", cfg.WorkerEnabled).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

var Module = fx.Provide(Load)
