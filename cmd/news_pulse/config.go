package main

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/DjordjeVuckovic/news-pulse/internal/scoring"
	"github.com/DjordjeVuckovic/news-pulse/internal/storage/factory"
	"github.com/DjordjeVuckovic/news-pulse/pkg/config/env"
)

type AppConfig struct {
	ENV string
}

func NewAppConfig() *AppConfig {
	return &AppConfig{
		ENV: os.Getenv("ENV"),
	}
}

type NewsPulseConfig struct {
	StorageConfig factory.StorageConfig
	ScoringConfig scoring.Config
	SourcesPath   string
	DaysBack      int
	MaxPerSource  int
	ScheduleAt    string
}

func (as *AppConfig) Load() (*NewsPulseConfig, error) {
	err := env.LoadDotEnv(as.ENV, "cmd/news_pulse/.env")
	if err != nil {
		slog.Info("Failed to .env load environment variables, continuing with existing environment variables", "error", err)
	}

	storageCfg, err := factory.LoadEnv()
	if err != nil {
		slog.Error("Failed to load storage configuration from environment", "error", err)
		return nil, err
	}

	scoringCfg := scoring.Config{
		Endpoint: os.Getenv("OPENAI_ENDPOINT"),
		Model:    os.Getenv("OPENAI_MODEL"),
		APIKey:   os.Getenv("OPENAI_API_KEY"),
	}
	if raw := os.Getenv("OPENAI_REQUEST_INTERVAL_MS"); raw != "" {
		ms, err := strconv.Atoi(raw)
		if err == nil && ms > 0 {
			scoringCfg.RequestInterval = time.Duration(ms) * time.Millisecond
		}
	}

	cfg := &NewsPulseConfig{
		StorageConfig: *storageCfg,
		ScoringConfig: scoringCfg,
		SourcesPath:   os.Getenv("SOURCES_PATH"),
		ScheduleAt:    os.Getenv("CRON_TIME"),
	}

	if raw := os.Getenv("CRAWL_DAYS_BACK"); raw != "" {
		if days, err := strconv.Atoi(raw); err == nil {
			cfg.DaysBack = days
		}
	}
	if raw := os.Getenv("CRAWL_MAX_PER_SOURCE"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			cfg.MaxPerSource = n
		}
	}

	return cfg, nil
}
