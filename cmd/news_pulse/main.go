// Package main News Pulse API
// @title News Pulse API
// @version 1.0
// @description AI marketing news pipeline: crawls sources, scores stories for
// marketer relevance, deduplicates near-identical coverage, and renders
// newsletters.
// @BasePath /
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/labstack/echo/v4"

	"github.com/DjordjeVuckovic/news-pulse/internal/fetch"
	"github.com/DjordjeVuckovic/news-pulse/internal/newsletter"
	"github.com/DjordjeVuckovic/news-pulse/internal/pipeline"
	"github.com/DjordjeVuckovic/news-pulse/internal/router"
	"github.com/DjordjeVuckovic/news-pulse/internal/scheduler"
	"github.com/DjordjeVuckovic/news-pulse/internal/scoring"
	"github.com/DjordjeVuckovic/news-pulse/internal/server"
	"github.com/DjordjeVuckovic/news-pulse/internal/storage/factory"
	pkgserver "github.com/DjordjeVuckovic/news-pulse/pkg/server"
)

func main() {
	sCfg, err := server.LoadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	heathChecker := pkgserver.NewOkHealthChecker()

	s := server.New(sCfg, heathChecker).
		SetupMiddlewares().
		SetupErrorHandler().
		SetupHealthChecks("/health")

	s.Echo.GET("/", func(c echo.Context) error {
		return c.String(200, "News Pulse API is running")
	})

	appSettings := NewAppConfig()
	cfg, err := appSettings.Load()
	if err != nil {
		slog.Error("Failed to load app configuration", "error", err)
		os.Exit(1)
		return
	}

	store, err := factory.NewStore(s.Context(), &cfg.StorageConfig)
	if err != nil {
		slog.Error("Failed to create store", "error", err)
		os.Exit(1)
		return
	}

	registry := fetch.DefaultRegistry()
	if cfg.SourcesPath != "" {
		registry, err = fetch.LoadRegistry(cfg.SourcesPath)
		if err != nil {
			slog.Error("Failed to load sources registry", "error", err, "path", cfg.SourcesPath)
			os.Exit(1)
			return
		}
	}

	var crawlerOpts []fetch.CrawlerOption
	if cfg.DaysBack > 0 {
		crawlerOpts = append(crawlerOpts, fetch.WithDaysBack(cfg.DaysBack))
	}
	if cfg.MaxPerSource > 0 {
		crawlerOpts = append(crawlerOpts, fetch.WithMaxPerSource(cfg.MaxPerSource))
	}
	crawler := fetch.NewCrawler(registry, crawlerOpts...)

	llm := scoring.NewOpenAIClient(cfg.ScoringConfig)

	p := pipeline.New(crawler, llm, store)
	newsletters := newsletter.NewService(store, llm)

	router.NewStoriesRouter(s.Echo, store, p, registry).Bind()
	router.NewNewslettersRouter(s.Echo, newsletters).Bind()

	if cfg.ScheduleAt != "" {
		sched, err := scheduler.New(cfg.ScheduleAt, func(ctx context.Context) {
			if _, err := p.Run(ctx, registry.Domains()); err != nil {
				slog.Warn("Scheduled run skipped", "error", err)
			}
		})
		if err != nil {
			slog.Error("Failed to create scheduler", "error", err)
			os.Exit(1)
			return
		}
		sched.Start(s.Context())
		defer sched.Stop()
	}

	go func() {
		<-s.ShutdownSignal()
		slog.Info("Shutdown started, cleaning up resources...")
	}()

	err = s.Start()
	if err != nil {
		s.Echo.Logger.Error("Failed to start server: ", err)
		os.Exit(1)
	}
}
