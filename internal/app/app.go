// Package app initializes and holds long-lived application services, acting
// as a dependency injection container for the CLI and HTTP server.
package app

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/tndd/datadoggo-v3-rss/internal/articles"
	"github.com/tndd/datadoggo-v3-rss/internal/config"
	"github.com/tndd/datadoggo-v3-rss/internal/content"
	"github.com/tndd/datadoggo-v3-rss/internal/feed"
	"github.com/tndd/datadoggo-v3-rss/internal/logging"
	"github.com/tndd/datadoggo-v3-rss/internal/metrics"
	"github.com/tndd/datadoggo-v3-rss/internal/scrape"
	"github.com/tndd/datadoggo-v3-rss/internal/storage/postgres"
	"github.com/tndd/datadoggo-v3-rss/internal/webhook"
)

// App holds all the shared, long-lived services for the application. It is
// initialized once at startup and passed to the components that need it.
type App struct {
	Config   config.Config
	Logger   *zap.Logger
	Store    *postgres.QueueStore
	Ingestor *feed.Ingestor
	Fetcher  *content.Fetcher
	Pager    *articles.Pager
	Notifier *webhook.Notifier
}

// New creates and initializes an App from the config file at path. It is the
// central point for service initialization and fails fast if any critical
// service cannot be reached.
func New(ctx context.Context, cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	metrics.Init()

	dsn, err := cfg.DB.ResolveDSN()
	if err != nil {
		return nil, err
	}
	logger.Info("connecting to PostgreSQL", zap.String("env", cfg.DB.Env))
	store, err := postgres.NewQueueStore(ctx, postgres.QueueStoreConfig{
		DSN:      dsn,
		MaxConns: int32(cfg.DB.MaxConns),
		MinConns: int32(cfg.DB.MinConns),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	feedClient := &http.Client{Timeout: cfg.Feeds.FeedTimeout()}
	ingestor := feed.NewIngestor(store, feedClient, cfg.Feeds.Concurrency, cfg.Feeds.FeedTimeout(), logger)

	scrapeClient := scrape.NewClient(cfg.Scrape.APIURL, &http.Client{Timeout: cfg.Scrape.Timeout()})
	fetcher := content.NewFetcher(store, scrapeClient, logger)

	pager := articles.NewPager(store, logger)

	notifier := webhook.NewNotifier(cfg.Webhook.URL, &http.Client{Timeout: cfg.Webhook.Timeout()}, logger)

	logger.Info("application services initialized")

	return &App{
		Config:   cfg,
		Logger:   logger,
		Store:    store,
		Ingestor: ingestor,
		Fetcher:  fetcher,
		Pager:    pager,
		Notifier: notifier,
	}, nil
}

// Close gracefully shuts down all services in the App container.
func (a *App) Close() {
	a.Logger.Info("shutting down application services")
	a.Store.Close()
	// Best-effort flush; stderr sync errors on some platforms are expected.
	_ = a.Logger.Sync()
}
