package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Haasie/huizen-zoeker/cmd/huizenzoeker/config"
	"github.com/Haasie/huizen-zoeker/internal/api"
	"github.com/Haasie/huizen-zoeker/internal/detector"
	"github.com/Haasie/huizen-zoeker/internal/fetcher"
	"github.com/Haasie/huizen-zoeker/internal/filter"
	"github.com/Haasie/huizen-zoeker/internal/notifier"
	"github.com/Haasie/huizen-zoeker/internal/orchestrator"
	"github.com/Haasie/huizen-zoeker/internal/platform/rabbitmq"
	"github.com/Haasie/huizen-zoeker/internal/platform/storage"
	"github.com/Haasie/huizen-zoeker/internal/scraper"
	"github.com/Haasie/huizen-zoeker/internal/scraper/sites"
	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const (
	// UserAgent is the user agent header value used when fetching listing pages.
	UserAgent = "huizen-zoeker/1.0"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	_ = godotenv.Load()

	var cfg config.Config
	if err := env.Parse(&cfg); err != nil {
		logger.Fatal().
			Err(err).
			Msg("can't parse env variables")
	}

	pgDB, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().
			Err(err).
			Msg("can't open Postgres connection")
	}

	store := storage.NewPostgres(pgDB)
	if err := store.Ping(ctx); err != nil {
		logger.Fatal().
			Err(err).
			Msg("can't reach Postgres")
	}
	if err := store.Migrate(ctx); err != nil {
		logger.Fatal().
			Err(err).
			Msg("can't migrate store schema")
	}

	pageFetcher := fetcher.NewFetcher(&http.Client{Timeout: cfg.HTTPTimeout}, UserAgent, cfg.FetchInterval)

	registry := scraper.NewRegistry(
		sites.NewBijDeVaate(pageFetcher, &logger),
		sites.NewKlipEnVW(pageFetcher, &logger),
		sites.NewOoms(pageFetcher, &logger),
		sites.NewRozenburg(pageFetcher, &logger),
	)
	adapters, err := registry.Enabled(cfg.EnabledSources)
	if err != nil {
		logger.Fatal().
			Err(err).
			Msg("can't resolve enabled sources")
	}
	logger.Info().
		Strs("registered", registry.SourceIDs()).
		Strs("enabled", cfg.EnabledSources).
		Msg("scraper sources resolved")

	var (
		channels []notifier.Channel
		amqpConn *amqp.Connection
	)

	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != "" {
		telegram := notifier.NewTelegram(
			&http.Client{Timeout: 10 * time.Second},
			notifier.DefaultTelegramAPI,
			cfg.Telegram.Token,
			cfg.Telegram.ChatID,
		)
		channels = append(channels, telegram)
		logger.Info().Msg("telegram channel enabled")
	}

	if cfg.RabbitMQ.URL != "" {
		amqpConn, err = amqp.Dial(cfg.RabbitMQ.URL)
		if err != nil {
			logger.Fatal().
				Err(err).
				Msg("can't open RabbitMQ connection")
		}
		publisher, err := rabbitmq.NewRabbitMQ(amqpConn, cfg.RabbitMQ.Exchange)
		if err != nil {
			logger.Fatal().
				Err(err).
				Msg("can't open RabbitMQ channel")
		}
		channels = append(channels, notifier.NewAMQP(publisher))
		logger.Info().Msg("amqp channel enabled")
	}

	dispatcher := notifier.NewDispatcher(
		channels,
		notifier.Flags{
			NotifyNew:     cfg.Notify.New,
			NotifyUpdated: cfg.Notify.Updated,
			NotifyRemoved: cfg.Notify.Removed,
			SendSummary:   cfg.Notify.SendSummary,
		},
		notifier.RetryPolicy{
			MaxAttempts: cfg.Notify.RetryAttempts,
			BaseDelay:   notifier.DefaultRetryPolicy.BaseDelay,
		},
		&logger,
	)

	orch := orchestrator.New(
		adapters,
		detector.NewDetector(store),
		dispatcher,
		orchestrator.Config{
			Interval:       cfg.ScanInterval,
			Workers:        cfg.ScanWorkers,
			AdapterTimeout: cfg.AdapterTimeout,
			Hints: scraper.Hints{
				MinPrice: cfg.Filter.MinPrice,
				MaxPrice: cfg.Filter.MaxPrice,
				City:     searchCity(cfg.Filter.Cities),
			},
			Criteria: filter.Criteria{
				MinPrice:      cfg.Filter.MinPrice,
				MaxPrice:      cfg.Filter.MaxPrice,
				MinArea:       cfg.Filter.MinArea,
				Cities:        cfg.Filter.Cities,
				PropertyTypes: cfg.Filter.PropertyTypes,
			},
		},
		&logger,
	)

	handler := api.NewHandler(store, orch, &logger)
	server := &http.Server{
		Addr:    cfg.APIAddr,
		Handler: handler.Router(),
	}

	scanDone := make(chan struct{})
	go func() {
		defer close(scanDone)
		orch.Start(ctx)
	}()

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().
				Err(err).
				Msg("can't serve http api")
		}
	}()

	logger.Info().
		Str("apiAddr", cfg.APIAddr).
		Dur("scanInterval", cfg.ScanInterval).
		Int("sources", len(adapters)).
		Msg("huizen-zoeker up and running")

	// handle graceful shutdown and context cancellation
	termChan := make(chan os.Signal, 1)
	signal.Notify(termChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-termChan:
		cancel()
	case <-ctx.Done():
	}

	logger.Info().Msg("graceful shutdown start")

	// wait for an in-flight cycle to wind down
	<-scanDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().
			Err(err).
			Msg("can't shut down http api")
	}

	// close connections
	wg := sync.WaitGroup{}
	wg.Add(1)

	go func() {
		defer wg.Done()
		if err := pgDB.Close(); err != nil {
			logger.Error().
				Err(err).
				Msg("can't close Postgres connection")
		}
	}()

	if amqpConn != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := amqpConn.Close(); err != nil {
				logger.Error().
					Err(err).
					Msg("can't close RabbitMQ connection")
			}
		}()
	}

	wg.Wait()

	logger.Info().Msg("graceful shutdown successful")
}

// searchCity returns the city hint for adapter search urls. Only an
// unambiguous single-city filter can be narrowed query-side.
func searchCity(cities []string) string {
	if len(cities) == 1 {
		return cities[0]
	}
	return ""
}
