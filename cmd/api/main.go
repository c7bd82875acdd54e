package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"pixelbatch/internal/artifacts"
	"pixelbatch/internal/history"
	"pixelbatch/internal/http/handlers"
	httpapi "pixelbatch/internal/http/httpapi"
	"pixelbatch/internal/infra"
	"pixelbatch/internal/metrics"
	"pixelbatch/internal/providers/pixellab"
	"pixelbatch/internal/resolver"
	"pixelbatch/internal/scheduler"
	"pixelbatch/internal/storage"
	"pixelbatch/internal/wildcard"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, cfg.LogFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wildcardFiles, err := storage.NewFileStore(cfg.WildcardsDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open wildcards directory")
	}
	wildcards := wildcard.NewStore(wildcardFiles, &logger)
	if err := wildcards.SeedDefaults(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to seed default wildcards")
	}

	artifactFiles, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open storage directory")
	}
	library := artifacts.NewLibrary(artifactFiles, &logger)

	client := pixellab.NewClient(pixellab.Options{
		APIKey:         cfg.PixelLabAPIKey,
		BaseURL:        cfg.PixelLabBaseURL,
		Logger:         &logger,
		RequestTimeout: cfg.PixelLabTimeout,
	})
	if !client.HasCredentials() {
		logger.Warn().Msg("PIXELLAB_API_KEY is not set, generation requests will fail")
	}

	collector := metrics.NewCollector()
	observers := []scheduler.Observer{collector}

	app := &handlers.App{
		Config:    cfg,
		Logger:    &logger,
		Wildcards: wildcards,
		Builder:   scheduler.Builder{MaxBatchSize: cfg.MaxBatchSize},
		Artifacts: library,
		RunCtx:    ctx,
		Random:    resolver.DefaultSource(),
	}

	if cfg.HistoryEnabled() {
		dbpool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer dbpool.Close()
		recorder := history.NewRecorder(infra.NewSQLRunner(dbpool, logger), &logger)
		if err := recorder.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare job history table")
		}
		observers = append(observers, recorder)
		app.History = recorder
		logger.Info().Msg("job history enabled")
	}

	sched, err := scheduler.New(scheduler.Options{
		Generator: client,
		Delay:     cfg.BatchDelay,
		Sink:      library,
		Observers: observers,
		Logger:    &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build scheduler")
	}
	app.Scheduler = sched

	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:          logger,
		CORSOrigins:     cfg.CORSOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		Metrics:         collector.Handler(),
	})
	server := infra.NewHTTPServer(cfg, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", server.Addr()).Str("wildcards_dir", cfg.WildcardsDir).Msg("API listening")
		return server.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		sched.Stop(context.Background())
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
	logger.Info().Msg("server stopped")
}
