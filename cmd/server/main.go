package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"assetlib/internal/ai"
	"assetlib/internal/config"
	"assetlib/internal/handlers"
	"assetlib/internal/library"
	"assetlib/internal/logger"
	"assetlib/internal/models"
	"assetlib/internal/storage"
	"assetlib/internal/ws"
)

// store is what main needs beyond the library repository.
type store interface {
	library.Repository
	Ping(ctx context.Context) error
	Close()
}

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logging.Mode, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()

	// Database
	db, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("open store", "error", err)
	}
	defer db.Close()

	// AI provider
	manager := ai.NewManager()
	factory := func(c models.AIConfig) (ai.Provider, error) {
		return ai.New(ai.Settings{
			Provider:       c.ProviderName,
			Endpoint:       c.APIEndpoint,
			APIKey:         c.APIKey,
			Model:          c.ModelID,
			EmbeddingModel: c.EmbeddingModel,
			Timeout:        cfg.AI.Timeout,
			ModelPath:      cfg.AI.Local.ModelPath,
			TokenizerPath:  cfg.AI.Local.TokenizerPath,
			RuntimePath:    cfg.AI.Local.RuntimePath,
		}, log)
	}

	// WebSocket Hub
	hub := ws.NewHub(log)
	go hub.Run()

	svc := library.NewService(db, manager, log, library.Options{
		ThumbnailWorkers: cfg.Library.ThumbnailWorkers,
		QueueSize:        cfg.Library.QueueSize,
		SplitConcurrency: cfg.Library.SplitConcurrency,
		NewProvider:      factory,
		OnEvent:          hub.Broadcast,
	})

	if cfg.AI.Provider != "" {
		p, err := factory(models.AIConfig{
			ProviderName:   cfg.AI.Provider,
			APIEndpoint:    cfg.AI.Endpoint,
			APIKey:         cfg.AI.APIKey,
			ModelID:        cfg.AI.Model,
			EmbeddingModel: cfg.AI.EmbeddingModel,
		})
		if err != nil {
			log.Fatal("ai provider", "provider", cfg.AI.Provider, "error", err)
		}
		manager.Set(p)
		log.Info("ai provider from config", "provider", cfg.AI.Provider)
	} else if err := svc.LoadAIConfig(ctx); err != nil {
		log.Warn("stored ai config not loaded", "error", err)
	}

	// Thumbnails missing from a previous run
	go func() {
		n, err := svc.BackfillThumbnails(ctx)
		if err != nil {
			log.Warn("thumbnail backfill failed", "error", err)
			return
		}
		if n > 0 {
			log.Info("queued missing thumbnails", "count", n)
		}
	}()

	router := handlers.NewRouter(handlers.RouterConfig{
		Service:   svc,
		Hub:       hub,
		Log:       log,
		AITimeout: cfg.AI.Timeout,
		Ping:      func(r *http.Request) error { return db.Ping(r.Context()) },
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server", "error", err)
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "error", err)
	}
	hub.Shutdown()
	svc.Close()
	manager.Set(nil)
}

// openStore connects to PostgreSQL when a URL is configured and falls back
// to the in-memory store otherwise.
func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (store, error) {
	if cfg.Database.URL == "" {
		log.Warn("no database url configured, using in-memory store")
		return storage.NewMemoryStore(), nil
	}
	pg, err := storage.NewPostgresStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return pg, nil
}
