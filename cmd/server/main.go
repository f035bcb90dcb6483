package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"welcome-backend/internal/config"
	"welcome-backend/internal/database"
	"welcome-backend/internal/handlers"
	"welcome-backend/internal/logging"
	"welcome-backend/internal/middleware"
	"welcome-backend/internal/profile"
	"welcome-backend/internal/router"
	"welcome-backend/internal/services"
	"welcome-backend/internal/session"
)

const version = "1.0.0"

func main() {
	// ──── Step 1: Configuration ────
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ logger initialization failed: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx := context.Background()
	logger.Info("starting welcome backend",
		zap.String("provider", cfg.Provider),
		zap.String("store", cfg.StoreBackend),
		zap.Bool("debug", cfg.Debug),
	)

	// ──── Step 2: Company profile ────
	p, err := profile.Load(cfg.ProfilePath)
	if err != nil {
		return err
	}
	logger.Info("company profile loaded", zap.String("company", p.Company.Name))

	// ──── Step 3: Stores ────
	var redisClient *redis.Client
	if cfg.StoreBackend == config.StoreRedis {
		redisClient, err = database.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		logger.Info("redis connected")
	}

	sessions, err := session.NewStore(session.StoreType(cfg.StoreBackend),
		session.WithMaxHistory(cfg.MaxHistory),
		session.WithRedisClient(redisClient),
		session.WithTTL(cfg.SessionTTL),
	)
	if err != nil {
		return err
	}
	defer sessions.Close()

	var windows middleware.WindowStore
	if redisClient != nil {
		windows = middleware.NewRedisWindowStore(redisClient)
	} else {
		memWindows := middleware.NewMemoryWindowStore()
		memWindows.StartCleanup(time.Minute)
		defer memWindows.Close()
		windows = memWindows
	}
	rateLimited, err := p.Interpolate(p.Copy.RateLimited)
	if err != nil {
		return err
	}
	limiter := middleware.NewRateLimiter(windows, cfg.RateLimitPerMinute, time.Minute, rateLimited, logger)

	// ──── Step 4: Completion client ────
	completer, closeCompleter, err := newCompleter(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCompleter()

	agent, err := services.NewWelcomeAgent(services.AgentOptions{
		Profile: p,
		Validator: services.ValidatorConfig{
			MinLength:    cfg.MinMessageLength,
			MaxLength:    cfg.MaxMessageLength,
			BlockedWords: cfg.BlockedWords,
		},
		Limiter:   limiter,
		Store:     sessions,
		Completer: completer,
		Catalog:   services.CatalogFor(cfg.Provider).With(cfg.ModelCatalog),
		Params: services.ModelParams{
			Model:            cfg.Model,
			Temperature:      cfg.Temperature,
			MaxTokens:        cfg.MaxTokens,
			TopP:             cfg.TopP,
			FrequencyPenalty: cfg.FrequencyPenalty,
			PresencePenalty:  cfg.PresencePenalty,
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}
	logger.Info("welcome agent ready", zap.String("model", agent.Model()))

	// ──── Step 5: HTTP server ────
	welcomeHandler, err := handlers.NewWelcomeHandler(agent, p, version, logger)
	if err != nil {
		return err
	}
	r := router.New(welcomeHandler, limiter, cfg.CORSOrigins, logger)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	shutdownErr := make(chan error, 1)
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		shutdownErr <- server.Shutdown(ctx)
	}()

	logger.Info("welcome backend ready", zap.String("addr", server.Addr))
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return <-shutdownErr
}

func newCompleter(ctx context.Context, cfg *config.Config, logger *zap.Logger) (services.Completer, func(), error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		c, err := services.NewGeminiCompleter(ctx, cfg.APIKey, cfg.RequestTimeout, logger)
		if err != nil {
			return nil, nil, err
		}
		return c, func() { c.Close() }, nil
	case config.ProviderOpenAI:
		return services.NewOpenAICompleter(cfg.APIKey, cfg.BaseURL, cfg.RequestTimeout, logger), func() {}, nil
	default:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = services.GroqBaseURL
		}
		return services.NewOpenAICompleter(cfg.APIKey, baseURL, cfg.RequestTimeout, logger), func() {}, nil
	}
}
