package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	goredis "github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"asteroidradar/internal/cache"
	"asteroidradar/internal/clients"
	"asteroidradar/internal/config"
	"asteroidradar/internal/feed"
	"asteroidradar/internal/handlers"
	"asteroidradar/internal/middleware"
	"asteroidradar/internal/repository"
	"asteroidradar/internal/service"
	"asteroidradar/internal/worker"
	"asteroidradar/pkg/database"
	"asteroidradar/pkg/redis"
)

const (
	shutdownTimeout    = 10 * time.Second
	limiterPrunePeriod = 5 * time.Minute
)

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	logger := newLogger(cfg.App.LogLevel, cfg.App.Debug)

	if envErr != nil {
		logger.Info().Msg("no .env file found, using environment variables")
	}
	logger.Info().Msg("asteroid radar starting")

	db, err := database.Connect(database.Config{
		Driver:   cfg.DB.Driver,
		Path:     cfg.DB.Path,
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		DBName:   cfg.DB.DBName,
		SSLMode:  cfg.DB.SSLMode,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}()

	if err := database.Migrate(db, logger); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	var (
		redisClient *goredis.Client
		store       cache.Cache
	)
	if cfg.Redis.Enabled {
		redisClient, err = redis.Connect(redis.Config{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		store = cache.NewRedisCache(redisClient)
	} else {
		store = cache.NewMemoryCache(cfg.Cache.Size, cfg.Cache.TTL)
		logger.Info().Int("size", cfg.Cache.Size).Dur("ttl", cfg.Cache.TTL).Msg("using in-memory cache")
	}

	// One store instance per table, shared by the service, workers and handlers.
	asteroidRepo := repository.NewAsteroidRepository(db, logger)
	pictureRepo := repository.NewPictureOfDayRepository(db, logger)
	snapshotRepo := repository.NewSnapshotRepository(db)

	nasaClient := clients.NewNASAClient(clients.NASAConfig{
		APIKey:  cfg.NASA.APIKey,
		BaseURL: cfg.NASA.BaseURL,
		Timeout: cfg.NASA.Timeout,
	})

	asteroidService := service.NewAsteroidService(
		asteroidRepo,
		pictureRepo,
		snapshotRepo,
		store,
		nasaClient,
		feed.NewParser(logger),
		service.Config{
			FeedWindowDays:     cfg.NASA.FeedWindowDays,
			MinRefreshInterval: cfg.Workers.RefreshMinInterval,
			SnapshotRetention:  cfg.Workers.SnapshotRetention,
		},
		logger,
	)

	scheduler := worker.NewScheduler(logger)
	if cfg.Workers.RefreshEnabled {
		scheduler.AddWorker(worker.NewRefreshWorker(asteroidService, cfg.Workers.RefreshInterval, logger))
		logger.Info().Dur("interval", cfg.Workers.RefreshInterval).Msg("refresh worker enabled")
	}
	if cfg.Workers.CleanupEnabled {
		cleanupWorker, err := worker.NewCleanupWorker(asteroidService, cfg.Workers.CleanupSchedule, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create cleanup worker")
		}
		scheduler.AddWorker(cleanupWorker)
		logger.Info().Str("schedule", cfg.Workers.CleanupSchedule).Msg("cleanup worker enabled")
	}

	scheduler.Start()
	defer scheduler.Stop()

	if cfg.App.Debug {
		gin.SetMode(gin.DebugMode)
		logger.Info().Msg("running in debug mode")
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", cfg.App.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	if !cfg.App.Debug {
		ipLimiter := middleware.NewIPRateLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst)
		r.Use(middleware.IPRateLimitMiddleware(ipLimiter, logger))
		go pruneLimiters(rootCtx, ipLimiter)
		logger.Info().
			Int("rps", cfg.RateLimit.RequestsPerSecond).
			Int("burst", cfg.RateLimit.Burst).
			Msg("rate limiting enabled")
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterRoutes(
		r.Group("/api/v1"),
		handlers.NewAsteroidHandler(asteroidService, logger),
		handlers.NewPictureHandler(asteroidService, logger),
		handlers.NewSystemHandler(asteroidService, redisClient, cfg.DB.Driver, logger),
		cfg.App.Debug,
	)

	// No WriteTimeout: event streams stay open. Cancelling rootCtx ends them.
	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
		BaseContext:       func(net.Listener) context.Context { return rootCtx },
	}

	go func() {
		logger.Info().Str("port", cfg.App.Port).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info().Str("signal", sig.String()).Msg("shutting down")

	cancelRoot()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server exited")
}

func newLogger(level string, debug bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339

	if debug {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			Level(lvl).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
}

func pruneLimiters(ctx context.Context, limiter *middleware.IPRateLimiter) {
	ticker := time.NewTicker(limiterPrunePeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Prune()
		}
	}
}
