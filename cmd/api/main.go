package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"conductpoints/internal/attendance"
	"conductpoints/internal/auth"
	"conductpoints/internal/config"
	"conductpoints/internal/handler"
	"conductpoints/internal/httpmiddleware"
	"conductpoints/internal/logging"
	"conductpoints/internal/metrics"
	"conductpoints/internal/points"
	"conductpoints/internal/queue"
	"conductpoints/internal/store"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.Production())

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, log); err != nil {
		log.WithError(err).Fatal("http server failed")
	}
}

func runHTTP(cfg config.App, log *logrus.Logger) error {
	ctx := context.Background()

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		log.Info("schema applied")
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		// Nothing consumes an in-process queue across binaries. Once it
		// fills, Publish fails fast and the scan only logs the failure.
		q = queue.NewInMemory(256)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
	}

	att := attendance.NewService(
		attendance.NewRepository(db.Client),
		attendance.WithLocation(cfg.Location()),
		attendance.WithLogger(log),
		attendance.WithPublisher(q),
	)
	pts := points.NewAggregator(points.NewRepository(db.Client), log)
	h := handler.New(att, pts, map[string]handler.Checker{"db": db, "redis": redisClient}, log)

	var limiter httpmiddleware.Limiter
	if cfg.RateLimitBackend == "redis" {
		limiter = httpmiddleware.NewRedisWindow(redisClient.Client, cfg.RateLimitPerMin, log)
	} else {
		limiter = httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}))
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(metrics.GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", h.Healthz)

	v1 := r.Group("/v1", auth.Bearer(cfg.JWTSigningKey, cfg.JWTIssuer), httpmiddleware.RateLimit(limiter))
	h.Register(v1)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}
	log.Info("shutting down server")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server forced shutdown")
	}

	log.Info("server exited")
	return nil
}
