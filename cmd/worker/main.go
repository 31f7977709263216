package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"conductpoints/internal/attendance"
	"conductpoints/internal/config"
	"conductpoints/internal/logging"
	"conductpoints/internal/metrics"
	"conductpoints/internal/queue"
	"conductpoints/internal/store"
)

// Worker consumes attendance.recorded messages and makes sure each linked
// registration reached the participated status.
func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.Production())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		cancel()
	}()

	if cfg.QueueBackend == "memory" {
		log.Fatal("worker needs QUEUE_BACKEND=redis")
	}

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("db connect failed")
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	q := queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)

	svc := attendance.NewService(
		attendance.NewRepository(db.Client),
		attendance.WithLocation(cfg.Location()),
		attendance.WithLogger(log),
	)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(":"+cfg.WorkerMetricsPort, mux); err != nil {
			log.WithError(err).Warn("metrics listener stopped")
		}
	}()

	messages, err := q.Consume(ctx)
	if err != nil {
		log.WithError(err).Fatal("queue consume init failed")
	}

	log.Info("worker started, waiting for messages")
	for msg := range messages {
		if msg.Type != queue.TypeAttendanceRecorded {
			continue
		}
		id := string(msg.Body)
		if err := svc.Reconcile(ctx, id); err != nil {
			metrics.ReconcileOutcomes.WithLabelValues("failed").Inc()
			log.WithError(err).WithField("attendance_id", id).Error("reconcile failed")
			continue
		}
		metrics.ReconcileOutcomes.WithLabelValues("ok").Inc()
	}

	log.Info("worker stopped")
}
