package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/anjali-yatham/Medisense/internal/config"
	"github.com/anjali-yatham/Medisense/internal/repository/postgres"
	"github.com/anjali-yatham/Medisense/internal/sms"
	"github.com/anjali-yatham/Medisense/internal/worker"
	"github.com/anjali-yatham/Medisense/pkg/logger"
	"github.com/anjali-yatham/Medisense/pkg/metrics"
)

func setupHealthCheck(appLogger *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		if err := http.ListenAndServe(":8081", mux); err != nil {
			appLogger.Error(err, "health check server failed")
			os.Exit(1)
		}
	}()
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)
	appMetrics := metrics.NewMetrics("medisense", "worker")

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	smsConfig, err := sms.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load SMS configuration")
	}
	sender := sms.NewFast2SMSSender(*smsConfig, appLogger)

	notificationRepo := postgres.NewNotificationRepository(db)
	medicineRepo := postgres.NewMedicineRepository(db)
	userRepo := postgres.NewUserRepository(db)

	deliveryWorker := worker.NewDeliveryWorker(
		notificationRepo,
		medicineRepo,
		userRepo,
		sender,
		worker.DeliveryWorkerConfig{
			BatchSize:    cfg.Worker.BatchSize,
			PollInterval: cfg.Worker.PollInterval,
		},
		appLogger,
		appMetrics,
	)

	setupHealthCheck(appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		appLogger.Info("shutting down...")
		cancel()
	}()

	deliveryWorker.Start(ctx)
}
