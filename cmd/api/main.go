package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/anjali-yatham/Medisense/internal/config"
	"github.com/anjali-yatham/Medisense/internal/handler"
	adminHandler "github.com/anjali-yatham/Medisense/internal/handler/admin"
	medicineHandler "github.com/anjali-yatham/Medisense/internal/handler/medicine"
	notificationHandler "github.com/anjali-yatham/Medisense/internal/handler/notification"
	prescriptionHandler "github.com/anjali-yatham/Medisense/internal/handler/prescription"
	"github.com/anjali-yatham/Medisense/internal/middleware"
	"github.com/anjali-yatham/Medisense/internal/repository/postgres"
	"github.com/anjali-yatham/Medisense/internal/router"
	"github.com/anjali-yatham/Medisense/internal/scheduler"
	adherenceService "github.com/anjali-yatham/Medisense/internal/service/adherence"
	medicineService "github.com/anjali-yatham/Medisense/internal/service/medicine"
	notificationService "github.com/anjali-yatham/Medisense/internal/service/notification"
	prescriptionService "github.com/anjali-yatham/Medisense/internal/service/prescription"
	"github.com/anjali-yatham/Medisense/pkg/auth"
	"github.com/anjali-yatham/Medisense/pkg/logger"
	"github.com/anjali-yatham/Medisense/pkg/messaging/redis"
	"github.com/anjali-yatham/Medisense/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)
	appMetrics := metrics.NewMetrics("medisense", "api")

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	broker, err := redis.NewRedisBroker(redis.Config{URL: cfg.Redis.URL}, &log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	medicineRepo := postgres.NewMedicineRepository(db)
	notificationRepo := postgres.NewNotificationRepository(db)
	userRepo := postgres.NewUserRepository(db)
	prescriptionRepo := postgres.NewPrescriptionRepository(db)

	adherenceSvc := adherenceService.NewService(medicineRepo, notificationRepo, userRepo, broker, appLogger, appMetrics)
	medicineSvc := medicineService.NewService(medicineRepo, notificationRepo, appLogger)
	notificationSvc := notificationService.NewService(notificationRepo)
	prescriptionSvc := prescriptionService.NewService(prescriptionRepo, medicineRepo, userRepo, adherenceSvc, appLogger)

	sched := scheduler.New(appLogger, appMetrics)
	if err := scheduler.RegisterAdherenceTasks(sched, adherenceSvc); err != nil {
		log.Fatal().Err(err).Msg("failed to register scheduled tasks")
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpiryHours)
	authMiddleware := middleware.NewAuthMiddleware(jwtService)

	h := handler.NewHandler()
	r := router.NewRouter(
		authMiddleware,
		medicineHandler.NewHandler(medicineSvc),
		notificationHandler.NewHandler(notificationSvc),
		prescriptionHandler.NewHandler(prescriptionSvc),
		adminHandler.NewHandler(sched),
		h,
		router.RouterConfig{RateLimit: rate.Limit(100), RateBurst: 200},
	)
	r.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Start(ctx)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
