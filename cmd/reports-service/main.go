package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fleetpulse/reports-service/internal/auth"
	"github.com/fleetpulse/reports-service/internal/config"
	"github.com/fleetpulse/reports-service/internal/db"
	"github.com/fleetpulse/reports-service/internal/excel"
	httphandler "github.com/fleetpulse/reports-service/internal/http"
	"github.com/fleetpulse/reports-service/internal/http/middleware"
	"github.com/fleetpulse/reports-service/internal/logger"
	"github.com/fleetpulse/reports-service/internal/model"
	"github.com/fleetpulse/reports-service/internal/pdf"
	"github.com/fleetpulse/reports-service/internal/repository"
	"github.com/fleetpulse/reports-service/internal/service"
	"github.com/fleetpulse/reports-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	database, err := db.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	tripRepo := repository.NewTripRepository(database)
	reportRepo := repository.NewReportRepository(database)

	defaultEvents := make([]model.EventCode, 0, len(cfg.Reports.DefaultEvents))
	for _, code := range cfg.Reports.DefaultEvents {
		defaultEvents = append(defaultEvents, model.EventCode(code))
	}

	reportService := service.NewReportService(tripRepo, reportRepo, defaultEvents,
		cfg.Reports.ScheduleHour, cfg.Reports.ScheduleMinute)

	pollPeriod, err := time.ParseDuration(cfg.Reports.WorkerPollPeriod)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid REPORTS_WORKER_POLL_PERIOD")
	}
	scheduler := worker.NewScheduler(reportRepo, reportService, pollPeriod, log)
	scheduler.Start()
	defer scheduler.Stop()

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	handler := httphandler.NewHandler(reportService, excel.NewGenerator(), pdf.NewGenerator(), log)
	authMiddleware := middleware.Auth(tokenParser)
	router := httphandler.NewRouter(handler, authMiddleware, cfg.Environment)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	log.Info().Str("addr", addr).Msg("starting reports service")

	if err := router.Run(addr); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}
