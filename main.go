package main

import (
	"context"
	"log"
	"time"

	"github.com/labstack/echo/v4"
	echoMw "github.com/labstack/echo/v4/middleware"
	"github.com/sprucehq/cleanops/config"
	"github.com/sprucehq/cleanops/internal/consumer"
	"github.com/sprucehq/cleanops/internal/handler"
	"github.com/sprucehq/cleanops/internal/middleware"
	"github.com/sprucehq/cleanops/internal/payment"
	"github.com/sprucehq/cleanops/internal/repository"
	"github.com/sprucehq/cleanops/internal/service"
	"github.com/sprucehq/cleanops/pkg/database"
	"github.com/sprucehq/cleanops/pkg/rabbitmq"
)

func main() {
	cfg := config.Load()

	db := database.NewPostgresDB(cfg.DSN())

	// RabbitMQ: sweep requests in, sweep requests out (settings updates)
	mqConsumer, err := rabbitmq.NewConsumer(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to RabbitMQ: %v", err)
	}
	defer mqConsumer.Close()

	publisher, err := rabbitmq.NewPublisher(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to RabbitMQ: %v", err)
	}
	defer publisher.Close()

	// Repositories
	bookingRepo := repository.NewBookingRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	clientRepo := repository.NewClientRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	// Services
	provider := payment.NewStripeProvider(cfg.StripeKey)
	holdSvc := service.NewHoldService(paymentRepo, clientRepo, provider)
	seriesSvc := service.NewSeriesService(bookingRepo, paymentRepo,
		service.WithTimeShiftPropagation(cfg.PropagateTimeShift))
	sweepSvc := service.NewSweepService(bookingRepo, paymentRepo, settingsRepo, holdSvc)
	bookingSvc := service.NewBookingService(bookingRepo, clientRepo, settingsRepo, seriesSvc, holdSvc)
	settingsSvc := service.NewSettingsService(settingsRepo, publisher)

	// Queue-triggered sweeps
	msgs, err := mqConsumer.Consume()
	if err != nil {
		log.Fatalf("failed to start consuming: %v", err)
	}
	consumer.NewSweepConsumer(sweepSvc).Start(msgs)

	// Periodic sweep
	go runSweepLoop(sweepSvc, time.Duration(cfg.SweepIntervalMinutes)*time.Minute)

	// Echo
	e := echo.New()
	e.HTTPErrorHandler = middleware.ErrorHandler
	e.Use(echoMw.RequestLoggerWithConfig(echoMw.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v echoMw.RequestLoggerValues) error {
			log.Printf("%s %s %d", v.Method, v.URI, v.Status)
			return nil
		},
	}))
	e.Use(echoMw.Recover())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok", "service": "cleanops"})
	})

	handler.NewBookingHandler(bookingSvc).RegisterRoutes(e)
	handler.NewAdminHandler(settingsSvc, sweepSvc).RegisterRoutes(e)

	log.Printf("CleanOps starting on :%s", cfg.ServerPort)
	e.Logger.Fatal(e.Start(":" + cfg.ServerPort))
}

func runSweepLoop(sweeps service.SweepService, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		if _, err := sweeps.Sweep(context.Background(), nil); err != nil {
			log.Printf("[Sweep] periodic run failed: %v", err)
		}
	}
}
