package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "hourlycast/internal/api/http"
	"hourlycast/internal/config"
	"hourlycast/internal/forecast"
	"hourlycast/internal/geocode"
	"hourlycast/internal/nws"
	"hourlycast/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slogHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)})
	slog.SetDefault(slog.New(slogHandler))

	// Shared HTTP client for outbound calls; the per-request timeout bounds
	// a stalled upstream, the retry policy handles failures.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	nwsClient := nws.NewClient(httpClient, cfg.NWSBaseURL, cfg.NWSUserAgent)
	geocoder := geocode.NewResolver(cfg.GeocoderAPIKey)
	sink := forecast.NewWebhookSink(httpClient)

	sched := scheduler.New()
	sched.Start()
	defer sched.Stop()

	svc := forecast.NewService(nwsClient, sink, sched, forecast.ServiceConfig{
		Retry: forecast.RetryPolicy{
			MaxAttempts: cfg.FetchMaxAttempts,
			BaseDelay:   cfg.FetchBaseDelay,
		},
		DefaultInterval: cfg.DefaultUpdateInterval,
		DefaultHours:    cfg.DefaultHoursToShow,
		FetchTimeout:    cfg.FetchTimeout,
	})

	app := fiber.New(fiber.Config{
		AppName:               "hourlycast",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "hourlycast",
		})
	})

	httpapi.RegisterRoutes(app, svc, geocoder)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("fiber server stopped", slog.String("error", err.Error()))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("error during shutdown", slog.String("error", err.Error()))
	}
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
