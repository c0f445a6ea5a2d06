package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/app"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/cleanup"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/config"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/handlers"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/logger"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/queue"
)

func main() {
	configPath := os.Getenv("MT_CONFIG")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		bootLog := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLog.Fatal().Err(err).Str("path", configPath).Msg("Failed to load config")
	}

	logBuffer := logger.NewBuffer(logger.DefaultBufferLines)
	log, err := logger.New(cfg.Logging, "meeting-transcriber", logBuffer)
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("Failed to initialise logger")
	}

	if err := run(cfg, log, logBuffer); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

func run(cfg *config.Config, log zerolog.Logger, logBuffer *logger.Buffer) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Msg("Initializing components")
	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = a.Sidecar.Health(healthCtx)
	cancel()
	if err != nil {
		log.Warn().Err(err).Str("url", cfg.Sidecar.URL).Msg("Model sidecar not reachable yet, jobs will retry on use")
	}

	var exporter queue.Exporter
	driveClient, err := a.Drive(ctx, log)
	if err != nil {
		log.Warn().Err(err).Msg("Google Drive not available, transcripts will only be saved locally")
	} else if driveClient != nil {
		exporter = driveClient
	}

	hub := queue.NewStatusHub(32)
	pool := queue.NewWorkerPool(
		queue.Options{
			Workers:   cfg.Workers.Count,
			QueueSize: cfg.Workers.QueueSize,
			RetryUnit: time.Second,
		},
		a.Pipeline,
		a.Local,
		exporter,
		a.DB,
		hub,
		log,
	)
	pool.Start(ctx)
	defer pool.Stop()

	scheduler := cleanup.NewScheduler(cfg.Storage.TempDir, cfg.Cleanup.IntervalMinutes, cfg.Cleanup.MaxAgeHours, log)
	scheduler.Start()
	defer scheduler.Stop()

	server := fiber.New(fiber.Config{
		BodyLimit:             cfg.Limits.MaxFileSizeMB * 1024 * 1024,
		DisableStartupMessage: true,
	})
	server.Use(recover.New())
	server.Use(fiberlogger.New(fiberlogger.Config{Output: logBuffer}))
	server.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	handlers.Routes{
		Upload:   handlers.NewUploadHandler(pool, cfg.Storage.TempDir, cfg.Limits.MaxFileSizeMB, log),
		Jobs:     handlers.NewJobsHandler(pool, a.DB),
		Speakers: handlers.NewSpeakersHandler(a.Speakers, cfg.Storage.TempDir, log),
		Stream:   handlers.NewStatusStreamHandler(hub, log),
		Sidecar:  a.Sidecar,
		Logs:     logBuffer,
	}.Register(server)

	go func() {
		<-ctx.Done()
		log.Info().Msg("Shutting down gracefully")
		if err := server.ShutdownWithTimeout(30 * time.Second); err != nil {
			log.Error().Err(err).Msg("HTTP shutdown failed")
		}
	}()

	addr := cfg.Address()
	log.Info().
		Str("addr", addr).
		Str("transcriber", cfg.Transcriber).
		Int("workers", cfg.Workers.Count).
		Int("speakers", len(a.Speakers.List())).
		Msg("Server starting")
	return server.Listen(addr)
}
