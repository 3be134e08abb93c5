package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"calbook/internal/api"
	"calbook/internal/browser"
	"calbook/internal/config"
	"calbook/internal/database"
	"calbook/internal/domain"
	"calbook/internal/events"
	"calbook/internal/export"
	"calbook/internal/logging"
	"calbook/internal/metrics"
	"calbook/internal/notify"
	"calbook/internal/repository"
	"calbook/internal/retry"
	"calbook/internal/service"
	"calbook/internal/sheets"
	"calbook/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	progress := initProgressRepository(cfg, logger)

	selectors, err := browser.LoadSelectors(cfg.Browser.SelectorsPath)
	if err != nil {
		logger.Error().Err(err).Str("selectors_path", cfg.Browser.SelectorsPath).Msg("load selectors")
		return err
	}

	retryPolicy := retry.Policy{
		MaxRetries: cfg.Automation.MaxRetries,
		Delay:      cfg.Automation.RetryDelay(),
	}
	sessions := browser.NewFactory(cfg.Browser, selectors, retryPolicy, logger)

	eventBus := events.NewEventBus()
	bookingService := service.NewBookingService(db, sessions, progress, eventBus, logger)

	initNotifier(cfg, eventBus, logger)
	initSheetsMirror(cfg, eventBus, bookingService, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool := worker.NewPool(bookingService, cfg.Automation.Workers, cfg.Automation.QueueSize, logger)
	pool.Start(ctx)

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(cfg.Database.Path, cfg.Backup, logger)
		go backupService.Start(ctx)
	}

	exporter := export.NewExporter(cfg.Exports.Path, logger)
	httpServer := api.NewHTTPServer(cfg.API, bookingService, pool, exporter, progress, logger)

	startMetrics(ctx, cfg, logger)

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("http_port", cfg.API.Port).Msg("booking service started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)

	// Workers observe ctx cancellation; give in-flight sessions a moment to
	// tear down before the process exits.
	pool.Wait()

	logger.Info().Msg("booking service stopped")
	return nil
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, &logger, closer, nil
}

func initProgressRepository(cfg *config.Config, logger *zerolog.Logger) domain.ProgressRepository {
	ttl := cfg.Automation.ProgressTTL()
	memory := repository.NewMemoryProgressRepository(ttl)

	if cfg.Redis.Address == "" {
		logger.Info().Msg("redis not configured, using in-memory progress repository")
		return memory
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(context.Background(), client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, using in-memory progress repository")
		return memory
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	primary := repository.NewRedisProgressRepository(client, ttl)
	return repository.NewFailoverProgressRepository(primary, memory, logger)
}

func initNotifier(cfg *config.Config, bus *events.EventBus, logger *zerolog.Logger) {
	if !cfg.Notifications.Telegram.Enabled {
		return
	}

	notifier, err := notify.NewTelegramNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram notifier init failed, continuing without notifications")
		return
	}

	notifier.SubscribeToEvents(bus)
	logger.Info().Msg("telegram notifier connected")
}

func initSheetsMirror(cfg *config.Config, bus *events.EventBus, bookings *service.BookingService, logger *zerolog.Logger) {
	if !cfg.Google.Enabled {
		return
	}

	sheetsService, err := sheets.NewService(cfg.Google.GoogleCredentialsFile, cfg.Google.BookingSpreadSheetID)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return
	}

	mirror := func(event *events.Event) error {
		var payload events.BookingEventPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		booking, err := bookings.GetBookingByUUID(ctx, payload.BookingUUID)
		if err != nil {
			logger.Warn().Err(err).Str("booking_uuid", payload.BookingUUID).Msg("sheets mirror: booking lookup failed")
			return err
		}
		if err := sheetsService.UpdateBooking(ctx, booking); err != nil {
			logger.Warn().Err(err).Str("booking_uuid", payload.BookingUUID).Msg("sheets mirror: update failed")
			return err
		}
		return nil
	}

	bus.Subscribe(events.EventBookingCreated, mirror)
	bus.Subscribe(events.EventBookingCompleted, mirror)
	bus.Subscribe(events.EventBookingFailed, mirror)

	logger.Info().Msg("google sheets mirror connected")
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
