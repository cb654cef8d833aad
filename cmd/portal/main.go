package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Miketheless/workshopneu/internal/admin"
	"github.com/Miketheless/workshopneu/internal/api"
	"github.com/Miketheless/workshopneu/internal/availability"
	"github.com/Miketheless/workshopneu/internal/backend"
	"github.com/Miketheless/workshopneu/internal/booking"
	"github.com/Miketheless/workshopneu/internal/config"
	"github.com/Miketheless/workshopneu/internal/database"
	"github.com/Miketheless/workshopneu/internal/domain"
	"github.com/Miketheless/workshopneu/internal/events"
	"github.com/Miketheless/workshopneu/internal/google"
	"github.com/Miketheless/workshopneu/internal/logging"
	"github.com/Miketheless/workshopneu/internal/metrics"
	"github.com/Miketheless/workshopneu/internal/models"
	"github.com/Miketheless/workshopneu/internal/notify"
	"github.com/Miketheless/workshopneu/internal/repository"
	"github.com/Miketheless/workshopneu/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
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

	if !cfg.HTTP.Enabled {
		logger.Error().Msg("http is disabled in config, nothing to serve")
		return errors.New("http disabled")
	}
	loc, err := cfg.App.Location()
	if err != nil {
		return err
	}
	if err := prepareDirectories(cfg, &logger); err != nil {
		return err
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}
	views := initStateRepository(redisClient, &logger)

	client := backend.NewClient(cfg.Backend, &logger)
	if redisClient != nil {
		client.UseRedisCache(redisClient, cfg.Backend.CacheTTL)
	}

	schedule, err := availability.ScheduleFromConfig(cfg.Schedule)
	if err != nil {
		logger.Error().Err(err).Msg("load static schedule")
		return err
	}
	slots := availability.NewModel(client, schedule, cfg.Backend.SlotsTimeout, &logger)

	bus := events.NewEventBus(&logger)
	initTelegram(cfg, bus, &logger)

	var notifier domain.Notifier
	if webhook := notify.NewWebhook(cfg.Webhook, &logger); webhook.Enabled() {
		notifier = webhook
	}
	bookings := booking.NewService(client, notifier, bus, cfg.Backend.BookTimeout, &logger)

	var syncer domain.SyncEnqueuer
	if sheets := initGoogleSheets(ctx, cfg, loc, &logger); sheets != nil {
		sheetsWorker := worker.NewSheetsWorker(db, sheets, redisClient, worker.SyncPolicy, &logger)
		go sheetsWorker.Start(ctx)
		syncer = sheetsWorker
	}

	if cfg.Database.Backup.Enabled {
		backupService := database.NewBackupService(db, cfg.Database.Backup, &logger)
		go backupService.Start(ctx)
	}

	startMetrics(ctx, cfg, &logger)

	httpServer, err := api.NewHTTPServer(cfg.HTTP, api.Deps{
		Slots:    slots,
		Bookings: bookings,
		NewDashboard: func() *admin.Dashboard {
			return admin.NewDashboard(admin.Deps{
				Backend:  client,
				Journal:  db,
				Sync:     syncer,
				Events:   bus,
				Timeout:  cfg.Backend.AdminTimeout,
				Location: loc,
				Logger:   &logger,
			})
		},
		Views:    views,
		Location: loc,
	}, &logger)
	if err != nil {
		logger.Error().Err(err).Msg("create http server")
		return err
	}

	return serve(ctx, httpServer, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "portal-main").Logger()

	return cfg, logger, closer, nil
}

func prepareDirectories(cfg *config.Config, logger *zerolog.Logger) error {
	dirs := []string{filepath.Dir(cfg.Database.Path), cfg.Exports.Path}
	if cfg.Database.Backup.Enabled {
		dirs = append(dirs, cfg.Database.Backup.StoragePath)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Error().Err(err).Str("dir", dir).Msg("create directory")
			return err
		}
	}
	return nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initStateRepository(redisClient *redis.Client, logger *zerolog.Logger) domain.StateRepository {
	ttl := time.Duration(models.ViewStateTTL) * time.Second
	memory := repository.NewMemoryStateRepository(ttl)
	if redisClient == nil {
		return memory
	}
	primary := repository.NewRedisStateRepository(redisClient, ttl)
	return repository.NewFailoverStateRepository(primary, memory, logger)
}

func initGoogleSheets(ctx context.Context, cfg *config.Config, loc *time.Location, logger *zerolog.Logger) *google.SheetsService {
	if cfg.Google.GoogleCredentialsFile == "" || cfg.Google.MirrorSpreadSheetID == "" {
		logger.Info().Msg("google sheets mirror not configured")
		return nil
	}

	sheets, err := google.NewSheetsService(ctx, cfg.Google.GoogleCredentialsFile, cfg.Google.MirrorSpreadSheetID)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without mirror")
		return nil
	}
	sheets.SetLocation(loc)

	if err := sheets.TestConnection(ctx); err != nil {
		email, _ := google.GetServiceAccountEmail(cfg.Google.GoogleCredentialsFile)
		logger.Warn().Err(err).Str("service_account", email).Msg("google sheets connection test failed, continuing without mirror")
		return nil
	}

	logger.Info().Msg("google sheets mirror connected")
	return sheets
}

func initTelegram(cfg *config.Config, bus *events.EventBus, logger *zerolog.Logger) {
	if cfg.Telegram.BotToken == "" || len(cfg.Telegram.ChatIDs) == 0 {
		return
	}
	tg, err := notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatIDs, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without admin notifications")
		return
	}
	tg.Attach(bus)
	logger.Info().Int("chats", len(cfg.Telegram.ChatIDs)).Msg("telegram notifications enabled")
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	metrics.Register()
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}

func serve(ctx context.Context, httpServer *api.HTTPServer, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			return err
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}

	logger.Info().Msg("portal stopped")
	return nil
}
