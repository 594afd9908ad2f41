package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Dosada05/roster-system/config"
	"github.com/Dosada05/roster-system/db"
	"github.com/Dosada05/roster-system/events"
	"github.com/Dosada05/roster-system/handlers"
	"github.com/Dosada05/roster-system/locks"
	"github.com/Dosada05/roster-system/metrics"
	"github.com/Dosada05/roster-system/models"
	"github.com/Dosada05/roster-system/policy"
	"github.com/Dosada05/roster-system/registry"
	"github.com/Dosada05/roster-system/repositories"
	api "github.com/Dosada05/roster-system/routes"
	"github.com/Dosada05/roster-system/services"
	"github.com/Dosada05/roster-system/storage"
)

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort), slog.Bool("sync_enabled", cfg.SyncEnabled))

	policy.SetDefault(policy.ID(cfg.DefaultPolicy))
	if policy.Lookup("").ID == "" {
		logger.Error("unknown default policy", slog.String("policy", cfg.DefaultPolicy))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	if err := db.Migrate(ctx, dbConn); err != nil {
		logger.Error("failed to apply migrations", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("database connection established")

	// Инициализация репозиториев
	identityRepo := repositories.NewPostgresIdentityRepository(dbConn)
	playerRepo := repositories.NewPostgresPlayerRepository(dbConn)
	teamRepo := repositories.NewPostgresTeamRepository(dbConn)
	rosterRepo := repositories.NewPostgresRosterRepository(dbConn)
	logger.Info("Repositories initialized")

	txManager := db.NewTxManager(dbConn)
	registryClient := registry.NewHTTPClient(cfg.RegistryURL, cfg.RegistryToken, cfg.RegistrySecret, cfg.RegistryTimeout)
	appMetrics := metrics.New()

	// Инициализация WebSocket Hub
	wsHub := events.NewHub(logger)
	go wsHub.Run(ctx)
	logger.Info("WebSocket Hub started")

	// Блокировка синхронизации между инстансами нужна только при нескольких репликах.
	var locker services.Locker
	if cfg.RedisURL != "" {
		redisLocker, err := locks.New(cfg.RedisURL)
		if err != nil {
			logger.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer redisLocker.Close()
		locker = redisLocker
		logger.Info("Redis sync lock enabled")
	}

	var archive storage.ReportArchiver
	if cfg.ArchiveEnabled() {
		archive, err = storage.NewCloudflareR2Archiver(ctx, storage.CloudflareR2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 archiver", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Cloudflare R2 sync report archive initialized")
	}

	// Инициализация сервисов
	emailService := services.NewEmailService(cfg, logger)
	validator := services.NewRosterValidator(teamRepo, rosterRepo, policy.NewEngine(rosterRepo))

	rosterService := services.NewRosterService(services.RosterServiceDeps{
		Tx:              txManager,
		Rosters:         rosterRepo,
		Players:         playerRepo,
		Identities:      identityRepo,
		Teams:           teamRepo,
		Registry:        registryClient,
		Validator:       validator,
		Events:          wsHub,
		Clock:           models.SystemClock{},
		Metrics:         appMetrics,
		Logger:          logger,
		RegistryTimeout: cfg.RegistryTimeout,
	})

	syncService := services.NewSyncService(services.SyncServiceDeps{
		Enabled:     cfg.SyncEnabled,
		Tx:          txManager,
		Registry:    registryClient,
		Identities:  identityRepo,
		Players:     playerRepo,
		Rosters:     rosterRepo,
		Teams:       teamRepo,
		Notifier:    emailService,
		Events:      wsHub,
		Archive:     archive,
		Locker:      locker,
		LockTTL:     cfg.SyncLockTTL,
		Concurrency: cfg.SyncConcurrency,
		Policy:      policy.ID(cfg.DefaultPolicy),
		Clock:       models.SystemClock{},
		Metrics:     appMetrics,
		Logger:      logger,
	})
	logger.Info("Services initialized")

	// Запуск планировщика синхронизации с реестром
	if cfg.SyncEnabled {
		go runSyncScheduler(ctx, syncService, cfg.SyncInterval, logger)
	}

	// Инициализация обработчиков HTTP
	rosterHandler := handlers.NewRosterHandler(rosterService)
	syncHandler := handlers.NewSyncHandler(syncService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, rosterService, cfg.CORSAllowedOrigins)
	logger.Info("HTTP handlers initialized")

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		api.Options{JWTSecret: cfg.JWTSecretKey, AllowedOrigins: cfg.CORSAllowedOrigins},
		rosterHandler,
		syncHandler,
		webSocketHandler,
	)
	logger.Info("Routes configured")

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RegistryTimeout + 20*time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			cancel()
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		// Останавливаем планировщик и хаб до остановки сервера, чтобы websocket-соединения закрылись.
		cancel()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
}

// runSyncScheduler запускает прогон сразу при старте, затем по тикеру.
func runSyncScheduler(ctx context.Context, sync *services.SyncService, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	logger.Info("Registry sync scheduler started", slog.Duration("interval", interval))

	run := func() {
		report, err := sync.Run(ctx)
		if err != nil {
			logger.Error("Scheduler: sync run failed", slog.Any("error", err))
			return
		}
		if !report.Ran {
			logger.Info("Scheduler: sync skipped")
		}
	}

	run()
	for {
		select {
		case <-ctx.Done():
			logger.Info("Registry sync scheduler stopped")
			return
		case <-ticker.C:
			run()
		}
	}
}
