package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/auth"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/cache"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/config"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/database"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/handler"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/ingest"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/logger"
	middlewarepkg "github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/middleware"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/places"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/progress"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/repository"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/retry"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/router"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/service"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	appLogger, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbOpts := database.Options{MaxConns: cfg.DatabaseConns, SimpleProtocol: cfg.DatabaseSimple}
	pool, err := database.Connect(ctx, cfg.DatabaseURL, dbOpts)
	if err != nil {
		appLogger.Warn("database unreachable, directory reads will fall back", zap.Error(err))
		pool, err = database.Open(ctx, cfg.DatabaseURL, dbOpts)
		if err != nil {
			appLogger.Fatal("failed to configure database", zap.Error(err))
		}
	} else if cfg.DatabaseAutoMigrate {
		if err := database.EnsureSchema(ctx, pool); err != nil {
			appLogger.Fatal("failed to apply database schema", zap.Error(err))
		}
	}
	defer pool.Close()

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)

	usersRepo := repository.NewPGXUsersRepository(pool)
	businessesRepo := repository.NewPGXBusinessesRepository(pool)
	reviewsRepo := repository.NewPGXReviewsRepository(pool)
	reportsRepo := repository.NewPGXReportsRepository(pool)
	jobsRepo := repository.NewPGXJobsRepository(pool)

	var placesClient service.PlacesClient
	var photoAPI ingest.PlacesPhotos
	client, err := places.New(ctx, places.Config{
		APIKey:        cfg.Places.APIKey,
		Language:      cfg.Places.LanguageCode,
		PhotoMaxWidth: int(cfg.Places.PhotoMaxWidth),
		RPS:           cfg.Places.RequestsPerSecond,
	})
	switch {
	case err == nil:
		placesClient, photoAPI = client, client
	case errors.Is(err, places.ErrMissingAPIKey):
		appLogger.Warn("google places disabled, live photos and reviews are unavailable")
	default:
		appLogger.Fatal("failed to create places client", zap.Error(err))
	}

	store := newImageStore(cfg, appLogger)
	if closer, ok := store.(io.Closer); ok {
		defer closer.Close()
	}

	var listingCache *cache.Cache
	if cfg.Redis.Addr != "" {
		redisClient, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("redis unavailable, listing cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			listingCache = cache.New(redisClient, cfg.Redis.TTL)
		}
	}

	broker := progress.NewBroker(32)
	sources := ingest.Sources{
		Google: &ingest.GoogleSource{Places: photoAPI},
		Cached: &ingest.CachedSource{
			Client:       &http.Client{Timeout: 30 * time.Second},
			Retry:        retry.DefaultPolicy,
			HostedPrefix: cfg.FTP.PublicBaseURL,
		},
		Base64: ingest.Base64Source{},
	}

	authService := service.NewAuthService(usersRepo, jwtManager)
	businessService := service.NewBusinessService(businessesRepo, reviewsRepo, listingCache, placesClient, appLogger.Named("directory"))
	reportService := service.NewReportService(reportsRepo, store, appLogger.Named("reports"))
	ingestService := service.NewIngestService(jobsRepo, businessesRepo, sources, store, broker, listingCache, service.IngestOptions{
		DefaultConcurrency: cfg.Ingest.DefaultConcurrency,
		MaxConcurrency:     cfg.Ingest.MaxConcurrency,
		DefaultStrategy:    cfg.Ingest.DefaultStrategy,
	}, appLogger.Named("ingest"))

	if cfg.AdminEmail != "" {
		if _, err := authService.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword, appLogger); err != nil {
			appLogger.Warn("bootstrap admin not ensured", zap.Error(err))
		}
	}
	if _, err := ingestService.RecoverInterrupted(ctx); err != nil {
		appLogger.Warn("recover interrupted ingest jobs failed", zap.Error(err))
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middlewarepkg.RequestID())
	e.Use(middlewarepkg.Logging(appLogger.Named("http")))
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())

	router.Register(e, cfg, jwtManager, router.Handlers{
		Auth:        handler.NewAuthHandler(authService),
		Businesses:  handler.NewBusinessesHandler(businessService),
		Reports:     handler.NewReportsHandler(reportService, appLogger),
		AdminUpload: handler.NewAdminUploadHandler(businessService),
		Ingest:      handler.NewIngestHandler(ingestService, broker, appLogger),
	}, appLogger)

	serverErr := make(chan error, 1)
	go func() {
		appLogger.Info("api listening", zap.String("port", cfg.Port))
		serverErr <- e.Start(":" + cfg.Port)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("server error", zap.Error(err))
		}
		return
	}

	if n := ingestService.StopAll(); n > 0 {
		appLogger.Info("cancelled running ingest jobs", zap.Int("jobs", n))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// newImageStore returns the configured store, or nil when it is not
// configured. Without a store batches fail their pre-flight check and report
// attachments are refused.
func newImageStore(cfg *config.Config, logger *zap.Logger) storage.ImageStore {
	switch cfg.ImageStore {
	case "cloudinary":
		store, err := storage.NewCloudinaryStore(cfg.Cloudinary.URL, cfg.Cloudinary.Folder)
		if err != nil {
			logger.Warn("cloudinary store disabled", zap.Error(err))
			return nil
		}
		return store
	default:
		store, err := storage.NewFTPStore(storage.FTPConfig{
			Addr:       cfg.FTP.Addr(),
			User:       cfg.FTP.User,
			Password:   cfg.FTP.Password,
			RemoteRoot: cfg.FTP.RemoteRoot,
			PublicBase: cfg.FTP.PublicBaseURL,
			Timeout:    cfg.FTP.Timeout,
		}, logger.Named("ftp"))
		if err != nil {
			logger.Warn("ftp store disabled", zap.Error(err))
			return nil
		}
		return store
	}
}
