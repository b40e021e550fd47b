package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/prhi-portal-api/api/swagger"
	"github.com/noah-isme/prhi-portal-api/internal/handler"
	"github.com/noah-isme/prhi-portal-api/internal/realtime"
	"github.com/noah-isme/prhi-portal-api/internal/repository"
	"github.com/noah-isme/prhi-portal-api/internal/service"
	"github.com/noah-isme/prhi-portal-api/migrations"
	"github.com/noah-isme/prhi-portal-api/pkg/cache"
	"github.com/noah-isme/prhi-portal-api/pkg/config"
	"github.com/noah-isme/prhi-portal-api/pkg/database"
	"github.com/noah-isme/prhi-portal-api/pkg/events"
	"github.com/noah-isme/prhi-portal-api/pkg/logger"
	"github.com/noah-isme/prhi-portal-api/pkg/storage"
)

// @title PRHI Portal API
// @version 1.0.0
// @description Training portal for applicants, instructors and administrators
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		migrator, err := database.NewMigrator(db, migrations.FS)
		if err != nil {
			return fmt.Errorf("init migrator: %w", err)
		}
		if err := migrator.Up(); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		logr.Info("migrations applied")
	}

	metrics := service.NewMetricsService()

	var redisClient *redis.Client
	if cfg.Cache.Enabled || cfg.Realtime.Driver == config.RealtimeDriverRedis {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisClient.Close()
	}
	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = cache.NewStore(redisClient, "prhi")
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, cfg.Cache.Enabled && cacheRepo != nil)

	signer := storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL)
	files, err := newObjectStore(cfg, signer, logr)
	if err != nil {
		return err
	}

	feed, err := newFeed(ctx, cfg, redisClient, logr)
	if err != nil {
		return err
	}

	buckets := service.DefaultBuckets()
	if cfg.Storage.PublicBucket != "" {
		buckets.Public = cfg.Storage.PublicBucket
	}
	if cfg.Storage.PrivateBucket != "" {
		buckets.Private = cfg.Storage.PrivateBucket
	}
	if cfg.Storage.AvatarBucket != "" {
		buckets.Avatars = cfg.Storage.AvatarBucket
	}

	gw := service.NewGateway(
		repository.NewProfileRepository(db),
		repository.NewBatchRepository(db),
		repository.NewModuleRepository(db),
		repository.NewAssignmentRepository(db),
		repository.NewSubmissionRepository(db),
		files, buckets, feed,
	)

	authSvc := service.NewAuthService(repository.NewAuthRepository(db), logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		MinPasswordLength:  cfg.Portal.MinPasswordLength,
	})

	var publisher events.Publisher = events.NewNopPublisher(logr)
	if len(cfg.Events.KafkaBrokers) > 0 {
		kafkaPub, err := events.NewKafkaPublisher(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic)
		if err != nil {
			return fmt.Errorf("init kafka publisher: %w", err)
		}
		publisher = kafkaPub
	}
	defer publisher.Close() //nolint:errcheck

	inbox := service.NewInAppNotificationService(200)
	eventSvc := service.NewEventService(publisher, inbox, metrics, service.EventConfig{
		Workers:    cfg.Events.Workers,
		MaxRetries: cfg.Events.MaxRetries,
		RetryDelay: time.Second,
	}, logr)
	eventSvc.Start(ctx)

	portals := service.NewPortalRegistry(authSvc, gw, eventSvc, cacheSvc, metrics, service.PortalConfig{
		IdleTTL:         cfg.Portal.IdleTTL,
		SweepInterval:   cfg.Portal.SweepInterval,
		NotificationTTL: cfg.Portal.NotificationTTL,
		Store: service.StoreConfig{
			PassingScore: cfg.Portal.AssessmentPassScore,
			SignedURLTTL: cfg.Storage.SignedURLTTL,
		},
	}, logr)
	go portals.Run(ctx)

	handler.SetUploadLimit(cfg.Storage.MaxUploadBytes)
	exports := service.NewExportService(logr, nil, nil, nil)

	r := newRouter(cfg, logr, routerDeps{
		auth:          authSvc,
		portals:       portals,
		metrics:       metrics,
		sessions:      handler.NewSessionHandler(portals, logr),
		admin:         handler.NewAdminHandler(exports, logr),
		batches:       handler.NewBatchHandler(),
		modules:       handler.NewModuleHandler(),
		assignments:   handler.NewAssignmentHandler(),
		applicants:    handler.NewApplicantHandler(exports, logr),
		notifications: handler.NewNotificationHandler(inbox),
		files:         handler.NewFileHandler(files, signer, []string{buckets.Public, buckets.Avatars}, logr),
		health:        handler.NewMetricsHandler(metrics, db, portals),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("http shutdown", zap.Error(err))
	}
	if err := eventSvc.Stop(shutdownCtx); err != nil {
		logr.Warn("event workers did not drain", zap.Error(err))
	}
	if closer, ok := feed.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logr.Warn("close change feed", zap.Error(err))
		}
	}
	return nil
}

func newObjectStore(cfg *config.Config, signer *storage.SignedURLSigner, logr *zap.Logger) (storage.ObjectStore, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverMinIO:
		store, err := storage.NewMinIOStorage(storage.MinIOConfig{
			Endpoint:      cfg.Storage.MinIO.Endpoint,
			AccessKey:     cfg.Storage.MinIO.AccessKey,
			SecretKey:     cfg.Storage.MinIO.SecretKey,
			Region:        cfg.Storage.MinIO.Region,
			UseSSL:        cfg.Storage.MinIO.UseSSL,
			PublicBaseURL: cfg.Storage.PublicBaseURL,
		}, logr)
		if err != nil {
			return nil, fmt.Errorf("init minio storage: %w", err)
		}
		return store, nil
	default:
		store, err := storage.NewLocalStorage(cfg.Storage.BaseDir, cfg.Storage.PublicBaseURL, signer)
		if err != nil {
			return nil, fmt.Errorf("init local storage: %w", err)
		}
		return store, nil
	}
}

func newFeed(ctx context.Context, cfg *config.Config, client *redis.Client, logr *zap.Logger) (realtime.Feed, error) {
	switch cfg.Realtime.Driver {
	case config.RealtimeDriverRedis:
		feed, err := realtime.NewRedisFeed(client, cfg.Realtime.Channel, logr)
		if err != nil {
			return nil, fmt.Errorf("init redis feed: %w", err)
		}
		if err := feed.Start(ctx); err != nil {
			return nil, fmt.Errorf("subscribe %s: %w", cfg.Realtime.Channel, err)
		}
		return feed, nil
	default:
		feed, err := realtime.NewPostgresFeed(database.DSN(cfg.Database), cfg.Realtime.Channel, cfg.Realtime.MinReconnect, cfg.Realtime.MaxReconnect, logr)
		if err != nil {
			return nil, fmt.Errorf("init postgres feed: %w", err)
		}
		go feed.Run(ctx)
		return feed, nil
	}
}
