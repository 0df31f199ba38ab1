package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/study-planner-api/internal/handler"
	"github.com/noah-isme/study-planner-api/internal/models"
	"github.com/noah-isme/study-planner-api/internal/repository"
	"github.com/noah-isme/study-planner-api/internal/service"
	"github.com/noah-isme/study-planner-api/pkg/cache"
	"github.com/noah-isme/study-planner-api/pkg/config"
	"github.com/noah-isme/study-planner-api/pkg/database"
	"github.com/noah-isme/study-planner-api/pkg/export"
	"github.com/noah-isme/study-planner-api/pkg/jobs"
	"github.com/noah-isme/study-planner-api/pkg/logger"
	"github.com/noah-isme/study-planner-api/pkg/storage"
)

// @title Study Planner API
// @version 1.0.0
// @description Deterministic study timetable generation with saved plans and exports
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const (
	shutdownTimeout = 15 * time.Second
	cacheNamespace  = "planner"
)

func main() {
	issue := flag.String("issue-token", "", "print an access token for USER_ID:ROLE and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if *issue != "" {
		if err := issueToken(cfg, *issue); err != nil {
			log.Fatalf("failed to issue token: %v", err)
		}
		return
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		logr.Warn("database unavailable, saved timetables and exports disabled", zap.String("driver", cfg.Database.Driver), zap.Error(err))
		db = nil
	} else {
		defer db.Close() //nolint:errcheck
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		if !errors.Is(err, cache.ErrDisabled) {
			logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		}
		redisClient = nil
	} else {
		defer redisClient.Close() //nolint:errcheck
	}

	metricsSvc := service.NewMetricsService()
	tokens := service.NewTokenService(service.TokenConfig{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
		Expiry: cfg.JWT.Expiration,
	})
	cacheSvc := service.NewCacheService(
		repository.NewCacheRepository(redisClient, cacheNamespace, logr),
		metricsSvc,
		cfg.Planner.CacheTTL,
		logr,
		redisClient != nil,
	)

	validate := validator.New()
	timetableSvc := service.NewTimetableService(
		repository.NewTimetableRepository(db),
		cacheSvc,
		metricsSvc,
		validate,
		logr,
		service.TimetableServiceConfig{
			Enabled:        cfg.Planner.Enabled,
			Persist:        cfg.Planner.Persist && db != nil,
			CacheTTL:       cfg.Planner.CacheTTL,
			MaxEvents:      cfg.Planner.MaxEvents,
			MaxTopics:      cfg.Planner.MaxTopics,
			MaxEffortHours: cfg.Planner.MaxEffortHours,
			SampleFixture:  cfg.Planner.SampleFixture,
		},
	)

	g, gctx := errgroup.WithContext(ctx)

	var exportHandler *handler.ExportHandler
	var queue *jobs.Queue
	if cfg.Exports.Enabled && db != nil {
		exportHandler, queue, err = startExports(gctx, cfg, db, timetableSvc, metricsSvc, logr)
		if err != nil {
			return err
		}
		defer queue.Stop()
	}

	checks := map[string]handler.Pinger{"database": nil, "redis": nil}
	if db != nil {
		checks["database"] = db
	}
	if redisClient != nil {
		checks["redis"] = redisPinger(redisClient)
	}
	var stats handler.QueueStats
	if queue != nil {
		stats = queue
	}

	router := newRouter(routerDeps{
		cfg:        cfg,
		logger:     logr,
		metrics:    metricsSvc,
		tokens:     tokens,
		timetables: handler.NewTimetableHandler(timetableSvc),
		exports:    exportHandler,
		system:     handler.NewMetricsHandler(metricsSvc, checks, stats),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logr.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func startExports(ctx context.Context, cfg *config.Config, db *sqlx.DB, timetables *service.TimetableService, metrics *service.MetricsService, logr *zap.Logger) (*handler.ExportHandler, *jobs.Queue, error) {
	store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		return nil, nil, fmt.Errorf("init export storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exporter := service.NewExportService(
		timetables,
		store,
		signer,
		service.ExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Exports.SignedURLTTL},
		logr,
		export.NewCSVExporter(0),
		export.NewPDFExporter(),
	)

	repo := repository.NewExportJobRepository(db)
	worker := service.NewExportWorker(repo, exporter, metrics, cfg.Exports.WorkerRetries, logr)
	queue := jobs.NewQueue("timetable-exports", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
		RetryDelay: 2 * time.Second,
		Logger:     logr,
	})
	queue.Start(ctx)

	jobsSvc := service.NewExportJobService(repo, timetables, queue, exporter, metrics, logr, service.ExportJobServiceConfig{
		ResultTTL:       cfg.Exports.SignedURLTTL,
		CleanupInterval: cfg.Exports.CleanupInterval,
	})
	jobsSvc.RecoverPendingJobs(ctx)
	jobsSvc.StartCleanup(ctx)

	return handler.NewExportHandler(jobsSvc), queue, nil
}

func redisPinger(client *redis.Client) handler.PingFunc {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

func issueToken(cfg *config.Config, arg string) error {
	userID, role, ok := strings.Cut(arg, ":")
	if !ok || userID == "" {
		return fmt.Errorf("expected USER_ID:ROLE, got %q", arg)
	}
	userRole := models.UserRole(strings.ToUpper(role))
	switch userRole {
	case models.RoleLearner, models.RoleTutor, models.RoleAdmin:
	default:
		return fmt.Errorf("unknown role %q", role)
	}
	tokens := service.NewTokenService(service.TokenConfig{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
		Expiry: cfg.JWT.Expiration,
	})
	token, expiresAt, err := tokens.Issue(userID, userRole, "", "")
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "%s\n# expires %s\n", token, expiresAt.Format(time.RFC3339))
	return nil
}
