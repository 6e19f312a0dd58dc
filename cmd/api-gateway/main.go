package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/uni-timetable-api/api/swagger"
	"github.com/noah-isme/uni-timetable-api/internal/handler"
	internalmiddleware "github.com/noah-isme/uni-timetable-api/internal/middleware"
	"github.com/noah-isme/uni-timetable-api/internal/repository"
	"github.com/noah-isme/uni-timetable-api/internal/service"
	"github.com/noah-isme/uni-timetable-api/pkg/cache"
	"github.com/noah-isme/uni-timetable-api/pkg/config"
	"github.com/noah-isme/uni-timetable-api/pkg/database"
	"github.com/noah-isme/uni-timetable-api/pkg/jobs"
	"github.com/noah-isme/uni-timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/uni-timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/uni-timetable-api/pkg/middleware/requestid"
	"github.com/noah-isme/uni-timetable-api/pkg/storage"
)

// @title University Timetable API
// @version 1.0.0
// @description Generates conflict-free university timetables, stores versioned results and exports them as CSV, XLSX or ICS.
// @BasePath /api/v1
// @schemes http

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(db.DB, logr); err != nil {
			logr.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		redisClient = nil
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Scheduler.SnapshotCacheTTL, logr, cacheRepo.Enabled())
	validate := validator.New()

	timetableRepo := repository.NewTimetableRepository(db)
	sessionRepo := repository.NewTimetableSessionRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)

	handlers := handler.Handlers{
		Metrics: handler.NewMetricsHandler(metricsSvc, map[string]handler.Pinger{
			"postgres": db,
			"redis":    handler.PingFunc(cacheRepo.Ping),
		}),
	}

	if cfg.Scheduler.Enabled {
		generatorCfg, err := service.GeneratorConfig(cfg.Scheduler)
		if err != nil {
			logr.Fatal("invalid scheduler configuration", zap.Error(err))
		}
		loader := service.NewSnapshotLoader(
			repository.NewProgramRepository(db),
			repository.NewSubjectRepository(db),
			teacherRepo,
			repository.NewRoomRepository(db),
			repository.NewDepartmentRepository(db),
			cacheSvc,
			cfg.Scheduler.SnapshotCacheTTL,
			metricsSvc,
			logr,
		)
		timetableSvc := service.NewTimetableService(timetableRepo, sessionRepo, loader, db, validate, metricsSvc, logr, service.TimetableServiceConfig{
			Generator:   generatorCfg,
			ProposalTTL: cfg.Scheduler.ProposalTTL,
		})
		handlers.Timetables = handler.NewTimetableHandler(timetableSvc)
	}

	var queue *jobs.Queue
	if cfg.Exports.Enabled {
		jobSvc, q, err := buildExports(cfg, db, timetableRepo, sessionRepo, cacheSvc, metricsSvc, validate, logr)
		if err != nil {
			logr.Fatal("failed to initialise exports", zap.Error(err))
		}
		queue = q
		queue.Start(ctx)
		jobSvc.RecoverPendingJobs(ctx)
		jobSvc.StartCleanup(ctx)
		handlers.Exports = handler.NewExportHandler(jobSvc)
		logr.Info("exports enabled", zap.String("storage_dir", cfg.Exports.StorageDir), zap.Int("workers", cfg.Exports.WorkerConcurrency))
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc, "/metrics", "/health"))

	handler.RegisterRoutes(r, cfg.APIPrefix, handlers)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
	if queue != nil {
		queue.Stop()
	}
}

func buildExports(
	cfg *config.Config,
	db *sqlx.DB,
	timetables *repository.TimetableRepository,
	sessions *repository.TimetableSessionRepository,
	cacheSvc *service.CacheService,
	metricsSvc *service.MetricsService,
	validate *validator.Validate,
	logr *zap.Logger,
) (*service.ExportJobService, *jobs.Queue, error) {
	store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		return nil, nil, err
	}
	loc, err := time.LoadLocation(cfg.Exports.Timezone)
	if err != nil {
		return nil, nil, fmt.Errorf("load export timezone %q: %w", cfg.Exports.Timezone, err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(timetables, sessions, store, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
		Location:  loc,
	}, logr)

	jobRepo := repository.NewExportJobRepository(db)
	worker := service.NewExportWorker(jobRepo, exportSvc, metricsSvc, logr)
	queue := jobs.NewQueue("exports", worker.Handle, jobs.QueueConfig{
		Workers:     cfg.Exports.WorkerConcurrency,
		MaxRetries:  cfg.Exports.WorkerRetries,
		OnExhausted: worker.MarkFailed,
		Logger:      logr,
	})
	jobSvc := service.NewExportJobService(jobRepo, timetables, queue, exportSvc, cacheSvc, validate, logr, service.ExportJobConfig{
		ResultTTL:       cfg.Exports.SignedURLTTL,
		CleanupInterval: cfg.Exports.CleanupInterval,
	})
	return jobSvc, queue, nil
}
