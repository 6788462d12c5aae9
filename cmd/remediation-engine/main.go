package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"remediation-engine/common/database"
	"remediation-engine/common/logger"
	commonredis "remediation-engine/common/redis"
	"remediation-engine/internal/config"
	"remediation-engine/internal/domain"
	httpapi "remediation-engine/internal/http"
	"remediation-engine/internal/repository"
	"remediation-engine/internal/service"
	"remediation-engine/internal/store"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "remediation-engine")
	if err != nil {
		log, _ = zap.NewProduction()
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisClient := commonredis.NewRedisClient(&cfg.Redis)
	var kv store.KV
	if err := commonredis.Ping(ctx, redisClient); err != nil {
		// Redis 不可用：目录不走缓存，事件不发布
		log.Warn("Redis unavailable, catalog cache and events disabled", zap.Error(err))
	} else {
		kv = store.NewRedisKV(redisClient)
	}

	// Optional DB；不可用时回退到内存 repo（带演示数据）
	var db *sql.DB
	if cfg.DBEnabled {
		if d, err := database.NewPostgresDB(&cfg.Database); err == nil {
			db = d
			log.Info("DB enabled for remediation-engine")
		} else {
			log.Warn("DB enabled but connection failed, falling back to memory repositories", zap.Error(err))
		}
	}

	var (
		jobsRepo    repository.JobsRepository
		catalogRepo repository.CatalogRepository
	)
	if db != nil {
		jobsRepo = repository.NewPostgresJobsRepo(db)
		catalogRepo = repository.NewPostgresCatalogRepo(db)
	} else {
		memJobs := repository.NewMemoryJobsRepo()
		seedDemoJob(memJobs)
		jobsRepo = memJobs
		catalogRepo = repository.NewMemoryCatalogRepo(repository.DefaultCatalog)
	}

	var photoStorage store.PhotoStorage
	if cfg.Storage.S3.Bucket != "" {
		s3Storage, err := store.NewS3PhotoStorage(ctx, cfg.Storage.S3)
		if err != nil {
			log.Fatal("Failed to init S3 photo storage", zap.Error(err))
		}
		photoStorage = s3Storage
	} else {
		log.Warn("PHOTOS_S3_BUCKET not set, using in-memory photo storage")
		photoStorage = store.NewMemoryPhotoStorage(cfg.Storage.MemoryBaseURL)
	}

	var events service.EventPublisher = service.NopEventPublisher{}
	if cfg.Events.Enabled && kv != nil {
		events = service.NewRedisEventPublisher(redisClient, cfg.Events.Stream, cfg.Events.MaxLen, log)
	}

	catalogSvc := service.NewCatalogService(catalogRepo, kv, cfg.Catalog.CacheKey, cfg.Catalog.CacheTTL, log)
	photoSvc := service.NewPhotoService(photoStorage, cfg.Photos.MaxBatchSize, cfg.Photos.UploadConcurrency, log)
	remediationSvc := service.NewRemediationService(jobsRepo, catalogSvc, photoSvc, events, log).
		WithSessionIdleTTL(cfg.Sessions.IdleTTL)
	go remediationSvc.RunSessionSweeper(ctx, cfg.Sessions.SweepInterval)

	accounting := service.NewAccountingClient(cfg.Accounting.BaseURL, cfg.Accounting.MinorVersion, cfg.Accounting.Timeout, log)
	invoiceSvc := service.NewInvoiceService(jobsRepo, accounting, events, log)

	router := httpapi.NewRouter(log)
	router.RegisterHealthRoutes()
	router.RegisterRemediationRoutes(httpapi.NewRemediationHandler(remediationSvc, cfg.Photos.MaxUploadBytes, log))
	router.RegisterInvoiceRoutes(httpapi.NewInvoiceHandler(invoiceSvc, domain.AccountingCredentials{
		AccessToken: cfg.Accounting.AccessToken,
		RealmID:     cfg.Accounting.RealmID,
	}, log))

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		cancel()
	case err := <-errCh:
		log.Error("HTTP server stopped", zap.Error(err))
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	_ = commonredis.Close(redisClient)
	if db != nil {
		_ = database.Close(db)
	}
}

// seedDemoJob 内存模式下的演示 job（未开始，无房间）
func seedDemoJob(repo *repository.MemoryJobsRepo) {
	repo.PutJob(domain.Job{
		JobID: "demo-job-1",
		Customer: domain.Customer{
			Name:  "Demo Homeowner",
			Ref:   "1",
			Email: "homeowner@example.com",
		},
		RemediationRequired: true,
		RemediationStatus:   domain.StatusNotStarted,
		RemediationData:     domain.RemediationData{Rooms: []domain.Room{}},
	})
}
