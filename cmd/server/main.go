package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/ogurasousui/hrbank-api/internal/adapters/blobstore/local"
	s3store "github.com/ogurasousui/hrbank-api/internal/adapters/blobstore/s3"
	"github.com/ogurasousui/hrbank-api/internal/adapters/http/handler"
	"github.com/ogurasousui/hrbank-api/internal/adapters/repository/postgres"
	"github.com/ogurasousui/hrbank-api/internal/core/backup"
	"github.com/ogurasousui/hrbank-api/internal/core/blob"
	"github.com/ogurasousui/hrbank-api/internal/core/changelog"
	"github.com/ogurasousui/hrbank-api/internal/core/department"
	"github.com/ogurasousui/hrbank-api/internal/core/employee"
	"github.com/ogurasousui/hrbank-api/internal/platform/config"
	pg "github.com/ogurasousui/hrbank-api/internal/platform/db/postgres"
	"github.com/ogurasousui/hrbank-api/internal/platform/logger"
	"github.com/ogurasousui/hrbank-api/internal/platform/server"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults to CONFIG_PATH env or assets/local.yaml)")
	flag.Parse()

	if err := run(config.ResolvePath(*configPath)); err != nil {
		logger.L().Fatal().Err(err).Msg("server stopped with error")
	}
}

func run(cfgPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	closer, err := logger.Init(logger.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		return err
	}
	defer closer.Close()
	log := logger.L()
	ctx = log.WithContext(ctx)

	dbPool, err := pg.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("initialize database pool: %w", err)
	}
	defer dbPool.Close()

	store, err := newBlobStore(ctx, cfg.Blob)
	if err != nil {
		return fmt.Errorf("initialize blob store: %w", err)
	}

	txManager := pg.NewTransactionManager(dbPool)

	employeeRepo := postgres.NewEmployeeRepository(dbPool)
	departmentRepo := postgres.NewDepartmentRepository(dbPool)
	changeLogRepo := postgres.NewChangeLogRepository(dbPool)
	backupRepo := postgres.NewBackupRepository(dbPool)
	blobRepo := postgres.NewBlobRepository(dbPool)
	deletionRepo := postgres.NewBlobDeletionRepository(dbPool)

	blobSvc := blob.NewService(blobRepo, deletionRepo, store, nil, txManager)
	changeLogSvc := changelog.NewService(changeLogRepo, nil, txManager)
	departmentSvc := department.NewService(departmentRepo, nil, txManager)
	backupSvc := backup.NewService(backupRepo, employeeRepo, blobSvc, nil, txManager, backup.Options{BatchSize: cfg.Backup.BatchSize})
	employeeSvc := employee.NewService(employeeRepo, departmentRepo, changeLogSvc, blobSvc, backupSvc, nil, txManager)

	httpServer := server.New(server.Options{
		ListenAddr:      cfg.Server.ListenAddr,
		BodyLimit:       cfg.Server.BodyLimit,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, handler.Handlers{
		Employees:   handler.NewEmployeeHandler(employeeSvc),
		Departments: handler.NewDepartmentHandler(departmentSvc),
		ChangeLogs:  handler.NewChangeLogHandler(changeLogSvc),
		Backups:     handler.NewBackupHandler(backupSvc),
		Files:       handler.NewFileHandler(blobSvc),
	})

	sweeper := blob.NewSweeper(deletionRepo, store, nil, txManager, blob.SweeperOptions{
		Interval:    cfg.Sweeper.Interval,
		BatchSize:   cfg.Sweeper.BatchSize,
		MaxAttempts: cfg.Sweeper.MaxAttempts,
		MaxBackoff:  cfg.Sweeper.MaxBackoff,
	})
	scheduler := backup.NewScheduler(backupSvc, cfg.Backup.ScheduleInterval)

	log.Info().Str("listen_addr", cfg.Server.ListenAddr).Str("blob_driver", cfg.Blob.Driver).Msg("http server starting")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return httpServer.Run(gctx) })
	g.Go(func() error { return sweeper.Run(gctx) })
	g.Go(func() error { return scheduler.Run(gctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}

func newBlobStore(ctx context.Context, cfg config.BlobConfig) (blob.Store, error) {
	switch cfg.Driver {
	case config.BlobDriverS3:
		return s3store.New(ctx, s3store.Options{
			Bucket:       cfg.S3.Bucket,
			Region:       cfg.S3.Region,
			Prefix:       cfg.S3.Prefix,
			Endpoint:     cfg.S3.Endpoint,
			UsePathStyle: cfg.S3.UsePathStyle,
		})
	default:
		return local.NewStore(cfg.Local.Root)
	}
}
