package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/hazemshokry/train-tracking-app/internal/api"
	"github.com/hazemshokry/train-tracking-app/internal/config"
	"github.com/hazemshokry/train-tracking-app/internal/database"
	"github.com/hazemshokry/train-tracking-app/internal/events"
	"github.com/hazemshokry/train-tracking-app/internal/handler"
	"github.com/hazemshokry/train-tracking-app/internal/lock"
	"github.com/hazemshokry/train-tracking-app/internal/logger"
	"github.com/hazemshokry/train-tracking-app/internal/metrics"
	"github.com/hazemshokry/train-tracking-app/internal/reference"
	"github.com/hazemshokry/train-tracking-app/internal/repository"
	"github.com/hazemshokry/train-tracking-app/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("server stopped", "error", err)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	// 初始化数据库
	db, err := database.Open(database.Config{
		Driver: cfg.DBDriver,
		Path:   cfg.DBPath,
		DSN:    cfg.DatabaseURL,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.NewMigrationManager(db, log).RunMigrations(); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	collector := metrics.NewCollector()

	var locker lock.Locker = lock.NewLocalLocker(cfg.LockTimeout)
	if cfg.RedisAddr != "" {
		rl, err := lock.NewRedisLocker(ctx, cfg.RedisAddr, cfg.LockTTL, cfg.LockTimeout, log)
		if err != nil {
			return err
		}
		defer rl.Close()
		locker = rl
		log.Info("using redis locks", "addr", cfg.RedisAddr)
	}

	publisher, err := events.New(cfg.NATSURL, cfg.NATSSubjectPrefix, log, collector)
	if err != nil {
		return err
	}
	defer publisher.Close()

	lookup := reference.NewLookup(repository.NewReferenceRepository(db), db.Root, cfg.ReferenceCacheTTL, cfg.Location)

	deps := service.NewDeps(db, lookup, locker, log, time.Now)
	deps.Events = publisher
	deps.Metrics = collector

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}
	router := api.SetupRouter(cfg, api.Handlers{
		Reports:     handler.NewReportHandler(service.NewReportService(deps)),
		Estimates:   handler.NewEstimateHandler(service.NewEstimateService(deps)),
		Reliability: handler.NewReliabilityHandler(service.NewReliabilityService(deps)),
	}, log, collector)

	srv := &http.Server{
		Addr:              cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// 启动服务器
		log.Info("server starting", "addr", cfg.Port, "db", cfg.DBDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
