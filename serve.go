package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/scamshield/internal/config"
	"github.com/example/scamshield/internal/grpcclient"
	"github.com/example/scamshield/internal/handlers"
	"github.com/example/scamshield/internal/kvstore"
	"github.com/example/scamshield/internal/logging"
	"github.com/example/scamshield/internal/repository"
	"github.com/example/scamshield/internal/scanner"
	"github.com/example/scamshield/internal/session"
	"github.com/example/scamshield/internal/web"
)

const sweepInterval = time.Minute

// NewServeCmd starts the HTTP server.
func NewServeCmd() *cobra.Command {
	var (
		configPath string
		addr       string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the landing page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			verbose, _ := cmd.Flags().GetBool("verbose")
			return runServe(cmd.Context(), configPath, addr, verbose)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides http_addr)")
	return cmd
}

func runServe(ctx context.Context, configPath, addr string, verbose bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if addr != "" {
		cfg.HTTPAddr = addr
	}

	logger, err := logging.NewLogger(verbose)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	initCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	store, closeStore, err := initStore(initCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	svc, scans, closeScanner, err := initScanner(initCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeScanner()

	sessions := session.NewManager(store, svc, nil, cfg.SessionTTL, logger)
	defer sessions.Close()
	issuer, err := session.NewIssuer(cfg.SessionSecret, cfg.SessionAudience, cfg.SessionTTL, nil)
	if err != nil {
		return err
	}

	var routeOpts []handlers.Option
	if scans != nil {
		routeOpts = append(routeOpts, handlers.WithScanLookup(scans))
	}
	r, err := newRouter(gin.Default(), cfg, sessions, issuer, logger, routeOpts...)
	if err != nil {
		return err
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go sessions.Run(sweepCtx, sweepInterval)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("ScamShield++ listening", zap.String("addr", cfg.HTTPAddr), zap.Duration("scan_delay", cfg.ScanDelay))
	return serveHTTPServer(server, cfg.ShutdownTimeout, logger)
}

func newRouter(r *gin.Engine, cfg *config.Config, sessions *session.Manager, issuer *session.Issuer, logger *zap.Logger, opts ...handlers.Option) (*gin.Engine, error) {
	tmpl, err := web.Templates()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	r.SetHTMLTemplate(tmpl)
	r.MaxMultipartMemory = cfg.MaxUploadSize
	handlers.RegisterRoutes(r, sessions, session.Middleware(sessions, issuer, cfg.SecureCookies), logger, cfg.MaxUploadSize, opts...)
	return r, nil
}

func initStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (kvstore.Store, func(), error) {
	if cfg.StoreBackend != config.StoreRedis {
		logger.Info("using in-memory sentinel store")
		return kvstore.NewMemoryStore(nil), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, logging.NewOperationError("main.init_redis", "", err)
	}
	return kvstore.NewRedisStore(client), func() { client.Close() }, nil
}

// initScanner builds the scan service. When a database is configured it also
// returns the repository that serves recorded scans.
func initScanner(ctx context.Context, cfg *config.Config, logger *zap.Logger) (scanner.Service, handlers.ScanLookup, func(), error) {
	delay := scanner.NewDelayScanner(nil, cfg.ScanDelay)
	var (
		live    scanner.Service = delay
		closers []func()
	)

	if cfg.ScannerAddr != "" {
		remote, conn, err := grpcclient.DialScanner(ctx, cfg.ScannerAddr, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		live = remote
		closers = append(closers, func() { conn.Close() })
	}

	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	var svc scanner.Service = scanner.Mux{Demo: delay, Live: live}
	if cfg.DatabaseDSN == "" {
		return svc, nil, closeAll, nil
	}

	db, err := initDatabase(ctx, cfg.DatabaseDSN)
	if err != nil {
		closeAll()
		return nil, nil, nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		closers = append(closers, func() { sqlDB.Close() })
	}
	repo := repository.NewScanRepository(db, logger)
	if err := repo.AutoMigrate(ctx); err != nil {
		closeAll()
		return nil, nil, nil, err
	}
	audited := scanner.NewAudited(svc, repo, logger)
	// Pending records must land before the database closes.
	closers = append([]func(){audited.Wait}, closers...)
	return audited, repo, closeAll, nil
}

func initDatabase(ctx context.Context, dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		return nil, logging.NewOperationError("main.init_database", "", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, logging.NewOperationError("main.init_database", "", err)
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, logging.NewOperationError("main.init_database", "", err)
	}
	return db, nil
}
