package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/folio/internal/config"
	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/modules/ledger"
	ledgerhandlers "github.com/aristath/folio/internal/modules/ledger/handlers"
	"github.com/aristath/folio/internal/modules/marketdata"
	marketdatahandlers "github.com/aristath/folio/internal/modules/marketdata/handlers"
	"github.com/aristath/folio/internal/modules/portfolio"
	portfoliohandlers "github.com/aristath/folio/internal/modules/portfolio/handlers"
	"github.com/aristath/folio/internal/modules/snapshots"
	snapshothandlers "github.com/aristath/folio/internal/modules/snapshots/handlers"
	"github.com/aristath/folio/internal/reliability"
	"github.com/aristath/folio/internal/scheduler"
	"github.com/aristath/folio/internal/server"
	"github.com/aristath/folio/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting Folio")

	// Open databases: the portfolio database carries the financial record
	// and runs with full durability, the cache database favors speed.
	portfolioDB, err := database.New(database.Config{
		Path:    cfg.PortfolioDBPath(),
		Profile: database.ProfileLedger,
		Name:    "portfolio",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open portfolio database")
	}
	defer portfolioDB.Close()

	cacheDB, err := database.New(database.Config{
		Path:    cfg.CacheDBPath(),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	for _, db := range []*database.DB{portfolioDB, cacheDB} {
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Str("database", db.Name()).Msg("Failed to run migrations")
		}
	}

	// Repositories
	portfolioRepo := portfolio.NewPortfolioRepository(portfolioDB.Conn(), log)
	itemRepo := portfolio.NewItemRepository(portfolioDB.Conn(), log)
	transactionRepo := ledger.NewTransactionRepository(portfolioDB.Conn(), log)
	snapshotRepo := snapshots.NewRepository(portfolioDB.Conn(), log)
	topStocksRepo := marketdata.NewTopStocksRepository(cacheDB.Conn(), log)

	// Services
	ledgerService := ledger.NewService(portfolioDB.Conn(), portfolioRepo, itemRepo, transactionRepo, log)
	snapshotService := snapshots.NewService(portfolioDB.Conn(), snapshotRepo, portfolioRepo, log)

	quoteCache := marketdata.NewCache(cacheDB.Conn(), time.Duration(cfg.QuoteCacheTTL)*time.Second, log)
	quoteClient := marketdata.NewClient(cfg.QuoteProviderURL, log)
	marketService := marketdata.NewService(quoteClient, quoteCache, topStocksRepo, itemRepo, ledgerService, log)

	// Backups cover both databases; S3 upload is enabled when a bucket is set
	var s3Client *reliability.S3Client
	if cfg.BackupS3Bucket != "" {
		s3Client, err = reliability.NewS3Client(context.Background(), cfg.BackupS3Bucket, cfg.BackupS3Region, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize S3 client")
		}
	}
	backupService := reliability.NewBackupService(
		map[string]*sql.DB{
			"portfolio": portfolioDB.Conn(),
			"cache":     cacheDB.Conn(),
		},
		cfg.BackupDir(),
		cfg.BackupRetention,
		s3Client,
		cfg.BackupS3Prefix,
		log,
	)

	// Background jobs
	sched := scheduler.New(log)
	jobs := []struct {
		spec string
		job  scheduler.Job
	}{
		{cfg.PriceSyncSpec, scheduler.NewPriceSyncJob(marketService)},
		{cfg.TopStocksSpec, scheduler.NewTopStocksJob(marketService, cfg.TopStocksLimit)},
		{cfg.SnapshotSpec, scheduler.NewSnapshotJob(snapshotService)},
		{cfg.BackupSpec, scheduler.NewBackupJob(backupService)},
	}
	for _, j := range jobs {
		if err := sched.AddJob(j.spec, j.job); err != nil {
			log.Fatal().Err(err).Str("job", j.job.Name()).Msg("Failed to register job")
		}
	}
	sched.Start()
	defer sched.Stop()

	// HTTP server
	srv := server.New(server.Config{
		Log:         log,
		Cfg:         cfg,
		PortfolioDB: portfolioDB,
		CacheDB:     cacheDB,

		PortfolioHandler:  portfoliohandlers.NewHandler(portfolioRepo, itemRepo, ledgerService, log),
		LedgerHandler:     ledgerhandlers.NewHandler(ledgerService, transactionRepo, log),
		SnapshotHandler:   snapshothandlers.NewHandler(snapshotService, log),
		MarketDataHandler: marketdatahandlers.NewHandler(marketService, cfg.TopStocksLimit, log),
		BackupService:     backupService,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
