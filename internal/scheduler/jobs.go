package scheduler

import (
	"context"
	"time"

	"github.com/aristath/folio/internal/modules/marketdata"
)

// PriceSyncer refreshes held-symbol prices from the quote provider
type PriceSyncer interface {
	SyncPrices(ctx context.Context) (int, error)
}

// TopStocksRefresher replaces the rolling top-stocks window
type TopStocksRefresher interface {
	RefreshTopStocks(ctx context.Context, limit int) ([]marketdata.TopStock, error)
}

// SnapshotCapturer records today's valuation for every portfolio
type SnapshotCapturer interface {
	CaptureAll() (int, error)
}

// BackupRunner produces a consistent database backup
type BackupRunner interface {
	Run(ctx context.Context) error
}

// jobTimeout bounds each background run so a hung provider call cannot
// pile up overlapping executions
const jobTimeout = 10 * time.Minute

// PriceSyncJob refreshes current prices for all held symbols
type PriceSyncJob struct {
	syncer PriceSyncer
}

func NewPriceSyncJob(syncer PriceSyncer) *PriceSyncJob {
	return &PriceSyncJob{syncer: syncer}
}

func (j *PriceSyncJob) Name() string { return "price_sync" }

func (j *PriceSyncJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	_, err := j.syncer.SyncPrices(ctx)
	return err
}

// TopStocksJob refreshes the top-stocks reference window
type TopStocksJob struct {
	refresher TopStocksRefresher
	limit     int
}

func NewTopStocksJob(refresher TopStocksRefresher, limit int) *TopStocksJob {
	return &TopStocksJob{refresher: refresher, limit: limit}
}

func (j *TopStocksJob) Name() string { return "top_stocks_refresh" }

func (j *TopStocksJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	_, err := j.refresher.RefreshTopStocks(ctx, j.limit)
	return err
}

// SnapshotJob captures the daily valuation snapshot for every portfolio
type SnapshotJob struct {
	capturer SnapshotCapturer
}

func NewSnapshotJob(capturer SnapshotCapturer) *SnapshotJob {
	return &SnapshotJob{capturer: capturer}
}

func (j *SnapshotJob) Name() string { return "daily_snapshot" }

func (j *SnapshotJob) Run() error {
	_, err := j.capturer.CaptureAll()
	return err
}

// BackupJob produces the nightly database backup
type BackupJob struct {
	runner BackupRunner
}

func NewBackupJob(runner BackupRunner) *BackupJob {
	return &BackupJob{runner: runner}
}

func (j *BackupJob) Name() string { return "database_backup" }

func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	return j.runner.Run(ctx)
}
