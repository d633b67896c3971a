package repository

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/scamshield/internal/logging"
	"github.com/example/scamshield/internal/retry"
)

// ErrScanNotFound is returned when no scan log matches the requested ID.
var ErrScanNotFound = errors.New("repository: scan not found")

// ScanLog represents a completed scan.
type ScanLog struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	ScanID    string    `gorm:"column:scan_id;uniqueIndex;size:64" json:"scan_id"`
	SessionID string    `gorm:"column:session_id;index;size:64" json:"-"`
	Kind      string    `gorm:"column:kind;size:16" json:"kind"`
	Target    string    `gorm:"column:target;size:2048" json:"target"`
	Demo      bool      `gorm:"column:demo" json:"demo"`
	Verdict   string    `gorm:"column:verdict;size:32" json:"verdict"`
	Score     float32   `gorm:"column:score" json:"score"`
	Details   string    `gorm:"column:details;type:text" json:"details"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

// TableName overrides the default table name.
func (ScanLog) TableName() string {
	return "scan_logs"
}

// ScanRepository provides persistence APIs for scan logs.
type ScanRepository struct {
	db             *gorm.DB
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewScanRepository creates a new repository instance.
func NewScanRepository(db *gorm.DB, logger *zap.Logger) *ScanRepository {
	return &ScanRepository{
		db:             db,
		logger:         logger.Named("scan_repository"),
		retryAttempts:  retry.DefaultPolicy.Attempts,
		initialBackoff: retry.DefaultPolicy.InitialBackoff,
		maxBackoff:     retry.DefaultPolicy.MaxBackoff,
	}
}

// AutoMigrate ensures the schema is available.
func (r *ScanRepository) AutoMigrate(ctx context.Context) error {
	return r.executeWithRetry(ctx, "repository.auto_migrate", "", func() error {
		return r.db.WithContext(ctx).AutoMigrate(&ScanLog{})
	})
}

// SaveScan persists a scan log entry.
func (r *ScanRepository) SaveScan(ctx context.Context, log *ScanLog) error {
	return r.executeWithRetry(ctx, "repository.save_scan", log.ScanID, func() error {
		return r.db.WithContext(ctx).Create(log).Error
	})
}

// FindByScanID retrieves the scan log with the given scan ID. An unknown ID
// yields ErrScanNotFound.
func (r *ScanRepository) FindByScanID(ctx context.Context, scanID string) (*ScanLog, error) {
	var (
		log     ScanLog
		missing bool
	)
	err := r.executeWithRetry(ctx, "repository.find_scan", scanID, func() error {
		err := r.db.WithContext(ctx).First(&log, "scan_id = ?", scanID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			missing = true
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if missing {
		return nil, logging.NewOperationError("repository.find_scan", scanID, ErrScanNotFound)
	}
	return &log, nil
}

func (r *ScanRepository) executeWithRetry(ctx context.Context, operation, requestID string, fn func() error) error {
	policy := retry.Policy{
		Attempts:       r.retryAttempts,
		InitialBackoff: r.initialBackoff,
		MaxBackoff:     r.maxBackoff,
	}
	return retry.Do(ctx, r.logger, policy, operation, requestID, fn)
}
