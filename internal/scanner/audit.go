package scanner

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/scamshield/internal/logging"
	"github.com/example/scamshield/internal/repository"
)

// Recorder persists completed scans.
type Recorder interface {
	SaveScan(ctx context.Context, log *repository.ScanLog) error
}

// RecordTimeout bounds how long a single scan record may take.
const RecordTimeout = 10 * time.Second

// Audited records every successful scan of the wrapped service. The result
// is returned before the record is written; recording failures are logged
// and do not fail the scan.
type Audited struct {
	next     Service
	recorder Recorder
	logger   *zap.Logger
	wg       sync.WaitGroup
}

// NewAudited wraps next with scan recording.
func NewAudited(next Service, recorder Recorder, logger *zap.Logger) *Audited {
	return &Audited{next: next, recorder: recorder, logger: logger.Named("scan_audit")}
}

// Scan implements Service.
func (a *Audited) Scan(ctx context.Context, in Input) (*Result, error) {
	result, err := a.next.Scan(ctx, in)
	if err != nil {
		return nil, err
	}

	log := &repository.ScanLog{
		ScanID:    result.ScanID,
		SessionID: in.SessionID,
		Kind:      string(result.Kind),
		Target:    result.Target,
		Demo:      result.Demo,
		Verdict:   result.Verdict,
		Score:     result.Score,
		Details:   strings.Join(result.Findings, "\n"),
		CreatedAt: result.CompletedAt,
	}

	// The page cancels its context as soon as it navigates.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), RecordTimeout)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer cancel()
		if err := a.recorder.SaveScan(recordCtx, log); err != nil {
			logging.WithOperation(a.logger, "scanner.audit", in.SessionID).
				Warn("failed to record scan", zap.String("scan_id", log.ScanID), zap.Error(err))
		}
	}()
	return result, nil
}

// Wait blocks until all pending records are written.
func (a *Audited) Wait() {
	a.wg.Wait()
}
