// Package idempotency_cleanup removes expired idempotency records on a cron
// schedule. Records are deleted in bounded batches so a large backlog never
// holds a long-running delete against the hot table.
package idempotency_cleanup

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/vertex-bank/banking_service/pkg/metrics"
)

const (
	defaultSchedule  = "0 * * * *"
	defaultBatchSize = 1000
	runTimeout       = 5 * time.Minute
)

// RecordStore is the slice of the idempotency repository the worker uses
type RecordStore interface {
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int64, error)
	GetStats(ctx context.Context) (total int64, expired int64, err error)
}

type Worker struct {
	records   RecordStore
	cron      *cron.Cron
	logger    *zap.Logger
	schedule  string
	batchSize int
}

func NewWorker(records RecordStore, schedule string, batchSize int, logger *zap.Logger) *Worker {
	if schedule == "" {
		schedule = defaultSchedule
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Worker{
		records:   records,
		cron:      cron.New(),
		logger:    logger,
		schedule:  schedule,
		batchSize: batchSize,
	}
}

func (w *Worker) Start() error {
	_, err := w.cron.AddFunc(w.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()

		if err := w.runOnce(ctx); err != nil {
			w.logger.Error("Failed to cleanup expired idempotency records", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	w.cron.Start()
	w.logger.Info("Idempotency cleanup worker started",
		zap.String("schedule", w.schedule),
		zap.Int("batch_size", w.batchSize))
	return nil
}

// runOnce deletes expired records batch by batch until none remain or the
// run context expires
func (w *Worker) runOnce(ctx context.Context) error {
	started := time.Now()
	var purged int64
	for {
		n, err := w.records.DeleteExpired(ctx, time.Now(), w.batchSize)
		if err != nil {
			return err
		}
		purged += n
		if n < int64(w.batchSize) {
			break
		}
	}
	metrics.IdempotencyRecordsPurged.Add(float64(purged))

	total, expired, err := w.records.GetStats(ctx)
	if err != nil {
		w.logger.Warn("Could not read idempotency record stats", zap.Error(err))
		total, expired = -1, -1
	}
	w.logger.Info("Idempotency cleanup completed",
		zap.Int64("purged", purged),
		zap.Int64("remaining", total),
		zap.Int64("still_expired", expired),
		zap.Duration("duration", time.Since(started)))
	return nil
}

func (w *Worker) Stop() {
	w.cron.Stop()
	w.logger.Info("Idempotency cleanup worker stopped")
}

// Shutdown stops the schedule and waits for an in-flight run to finish,
// bounded by timeout
func (w *Worker) Shutdown(timeout time.Duration) error {
	done := w.cron.Stop()
	select {
	case <-done.Done():
	case <-time.After(timeout):
	}
	w.logger.Info("Idempotency cleanup worker stopped")
	return nil
}
