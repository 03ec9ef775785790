package idempotency_cleanup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubStore struct {
	batches   []int64
	calls     int
	statsErr  error
	deleteErr error
}

func (s *stubStore) DeleteExpired(_ context.Context, _ time.Time, _ int) (int64, error) {
	if s.deleteErr != nil {
		return 0, s.deleteErr
	}
	if s.calls >= len(s.batches) {
		return 0, nil
	}
	n := s.batches[s.calls]
	s.calls++
	return n, nil
}

func (s *stubStore) GetStats(_ context.Context) (int64, int64, error) {
	if s.statsErr != nil {
		return 0, 0, s.statsErr
	}
	return 42, 0, nil
}

func TestRunOnceDrainsBacklogInBatches(t *testing.T) {
	store := &stubStore{batches: []int64{1000, 1000, 300}}
	w := NewWorker(store, "", 1000, zap.NewNop())

	require.NoError(t, w.runOnce(context.Background()))

	// two full batches force another pass; the short batch ends the run
	assert.Equal(t, 3, store.calls)
}

func TestRunOnceStopsAfterShortBatch(t *testing.T) {
	store := &stubStore{batches: []int64{5}}
	w := NewWorker(store, "", 1000, zap.NewNop())

	require.NoError(t, w.runOnce(context.Background()))
	assert.Equal(t, 1, store.calls)
}

func TestRunOncePropagatesDeleteError(t *testing.T) {
	store := &stubStore{deleteErr: errors.New("connection reset")}
	w := NewWorker(store, "", 1000, zap.NewNop())

	err := w.runOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestRunOnceToleratesStatsFailure(t *testing.T) {
	store := &stubStore{batches: []int64{1}, statsErr: errors.New("timeout")}
	w := NewWorker(store, "", 1000, zap.NewNop())

	require.NoError(t, w.runOnce(context.Background()))
}

func TestWorkerDefaults(t *testing.T) {
	w := NewWorker(&stubStore{}, "", 0, zap.NewNop())
	assert.Equal(t, defaultSchedule, w.schedule)
	assert.Equal(t, defaultBatchSize, w.batchSize)
}
