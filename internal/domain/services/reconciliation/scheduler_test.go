package reconciliation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertex-bank/banking_service/internal/infrastructure/repositories/memstore"
	"github.com/vertex-bank/banking_service/pkg/logger"
)

func TestSchedulerRunsImmediatelyAndStops(t *testing.T) {
	store := memstore.New()
	svc := NewService(store, store.Accounts(), 10, logger.NewNop())
	seedAccount(t, store, uuid.New(), "0.00")

	sched := NewScheduler(svc, time.Hour, logger.NewNop())
	require.NoError(t, sched.Start(context.Background()))

	// the first sweep fires without waiting for the ticker
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, sched.Stop())

	// idempotent
	require.NoError(t, sched.Stop())
}

func TestSchedulerShutdownHonorsTimeout(t *testing.T) {
	store := memstore.New()
	svc := NewService(store, store.Accounts(), 10, logger.NewNop())

	sched := NewScheduler(svc, time.Hour, logger.NewNop())
	require.NoError(t, sched.Start(context.Background()))

	assert.NoError(t, sched.Shutdown(time.Second))
}

func TestSchedulerStartTwiceIsNoop(t *testing.T) {
	store := memstore.New()
	svc := NewService(store, store.Accounts(), 10, logger.NewNop())

	sched := NewScheduler(svc, time.Hour, logger.NewNop())
	require.NoError(t, sched.Start(context.Background()))
	require.NoError(t, sched.Start(context.Background()))
	require.NoError(t, sched.Stop())
}
