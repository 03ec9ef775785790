package reconciliation

import (
	"context"
	"sync"
	"time"

	"github.com/vertex-bank/banking_service/pkg/logger"
)

// sweepTimeout bounds a single scheduled sweep
const sweepTimeout = 10 * time.Minute

// Scheduler runs periodic reconciliation sweeps
type Scheduler struct {
	service  *Service
	logger   *logger.Logger
	interval time.Duration

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewScheduler creates a sweep scheduler
func NewScheduler(service *Service, interval time.Duration, log *logger.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{
		service:  service,
		logger:   log,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic sweep loop
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("Starting reconciliation scheduler", "interval", s.interval.String())

	s.wg.Add(1)
	go s.run(ctx)
	return nil
}

// Stop halts the sweep loop and waits for an in-flight sweep to finish
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("Reconciliation scheduler stopped")
	return nil
}

// Shutdown stops the loop, giving an in-flight sweep at most timeout to
// finish
func (s *Scheduler) Shutdown(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		_ = s.Stop()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return context.DeadlineExceeded
	}
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// first sweep right away so a fresh deploy validates the book
	s.executeSweep(ctx)

	for {
		select {
		case <-ticker.C:
			s.executeSweep(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			s.logger.Info("Reconciliation scheduler cancelled")
			return
		}
	}
}

func (s *Scheduler) executeSweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	if _, err := s.service.Sweep(sweepCtx); err != nil {
		s.logger.Error("Scheduled reconciliation sweep failed", "error", err.Error())
	}
}
