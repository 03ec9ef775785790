package graceful

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vertex-bank/banking_service/pkg/logger"
)

const defaultTimeout = 30 * time.Second

type Shutdowner interface {
	Shutdown(timeout time.Duration) error
}

// ShutdownManager drains the service on SIGINT/SIGTERM: first background
// workers, then the HTTP server, then deferred cleanups, then the database.
type ShutdownManager struct {
	server      *http.Server
	db          *sql.DB
	shutdowners []Shutdowner
	cleanups    []namedCleanup
	logger      *logger.Logger
	timeout     time.Duration
}

type namedCleanup struct {
	name string
	fn   func(context.Context) error
}

func NewShutdownManager(server *http.Server, db *sql.DB, logger *logger.Logger) *ShutdownManager {
	return &ShutdownManager{
		server:      server,
		db:          db,
		shutdowners: make([]Shutdowner, 0),
		logger:      logger,
		timeout:     defaultTimeout,
	}
}

// Register adds a component stopped before the HTTP server
func (sm *ShutdownManager) Register(s Shutdowner) {
	sm.shutdowners = append(sm.shutdowners, s)
}

// RegisterCleanup adds a cleanup run after the server drains, e.g. flushing
// the trace exporter
func (sm *ShutdownManager) RegisterCleanup(name string, fn func(context.Context) error) {
	sm.cleanups = append(sm.cleanups, namedCleanup{name: name, fn: fn})
}

func (sm *ShutdownManager) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	sm.logger.Info("Shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
	defer cancel()

	for _, s := range sm.shutdowners {
		if err := s.Shutdown(sm.timeout); err != nil {
			sm.logger.Warn("Component shutdown error", "error", err)
		}
	}

	if err := sm.server.Shutdown(ctx); err != nil {
		sm.logger.Error("Server forced shutdown", "error", err)
	}

	for _, c := range sm.cleanups {
		if err := c.fn(ctx); err != nil {
			sm.logger.Warn("Cleanup error", "name", c.name, "error", err)
		}
	}

	if err := sm.db.Close(); err != nil {
		sm.logger.Warn("Database close error", "error", err)
	}

	sm.logger.Info("Shutdown complete")
}
