package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"storagebridge/offchain/internal/config"
	"storagebridge/offchain/internal/database"
	"storagebridge/offchain/internal/settlement"
)

// Constants for worker configuration
const (
	SweepTimeout   = 30 * time.Second
	SweepBatchSize = 100
)

// Manager runs the background reconciler that resolves stuck pending records
type Manager struct {
	db     *database.DB
	cfg    *config.Config
	logger *zap.Logger

	reconciler *Reconciler

	// Control
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a new worker manager
func NewManager(
	db *database.DB,
	cfg *config.Config,
	source settlement.StatusSource,
	logger *zap.Logger,
) *Manager {
	logger = logger.Named("worker")

	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		db:     db,
		cfg:    cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	m.reconciler = NewReconciler(m, source)

	return m
}

// Start starts all worker goroutines
func (m *Manager) Start() {
	if !m.cfg.Reconciler.Enabled {
		m.logger.Info("Reconciler disabled, no workers started")
		return
	}

	m.logger.Info("Starting worker manager",
		zap.Duration("interval", m.cfg.Reconciler.Interval),
		zap.Duration("grace_period", m.cfg.Reconciler.GracePeriod))

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.reconciler.Run(m.ctx)
	}()

	m.logger.Info("Worker manager started")
}

// Shutdown gracefully stops all workers
func (m *Manager) Shutdown(timeout time.Duration) error {
	m.logger.Info("Shutting down worker manager")

	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("Workers stopped gracefully")
	case <-time.After(timeout):
		m.logger.Warn("Worker shutdown timed out")
	}

	m.logger.Info("Worker manager shutdown complete")
	return nil
}
