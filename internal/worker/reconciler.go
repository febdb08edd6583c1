package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"storagebridge/offchain/internal/metrics"
	"storagebridge/offchain/internal/models"
	"storagebridge/offchain/internal/settlement"
)

// PendingStore is the slice of the record store the reconciler sweeps.
// *database.DB implements it.
type PendingStore interface {
	GetPendingIngestionsOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]models.IngestionRecord, error)
	RecordIngestionError(ctx context.Context, id, errorMsg string) error
	MarkIngestionFailed(ctx context.Context, id, reason string) error
}

// Reconciler periodically inspects pending ingestion records older than the
// grace period and resolves them: records whose settlement never confirmed
// within the attempt budget are marked failed, settled ones are left pending
// and logged so the owner can resubmit (payload bytes are not retained, and
// ingestion is idempotent under identical owner+content). Records are never
// deleted.
type Reconciler struct {
	manager *Manager
	store   PendingStore
	source  settlement.StatusSource
	logger  *zap.Logger
}

// NewReconciler creates a new pending-record reconciler
func NewReconciler(manager *Manager, source settlement.StatusSource) *Reconciler {
	return &Reconciler{
		manager: manager,
		store:   manager.db,
		source:  source,
		logger:  manager.logger.Named("reconciler"),
	}
}

// Run starts the reconciler polling loop
func (r *Reconciler) Run(ctx context.Context) {
	interval := r.manager.cfg.Reconciler.Interval
	r.logger.Info("Reconciler started",
		zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Initial sweep
	r.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Reconciler stopping")
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

// sweep executes one reconciliation cycle
func (r *Reconciler) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, SweepTimeout)
	defer cancel()

	metrics.ReconcilerSweepsTotal.Inc()

	cutoff := time.Now().Add(-r.manager.cfg.Reconciler.GracePeriod)
	records, err := r.store.GetPendingIngestionsOlderThan(sweepCtx, cutoff, SweepBatchSize)
	if err != nil {
		r.logger.Error("Failed to load pending records", zap.Error(err))
		return
	}

	if len(records) == 0 {
		return
	}

	r.logger.Info("Sweeping stale pending records", zap.Int("count", len(records)))

	// One settlement snapshot per distinct transfer per sweep
	statuses := make(map[string]*settlement.TransferStatus)

	for i := range records {
		select {
		case <-sweepCtx.Done():
			return
		default:
		}

		r.reconcile(sweepCtx, &records[i], statuses)
	}
}

// reconcile resolves one stale pending record
func (r *Reconciler) reconcile(ctx context.Context, record *models.IngestionRecord, statuses map[string]*settlement.TransferStatus) {
	maxAttempts := r.manager.cfg.Reconciler.MaxAttempts

	if record.AttemptCount >= maxAttempts {
		r.logger.Warn("Pending record exhausted its attempts, marking failed",
			zap.String("id", record.ID),
			zap.Int("attempts", record.AttemptCount))

		if err := r.store.MarkIngestionFailed(ctx, record.ID, "abandoned after repeated failed attempts"); err != nil {
			r.logger.Error("Failed to mark record failed",
				zap.String("id", record.ID),
				zap.Error(err))
			return
		}
		metrics.ReconciledFailuresTotal.Inc()
		return
	}

	if record.TransferRef == nil {
		// Ungated record stuck before its storage write; only age can fail it.
		r.noteAttempt(ctx, record, "pending without settlement gate, awaiting resubmission")
		return
	}

	transferRef := *record.TransferRef
	status, seen := statuses[transferRef]
	if !seen {
		queried, err := r.source.Status(ctx, transferRef)
		if err != nil {
			r.logger.Debug("Settlement snapshot failed",
				zap.String("transfer_ref", transferRef),
				zap.Error(err))
			r.noteAttempt(ctx, record, "settlement status unavailable")
			return
		}
		metrics.SettlementPollsTotal.Inc()
		statuses[transferRef] = queried
		status = queried
	}

	settled := status.Fulfilled || (status.Executed && r.manager.cfg.Settlement.AcceptExecuted)
	if settled {
		// The payment landed but the upload never finished. The payload is
		// not retained server-side, so completion requires the owner to
		// resubmit; idempotency makes that safe.
		r.logger.Info("Settled transfer with unfinished upload, awaiting resubmission",
			zap.String("id", record.ID),
			zap.String("transfer_ref", transferRef),
			zap.String("owner_id", record.OwnerID))
		r.noteAttempt(ctx, record, "settlement confirmed, upload incomplete, awaiting resubmission")
		return
	}

	r.noteAttempt(ctx, record, "settlement still unconfirmed")
}

func (r *Reconciler) noteAttempt(ctx context.Context, record *models.IngestionRecord, note string) {
	if err := r.store.RecordIngestionError(ctx, record.ID, note); err != nil {
		r.logger.Error("Failed to update pending record",
			zap.String("id", record.ID),
			zap.Error(err))
	}
}
