package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cosmossdk.io/math"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"storagebridge/offchain/internal/config"
	"storagebridge/offchain/internal/database"
	"storagebridge/offchain/internal/models"
	"storagebridge/offchain/internal/settlement"
	"storagebridge/offchain/internal/storage"
)

// RecordStore is the persistence surface the coordinator needs. *database.DB
// implements it; tests substitute an in-memory fake that enforces the same
// uniqueness constraints.
type RecordStore interface {
	CreateIngestion(ctx context.Context, record *models.IngestionRecord) error
	GetIngestion(ctx context.Context, id string) (*models.IngestionRecord, error)
	GetIngestionByContentAddress(ctx context.Context, address string) (*models.IngestionRecord, error)
	GetStoredIngestionByOwnerAndHash(ctx context.Context, ownerID, contentHash string) (*models.IngestionRecord, error)
	GetStoredIngestionByTransferRef(ctx context.Context, transferRef string) (*models.IngestionRecord, error)
	MarkIngestionStored(ctx context.Context, id, contentAddress, providerRef string, sizeBytes int64) error
	RecordIngestionError(ctx context.Context, id, errorMsg string) error
	ListIngestionsByOwner(ctx context.Context, ownerID string, limit, offset int) ([]models.IngestionRecord, error)
}

// ContentStore is the storage network boundary. *storage.Client implements it.
type ContentStore interface {
	Put(ctx context.Context, data []byte, metadata map[string]string) (*storage.PutResult, error)
	Get(ctx context.Context, address string) ([]byte, error)
}

// SettlementWaiter blocks until a transfer reaches a terminal state or times
// out. *settlement.Watcher implements it.
type SettlementWaiter interface {
	Await(ctx context.Context, transferRef string, opts settlement.WaitOptions) (*settlement.WaitResult, error)
}

// IngestParams is one ingestion request
type IngestParams struct {
	OwnerID       string
	Payload       []byte
	DeclaredHash  string // optional; rejected on mismatch with the computed hash
	TransferRef   string // settlement transfer the ingestion is gated on
	PaymentAmount math.Int
}

// IngestResult is the caller-visible outcome of a completed ingestion
type IngestResult struct {
	ID             string
	ContentAddress string
	Status         models.IngestionStatus
	Reused         bool // true when an earlier stored record satisfied the request
}

// IngestService coordinates one ingestion: it gates the storage write on
// settlement confirmation and durably records the causal link between the
// payment and the content address.
type IngestService struct {
	records RecordStore
	store   ContentStore
	waiter  SettlementWaiter
	cfg     *config.Config
	logger  *zap.Logger
}

// NewIngestService creates a new ingestion coordinator
func NewIngestService(
	records RecordStore,
	store ContentStore,
	waiter SettlementWaiter,
	cfg *config.Config,
	logger *zap.Logger,
) *IngestService {
	return &IngestService{
		records: records,
		store:   store,
		waiter:  waiter,
		cfg:     cfg,
		logger:  logger.Named("ingest"),
	}
}

// Ingest validates a (payment proof, payload, owner) triple, confirms the
// settlement transfer, writes the payload to the storage network, and
// finalizes the record. Settlement confirmation strictly precedes the storage
// write.
//
// Failures after the pending record is persisted leave it in place for
// reconciliation; nothing in this call retries beyond the single bounded
// settlement wait.
func (s *IngestService) Ingest(ctx context.Context, params IngestParams) (*IngestResult, error) {
	// 1. Validate before any record is created or external call is made.
	if err := s.validate(params); err != nil {
		return nil, err
	}

	// 2. Content hash over the raw payload.
	contentHash, err := storage.ContentHash(params.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to compute content hash: %w", err)
	}
	if params.DeclaredHash != "" && params.DeclaredHash != contentHash {
		return nil, integrityMismatch("declared hash %s does not match payload hash %s",
			params.DeclaredHash, contentHash)
	}

	// 3. Idempotency: identical owner+content returns the earlier result
	// without re-paying or re-uploading.
	existing, err := s.records.GetStoredIngestionByOwnerAndHash(ctx, params.OwnerID, contentHash)
	if err != nil {
		return nil, fmt.Errorf("idempotency lookup failed: %w", err)
	}
	if existing != nil {
		s.logger.Info("Ingestion already stored, returning existing record",
			zap.String("id", existing.ID),
			zap.String("owner_id", params.OwnerID),
			zap.String("content_hash", contentHash))
		return resultFrom(existing, true), nil
	}

	// 4. Persist the pending record before any blocking call so a crash from
	// here on leaves resumable state.
	record := &models.IngestionRecord{
		ID:            uuid.NewString(),
		OwnerID:       params.OwnerID,
		ContentHash:   contentHash,
		PaymentAmount: params.PaymentAmount.String(),
		Status:        models.IngestionStatusPending,
	}
	if params.TransferRef != "" {
		ref := params.TransferRef
		record.TransferRef = &ref
	}
	if err := s.records.CreateIngestion(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to persist pending record: %w", err)
	}

	s.logger.Info("Ingestion accepted",
		zap.String("id", record.ID),
		zap.String("owner_id", params.OwnerID),
		zap.String("transfer_ref", params.TransferRef),
		zap.Int("size_bytes", len(params.Payload)))

	// 5.–6. Settlement gate and replay pre-check.
	if params.TransferRef != "" {
		if err := s.gateOnSettlement(ctx, record, params.TransferRef); err != nil {
			return nil, err
		}
	}

	// 7. Storage write, only after settlement confirmed.
	putResult, err := s.store.Put(ctx, params.Payload, map[string]string{
		"owner":        params.OwnerID,
		"content-hash": contentHash,
	})
	if err != nil {
		s.recordFailure(ctx, record.ID, err)
		return nil, storageWriteFailed(err)
	}

	// 8. Finalize. The partial unique indexes are the authority on replay and
	// duplicate content under concurrency.
	err = s.records.MarkIngestionStored(ctx, record.ID, putResult.Address, putResult.ProviderRef, int64(len(params.Payload)))
	if err != nil {
		switch {
		case errors.Is(err, database.ErrTransferRedeemed):
			s.recordFailure(ctx, record.ID, err)
			return nil, transferRedeemed(params.TransferRef)
		case errors.Is(err, database.ErrDuplicateContent):
			// A concurrent ingestion of the same content won the race. The
			// storage write was idempotent, so resolve to the winning record.
			winner, lookupErr := s.records.GetStoredIngestionByOwnerAndHash(ctx, params.OwnerID, contentHash)
			if lookupErr == nil && winner != nil {
				s.recordFailure(ctx, record.ID, err)
				return resultFrom(winner, true), nil
			}
			return nil, fmt.Errorf("failed to resolve duplicate content record: %w", err)
		case errors.Is(err, database.ErrRecordNotPending):
			// The reconciler abandoned this record while the ingest was in
			// flight. The blob write was idempotent; a resubmission starts a
			// fresh record and redeems the transfer normally.
			return nil, fmt.Errorf("record %s abandoned before finalize, resubmit the ingestion: %w", record.ID, err)
		default:
			return nil, fmt.Errorf("failed to finalize record: %w", err)
		}
	}

	s.logger.Info("Ingestion completed",
		zap.String("id", record.ID),
		zap.String("content_address", putResult.Address),
		zap.String("provider_ref", putResult.ProviderRef))

	return &IngestResult{
		ID:             record.ID,
		ContentAddress: putResult.Address,
		Status:         models.IngestionStatusStored,
	}, nil
}

// ListByOwner retrieves an owner's ingestion records, most recent first
func (s *IngestService) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]models.IngestionRecord, error) {
	if ownerID == "" {
		return nil, invalidRequest("owner_id is required")
	}
	records, err := s.records.ListIngestionsByOwner(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	return records, nil
}

// GetRecord retrieves an ingestion record by id
func (s *IngestService) GetRecord(ctx context.Context, id string) (*models.IngestionRecord, error) {
	record, err := s.records.GetIngestion(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	if record == nil {
		return nil, notFound("no ingestion record with id %s", id)
	}
	return record, nil
}

func (s *IngestService) validate(params IngestParams) error {
	if params.OwnerID == "" {
		return invalidRequest("owner_id is required")
	}
	if len(params.Payload) == 0 {
		return invalidRequest("payload must not be empty")
	}
	if int64(len(params.Payload)) > s.cfg.Storage.MaxBlobBytes {
		return invalidRequest("payload of %d bytes exceeds size limit %d",
			len(params.Payload), s.cfg.Storage.MaxBlobBytes)
	}
	if params.PaymentAmount.IsNil() || !params.PaymentAmount.IsPositive() {
		return invalidRequest("payment_amount must be a positive integer")
	}
	if params.TransferRef == "" && s.cfg.Settlement.RequireTransfer {
		return invalidRequest("transfer_ref is required")
	}
	return nil
}

// gateOnSettlement rejects already-redeemed transfers, then blocks until the
// transfer reaches a satisfactory terminal state or the wait budget runs out.
func (s *IngestService) gateOnSettlement(ctx context.Context, record *models.IngestionRecord, transferRef string) error {
	redeemed, err := s.records.GetStoredIngestionByTransferRef(ctx, transferRef)
	if err != nil {
		return fmt.Errorf("replay lookup failed: %w", err)
	}
	if redeemed != nil && redeemed.ID != record.ID {
		s.recordFailure(ctx, record.ID, fmt.Errorf("transfer %s already redeemed", transferRef))
		return transferRedeemed(transferRef)
	}

	result, err := s.waiter.Await(ctx, transferRef, settlement.WaitOptions{
		Timeout:        s.cfg.Settlement.WaitTimeout,
		PollInterval:   s.cfg.Settlement.PollInterval,
		AcceptExecuted: s.cfg.Settlement.AcceptExecuted,
	})
	if err != nil {
		// Cancellation aborts the call but never rolls back the pending
		// record; the transfer may still complete and be reconciled later.
		s.recordFailure(ctx, record.ID, err)
		return fmt.Errorf("settlement wait aborted: %w", err)
	}

	if result.Outcome == settlement.OutcomeTimedOut {
		s.recordFailure(ctx, record.ID, fmt.Errorf("settlement wait timed out after %s", s.cfg.Settlement.WaitTimeout))
		return paymentNotConfirmed("transfer %s not confirmed within %s", transferRef, s.cfg.Settlement.WaitTimeout)
	}

	// The settlement system is queried directly rather than trusting the
	// caller's assertion; when a deposit address is configured the transfer
	// must actually pay it.
	if s.cfg.Settlement.DepositAddress != "" && result.Status.Recipient != "" &&
		!strings.EqualFold(result.Status.Recipient, s.cfg.Settlement.DepositAddress) {
		s.recordFailure(ctx, record.ID, fmt.Errorf("transfer recipient %s does not match deposit address", result.Status.Recipient))
		return paymentNotConfirmed("transfer %s does not pay the configured deposit address", transferRef)
	}

	s.logger.Info("Settlement confirmed",
		zap.String("id", record.ID),
		zap.String("transfer_ref", transferRef),
		zap.String("outcome", string(result.Outcome)))

	return nil
}

func (s *IngestService) recordFailure(ctx context.Context, id string, cause error) {
	// Best effort: the primary error is what the caller needs to see. Detach
	// from the request context so a cancelled wait can still leave its trace.
	ctx = context.WithoutCancel(ctx)
	if err := s.records.RecordIngestionError(ctx, id, cause.Error()); err != nil {
		s.logger.Error("Failed to record ingestion error",
			zap.String("id", id),
			zap.Error(err))
	}
}

func resultFrom(record *models.IngestionRecord, reused bool) *IngestResult {
	result := &IngestResult{
		ID:     record.ID,
		Status: record.Status,
		Reused: reused,
	}
	if record.ContentAddress != nil {
		result.ContentAddress = *record.ContentAddress
	}
	return result
}
