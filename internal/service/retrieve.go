package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"storagebridge/offchain/internal/storage"
)

// RetrieveService serves previously stored content by content address
type RetrieveService struct {
	records      RecordStore
	store        ContentStore
	verifyOnRead bool
	logger       *zap.Logger
}

// NewRetrieveService creates a new retrieval service. When verifyOnRead is
// set, retrieved bytes are re-hashed against the recorded content hash to
// detect storage-network corruption.
func NewRetrieveService(records RecordStore, store ContentStore, verifyOnRead bool, logger *zap.Logger) *RetrieveService {
	return &RetrieveService{
		records:      records,
		store:        store,
		verifyOnRead: verifyOnRead,
		logger:       logger.Named("retrieve"),
	}
}

// Retrieve returns the bytes stored at a content address. Unknown addresses
// fail without touching the storage network.
func (s *RetrieveService) Retrieve(ctx context.Context, contentAddress string) ([]byte, error) {
	if contentAddress == "" {
		return nil, invalidRequest("content address is required")
	}

	record, err := s.records.GetIngestionByContentAddress(ctx, contentAddress)
	if err != nil {
		return nil, fmt.Errorf("record lookup failed: %w", err)
	}
	if record == nil {
		return nil, notFound("no stored content at address %s", contentAddress)
	}

	data, err := s.store.Get(ctx, contentAddress)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// The record says it was stored; the network disagrees.
			s.logger.Error("Stored content missing from storage network",
				zap.String("id", record.ID),
				zap.String("content_address", contentAddress))
			return nil, notFound("content at address %s is not retrievable", contentAddress)
		}
		return nil, fmt.Errorf("storage read failed: %w", err)
	}

	if s.verifyOnRead {
		if err := storage.VerifyContent(record.ContentHash, data); err != nil {
			s.logger.Error("Retrieved content failed hash verification",
				zap.String("id", record.ID),
				zap.String("content_address", contentAddress),
				zap.Error(err))
			return nil, integrityMismatch("content at %s failed verification against recorded hash", contentAddress)
		}
	}

	return data, nil
}
