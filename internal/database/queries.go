package database

import (
	"context"
	"database/sql"
	"time"

	"storagebridge/offchain/internal/models"
)

const ingestionColumns = `
	id, owner_id, content_hash, content_address, provider_ref, transfer_ref,
	payment_amount, size_bytes, status, error_message, attempt_count,
	accepted_at, created_at`

// CreateIngestion inserts a new ingestion record in PENDING state
func (db *DB) CreateIngestion(ctx context.Context, record *models.IngestionRecord) error {
	query := `
		INSERT INTO ingestions (
			id, owner_id, content_hash, transfer_ref, payment_amount, status
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING accepted_at
	`
	return db.QueryRowContext(
		ctx, query,
		record.ID,
		record.OwnerID,
		record.ContentHash,
		record.TransferRef,
		record.PaymentAmount,
		record.Status,
	).Scan(&record.AcceptedAt)
}

// GetIngestion retrieves an ingestion record by ID
func (db *DB) GetIngestion(ctx context.Context, id string) (*models.IngestionRecord, error) {
	var record models.IngestionRecord
	query := `SELECT ` + ingestionColumns + ` FROM ingestions WHERE id = $1`
	err := db.GetContext(ctx, &record, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &record, err
}

// GetIngestionByContentAddress retrieves a stored ingestion record by its
// content address
func (db *DB) GetIngestionByContentAddress(ctx context.Context, address string) (*models.IngestionRecord, error) {
	var record models.IngestionRecord
	query := `
		SELECT ` + ingestionColumns + `
		FROM ingestions
		WHERE content_address = $1 AND status = $2
	`
	err := db.GetContext(ctx, &record, query, address, models.IngestionStatusStored)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &record, err
}

// GetStoredIngestionByOwnerAndHash retrieves the STORED record for an
// (owner, content hash) pair, if one exists. Used for the idempotency check
// before any external call is made.
func (db *DB) GetStoredIngestionByOwnerAndHash(ctx context.Context, ownerID, contentHash string) (*models.IngestionRecord, error) {
	var record models.IngestionRecord
	query := `
		SELECT ` + ingestionColumns + `
		FROM ingestions
		WHERE owner_id = $1 AND content_hash = $2 AND status = $3
	`
	err := db.GetContext(ctx, &record, query, ownerID, contentHash, models.IngestionStatusStored)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &record, err
}

// GetStoredIngestionByTransferRef retrieves the STORED record that redeemed a
// settlement transfer, if one exists
func (db *DB) GetStoredIngestionByTransferRef(ctx context.Context, transferRef string) (*models.IngestionRecord, error) {
	var record models.IngestionRecord
	query := `
		SELECT ` + ingestionColumns + `
		FROM ingestions
		WHERE transfer_ref = $1 AND status = $2
	`
	err := db.GetContext(ctx, &record, query, transferRef, models.IngestionStatusStored)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &record, err
}

// MarkIngestionStored finalizes a record after a successful storage write.
// Returns ErrTransferRedeemed or ErrDuplicateContent when a partial unique
// index rejects the transition because a concurrent ingestion won the race,
// and ErrRecordNotPending when the record left PENDING state in the meantime
// (a FAILED record is never revived).
func (db *DB) MarkIngestionStored(ctx context.Context, id, contentAddress, providerRef string, sizeBytes int64) error {
	query := `
		UPDATE ingestions
		SET status = $1, content_address = $2, provider_ref = $3,
		    size_bytes = $4, created_at = NOW(), error_message = NULL
		WHERE id = $5 AND status = $6
	`
	result, err := db.ExecContext(ctx, query,
		models.IngestionStatusStored, contentAddress, ToNullString(providerRef), sizeBytes,
		id, models.IngestionStatusPending)
	if err != nil {
		return mapUniqueViolation(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrRecordNotPending
	}
	return nil
}

// RecordIngestionError records an error message and increments the attempt
// count. The record stays in its current state for later reconciliation.
func (db *DB) RecordIngestionError(ctx context.Context, id, errorMsg string) error {
	query := `
		UPDATE ingestions
		SET error_message = $1, attempt_count = attempt_count + 1
		WHERE id = $2
	`
	_, err := db.ExecContext(ctx, query, errorMsg, id)
	return err
}

// MarkIngestionFailed marks a record as permanently failed
func (db *DB) MarkIngestionFailed(ctx context.Context, id, reason string) error {
	query := `
		UPDATE ingestions
		SET status = $1, error_message = $2
		WHERE id = $3
	`
	_, err := db.ExecContext(ctx, query, models.IngestionStatusFailed, reason, id)
	return err
}

// ListIngestionsByOwner retrieves ingestion records for an owner, most recent
// first
func (db *DB) ListIngestionsByOwner(ctx context.Context, ownerID string, limit, offset int) ([]models.IngestionRecord, error) {
	var records []models.IngestionRecord
	query := `
		SELECT ` + ingestionColumns + `
		FROM ingestions
		WHERE owner_id = $1
		ORDER BY accepted_at DESC
		LIMIT $2 OFFSET $3
	`
	err := db.SelectContext(ctx, &records, query, ownerID, limit, offset)
	return records, err
}

// GetPendingIngestionsOlderThan retrieves PENDING records accepted before the
// cutoff, oldest first. Used by the reconciler.
func (db *DB) GetPendingIngestionsOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]models.IngestionRecord, error) {
	var records []models.IngestionRecord
	query := `
		SELECT ` + ingestionColumns + `
		FROM ingestions
		WHERE status = $1 AND accepted_at < $2
		ORDER BY accepted_at ASC
		LIMIT $3
	`
	err := db.SelectContext(ctx, &records, query, models.IngestionStatusPending, cutoff, limit)
	return records, err
}
