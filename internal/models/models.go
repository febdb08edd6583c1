package models

import "time"

// IngestionStatus represents the lifecycle state of an ingestion record
type IngestionStatus string

const (
	IngestionStatusPending IngestionStatus = "PENDING"
	IngestionStatusStored  IngestionStatus = "STORED"
	IngestionStatusFailed  IngestionStatus = "FAILED"
)

// IngestionRecord is the durable unit of truth for one upload. It links the
// settlement transfer that paid for the upload to the content address the
// storage network returned for it.
//
// A record is inserted in PENDING state before any external call is made, so
// a crash between payment confirmation and storage write always leaves
// discoverable state. CreatedAt is set only when the storage write succeeds;
// a record with a nil CreatedAt is in flight or failed.
type IngestionRecord struct {
	ID             string          `db:"id"`
	OwnerID        string          `db:"owner_id"`
	ContentHash    string          `db:"content_hash"`
	ContentAddress *string         `db:"content_address"`
	ProviderRef    *string         `db:"provider_ref"`
	TransferRef    *string         `db:"transfer_ref"`
	PaymentAmount  string          `db:"payment_amount"` // smallest unit, arbitrary precision
	SizeBytes      *int64          `db:"size_bytes"`
	Status         IngestionStatus `db:"status"`
	ErrorMessage   *string         `db:"error_message"`
	AttemptCount   int             `db:"attempt_count"`
	AcceptedAt     time.Time       `db:"accepted_at"`
	CreatedAt      *time.Time      `db:"created_at"`
}

// IsTerminal reports whether the record can no longer change state.
func (r *IngestionRecord) IsTerminal() bool {
	return r.Status == IngestionStatusStored || r.Status == IngestionStatusFailed
}
