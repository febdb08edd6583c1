package api

import "storagebridge/offchain/internal/models"

// ==================== Ingestion ====================

// IngestRequest represents a request to ingest a payload gated on a
// settlement transfer. Payload is base64-encoded in JSON.
type IngestRequest struct {
	OwnerID       string `json:"owner_id"`
	Payload       []byte `json:"payload"`
	ContentHash   string `json:"content_hash,omitempty"` // optional declared hash
	TransferRef   string `json:"transfer_ref,omitempty"`
	PaymentAmount string `json:"payment_amount"` // smallest unit, decimal string
}

// IngestResponse represents the outcome of a completed ingestion
type IngestResponse struct {
	ID             string `json:"id"`
	ContentAddress string `json:"content_address"`
	Status         string `json:"status"`
	Reused         bool   `json:"reused,omitempty"`
}

// ==================== Record Status ====================

// RecordResponse represents one ingestion record
type RecordResponse struct {
	ID             string                 `json:"id"`
	OwnerID        string                 `json:"owner_id"`
	ContentHash    string                 `json:"content_hash"`
	ContentAddress *string                `json:"content_address"`
	ProviderRef    *string                `json:"provider_ref,omitempty"`
	TransferRef    *string                `json:"transfer_ref"`
	PaymentAmount  string                 `json:"payment_amount"`
	SizeBytes      *int64                 `json:"size_bytes"`
	Status         models.IngestionStatus `json:"status"`
	Error          *string                `json:"error,omitempty"`
	AcceptedAt     string                 `json:"accepted_at"`
	CreatedAt      *string                `json:"created_at"`
}

// ListRecordsResponse represents an owner's ingestion records
type ListRecordsResponse struct {
	OwnerID string           `json:"owner_id"`
	Records []RecordResponse `json:"records"`
}

// ==================== Error Response ====================

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ==================== Health Check ====================

// HealthResponse represents health check response
type HealthResponse struct {
	Status           string `json:"status"`
	StorageReachable bool   `json:"storage_reachable"`
	Version          string `json:"version,omitempty"`
}
