package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"cosmossdk.io/math"
	"go.uber.org/zap"

	"storagebridge/offchain/internal/metrics"
	"storagebridge/offchain/internal/models"
	"storagebridge/offchain/internal/service"

	"github.com/gorilla/mux"
)

// StorageHealthChecker reports whether the storage network is reachable
type StorageHealthChecker interface {
	Health(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	ingestService   *service.IngestService
	retrieveService *service.RetrieveService
	storageHealth   StorageHealthChecker
	logger          *zap.Logger
}

// NewHandler creates a new API handler
func NewHandler(
	ingestService *service.IngestService,
	retrieveService *service.RetrieveService,
	storageHealth StorageHealthChecker,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		ingestService:   ingestService,
		retrieveService: retrieveService,
		storageHealth:   storageHealth,
		logger:          logger,
	}
}

// ==================== Health Check ====================

// HandleHealth returns service health status including storage reachability
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	storageReachable := false
	if h.storageHealth != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		storageReachable = h.storageHealth.Health(ctx) == nil
	}

	response := HealthResponse{
		Status:           "ok",
		StorageReachable: storageReachable,
		Version:          "1.0.0",
	}
	respondJSON(w, http.StatusOK, response)
}

// ==================== Ingestion ====================

// HandleIngest handles POST /api/v1/ingestions
// Accepts a payload plus payment proof and performs a settlement-gated
// storage write
func (h *Handler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("Failed to decode request", zap.Error(err))
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	// Validate request shape; content rules live in the service
	if req.OwnerID == "" {
		respondError(w, http.StatusBadRequest, "owner_id is required", nil)
		return
	}
	if len(req.Payload) == 0 {
		respondError(w, http.StatusBadRequest, "payload is required", nil)
		return
	}
	if req.PaymentAmount == "" {
		respondError(w, http.StatusBadRequest, "payment_amount is required", nil)
		return
	}

	amount, ok := math.NewIntFromString(req.PaymentAmount)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid payment_amount: must be an integer", nil)
		return
	}

	h.logger.Info("Ingestion requested",
		zap.String("owner_id", req.OwnerID),
		zap.String("transfer_ref", req.TransferRef),
		zap.Int("size_bytes", len(req.Payload)))

	started := time.Now()
	result, err := h.ingestService.Ingest(r.Context(), service.IngestParams{
		OwnerID:       req.OwnerID,
		Payload:       req.Payload,
		DeclaredHash:  req.ContentHash,
		TransferRef:   req.TransferRef,
		PaymentAmount: amount,
	})
	metrics.IngestionDuration.Observe(time.Since(started).Seconds())

	if err != nil {
		metrics.IngestionsTotal.WithLabelValues(outcomeLabel(err)).Inc()
		h.logger.Warn("Ingestion failed",
			zap.String("owner_id", req.OwnerID),
			zap.String("transfer_ref", req.TransferRef),
			zap.Error(err))
		respondServiceError(w, "Ingestion failed", err)
		return
	}

	outcome := "completed"
	statusCode := http.StatusCreated
	if result.Reused {
		outcome = "reused"
		statusCode = http.StatusOK
	}
	metrics.IngestionsTotal.WithLabelValues(outcome).Inc()

	respondJSON(w, statusCode, IngestResponse{
		ID:             result.ID,
		ContentAddress: result.ContentAddress,
		Status:         "completed",
		Reused:         result.Reused,
	})
}

// ==================== Record Status ====================

// HandleGetRecord handles GET /api/v1/ingestions/{id}
func (h *Handler) HandleGetRecord(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	if id == "" {
		respondError(w, http.StatusBadRequest, "id is required", nil)
		return
	}

	record, err := h.ingestService.GetRecord(r.Context(), id)
	if err != nil {
		if service.Kind(err) == service.KindNotFound {
			respondError(w, http.StatusNotFound, "Record not found", nil)
			return
		}
		h.logger.Error("Failed to get record", zap.String("id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to get record", err)
		return
	}

	respondJSON(w, http.StatusOK, recordResponse(record))
}

// ==================== Owner Records ====================

// HandleListByOwner handles GET /api/v1/ingestions/owner/{ownerId}
func (h *Handler) HandleListByOwner(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ownerID := vars["ownerId"]

	if ownerID == "" {
		respondError(w, http.StatusBadRequest, "owner_id is required", nil)
		return
	}

	// Parse pagination parameters (optional)
	limit := 50
	offset := 0

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 {
			limit = parsedLimit
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if parsedOffset, err := strconv.Atoi(offsetStr); err == nil && parsedOffset >= 0 {
			offset = parsedOffset
		}
	}

	h.logger.Debug("Listing owner records",
		zap.String("owner_id", ownerID),
		zap.Int("limit", limit),
		zap.Int("offset", offset))

	records, err := h.ingestService.ListByOwner(r.Context(), ownerID, limit, offset)
	if err != nil {
		if service.Kind(err) == "" {
			h.logger.Error("Failed to list owner records",
				zap.String("owner_id", ownerID),
				zap.Error(err))
		}
		respondServiceError(w, "Failed to list records", err)
		return
	}

	summaries := make([]RecordResponse, 0, len(records))
	for i := range records {
		summaries = append(summaries, recordResponse(&records[i]))
	}

	respondJSON(w, http.StatusOK, ListRecordsResponse{
		OwnerID: ownerID,
		Records: summaries,
	})
}

// ==================== Retrieval ====================

// HandleRetrieve handles GET /api/v1/blobs/{address}
// Streams the stored bytes for a content address
func (h *Handler) HandleRetrieve(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	address := vars["address"]

	if address == "" {
		respondError(w, http.StatusBadRequest, "address is required", nil)
		return
	}

	data, err := h.retrieveService.Retrieve(r.Context(), address)
	if err != nil {
		metrics.RetrievalsTotal.WithLabelValues(outcomeLabel(err)).Inc()
		if service.Kind(err) == "" {
			h.logger.Error("Retrieval failed",
				zap.String("address", address),
				zap.Error(err))
		}
		respondServiceError(w, "Retrieval failed", err)
		return
	}
	metrics.RetrievalsTotal.WithLabelValues("completed").Inc()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Warn("Failed to write blob response",
			zap.String("address", address),
			zap.Error(err))
	}
}

// ==================== Helper Functions ====================

func recordResponse(record *models.IngestionRecord) RecordResponse {
	resp := RecordResponse{
		ID:             record.ID,
		OwnerID:        record.OwnerID,
		ContentHash:    record.ContentHash,
		ContentAddress: record.ContentAddress,
		ProviderRef:    record.ProviderRef,
		TransferRef:    record.TransferRef,
		PaymentAmount:  record.PaymentAmount,
		SizeBytes:      record.SizeBytes,
		Status:         record.Status,
		Error:          record.ErrorMessage,
		AcceptedAt:     record.AcceptedAt.UTC().Format(time.RFC3339),
	}
	if record.CreatedAt != nil {
		created := record.CreatedAt.UTC().Format(time.RFC3339)
		resp.CreatedAt = &created
	}
	return resp
}

// statusForKind maps the service error taxonomy to HTTP status codes
func statusForKind(kind service.ErrorKind) int {
	switch kind {
	case service.KindInvalidRequest:
		return http.StatusBadRequest
	case service.KindIntegrityMismatch:
		return http.StatusUnprocessableEntity
	case service.KindPaymentNotConfirmed:
		return http.StatusPaymentRequired
	case service.KindTransferRedeemed:
		return http.StatusConflict
	case service.KindStorageWriteFailed:
		return http.StatusBadGateway
	case service.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func outcomeLabel(err error) string {
	if kind := service.Kind(err); kind != "" {
		return string(kind)
	}
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}
	return "internal_error"
}

// respondServiceError maps a service error to a stable error kind plus a
// human-readable message
func respondServiceError(w http.ResponseWriter, message string, err error) {
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		respondJSON(w, statusForKind(svcErr.Kind), ErrorResponse{
			Error:   string(svcErr.Kind),
			Message: svcErr.Message,
		})
		return
	}
	respondError(w, http.StatusInternalServerError, message, err)
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers already written, nothing left to send
		fmt.Printf("Failed to encode JSON response: %v\n", err)
	}
}

// respondError sends an error response
func respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	errorMsg := message
	if err != nil {
		errorMsg = fmt.Sprintf("%s: %v", message, err)
	}

	response := ErrorResponse{
		Error:   message,
		Message: errorMsg,
	}

	respondJSON(w, statusCode, response)
}
