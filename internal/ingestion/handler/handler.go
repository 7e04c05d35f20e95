// Package handler exposes the ingestion engine over HTTP. It stays thin:
// decode, delegate to the service, translate errors.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"homeledger/internal/ingestion/models"
	"homeledger/internal/platform/middleware"
	"homeledger/internal/transport/http/shared"
	dErrors "homeledger/pkg/domain-errors"
)

// Service defines the ingestion operations the handler needs.
type Service interface {
	IngestBatch(ctx context.Context, input models.BatchInput) (*models.BatchSummary, error)
}

// Handler handles ingestion endpoints.
type Handler struct {
	logger  *slog.Logger
	service Service
}

// New creates an ingestion Handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, service: service}
}

// Register registers the ingestion routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/ingestion/batches", h.handleIngestBatch)
}

func (h *Handler) handleIngestBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid ingestion batch request",
			"request_id", requestID,
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	input, err := req.toInput()
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	summary, err := h.service.IngestBatch(ctx, input)
	if err != nil {
		switch {
		case dErrors.Is(err, dErrors.CodeValidation) || dErrors.Is(err, dErrors.CodeNotFound):
			h.logger.WarnContext(ctx, "ingestion batch rejected",
				"request_id", requestID,
				"error", err.Error(),
			)
			shared.WriteError(w, err)
		case dErrors.Is(err, dErrors.CodeConflict):
			h.logger.InfoContext(ctx, "ingestion batch conflicted",
				"request_id", requestID,
				"error", err.Error(),
			)
			shared.WriteError(w, err)
		default:
			h.logger.ErrorContext(ctx, "ingestion batch failed",
				"request_id", requestID,
				"error", err.Error(),
			)
			shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to process batch"))
		}
		return
	}

	shared.WriteJSON(w, http.StatusOK, toResponse(summary))
}
