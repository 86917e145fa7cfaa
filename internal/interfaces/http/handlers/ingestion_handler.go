package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agencypulse/crosssell-intelligence/internal/application/dashboard"
	"github.com/agencypulse/crosssell-intelligence/internal/application/ingestion"
	"github.com/agencypulse/crosssell-intelligence/internal/infrastructure/monitoring/logging"
	"github.com/agencypulse/crosssell-intelligence/pkg/errors"
)

// IngestionHandler serves batch uploads.
type IngestionHandler struct {
	ingest    ingestion.Service
	dashboard dashboard.Service
	logger    logging.Logger
}

// NewIngestionHandler creates the ingestion handler.  The dashboard service
// is used to drop stale snapshots after a successful batch; it may be nil.
func NewIngestionHandler(ingest ingestion.Service, dash dashboard.Service, log logging.Logger) *IngestionHandler {
	return &IngestionHandler{ingest: ingest, dashboard: dash, logger: log.Named("ingestion_handler")}
}

// ingestRequest is the POST /api/v1/ingestions body.
type ingestRequest struct {
	AgencyID string            `json:"agency_id"`
	BatchID  string            `json:"batch_id,omitempty"`
	Rows     []json.RawMessage `json:"rows"`
}

// Create handles POST /api/v1/ingestions.
func (h *IngestionHandler) Create(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.InvalidParam("malformed request body").WithCause(err))
		return
	}

	result, err := h.ingest.IngestRows(c.Request.Context(), &ingestion.IngestInput{
		AgencyID: req.AgencyID,
		BatchID:  req.BatchID,
		Rows:     req.Rows,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	if h.dashboard != nil {
		if err := h.dashboard.Invalidate(c.Request.Context(), req.AgencyID); err != nil {
			h.logger.Warn("snapshot invalidation failed",
				logging.String("agency_id", req.AgencyID), logging.Err(err))
		}
	}

	c.JSON(http.StatusCreated, result)
}
