package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appopp "github.com/agencypulse/crosssell-intelligence/internal/application/opportunity"
	"github.com/agencypulse/crosssell-intelligence/pkg/errors"
)

// OpportunityHandler serves the opportunity resource.
type OpportunityHandler struct {
	svc appopp.Service
}

// NewOpportunityHandler creates the opportunity handler.
func NewOpportunityHandler(svc appopp.Service) *OpportunityHandler {
	return &OpportunityHandler{svc: svc}
}

// List handles GET /api/v1/opportunities.
func (h *OpportunityHandler) List(c *gin.Context) {
	input := &appopp.ListInput{
		AgencyID:         c.Query("agency_id"),
		Tier:             c.Query("tier"),
		Segment:          c.Query("segment"),
		MinScore:         queryInt(c, "min_score", 0),
		IncludeDismissed: c.Query("include_dismissed") == "true",
		SortAscending:    c.Query("sort") == "asc",
		Page:             queryInt(c, "page", 1),
		PageSize:         queryInt(c, "page_size", 20),
	}

	result, err := h.svc.List(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Get handles GET /api/v1/opportunities/:id.
func (h *OpportunityHandler) Get(c *gin.Context) {
	o, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// Dismiss handles POST /api/v1/opportunities/:id/dismiss.
func (h *OpportunityHandler) Dismiss(c *gin.Context) {
	o, err := h.svc.Dismiss(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// Reopen handles POST /api/v1/opportunities/:id/reopen.
func (h *OpportunityHandler) Reopen(c *gin.Context) {
	o, err := h.svc.Reopen(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// linkTaskRequest is the POST /api/v1/opportunities/:id/task body.
type linkTaskRequest struct {
	TaskID string `json:"task_id"`
}

// LinkTask handles POST /api/v1/opportunities/:id/task.
func (h *OpportunityHandler) LinkTask(c *gin.Context) {
	var req linkTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.InvalidParam("malformed request body").WithCause(err))
		return
	}

	o, err := h.svc.LinkTask(c.Request.Context(), c.Param("id"), req.TaskID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// Clear handles DELETE /api/v1/opportunities.  Reseed only: hard-deletes an
// agency's entire book.
func (h *OpportunityHandler) Clear(c *gin.Context) {
	removed, err := h.svc.Clear(c.Request.Context(), c.Query("agency_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}
