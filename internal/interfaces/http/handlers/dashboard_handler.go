package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agencypulse/crosssell-intelligence/internal/application/dashboard"
	"github.com/agencypulse/crosssell-intelligence/internal/intelligence/crosssell"
	"github.com/agencypulse/crosssell-intelligence/pkg/errors"
)

// DashboardHandler serves ranked snapshots, summaries, and ad-hoc previews.
type DashboardHandler struct {
	svc dashboard.Service
}

// NewDashboardHandler creates the dashboard handler.
func NewDashboardHandler(svc dashboard.Service) *DashboardHandler {
	return &DashboardHandler{svc: svc}
}

// scoreOptionsFromQuery reads the tuning surface shared by ranked and
// preview endpoints.
func scoreOptionsFromQuery(c *gin.Context) dashboard.ScoreOptions {
	return dashboard.ScoreOptions{
		UseLeadScoring:   queryBoolPtr(c, "use_lead_scoring"),
		BlendWeight:      queryFloatPtr(c, "blend_weight"),
		MinBaseScore:     queryIntPtr(c, "min_base_score"),
		IncludeBreakdown: c.Query("include_breakdown") == "true",
		TopN:             queryInt(c, "top_n", 0),
		Limit:            queryInt(c, "limit", 0),
		Offset:           queryInt(c, "offset", 0),
	}
}

// Ranked handles GET /api/v1/dashboard/ranked: the stored book re-scored
// with caller-supplied options.
func (h *DashboardHandler) Ranked(c *gin.Context) {
	result, err := h.svc.Ranked(c.Request.Context(), &dashboard.RankedInput{
		AgencyID: c.Query("agency_id"),
		Options:  scoreOptionsFromQuery(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Summary handles GET /api/v1/dashboard/summary.
func (h *DashboardHandler) Summary(c *gin.Context) {
	sum, err := h.svc.Summary(c.Request.Context(), c.Query("agency_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

// previewRequest is the POST /api/v1/score/preview body.
type previewRequest struct {
	Records []*crosssell.Record    `json:"records"`
	Options dashboard.ScoreOptions `json:"options"`
}

// Preview handles POST /api/v1/score/preview: scores ad-hoc records without
// persisting anything.
func (h *DashboardHandler) Preview(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.InvalidParam("malformed request body").WithCause(err))
		return
	}

	result, err := h.svc.Preview(c.Request.Context(), req.Records, req.Options)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
