package handlers

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agencypulse/crosssell-intelligence/internal/application/dashboard"
	"github.com/agencypulse/crosssell-intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/agencypulse/crosssell-intelligence/internal/intelligence/crosssell"
	"github.com/agencypulse/crosssell-intelligence/internal/testutil"
)

func dashboardRouter(repo *testutil.FakeOpportunityRepo) *gin.Engine {
	svc := dashboard.NewService(repo, nil, prometheus.NewMetrics(), testutil.NewMockLogger(), dashboard.Options{
		Defaults: crosssell.DefaultEnhanceOptions(),
		Weights:  crosssell.DefaultWeights(),
		CacheTTL: time.Minute,
	})
	h := NewDashboardHandler(svc)
	r := gin.New()
	r.GET("/api/v1/dashboard/ranked", h.Ranked)
	r.GET("/api/v1/dashboard/summary", h.Summary)
	r.POST("/api/v1/score/preview", h.Preview)
	return r
}

func TestDashboardRanked(t *testing.T) {
	repo := testutil.NewFakeOpportunityRepo()
	seedOpportunity(t, repo, "a", "First Customer")
	seedOpportunity(t, repo, "a", "Second Customer")
	r := dashboardRouter(repo)

	w := doRequest(r, http.MethodGet, "/api/v1/dashboard/ranked?agency_id=a", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var res dashboard.RankedResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Len(t, res.Items, 2)
	assert.Equal(t, 2, res.Stats.Total)
}

func TestDashboardRanked_InvalidBlendWeight(t *testing.T) {
	r := dashboardRouter(testutil.NewFakeOpportunityRepo())

	w := doRequest(r, http.MethodGet, "/api/v1/dashboard/ranked?agency_id=a&blend_weight=1.5", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var res ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "SCR_001", res.Code)
}

func TestDashboardSummary(t *testing.T) {
	repo := testutil.NewFakeOpportunityRepo()
	seedOpportunity(t, repo, "a", "First Customer")
	r := dashboardRouter(repo)

	w := doRequest(r, http.MethodGet, "/api/v1/dashboard/summary?agency_id=a", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var sum dashboard.Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sum))
	assert.Equal(t, int64(1), sum.Total)
}

func TestScorePreview(t *testing.T) {
	r := dashboardRouter(testutil.NewFakeOpportunityRepo())

	body := map[string]interface{}{
		"records": []map[string]interface{}{
			{"customer_name": "Walk In", "products": "Auto", "annual_premium": 2400},
		},
		"options": map[string]interface{}{"include_breakdown": true},
	}
	w := doRequest(r, http.MethodPost, "/api/v1/score/preview", body)
	require.Equal(t, http.StatusOK, w.Code)

	var res crosssell.BatchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Len(t, res.Records, 1)
	assert.Greater(t, res.Records[0].Result.Score, 0)
}

func TestScorePreview_NamelessRecord(t *testing.T) {
	r := dashboardRouter(testutil.NewFakeOpportunityRepo())

	body := map[string]interface{}{
		"records": []map[string]interface{}{{"products": "Auto"}},
	}
	w := doRequest(r, http.MethodPost, "/api/v1/score/preview", body)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
