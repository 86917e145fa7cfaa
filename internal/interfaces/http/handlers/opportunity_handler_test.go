package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appopp "github.com/agencypulse/crosssell-intelligence/internal/application/opportunity"
	domain "github.com/agencypulse/crosssell-intelligence/internal/domain/opportunity"
	"github.com/agencypulse/crosssell-intelligence/internal/intelligence/crosssell"
	"github.com/agencypulse/crosssell-intelligence/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func seedOpportunity(t *testing.T, repo *testutil.FakeOpportunityRepo, agencyID, name string) *domain.Opportunity {
	t.Helper()
	rec := &crosssell.Record{
		CustomerName:  name,
		AgencyID:      agencyID,
		Products:      "Auto",
		PolicyCount:   1,
		AnnualPremium: 2400,
	}
	enhancer := crosssell.NewEnhancer(nil)
	o, err := domain.New(rec, enhancer.Enhance(rec, crosssell.DefaultEnhanceOptions()))
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), o))
	return o
}

func opportunityRouter(repo *testutil.FakeOpportunityRepo) *gin.Engine {
	h := NewOpportunityHandler(appopp.NewService(repo, testutil.NewMockLogger()))
	r := gin.New()
	r.GET("/api/v1/opportunities", h.List)
	r.DELETE("/api/v1/opportunities", h.Clear)
	r.GET("/api/v1/opportunities/:id", h.Get)
	r.POST("/api/v1/opportunities/:id/dismiss", h.Dismiss)
	r.POST("/api/v1/opportunities/:id/reopen", h.Reopen)
	r.POST("/api/v1/opportunities/:id/task", h.LinkTask)
	return r
}

func doRequest(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestOpportunityList(t *testing.T) {
	repo := testutil.NewFakeOpportunityRepo()
	seedOpportunity(t, repo, "a", "First Customer")
	seedOpportunity(t, repo, "a", "Second Customer")
	r := opportunityRouter(repo)

	w := doRequest(r, http.MethodGet, "/api/v1/opportunities?agency_id=a", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var res appopp.ListResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, int64(2), res.Total)
	assert.Len(t, res.Opportunities, 2)
}

func TestOpportunityList_BadTier(t *testing.T) {
	r := opportunityRouter(testutil.NewFakeOpportunityRepo())

	w := doRequest(r, http.MethodGet, "/api/v1/opportunities?tier=SCORCHING", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var res ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "COMMON_002", res.Code)
}

func TestOpportunityGet(t *testing.T) {
	repo := testutil.NewFakeOpportunityRepo()
	o := seedOpportunity(t, repo, "a", "Harding Household")
	r := opportunityRouter(repo)

	w := doRequest(r, http.MethodGet, "/api/v1/opportunities/"+string(o.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got domain.Opportunity
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Harding Household", got.CustomerName)
}

func TestOpportunityGet_NotFound(t *testing.T) {
	r := opportunityRouter(testutil.NewFakeOpportunityRepo())

	w := doRequest(r, http.MethodGet, "/api/v1/opportunities/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOpportunityDismissConflict(t *testing.T) {
	repo := testutil.NewFakeOpportunityRepo()
	o := seedOpportunity(t, repo, "a", "Harding Household")
	r := opportunityRouter(repo)
	path := "/api/v1/opportunities/" + string(o.ID) + "/dismiss"

	w := doRequest(r, http.MethodPost, path, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(r, http.MethodPost, path, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doRequest(r, http.MethodPost, "/api/v1/opportunities/"+string(o.ID)+"/reopen", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestOpportunityLinkTask(t *testing.T) {
	repo := testutil.NewFakeOpportunityRepo()
	o := seedOpportunity(t, repo, "a", "Harding Household")
	r := opportunityRouter(repo)
	path := "/api/v1/opportunities/" + string(o.ID) + "/task"

	w := doRequest(r, http.MethodPost, path, linkTaskRequest{TaskID: "task-1"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(r, http.MethodPost, path, linkTaskRequest{TaskID: "task-2"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doRequest(r, http.MethodPost, path, "{bad json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOpportunityClear(t *testing.T) {
	repo := testutil.NewFakeOpportunityRepo()
	seedOpportunity(t, repo, "a", "First Customer")
	seedOpportunity(t, repo, "b", "Other Customer")
	r := opportunityRouter(repo)

	w := doRequest(r, http.MethodDelete, "/api/v1/opportunities?agency_id=a", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, repo.Len())

	w = doRequest(r, http.MethodDelete, "/api/v1/opportunities", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
