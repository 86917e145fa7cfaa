package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agencypulse/crosssell-intelligence/internal/domain/opportunity"
	"github.com/agencypulse/crosssell-intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/agencypulse/crosssell-intelligence/internal/intelligence/crosssell"
	"github.com/agencypulse/crosssell-intelligence/internal/testutil"
	"github.com/agencypulse/crosssell-intelligence/pkg/errors"
)

// memCache is an in-memory SnapshotCache that counts loader invocations.
type memCache struct {
	store map[string][]byte
	loads int
}

func newMemCache() *memCache {
	return &memCache{store: make(map[string][]byte)}
}

func (c *memCache) GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration,
	loader func(ctx context.Context) (interface{}, error)) error {

	if raw, ok := c.store[key]; ok {
		return json.Unmarshal(raw, dest)
	}
	c.loads++
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.store[key] = raw
	return json.Unmarshal(raw, dest)
}

func (c *memCache) DeleteByPrefix(ctx context.Context, prefix string) (int64, error) {
	var n int64
	for k := range c.store {
		if strings.HasPrefix(k, prefix) {
			delete(c.store, k)
			n++
		}
	}
	return n, nil
}

func seedRecord(name, products string, premium float64, policies int) *crosssell.Record {
	days := 20
	return &crosssell.Record{
		CustomerName:     name,
		AgencyID:         "agency-1",
		Products:         products,
		PolicyCount:      policies,
		AnnualPremium:    premium,
		TenureYears:      5,
		DaysUntilRenewal: &days,
		Autopay:          crosssell.AutopayYes,
		Phone:            "+14155552671",
		Email:            name + "@example.com",
	}
}

func seedRepo(t *testing.T) *testutil.FakeOpportunityRepo {
	t.Helper()
	repo := testutil.NewFakeOpportunityRepo()
	enhancer := crosssell.NewEnhancer(nil)
	for _, rec := range []*crosssell.Record{
		seedRecord("Hot Bundle", "Auto", 3600, 1),
		seedRecord("Mid Renter", "Renters", 900, 1),
		seedRecord("Full Wallet", "Auto; Homeowners; Umbrella; Life", 6200, 4),
	} {
		o, err := opportunity.New(rec, enhancer.Enhance(rec, crosssell.DefaultEnhanceOptions()))
		require.NoError(t, err)
		require.NoError(t, repo.Create(context.Background(), o))
	}
	return repo
}

func newService(repo *testutil.FakeOpportunityRepo, cache SnapshotCache) Service {
	return NewService(repo, cache, prometheus.NewMetrics(), testutil.NewMockLogger(), Options{
		Defaults: crosssell.DefaultEnhanceOptions(),
		Weights:  crosssell.DefaultWeights(),
		CacheTTL: time.Minute,
	})
}

func TestRanked_SortsByScoreDescending(t *testing.T) {
	svc := newService(seedRepo(t), nil)

	res, err := svc.Ranked(context.Background(), &RankedInput{AgencyID: "agency-1"})
	require.NoError(t, err)

	require.Len(t, res.Items, 3)
	for i := 1; i < len(res.Items); i++ {
		assert.GreaterOrEqual(t, res.Items[i-1].Score, res.Items[i].Score)
	}
	// Under the default blend the full-basket household's lead quality
	// outweighs its smaller product gap.
	assert.Equal(t, "Full Wallet", res.Items[0].CustomerName)
	assert.Equal(t, 3, res.Stats.Total)
	assert.NotEmpty(t, res.Items[0].OpportunityID)
	assert.False(t, res.GeneratedAt.IsZero())
}

func TestRanked_CachesSnapshot(t *testing.T) {
	cache := newMemCache()
	svc := newService(seedRepo(t), cache)
	ctx := context.Background()
	input := &RankedInput{AgencyID: "agency-1"}

	first, err := svc.Ranked(ctx, input)
	require.NoError(t, err)
	second, err := svc.Ranked(ctx, input)
	require.NoError(t, err)

	assert.Equal(t, 1, cache.loads, "second read must come from cache")
	assert.Equal(t, len(first.Items), len(second.Items))

	require.NoError(t, svc.Invalidate(ctx, "agency-1"))
	_, err = svc.Ranked(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, 2, cache.loads, "invalidation must force a rebuild")
}

func TestRanked_OptionsKeyTheCache(t *testing.T) {
	cache := newMemCache()
	svc := newService(seedRepo(t), cache)
	ctx := context.Background()

	_, err := svc.Ranked(ctx, &RankedInput{AgencyID: "agency-1"})
	require.NoError(t, err)

	w := 0.2
	_, err = svc.Ranked(ctx, &RankedInput{
		AgencyID: "agency-1",
		Options:  ScoreOptions{BlendWeight: &w},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, cache.loads, "different options must not share a snapshot")
}

func TestRanked_DisableLeadScoring(t *testing.T) {
	svc := newService(seedRepo(t), nil)
	off := false

	res, err := svc.Ranked(context.Background(), &RankedInput{
		AgencyID: "agency-1",
		Options:  ScoreOptions{UseLeadScoring: &off},
	})
	require.NoError(t, err)

	for _, item := range res.Items {
		assert.False(t, item.Enhanced)
		assert.InDelta(t, 0.7, item.Confidence, 0.001)
	}
	// On base scores alone the monoline auto household has the widest gap
	// and ranks first; blending is what promotes the full basket.
	require.Len(t, res.Items, 3)
	assert.Equal(t, "Hot Bundle", res.Items[0].CustomerName)
}

func TestRanked_InvalidOptions(t *testing.T) {
	svc := newService(seedRepo(t), nil)
	ctx := context.Background()

	w := 1.5
	_, err := svc.Ranked(ctx, &RankedInput{AgencyID: "agency-1", Options: ScoreOptions{BlendWeight: &w}})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeScoreOptionsInvalid))

	_, err = svc.Ranked(ctx, &RankedInput{AgencyID: "agency-1", Options: ScoreOptions{Limit: -1}})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeScoreOptionsInvalid))
}

func TestRanked_Pagination(t *testing.T) {
	svc := newService(seedRepo(t), nil)

	res, err := svc.Ranked(context.Background(), &RankedInput{
		AgencyID: "agency-1",
		Options:  ScoreOptions{Limit: 1, Offset: 1},
	})
	require.NoError(t, err)

	require.Len(t, res.Items, 1)
	assert.Equal(t, 3, res.Stats.Total, "stats cover the full book, not the page")
}

func TestRanked_ExcludesDismissed(t *testing.T) {
	repo := seedRepo(t)
	ctx := context.Background()
	victim, err := repo.GetByCustomerName(ctx, "agency-1", "Mid Renter")
	require.NoError(t, err)
	require.NoError(t, victim.Dismiss())
	require.NoError(t, repo.Update(ctx, victim))

	svc := newService(repo, nil)
	res, err := svc.Ranked(ctx, &RankedInput{AgencyID: "agency-1"})
	require.NoError(t, err)

	assert.Len(t, res.Items, 2)
	for _, item := range res.Items {
		assert.NotEqual(t, "Mid Renter", item.CustomerName)
	}
}

func TestSummary(t *testing.T) {
	repo := seedRepo(t)
	ctx := context.Background()
	victim, err := repo.GetByCustomerName(ctx, "agency-1", "Mid Renter")
	require.NoError(t, err)
	require.NoError(t, victim.Dismiss())
	require.NoError(t, repo.Update(ctx, victim))

	svc := newService(repo, nil)
	sum, err := svc.Summary(ctx, "agency-1")
	require.NoError(t, err)

	assert.Equal(t, int64(3), sum.Total)
	assert.Equal(t, int64(1), sum.Dismissed)
	var tierTotal int64
	for _, n := range sum.ByTier {
		tierTotal += n
	}
	assert.Equal(t, int64(2), tierTotal, "dismissed rows leave the tier counts")
	assert.Greater(t, sum.MeanScore, 0.0)
	assert.InDelta(t, 3600+6200, sum.PremiumOnBook, 0.001)
}

func TestSummary_Cached(t *testing.T) {
	cache := newMemCache()
	svc := newService(seedRepo(t), cache)
	ctx := context.Background()

	_, err := svc.Summary(ctx, "agency-1")
	require.NoError(t, err)
	_, err = svc.Summary(ctx, "agency-1")
	require.NoError(t, err)

	assert.Equal(t, 1, cache.loads)
}

func TestPreview(t *testing.T) {
	repo := testutil.NewFakeOpportunityRepo()
	svc := newService(repo, nil)

	res, err := svc.Preview(context.Background(), []*crosssell.Record{
		seedRecord("Walk In", "Auto", 2500, 1),
	}, ScoreOptions{IncludeBreakdown: true})
	require.NoError(t, err)

	require.Len(t, res.Records, 1)
	assert.Greater(t, res.Records[0].Result.Score, 0)
	assert.NotNil(t, res.Records[0].Result.Breakdown)
	assert.Equal(t, 0, repo.Len(), "preview must not persist")
}

func TestPreview_Validation(t *testing.T) {
	svc := newService(testutil.NewFakeOpportunityRepo(), nil)
	ctx := context.Background()

	_, err := svc.Preview(ctx, nil, ScoreOptions{})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))

	_, err = svc.Preview(ctx, []*crosssell.Record{{Products: "Auto"}}, ScoreOptions{})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestRanked_RepoError(t *testing.T) {
	repo := testutil.NewFakeOpportunityRepo()
	repo.ListErr = fmt.Errorf("connection reset")
	svc := newService(repo, nil)

	_, err := svc.Ranked(context.Background(), &RankedInput{AgencyID: "agency-1"})
	require.Error(t, err)
}
