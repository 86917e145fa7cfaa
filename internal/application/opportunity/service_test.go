package opportunity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/agencypulse/crosssell-intelligence/internal/domain/opportunity"
	"github.com/agencypulse/crosssell-intelligence/internal/intelligence/crosssell"
	"github.com/agencypulse/crosssell-intelligence/internal/testutil"
	"github.com/agencypulse/crosssell-intelligence/pkg/errors"
)

func seed(t *testing.T, repo *testutil.FakeOpportunityRepo, agencyID, name string) *domain.Opportunity {
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

func TestGet(t *testing.T) {
	repo := testutil.NewFakeOpportunityRepo()
	seeded := seed(t, repo, "a", "Harding Household")
	svc := NewService(repo, testutil.NewMockLogger())
	ctx := context.Background()

	got, err := svc.Get(ctx, string(seeded.ID))
	require.NoError(t, err)
	assert.Equal(t, seeded.CustomerName, got.CustomerName)

	_, err = svc.Get(ctx, "missing-id")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	_, err = svc.Get(ctx, "  ")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}

func TestList(t *testing.T) {
	repo := testutil.NewFakeOpportunityRepo()
	seed(t, repo, "a", "First Customer")
	seed(t, repo, "a", "Second Customer")
	seed(t, repo, "other", "Elsewhere Customer")
	svc := NewService(repo, testutil.NewMockLogger())

	res, err := svc.List(context.Background(), &ListInput{AgencyID: "a"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Total)
	assert.Len(t, res.Opportunities, 2)
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, 20, res.PageSize)
}

func TestList_FilterValidation(t *testing.T) {
	repo := testutil.NewFakeOpportunityRepo()
	svc := NewService(repo, testutil.NewMockLogger())
	ctx := context.Background()

	_, err := svc.List(ctx, &ListInput{Tier: "SCORCHING"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))

	_, err = svc.List(ctx, &ListInput{Segment: "no_such_segment"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))

	// Tier names are matched case-insensitively.
	_, err = svc.List(ctx, &ListInput{Tier: "hot"})
	require.NoError(t, err)
}

func TestList_ExcludesDismissedByDefault(t *testing.T) {
	repo := testutil.NewFakeOpportunityRepo()
	kept := seed(t, repo, "a", "Kept Customer")
	dropped := seed(t, repo, "a", "Dismissed Customer")
	require.NoError(t, dropped.Dismiss())
	require.NoError(t, repo.Update(context.Background(), dropped))
	svc := NewService(repo, testutil.NewMockLogger())

	res, err := svc.List(context.Background(), &ListInput{AgencyID: "a"})
	require.NoError(t, err)
	require.Len(t, res.Opportunities, 1)
	assert.Equal(t, kept.CustomerName, res.Opportunities[0].CustomerName)

	all, err := svc.List(context.Background(), &ListInput{AgencyID: "a", IncludeDismissed: true})
	require.NoError(t, err)
	assert.Len(t, all.Opportunities, 2)
}

func TestDismissAndReopen(t *testing.T) {
	repo := testutil.NewFakeOpportunityRepo()
	seeded := seed(t, repo, "a", "Harding Household")
	svc := NewService(repo, testutil.NewMockLogger())
	ctx := context.Background()

	dismissed, err := svc.Dismiss(ctx, string(seeded.ID))
	require.NoError(t, err)
	assert.True(t, dismissed.Dismissed)
	assert.NotNil(t, dismissed.DismissedAt)

	_, err = svc.Dismiss(ctx, string(seeded.ID))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeOpportunityDismissed))

	reopened, err := svc.Reopen(ctx, string(seeded.ID))
	require.NoError(t, err)
	assert.False(t, reopened.Dismissed)
	assert.Nil(t, reopened.DismissedAt)
}

func TestLinkTask(t *testing.T) {
	repo := testutil.NewFakeOpportunityRepo()
	seeded := seed(t, repo, "a", "Harding Household")
	svc := NewService(repo, testutil.NewMockLogger())
	ctx := context.Background()

	linked, err := svc.LinkTask(ctx, string(seeded.ID), "task-42")
	require.NoError(t, err)
	require.NotNil(t, linked.TaskID)
	assert.Equal(t, "task-42", *linked.TaskID)

	_, err = svc.LinkTask(ctx, string(seeded.ID), "task-43")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeTaskAlreadyLinked))

	_, err = svc.LinkTask(ctx, string(seeded.ID), "")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}

func TestClear(t *testing.T) {
	repo := testutil.NewFakeOpportunityRepo()
	seed(t, repo, "a", "First Customer")
	seed(t, repo, "a", "Second Customer")
	seed(t, repo, "other", "Elsewhere Customer")
	svc := NewService(repo, testutil.NewMockLogger())
	ctx := context.Background()

	removed, err := svc.Clear(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)
	assert.Equal(t, 1, repo.Len())

	_, err = svc.Clear(ctx, "")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}
