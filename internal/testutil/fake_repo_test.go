package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agencypulse/crosssell-intelligence/internal/domain/opportunity"
	"github.com/agencypulse/crosssell-intelligence/internal/intelligence/crosssell"
)

func storedOpportunity(t *testing.T, name string) *opportunity.Opportunity {
	t.Helper()
	rec := &crosssell.Record{CustomerName: name, AgencyID: "a1", Products: "Auto", AnnualPremium: 2400}
	o, err := opportunity.New(rec, crosssell.NewEnhancer(nil).Enhance(rec, crosssell.DefaultEnhanceOptions()))
	require.NoError(t, err)
	return o
}

func TestFakeRepo_ReadsDoNotAliasStore(t *testing.T) {
	repo := NewFakeOpportunityRepo()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, storedOpportunity(t, "Harding Household")))

	got, err := repo.GetByCustomerName(ctx, "a1", "Harding Household")
	require.NoError(t, err)
	stored := got.Score

	// Mutating a returned entity must not leak into the store until Update.
	got.Score = 0
	got.TalkingPoints = append(got.TalkingPoints, "scratch")

	again, err := repo.GetByID(ctx, got.ID)
	require.NoError(t, err)
	assert.Equal(t, stored, again.Score)
	assert.NotContains(t, again.TalkingPoints, "scratch")

	require.NoError(t, repo.Update(ctx, got))
	after, err := repo.GetByID(ctx, got.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, after.Score)
}

func TestFakeRepo_CreateDoesNotAliasCaller(t *testing.T) {
	repo := NewFakeOpportunityRepo()
	ctx := context.Background()
	o := storedOpportunity(t, "Okafor Family")
	require.NoError(t, repo.Create(ctx, o))

	o.Score = -1
	got, err := repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.NotEqual(t, -1, got.Score)
}
