package opportunity

import (
	"context"

	"github.com/agencypulse/crosssell-intelligence/internal/intelligence/crosssell"
	"github.com/agencypulse/crosssell-intelligence/pkg/types/common"
)

// ListFilter narrows List queries.  Zero values mean "no constraint".
type ListFilter struct {
	AgencyID         common.AgencyID
	Tier             *crosssell.PriorityTier
	Segment          crosssell.SegmentType
	MinScore         int
	IncludeDismissed bool

	// Sort defaults to descending score.
	Sort common.SortOrder

	Pagination common.Pagination
}

// Repository is the persistence contract for the Opportunity aggregate.
type Repository interface {
	// Create persists a new opportunity.
	Create(ctx context.Context, o *Opportunity) error

	// Update persists changed state using optimistic locking on Version;
	// a version mismatch surfaces as a conflict.
	Update(ctx context.Context, o *Opportunity) error

	// GetByID returns the opportunity or a not-found error.
	GetByID(ctx context.Context, id common.ID) (*Opportunity, error)

	// GetByCustomerName is the stable-key join fallback for sources without
	// identifiers: exact (case-folded) name match within an agency.
	GetByCustomerName(ctx context.Context, agencyID common.AgencyID, name string) (*Opportunity, error)

	// List returns opportunities matching the filter, score-descending by
	// default, plus the total matching count for pagination.
	List(ctx context.Context, filter ListFilter) ([]*Opportunity, int64, error)

	// CreateBatch persists many opportunities in one round trip.  Individual
	// row failures are reported per index; rows not listed succeeded.
	CreateBatch(ctx context.Context, os []*Opportunity) (failed map[int]error, err error)

	// DeleteByAgency hard-deletes every opportunity for an agency.  Only the
	// reseed path calls this.
	DeleteByAgency(ctx context.Context, agencyID common.AgencyID) (int64, error)

	// CountByTier returns per-tier totals for the dashboard.
	CountByTier(ctx context.Context, agencyID common.AgencyID) (map[string]int64, error)
}
