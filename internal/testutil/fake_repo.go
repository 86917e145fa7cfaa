package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/agencypulse/crosssell-intelligence/internal/domain/opportunity"
	"github.com/agencypulse/crosssell-intelligence/pkg/errors"
	"github.com/agencypulse/crosssell-intelligence/pkg/types/common"
)

// FakeOpportunityRepo is an in-memory opportunity.Repository for service
// tests.  Reads return copies, matching the real repository where every scan
// produces a fresh object; a returned entity never aliases stored state.
// Error injection hooks let tests force individual operations to fail;
// FailRows forces per-row CreateBatch failures by index.
type FakeOpportunityRepo struct {
	mu    sync.Mutex
	store map[common.ID]*opportunity.Opportunity

	CreateErr error
	UpdateErr error
	GetErr    error
	ListErr   error
	BatchErr  error
	FailRows  map[int]error
}

var _ opportunity.Repository = (*FakeOpportunityRepo)(nil)

// NewFakeOpportunityRepo creates an empty fake repository.
func NewFakeOpportunityRepo() *FakeOpportunityRepo {
	return &FakeOpportunityRepo{store: make(map[common.ID]*opportunity.Opportunity)}
}

// clone deep-copies an opportunity so callers and the store never share
// pointer or slice state.
func clone(o *opportunity.Opportunity) *opportunity.Opportunity {
	c := *o
	if o.RenewalDate != nil {
		v := *o.RenewalDate
		c.RenewalDate = &v
	}
	if o.DaysUntilRenewal != nil {
		v := *o.DaysUntilRenewal
		c.DaysUntilRenewal = &v
	}
	if o.DismissedAt != nil {
		v := *o.DismissedAt
		c.DismissedAt = &v
	}
	if o.TaskID != nil {
		v := *o.TaskID
		c.TaskID = &v
	}
	if o.TalkingPoints != nil {
		c.TalkingPoints = append([]string(nil), o.TalkingPoints...)
	}
	return &c
}

func (f *FakeOpportunityRepo) Create(ctx context.Context, o *opportunity.Opportunity) error {
	if f.CreateErr != nil {
		return f.CreateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.store[o.ID] = clone(o)
	return nil
}

func (f *FakeOpportunityRepo) Update(ctx context.Context, o *opportunity.Opportunity) error {
	if f.UpdateErr != nil {
		return f.UpdateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.store[o.ID]; !ok {
		return errors.New(errors.CodeOpportunityNotFound, "opportunity not found")
	}
	f.store[o.ID] = clone(o)
	return nil
}

func (f *FakeOpportunityRepo) GetByID(ctx context.Context, id common.ID) (*opportunity.Opportunity, error) {
	if f.GetErr != nil {
		return nil, f.GetErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.store[id]
	if !ok {
		return nil, errors.New(errors.CodeOpportunityNotFound, "opportunity not found")
	}
	return clone(o), nil
}

func (f *FakeOpportunityRepo) GetByCustomerName(ctx context.Context, agencyID common.AgencyID, name string) (*opportunity.Opportunity, error) {
	if f.GetErr != nil {
		return nil, f.GetErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.store {
		if o.AgencyID == agencyID && strings.EqualFold(o.CustomerName, name) {
			return clone(o), nil
		}
	}
	return nil, errors.New(errors.CodeOpportunityNotFound, "opportunity not found")
}

func (f *FakeOpportunityRepo) List(ctx context.Context, filter opportunity.ListFilter) ([]*opportunity.Opportunity, int64, error) {
	if f.ListErr != nil {
		return nil, 0, f.ListErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*opportunity.Opportunity
	for _, o := range f.store {
		if filter.AgencyID != "" && o.AgencyID != filter.AgencyID {
			continue
		}
		if filter.Tier != nil && o.Tier != *filter.Tier {
			continue
		}
		if filter.Segment != "" && o.Segment != filter.Segment {
			continue
		}
		if o.Score < filter.MinScore {
			continue
		}
		if o.Dismissed && !filter.IncludeDismissed {
			continue
		}
		out = append(out, clone(o))
	}
	sortByScore(out, filter.Sort)
	total := int64(len(out))
	out = applyPagination(out, filter.Pagination)
	return out, total, nil
}

func (f *FakeOpportunityRepo) CreateBatch(ctx context.Context, os []*opportunity.Opportunity) (map[int]error, error) {
	if f.BatchErr != nil {
		return nil, f.BatchErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	failed := make(map[int]error)
	for i, o := range os {
		if err, ok := f.FailRows[i]; ok {
			failed[i] = err
			continue
		}
		f.store[o.ID] = clone(o)
	}
	return failed, nil
}

func (f *FakeOpportunityRepo) DeleteByAgency(ctx context.Context, agencyID common.AgencyID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, o := range f.store {
		if o.AgencyID == agencyID {
			delete(f.store, id)
			n++
		}
	}
	return n, nil
}

func (f *FakeOpportunityRepo) CountByTier(ctx context.Context, agencyID common.AgencyID) (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[string]int64)
	for _, o := range f.store {
		if agencyID != "" && o.AgencyID != agencyID {
			continue
		}
		if o.Dismissed {
			continue
		}
		counts[o.Tier.String()]++
	}
	return counts, nil
}

// Len reports the number of stored opportunities.
func (f *FakeOpportunityRepo) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.store)
}

// All returns every stored opportunity in unspecified order.
func (f *FakeOpportunityRepo) All() []*opportunity.Opportunity {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*opportunity.Opportunity, 0, len(f.store))
	for _, o := range f.store {
		out = append(out, clone(o))
	}
	return out
}

func sortByScore(os []*opportunity.Opportunity, order common.SortOrder) {
	asc := order == common.SortAsc
	sort.SliceStable(os, func(i, j int) bool {
		if asc {
			return os[i].Score < os[j].Score
		}
		return os[i].Score > os[j].Score
	})
}

func applyPagination(os []*opportunity.Opportunity, p common.Pagination) []*opportunity.Opportunity {
	if p.PageSize <= 0 {
		return os
	}
	off := p.Offset()
	if off >= len(os) {
		return nil
	}
	end := off + p.PageSize
	if end > len(os) {
		end = len(os)
	}
	return os[off:end]
}
