// Package opportunity provides the application-level service for opportunity
// lifecycle operations: lookup, listing, dismissal, task linking, and the
// reseed clear.  Scoring happens at ingestion; this package only manages what
// already exists.
package opportunity

import (
	"context"
	"strings"

	domain "github.com/agencypulse/crosssell-intelligence/internal/domain/opportunity"
	"github.com/agencypulse/crosssell-intelligence/internal/infrastructure/monitoring/logging"
	"github.com/agencypulse/crosssell-intelligence/internal/intelligence/crosssell"
	"github.com/agencypulse/crosssell-intelligence/pkg/errors"
	"github.com/agencypulse/crosssell-intelligence/pkg/types/common"
)

// Service defines the opportunity application operations.
type Service interface {
	Get(ctx context.Context, id string) (*domain.Opportunity, error)
	List(ctx context.Context, input *ListInput) (*ListResult, error)

	// Dismiss removes the opportunity from agent queues.  Dismissing twice
	// is a conflict.
	Dismiss(ctx context.Context, id string) (*domain.Opportunity, error)

	// Reopen returns a dismissed opportunity to the ranked list.
	Reopen(ctx context.Context, id string) (*domain.Opportunity, error)

	// LinkTask attaches a follow-up task id, at most once.
	LinkTask(ctx context.Context, id, taskID string) (*domain.Opportunity, error)

	// Clear hard-deletes every opportunity of an agency.  Reseed only.
	Clear(ctx context.Context, agencyID string) (int64, error)
}

// ListInput filters and paginates opportunity listings.
type ListInput struct {
	AgencyID         string
	Tier             string
	Segment          string
	MinScore         int
	IncludeDismissed bool
	SortAscending    bool
	Page             int
	PageSize         int
}

// ListResult is one page of opportunities plus the total match count.
type ListResult struct {
	Opportunities []*domain.Opportunity `json:"opportunities"`
	Total         int64                 `json:"total"`
	Page          int                   `json:"page"`
	PageSize      int                   `json:"page_size"`
}

type serviceImpl struct {
	repo   domain.Repository
	logger logging.Logger
}

// NewService creates the opportunity application service.
func NewService(repo domain.Repository, logger logging.Logger) Service {
	return &serviceImpl{repo: repo, logger: logger.Named("opportunity")}
}

func (s *serviceImpl) Get(ctx context.Context, id string) (*domain.Opportunity, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.InvalidParam("opportunity id must not be empty")
	}
	return s.repo.GetByID(ctx, common.ID(id))
}

var validTiers = map[string]crosssell.PriorityTier{
	"HOT":    crosssell.TierHot,
	"HIGH":   crosssell.TierHigh,
	"MEDIUM": crosssell.TierMedium,
	"LOW":    crosssell.TierLow,
}

var validSegments = map[string]crosssell.SegmentType{
	string(crosssell.SegmentAutoToHome):   crosssell.SegmentAutoToHome,
	string(crosssell.SegmentHomeToAuto):   crosssell.SegmentHomeToAuto,
	string(crosssell.SegmentMonoToBundle): crosssell.SegmentMonoToBundle,
	string(crosssell.SegmentAddLife):      crosssell.SegmentAddLife,
	string(crosssell.SegmentAddUmbrella):  crosssell.SegmentAddUmbrella,
	string(crosssell.SegmentOther):        crosssell.SegmentOther,
}

func (s *serviceImpl) List(ctx context.Context, input *ListInput) (*ListResult, error) {
	if input == nil {
		input = &ListInput{}
	}
	if input.Page <= 0 {
		input.Page = 1
	}
	if input.PageSize <= 0 {
		input.PageSize = 20
	}
	if input.PageSize > 200 {
		input.PageSize = 200
	}

	filter := domain.ListFilter{
		AgencyID:         common.AgencyID(input.AgencyID),
		MinScore:         input.MinScore,
		IncludeDismissed: input.IncludeDismissed,
		Sort:             common.SortDesc,
		Pagination: common.Pagination{
			Page:     input.Page,
			PageSize: input.PageSize,
		},
	}
	if input.SortAscending {
		filter.Sort = common.SortAsc
	}
	if input.Tier != "" {
		tier, ok := validTiers[strings.ToUpper(input.Tier)]
		if !ok {
			return nil, errors.Newf(errors.CodeInvalidParam, "unknown tier %q", input.Tier)
		}
		filter.Tier = &tier
	}
	if input.Segment != "" {
		segment, ok := validSegments[strings.ToLower(input.Segment)]
		if !ok {
			return nil, errors.Newf(errors.CodeInvalidParam, "unknown segment %q", input.Segment)
		}
		filter.Segment = segment
	}

	os, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &ListResult{
		Opportunities: os,
		Total:         total,
		Page:          input.Page,
		PageSize:      input.PageSize,
	}, nil
}

func (s *serviceImpl) Dismiss(ctx context.Context, id string) (*domain.Opportunity, error) {
	return s.mutate(ctx, id, func(o *domain.Opportunity) error { return o.Dismiss() })
}

func (s *serviceImpl) Reopen(ctx context.Context, id string) (*domain.Opportunity, error) {
	return s.mutate(ctx, id, func(o *domain.Opportunity) error { return o.Reopen() })
}

func (s *serviceImpl) LinkTask(ctx context.Context, id, taskID string) (*domain.Opportunity, error) {
	return s.mutate(ctx, id, func(o *domain.Opportunity) error { return o.LinkTask(taskID) })
}

// mutate is the shared load-modify-store path for lifecycle transitions.
func (s *serviceImpl) mutate(ctx context.Context, id string,
	op func(*domain.Opportunity) error) (*domain.Opportunity, error) {

	if strings.TrimSpace(id) == "" {
		return nil, errors.InvalidParam("opportunity id must not be empty")
	}
	o, err := s.repo.GetByID(ctx, common.ID(id))
	if err != nil {
		return nil, err
	}
	if err := op(o); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *serviceImpl) Clear(ctx context.Context, agencyID string) (int64, error) {
	if strings.TrimSpace(agencyID) == "" {
		return 0, errors.InvalidParam("agency id must not be empty")
	}
	removed, err := s.repo.DeleteByAgency(ctx, common.AgencyID(agencyID))
	if err != nil {
		return 0, err
	}
	s.logger.Info("agency cleared for reseed",
		logging.String("agency_id", agencyID), logging.Int64("removed", removed))
	return removed, nil
}
