// Package dashboard provides the presentation-facing application service: it
// re-runs the scoring pipeline over stored opportunities with caller-supplied
// options and serves ranked snapshots and aggregate summaries, cached in
// Redis.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/agencypulse/crosssell-intelligence/internal/domain/opportunity"
	"github.com/agencypulse/crosssell-intelligence/internal/infrastructure/monitoring/logging"
	"github.com/agencypulse/crosssell-intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/agencypulse/crosssell-intelligence/internal/intelligence/crosssell"
	"github.com/agencypulse/crosssell-intelligence/pkg/errors"
	"github.com/agencypulse/crosssell-intelligence/pkg/types/common"
)

const cacheKeyPrefix = "dashboard:"

// ─────────────────────────────────────────────────────────────────────────────
// Collaborator contracts
// ─────────────────────────────────────────────────────────────────────────────

// SnapshotCache is the dashboard's caching contract.  Satisfied by the Redis
// cache; a nil cache disables caching entirely.
type SnapshotCache interface {
	GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration,
		loader func(ctx context.Context) (interface{}, error)) error
	DeleteByPrefix(ctx context.Context, prefix string) (int64, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// Service interface
// ─────────────────────────────────────────────────────────────────────────────

// Service defines the dashboard application operations.
type Service interface {
	// Ranked re-scores an agency's stored opportunities with the given
	// options and returns the ranked snapshot.
	Ranked(ctx context.Context, input *RankedInput) (*RankedResult, error)

	// Summary returns aggregate statistics for an agency.
	Summary(ctx context.Context, agencyID string) (*Summary, error)

	// Preview scores ad-hoc records without touching storage or cache.
	Preview(ctx context.Context, records []*crosssell.Record, opts ScoreOptions) (*crosssell.BatchResult, error)

	// Invalidate drops an agency's cached snapshots after a re-ingest.
	Invalidate(ctx context.Context, agencyID string) error
}

// ScoreOptions is the caller-facing tuning surface.  Nil pointer fields fall
// back to the configured defaults; explicit values are validated, not
// silently corrected.
type ScoreOptions struct {
	UseLeadScoring   *bool    `json:"use_lead_scoring,omitempty"`
	BlendWeight      *float64 `json:"blend_weight,omitempty"`
	MinBaseScore     *int     `json:"min_base_score,omitempty"`
	IncludeBreakdown bool     `json:"include_breakdown,omitempty"`

	TopN   int `json:"top_n,omitempty"`
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// Validate rejects option values outside their documented domains.
func (o ScoreOptions) Validate() error {
	if o.BlendWeight != nil && (*o.BlendWeight < 0 || *o.BlendWeight > 1) {
		return errors.Newf(errors.CodeScoreOptionsInvalid,
			"blend_weight %v outside [0,1]", *o.BlendWeight)
	}
	if o.MinBaseScore != nil && (*o.MinBaseScore < 0 || *o.MinBaseScore > crosssell.BaseScaleMax) {
		return errors.Newf(errors.CodeScoreOptionsInvalid,
			"min_base_score %d outside [0,%d]", *o.MinBaseScore, crosssell.BaseScaleMax)
	}
	if o.TopN < 0 || o.Limit < 0 || o.Offset < 0 {
		return errors.New(errors.CodeScoreOptionsInvalid,
			"top_n, limit and offset must not be negative")
	}
	return nil
}

// resolve merges caller options over the configured defaults.
func (o ScoreOptions) resolve(defaults crosssell.EnhanceOptions) crosssell.EnhanceOptions {
	out := defaults
	if o.UseLeadScoring != nil {
		out.UseLeadScoring = *o.UseLeadScoring
	}
	if o.BlendWeight != nil {
		out.BlendWeight = *o.BlendWeight
	}
	if o.MinBaseScore != nil {
		out.MinBaseScore = *o.MinBaseScore
	}
	out.IncludeBreakdown = o.IncludeBreakdown
	return out
}

// RankedInput selects and tunes a ranked snapshot.
type RankedInput struct {
	AgencyID string
	Options  ScoreOptions
}

// RankedItem is one row of the ranked dashboard.
type RankedItem struct {
	OpportunityID      string                    `json:"opportunity_id"`
	CustomerName       string                    `json:"customer_name"`
	Segment            crosssell.SegmentType     `json:"segment"`
	RecommendedProduct string                    `json:"recommended_product"`
	Score              int                       `json:"score"`
	Tier               crosssell.PriorityTier    `json:"tier"`
	ValueTier          crosssell.ValueTier       `json:"value_tier"`
	Confidence         float64                   `json:"confidence"`
	Enhanced           bool                      `json:"enhanced"`
	AnnualPremium      float64                   `json:"annual_premium"`
	DaysUntilRenewal   *int                      `json:"days_until_renewal,omitempty"`
	TalkingPoints      []string                  `json:"talking_points,omitempty"`
	Breakdown          *crosssell.ScoreBreakdown `json:"breakdown,omitempty"`
}

// RankedResult is the ranked snapshot plus pipeline statistics.
type RankedResult struct {
	Items       []RankedItem         `json:"items"`
	Stats       crosssell.BatchStats `json:"stats"`
	GeneratedAt time.Time            `json:"generated_at"`
}

// Summary aggregates an agency's book for the overview widgets.
type Summary struct {
	Total         int64            `json:"total"`
	Dismissed     int64            `json:"dismissed"`
	ByTier        map[string]int64 `json:"by_tier"`
	BySegment     map[string]int64 `json:"by_segment"`
	Monoline      int64            `json:"monoline"`
	MeanScore     float64          `json:"mean_score"`
	PremiumOnBook float64          `json:"premium_on_book"`
	GeneratedAt   time.Time        `json:"generated_at"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Implementation
// ─────────────────────────────────────────────────────────────────────────────

// Options carries the dashboard service configuration.
type Options struct {
	Defaults    crosssell.EnhanceOptions
	Weights     crosssell.Weights
	PhoneRegion string
	CacheTTL    time.Duration
	DefaultTopN int
	Concurrency int
}

type serviceImpl struct {
	repo         opportunity.Repository
	cache        SnapshotCache
	metrics      *prometheus.Metrics
	logger       logging.Logger
	opts         Options
	orchestrator *crosssell.Orchestrator
}

// NewService creates the dashboard service.  Cache may be nil, which turns
// every read into a pipeline run.
func NewService(
	repo opportunity.Repository,
	cache SnapshotCache,
	metrics *prometheus.Metrics,
	logger logging.Logger,
	opts Options,
) Service {
	scorerOpts := []crosssell.ScorerOption{crosssell.WithWeights(opts.Weights)}
	if opts.PhoneRegion != "" {
		scorerOpts = append(scorerOpts, crosssell.WithPhoneRegion(opts.PhoneRegion))
	}
	enhancer := crosssell.NewEnhancer(crosssell.NewScorer(scorerOpts...))
	var orchOpts []crosssell.OrchestratorOption
	if opts.Concurrency > 0 {
		orchOpts = append(orchOpts, crosssell.WithConcurrency(opts.Concurrency))
	}
	return &serviceImpl{
		repo:         repo,
		cache:        cache,
		metrics:      metrics,
		logger:       logger.Named("dashboard"),
		opts:         opts,
		orchestrator: crosssell.NewOrchestrator(enhancer, orchOpts...),
	}
}

func (s *serviceImpl) Ranked(ctx context.Context, input *RankedInput) (*RankedResult, error) {
	if input == nil {
		return nil, errors.InvalidParam("ranked input must not be nil")
	}
	if err := input.Options.Validate(); err != nil {
		return nil, err
	}

	opts := input.Options
	if opts.TopN == 0 && s.opts.DefaultTopN > 0 {
		opts.TopN = s.opts.DefaultTopN
	}

	if s.cache == nil {
		return s.buildRanked(ctx, input.AgencyID, opts)
	}

	result := &RankedResult{}
	missed := false
	load := func(ctx context.Context) (interface{}, error) {
		missed = true
		s.metrics.CacheMissesTotal.Inc()
		return s.buildRanked(ctx, input.AgencyID, opts)
	}

	key := rankedCacheKey(input.AgencyID, opts.resolve(s.opts.Defaults), opts)
	if err := s.cache.GetOrSet(ctx, key, result, s.opts.CacheTTL, load); err != nil {
		return nil, err
	}
	if !missed {
		s.metrics.CacheHitsTotal.Inc()
	}
	return result, nil
}

// buildRanked loads the agency's live opportunities and re-runs the pipeline.
func (s *serviceImpl) buildRanked(ctx context.Context, agencyID string, opts ScoreOptions) (*RankedResult, error) {
	os, _, err := s.repo.List(ctx, opportunity.ListFilter{
		AgencyID: common.AgencyID(agencyID),
	})
	if err != nil {
		return nil, err
	}

	records := make([]*crosssell.Record, len(os))
	byRecord := make(map[*crosssell.Record]*opportunity.Opportunity, len(os))
	for i, o := range os {
		rec := toRecord(o)
		records[i] = rec
		byRecord[rec] = o
	}

	batch, err := s.orchestrator.Run(ctx, records, crosssell.BatchOptions{
		Enhance: opts.resolve(s.opts.Defaults),
		TopN:    opts.TopN,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
	if err != nil {
		return nil, err
	}

	items := make([]RankedItem, len(batch.Records))
	for i, sr := range batch.Records {
		o := byRecord[sr.Record]
		items[i] = RankedItem{
			OpportunityID:      string(o.ID),
			CustomerName:       o.CustomerName,
			Segment:            sr.Result.Base.Segment,
			RecommendedProduct: sr.Result.Base.Product,
			Score:              sr.Result.Score,
			Tier:               sr.Result.Tier,
			ValueTier:          sr.Result.Base.ValueTier,
			Confidence:         sr.Result.Confidence,
			Enhanced:           sr.Result.Enhanced,
			AnnualPremium:      o.AnnualPremium,
			DaysUntilRenewal:   o.DaysUntilRenewal,
			TalkingPoints:      sr.Result.Base.TalkingPoints,
			Breakdown:          sr.Result.Breakdown,
		}
	}

	return &RankedResult{
		Items:       items,
		Stats:       batch.Stats,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

func (s *serviceImpl) Summary(ctx context.Context, agencyID string) (*Summary, error) {
	if s.cache == nil {
		return s.buildSummary(ctx, agencyID)
	}

	summary := &Summary{}
	missed := false
	load := func(ctx context.Context) (interface{}, error) {
		missed = true
		s.metrics.CacheMissesTotal.Inc()
		return s.buildSummary(ctx, agencyID)
	}
	key := cacheKeyPrefix + agencyID + ":summary"
	if err := s.cache.GetOrSet(ctx, key, summary, s.opts.CacheTTL, load); err != nil {
		return nil, err
	}
	if !missed {
		s.metrics.CacheHitsTotal.Inc()
	}
	return summary, nil
}

func (s *serviceImpl) buildSummary(ctx context.Context, agencyID string) (*Summary, error) {
	byTier, err := s.repo.CountByTier(ctx, common.AgencyID(agencyID))
	if err != nil {
		return nil, err
	}
	os, _, err := s.repo.List(ctx, opportunity.ListFilter{
		AgencyID:         common.AgencyID(agencyID),
		IncludeDismissed: true,
	})
	if err != nil {
		return nil, err
	}

	sum := &Summary{
		ByTier:      byTier,
		BySegment:   make(map[string]int64),
		GeneratedAt: time.Now().UTC(),
	}
	var scoreTotal int64
	var live int64
	for _, o := range os {
		sum.Total++
		if o.Dismissed {
			sum.Dismissed++
			continue
		}
		live++
		sum.BySegment[string(o.Segment)]++
		if o.TrueMonoline {
			sum.Monoline++
		}
		scoreTotal += int64(o.Score)
		sum.PremiumOnBook += o.AnnualPremium
	}
	if live > 0 {
		sum.MeanScore = float64(scoreTotal) / float64(live)
	}
	return sum, nil
}

func (s *serviceImpl) Preview(ctx context.Context, records []*crosssell.Record, opts ScoreOptions) (*crosssell.BatchResult, error) {
	if len(records) == 0 {
		return nil, errors.InvalidParam("preview requires at least one record")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	for i, r := range records {
		if err := r.Validate(); err != nil {
			return nil, errors.Validation(fmt.Sprintf("record %d: %v", i, err))
		}
	}
	return s.orchestrator.Run(ctx, records, crosssell.BatchOptions{
		Enhance: opts.resolve(s.opts.Defaults),
		TopN:    opts.TopN,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
}

func (s *serviceImpl) Invalidate(ctx context.Context, agencyID string) error {
	if s.cache == nil {
		return nil
	}
	removed, err := s.cache.DeleteByPrefix(ctx, cacheKeyPrefix+agencyID+":")
	if err != nil {
		return err
	}
	s.logger.Debug("dashboard cache invalidated",
		logging.String("agency_id", agencyID), logging.Int64("removed", removed))
	return nil
}

// rankedCacheKey folds every score-affecting option into the key so distinct
// views never collide.
func rankedCacheKey(agencyID string, e crosssell.EnhanceOptions, o ScoreOptions) string {
	return fmt.Sprintf("%s%s:ranked:%t:%.3f:%d:%t:%d:%d:%d",
		cacheKeyPrefix, agencyID,
		e.UseLeadScoring, e.BlendWeight, e.MinBaseScore, e.IncludeBreakdown,
		o.TopN, o.Limit, o.Offset)
}

// toRecord rebuilds the engine input from stored policy facts.
func toRecord(o *opportunity.Opportunity) *crosssell.Record {
	h := o.Holdings
	return &crosssell.Record{
		CustomerName:     o.CustomerName,
		AgencyID:         string(o.AgencyID),
		Products:         o.Products,
		Holdings:         &h,
		PolicyCount:      o.PolicyCount,
		AnnualPremium:    o.AnnualPremium,
		TenureYears:      o.TenureYears,
		RenewalDate:      o.RenewalDate,
		DaysUntilRenewal: o.DaysUntilRenewal,
		BalanceDue:       o.BalanceDue,
		Autopay:          o.Autopay,
		Phone:            o.Phone,
		Email:            o.Email,
	}
}
