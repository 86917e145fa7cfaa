package crosssell

import (
	"math"
	"sort"
	"strings"
)

// ---------------------------------------------------------------------------
// Enhancement options
// ---------------------------------------------------------------------------

// Default blending parameters.
const (
	DefaultBlendWeight  = 0.6
	DefaultMinBaseScore = 30

	// leadToBaseRescale converts the 0–100 lead scale to the 0–150 base
	// scale.  This is the single point in the system where the two scales
	// are reconciled.
	leadToBaseRescale = 1.5

	// confidenceCeiling always leaves residual uncertainty.
	confidenceCeiling = 0.95

	passthroughConfidence = 0.7
	skippedConfidence     = 0.6
)

// EnhanceOptions configures the score blending layer.
type EnhanceOptions struct {
	// UseLeadScoring enables the secondary lead-quality estimate.
	UseLeadScoring bool `json:"use_lead_scoring"`

	// BlendWeight is the fraction of the final score attributed to the
	// rescaled lead score; must lie in [0,1].  Defaults to 0.6.
	BlendWeight float64 `json:"blend_weight"`

	// MinBaseScore gates enhancement: records scoring below it are not worth
	// the cost of deeper analysis.  Zero disables the gate so every record is
	// enhanced; negative values reset to the default 30.
	MinBaseScore int `json:"min_base_score"`

	// IncludeBreakdown attaches sub-score and factor detail to the result.
	IncludeBreakdown bool `json:"include_breakdown"`
}

// DefaultEnhanceOptions returns production defaults.
func DefaultEnhanceOptions() EnhanceOptions {
	return EnhanceOptions{
		UseLeadScoring: true,
		BlendWeight:    DefaultBlendWeight,
		MinBaseScore:   DefaultMinBaseScore,
	}
}

// normalize clamps option values into their documented domains.
func (o EnhanceOptions) normalize() EnhanceOptions {
	if o.BlendWeight < 0 || o.BlendWeight > 1 {
		o.BlendWeight = DefaultBlendWeight
	}
	if o.MinBaseScore < 0 {
		o.MinBaseScore = DefaultMinBaseScore
	}
	return o
}

// ---------------------------------------------------------------------------
// Enhanced result
// ---------------------------------------------------------------------------

// EnhancedResult is the blending layer's output for one record.
type EnhancedResult struct {
	Score      int          `json:"score"`
	Tier       PriorityTier `json:"tier"`
	BaseScore  int          `json:"base_score"`
	LeadScore  *int         `json:"lead_score,omitempty"`
	LeadTier   *PriorityTier `json:"lead_tier,omitempty"`
	Enhanced   bool         `json:"enhanced"`
	Confidence float64      `json:"confidence"`

	Base       BaseResult      `json:"base"`
	Breakdown  *ScoreBreakdown `json:"breakdown,omitempty"`
	TopFactors []string        `json:"top_factors,omitempty"`
}

// ---------------------------------------------------------------------------
// Enhancer
// ---------------------------------------------------------------------------

// Enhancer combines the deterministic base score with the lead-quality
// estimate.  It owns no collaborators: plain data in, plain data out.
type Enhancer struct {
	scorer *Scorer
}

// NewEnhancer constructs an Enhancer over the given base scorer.
// A nil scorer gets the default construction.
func NewEnhancer(scorer *Scorer) *Enhancer {
	if scorer == nil {
		scorer = NewScorer()
	}
	return &Enhancer{scorer: scorer}
}

// Enhance scores the record and, when enabled and worthwhile, blends in the
// lead-quality estimate.  Behavior per the documented contract:
//
//   - UseLeadScoring=false: passthrough of the base score/tier, confidence 0.7.
//   - base score < MinBaseScore: enhancement skipped, confidence exactly 0.6.
//   - otherwise: lead score rescaled x1.5 to the base scale, blended as
//     base*(1-w) + rescaledLead*w, rounded, re-tiered, with completeness-driven
//     confidence capped at 0.95.
func (e *Enhancer) Enhance(r *Record, opts EnhanceOptions) EnhancedResult {
	opts = opts.normalize()
	base := e.scorer.Score(r)

	res := EnhancedResult{
		Score:     base.Score,
		Tier:      base.Tier,
		BaseScore: base.Score,
		Base:      base,
	}
	if opts.IncludeBreakdown {
		b := base.Breakdown
		res.Breakdown = &b
	}

	if !opts.UseLeadScoring {
		res.Confidence = passthroughConfidence
		return res
	}
	if base.Score < opts.MinBaseScore {
		// Low-scoring records are not worth the cost of deeper analysis.
		res.Confidence = skippedConfidence
		return res
	}

	lead := ScoreLead(r)
	rescaled := float64(lead.Score) * leadToBaseRescale
	blended := int(math.Round(float64(base.Score)*(1-opts.BlendWeight) + rescaled*opts.BlendWeight))
	if blended > BaseScaleMax {
		blended = BaseScaleMax
	}

	res.Score = blended
	res.Tier = ClassifyTier(blended)
	res.LeadScore = &lead.Score
	res.LeadTier = &lead.Tier
	res.Enhanced = true
	res.Confidence = confidence(r, lead.Score)
	res.TopFactors = topFactors(lead.Factors, 3)
	return res
}

// confidence is a weighted sum of data-completeness signals plus a bonus for
// a strong lead score, capped so some uncertainty always remains.
func confidence(r *Record, leadScore int) float64 {
	c := 0.3
	if strings.TrimSpace(r.Phone) != "" {
		c += 0.1
	}
	if strings.Contains(r.Email, "@") {
		c += 0.1
	}
	if r.RenewalDate != nil || r.DaysUntilRenewal != nil {
		c += 0.1
	}
	if r.TenureYears > 0 {
		c += 0.1
	}
	if r.AnnualPremium > 0 {
		c += 0.1
	}
	if r.Autopay.Resolved() {
		c += 0.1
	}
	if leadScore >= 70 {
		c += 0.05
	}
	if c > confidenceCeiling {
		c = confidenceCeiling
	}
	return c
}

// topFactors returns the n highest-magnitude lead factors rendered as
// human-readable strings.  Ties retain factor-evaluation order.
func topFactors(factors []LeadFactor, n int) []string {
	sorted := make([]LeadFactor, len(factors))
	copy(sorted, factors)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Points > sorted[j].Points
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	out := make([]string, len(sorted))
	for i, f := range sorted {
		out[i] = f.Render()
	}
	return out
}
