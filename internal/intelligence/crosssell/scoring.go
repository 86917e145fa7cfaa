package crosssell

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nyaruka/phonenumbers"
)

// ---------------------------------------------------------------------------
// PriorityTier enumeration
// ---------------------------------------------------------------------------

// PriorityTier is the ordered priority bucket derived from the priority score.
type PriorityTier int

const (
	TierLow PriorityTier = iota
	TierMedium
	TierHigh
	TierHot
)

var priorityTierNames = map[PriorityTier]string{
	TierLow:    "LOW",
	TierMedium: "MEDIUM",
	TierHigh:   "HIGH",
	TierHot:    "HOT",
}

func (t PriorityTier) String() string {
	if s, ok := priorityTierNames[t]; ok {
		return s
	}
	return "LOW"
}

// MarshalJSON serialises PriorityTier as a JSON string.
func (t PriorityTier) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON deserialises a JSON string into PriorityTier.
func (t *PriorityTier) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*t = ParsePriorityTier(s)
	return nil
}

// ParsePriorityTier maps a tier name to its PriorityTier; unknown names fall
// back to TierLow.
func ParsePriorityTier(s string) PriorityTier {
	for k, v := range priorityTierNames {
		if v == s {
			return k
		}
	}
	return TierLow
}

// Canonical tier thresholds on the base scale.  The source systems disagreed
// on cutoffs across call sites; this table is the single authority here.
const (
	tierHotThreshold    = 80
	tierHighThreshold   = 60
	tierMediumThreshold = 40
)

// ClassifyTier maps a base-scale score to a PriorityTier.
func ClassifyTier(score int) PriorityTier {
	switch {
	case score >= tierHotThreshold:
		return TierHot
	case score >= tierHighThreshold:
		return TierHigh
	case score >= tierMediumThreshold:
		return TierMedium
	default:
		return TierLow
	}
}

// ---------------------------------------------------------------------------
// Sub-score caps and weights
// ---------------------------------------------------------------------------

// Per-dimension caps.  Their sum (100) is the effective maximum of the base
// scale; the scale's documented bound is 0–150 to leave headroom for the
// rescaled lead score produced by the blending layer.
const (
	MaxGapScore     = 40
	MaxTimingScore  = 25
	MaxValueScore   = 20
	MaxRiskScore    = 10
	MaxContactScore = 5

	// BaseScaleMax bounds every score on the canonical base scale.
	BaseScaleMax = 150
)

// Weights is the tunable sub-score weight profile.  The default profile
// reproduces the documented caps exactly; deployments can hot-reload an
// alternative profile through the configuration watcher.
type Weights struct {
	Gap     float64 `mapstructure:"gap" json:"gap"`
	Timing  float64 `mapstructure:"timing" json:"timing"`
	Value   float64 `mapstructure:"value" json:"value"`
	Risk    float64 `mapstructure:"risk" json:"risk"`
	Contact float64 `mapstructure:"contact" json:"contact"`
}

// DefaultWeights returns the neutral profile (all sub-scores at full weight).
func DefaultWeights() Weights {
	return Weights{Gap: 1, Timing: 1, Value: 1, Risk: 1, Contact: 1}
}

// ---------------------------------------------------------------------------
// Breakdown / result types
// ---------------------------------------------------------------------------

// ScoreBreakdown carries the individual sub-score contributions.
type ScoreBreakdown struct {
	Gap     int `json:"gap"`
	Timing  int `json:"timing"`
	Value   int `json:"value"`
	Risk    int `json:"risk"`
	Contact int `json:"contact"`
}

// Total sums the sub-scores.
func (b ScoreBreakdown) Total() int {
	return b.Gap + b.Timing + b.Value + b.Risk + b.Contact
}

// BaseResult is the outcome of priority-scoring a single record.
type BaseResult struct {
	Score          int            `json:"score"`
	Tier           PriorityTier   `json:"tier"`
	ValueTier      ValueTier      `json:"value_tier"`
	Segment        SegmentType    `json:"segment"`
	Product        string         `json:"product"`
	Holdings       Holdings       `json:"holdings"`
	TrueMonoline   bool           `json:"true_monoline"`
	Breakdown      ScoreBreakdown `json:"breakdown"`
	TalkingPoints  []string       `json:"talking_points"`
	RenewalKnown   bool           `json:"renewal_known"`
	DaysToRenewal  int            `json:"days_to_renewal"`
}

// ---------------------------------------------------------------------------
// Scorer
// ---------------------------------------------------------------------------

// Scorer computes base priority scores.  The zero value is not usable;
// construct with NewScorer.
type Scorer struct {
	weights Weights
	region  string
	now     func() time.Time
}

// ScorerOption mutates Scorer construction parameters.
type ScorerOption func(*Scorer)

// WithWeights installs a non-default weight profile.
func WithWeights(w Weights) ScorerOption {
	return func(s *Scorer) { s.weights = w }
}

// WithPhoneRegion sets the default region for phone-number verification.
func WithPhoneRegion(region string) ScorerOption {
	return func(s *Scorer) {
		if region != "" {
			s.region = region
		}
	}
}

// WithClock overrides the time source; used by tests and by replay scoring.
func WithClock(now func() time.Time) ScorerOption {
	return func(s *Scorer) {
		if now != nil {
			s.now = now
		}
	}
}

// NewScorer constructs a Scorer with the default weight profile, US phone
// region, and wall-clock time.
func NewScorer(opts ...ScorerOption) *Scorer {
	s := &Scorer{
		weights: DefaultWeights(),
		region:  "US",
		now:     time.Now,
	}
	for _, fn := range opts {
		fn(s)
	}
	return s
}

// Score computes the base priority score for one record.  It is a total
// function: unknown or missing fields degrade to the minimum contribution of
// the affected sub-score, never to a failure.
func (s *Scorer) Score(r *Record) BaseResult {
	holdings, mono, rec := Classify(r)
	days, renewalKnown := r.RenewalWindow(s.now())

	b := ScoreBreakdown{
		Gap:     weighted(s.gapScore(holdings, rec.Segment), s.weights.Gap, MaxGapScore),
		Timing:  weighted(s.timingScore(days, renewalKnown), s.weights.Timing, MaxTimingScore),
		Value:   weighted(s.valueScore(r.AnnualPremium, r.TenureYears), s.weights.Value, MaxValueScore),
		Risk:    weighted(s.riskScore(r.BalanceDue, r.Autopay, r.TenureYears), s.weights.Risk, MaxRiskScore),
		Contact: weighted(s.contactScore(r.Phone, r.Email), s.weights.Contact, MaxContactScore),
	}

	score := b.Total()
	if score > BaseScaleMax {
		score = BaseScaleMax
	}

	res := BaseResult{
		Score:         score,
		Tier:          ClassifyTier(score),
		ValueTier:     ClassifyValueTier(r.AnnualPremium, r.PolicyCount),
		Segment:       rec.Segment,
		Product:       rec.Product,
		Holdings:      holdings,
		TrueMonoline:  mono,
		Breakdown:     b,
		RenewalKnown:  renewalKnown,
		DaysToRenewal: days,
	}
	res.TalkingPoints = buildTalkingPoints(r, res)
	return res
}

// weighted applies a profile weight to a raw sub-score and re-clamps to the
// dimension cap.
func weighted(raw int, w float64, limit int) int {
	if w == 1 {
		return raw
	}
	v := int(float64(raw)*w + 0.5)
	if v < 0 {
		return 0
	}
	if v > limit {
		return limit
	}
	return v
}

// gapScore rewards fewer held products, with a bonus for the bundle and
// umbrella conversations.  Capped at MaxGapScore.
func (s *Scorer) gapScore(h Holdings, segment SegmentType) int {
	var base int
	switch h.Count() {
	case 0, 1:
		base = 30
	case 2:
		base = 22
	case 3:
		base = 15
	default:
		base = 8
	}
	switch segment {
	case SegmentMonoToBundle:
		base += 10
	case SegmentAddUmbrella:
		base += 5
	}
	if base > MaxGapScore {
		base = MaxGapScore
	}
	return base
}

// timingScore is a step function on days-until-renewal.  Overdue renewals are
// clamped to zero here (the most urgent bucket); records with no renewal date
// get a flat mid-value: renewal-unknown is moderately promising, not absent.
func (s *Scorer) timingScore(days int, known bool) int {
	if !known {
		return 12
	}
	if days < 0 {
		days = 0
	}
	switch {
	case days <= 30:
		return MaxTimingScore
	case days <= 60:
		return 20
	case days <= 90:
		return 15
	case days <= 120:
		return 10
	case days <= 180:
		return 6
	default:
		return 3
	}
}

// valueScore combines a premium-tier lookup with a tenure bonus, capped at
// MaxValueScore.
func (s *Scorer) valueScore(premium, tenureYears float64) int {
	var v int
	switch {
	case premium >= 3000:
		v = 10
	case premium >= 2000:
		v = 8
	case premium >= 1000:
		v = 5
	case premium > 0:
		v = 2
	}
	switch {
	case tenureYears >= 5:
		v += 10
	case tenureYears >= 3:
		v += 7
	case tenureYears >= 1:
		v += 4
	}
	if v > MaxValueScore {
		v = MaxValueScore
	}
	return v
}

// riskScore starts at a neutral midpoint; balance due subtracts, autopay
// enrollment and long tenure add.  Clamped to [0, MaxRiskScore].
func (s *Scorer) riskScore(balanceDue float64, autopay AutopayStatus, tenureYears float64) int {
	v := MaxRiskScore / 2
	switch {
	case balanceDue >= 500:
		v -= 4
	case balanceDue > 0:
		v -= 2
	}
	if autopay == AutopayYes {
		v += 3
	}
	if tenureYears >= 5 {
		v += 2
	}
	if v < 0 {
		v = 0
	}
	if v > MaxRiskScore {
		v = MaxRiskScore
	}
	return v
}

// contactScore rewards verified contact channels, capped at MaxContactScore.
// A phone that parses as a valid number earns full marks; a bare ten-digit
// string still counts as present.  Email is verified by "@" containment only.
func (s *Scorer) contactScore(phone, email string) int {
	v := 0
	if p := strings.TrimSpace(phone); p != "" {
		if num, err := phonenumbers.Parse(p, s.region); err == nil && phonenumbers.IsValidNumber(num) {
			v += 2
		} else if digitCount(p) >= 10 {
			v++
		}
	}
	if strings.Contains(email, "@") {
		v += 2
	}
	if v > MaxContactScore {
		v = MaxContactScore
	}
	return v
}

func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

// ---------------------------------------------------------------------------
// Talking points
// ---------------------------------------------------------------------------

// buildTalkingPoints produces at most three short agent prompts, ordered by
// relevance: the product pitch first, then renewal urgency, loyalty, and
// billing posture.
func buildTalkingPoints(r *Record, res BaseResult) []string {
	points := make([]string, 0, 4)

	switch res.Segment {
	case SegmentAutoToHome:
		points = append(points, fmt.Sprintf("Auto-only customer: quote %s to start the bundle conversation", res.Product))
	case SegmentHomeToAuto:
		points = append(points, "Property-only customer: an auto quote unlocks multi-policy pricing")
	case SegmentMonoToBundle:
		points = append(points, "Single-line household: lead with full bundle savings")
	case SegmentAddLife:
		points = append(points, "Bundled on P&C but no life coverage: open the life conversation")
	case SegmentAddUmbrella:
		points = append(points, "Well-covered household: umbrella liability is the natural next layer")
	default:
		points = append(points, fmt.Sprintf("Recommend %s", res.Product))
	}

	if res.RenewalKnown {
		switch {
		case res.DaysToRenewal < 0:
			points = append(points, "Renewal is overdue: call today")
		case res.DaysToRenewal <= 30:
			points = append(points, fmt.Sprintf("Renews in %d days: ideal review window", res.DaysToRenewal))
		case res.DaysToRenewal <= 90:
			points = append(points, fmt.Sprintf("Renewal in %d days: schedule a coverage review", res.DaysToRenewal))
		}
	}

	if r.TenureYears >= 5 {
		points = append(points, fmt.Sprintf("%.0f-year customer: lead with loyalty appreciation", r.TenureYears))
	}

	if r.BalanceDue > 0 {
		points = append(points, "Outstanding balance: resolve billing before the pitch")
	} else if r.Autopay == AutopayYes {
		points = append(points, "Autopay enrolled: low-friction add-on billing")
	}

	if len(points) > 3 {
		points = points[:3]
	}
	return points
}
