package crosssell

import "fmt"

// ---------------------------------------------------------------------------
// Lead-quality scoring (0–100 scale)
// ---------------------------------------------------------------------------

// leadScoreVersion tracks the lead-quality model for debugging and analysis.
// Bump when changing factor logic significantly.
const leadScoreVersion = "2026-v1"

// LeadScaleMax bounds the lead-quality scale.
const LeadScaleMax = 100

// LeadFactor is one named contribution to the lead-quality score.
type LeadFactor struct {
	Name   string `json:"name"`
	Points int    `json:"points"`
	Detail string `json:"detail,omitempty"`
}

// Render formats a factor as a human-readable string with its point value.
func (f LeadFactor) Render() string {
	if f.Detail != "" {
		return fmt.Sprintf("%s (%s): +%d pts", f.Name, f.Detail, f.Points)
	}
	return fmt.Sprintf("%s: +%d pts", f.Name, f.Points)
}

// LeadResult is the outcome of lead-quality estimation for one record.
type LeadResult struct {
	Score   int          `json:"score"`
	Tier    PriorityTier `json:"tier"`
	Factors []LeadFactor `json:"factors"`
	Version string       `json:"version"`
}

// classifyLeadTier maps a 0–100 lead score to a PriorityTier using the
// lead-scale cutoffs (distinct from the base-scale table: the two
// scales are reconciled only inside the blending layer).
func classifyLeadTier(score int) PriorityTier {
	switch {
	case score >= 75:
		return TierHot
	case score >= 55:
		return TierHigh
	case score >= 35:
		return TierMedium
	default:
		return TierLow
	}
}

// ScoreLead estimates lead quality on the 0–100 scale from demographic and
// behavioral proxies: age bracket estimated from tenure, homeowner status
// inferred from product text, credit tier inferred from payment behavior, and
// engagement inferred from autopay plus tenure.  Like the base scorer it is a
// total function; missing inputs contribute their minimum.
func ScoreLead(r *Record) LeadResult {
	factors := make([]LeadFactor, 0, 6)
	add := func(name string, points int, detail string) {
		if points > 0 {
			factors = append(factors, LeadFactor{Name: name, Points: points, Detail: detail})
		}
	}

	// Age bracket proxy: tenure approximates household maturity; the prime
	// cross-sell brackets score highest.
	switch {
	case r.TenureYears >= 15:
		add("Established household", 8, "est. age 55+")
	case r.TenureYears >= 8:
		add("Established household", 12, "est. age 45-54")
	case r.TenureYears >= 3:
		add("Prime household age", 15, "est. age 35-44")
	default:
		add("Young household", 10, "est. age 25-34")
	}

	// Homeowner inference from held product lines.
	h := r.EffectiveHoldings()
	switch {
	case h.Property:
		add("Homeowner", 25, "inferred from property policy")
	case h.Auto:
		add("Possible renter", 10, "auto coverage only")
	}

	// Credit-tier proxy from payment behavior.
	switch {
	case r.BalanceDue == 0 && r.Autopay == AutopayYes:
		add("Excellent payment profile", 20, "current, autopay enrolled")
	case r.BalanceDue == 0:
		add("Good payment profile", 12, "account current")
	case r.Autopay == AutopayYes:
		add("Fair payment profile", 8, "balance due, autopay enrolled")
	default:
		add("Payment attention needed", 3, "outstanding balance")
	}

	// Engagement: autopay posture plus relationship length, capped at 20.
	engagement := 0
	switch r.Autopay {
	case AutopayYes:
		engagement += 10
	case AutopayPending:
		engagement += 5
	}
	switch {
	case r.TenureYears >= 5:
		engagement += 10
	case r.TenureYears >= 2:
		engagement += 5
	}
	if engagement > 20 {
		engagement = 20
	}
	add("Engagement", engagement, "autopay + tenure")

	// Relationship depth.
	switch {
	case r.PolicyCount >= 3:
		add("Deep relationship", 15, fmt.Sprintf("%d policies", r.PolicyCount))
	case r.PolicyCount == 2:
		add("Multi-policy", 10, "2 policies")
	case r.PolicyCount == 1:
		add("Single policy", 5, "")
	}

	// Premium capacity.
	switch {
	case r.AnnualPremium >= 5000:
		add("High premium capacity", 10, fmt.Sprintf("$%.0f/yr", r.AnnualPremium))
	case r.AnnualPremium >= 2500:
		add("Solid premium capacity", 7, fmt.Sprintf("$%.0f/yr", r.AnnualPremium))
	case r.AnnualPremium >= 1000:
		add("Moderate premium", 4, "")
	}

	score := 0
	for _, f := range factors {
		score += f.Points
	}
	if score > LeadScaleMax {
		score = LeadScaleMax
	}

	return LeadResult{
		Score:   score,
		Tier:    classifyLeadTier(score),
		Factors: factors,
		Version: leadScoreVersion,
	}
}
