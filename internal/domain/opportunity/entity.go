// Package opportunity implements the cross-sell Opportunity bounded context:
// the aggregate root, its lifecycle invariants, and the repository contract.
// Scoring itself is delegated to the intelligence layer; this package owns
// what happens to a scored opportunity afterwards.
package opportunity

import (
	"fmt"
	"strings"
	"time"

	"github.com/agencypulse/crosssell-intelligence/internal/intelligence/crosssell"
	"github.com/agencypulse/crosssell-intelligence/pkg/errors"
	"github.com/agencypulse/crosssell-intelligence/pkg/types/common"
)

const maxTalkingPoints = 3

// ─────────────────────────────────────────────────────────────────────────────
// Opportunity aggregate root
// ─────────────────────────────────────────────────────────────────────────────

// Opportunity is the aggregate root of the cross-sell bounded context.  One
// opportunity exists per customer household; re-ingesting the same customer
// updates the existing aggregate through ApplyScore rather than creating a
// duplicate.
//
// Consumers must never modify fields directly; mutations go through the
// exported methods so invariants hold.
type Opportunity struct {
	// ── Identity and audit ───────────────────────────────────────────────────
	common.BaseEntity

	CustomerName string          `json:"customer_name"`
	AgencyID     common.AgencyID `json:"agency_id,omitempty"`

	// ── Policy facts ─────────────────────────────────────────────────────────
	Products      string             `json:"products"`
	Holdings      crosssell.Holdings `json:"holdings"`
	PolicyCount   int                `json:"policy_count"`
	TrueMonoline  bool               `json:"true_monoline"`
	AnnualPremium float64            `json:"annual_premium"`
	TenureYears   float64            `json:"tenure_years"`

	// ── Renewal facts ────────────────────────────────────────────────────────
	RenewalDate      *time.Time `json:"renewal_date,omitempty"`
	DaysUntilRenewal *int       `json:"days_until_renewal,omitempty"` // signed: negative is overdue

	// ── Billing facts ────────────────────────────────────────────────────────
	BalanceDue float64                 `json:"balance_due"`
	Autopay    crosssell.AutopayStatus `json:"autopay"`

	// ── Contact facts ────────────────────────────────────────────────────────
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`

	// ── Derived scoring fields ───────────────────────────────────────────────
	Segment            crosssell.SegmentType  `json:"segment"`
	RecommendedProduct string                 `json:"recommended_product"`
	Score              int                    `json:"score"`
	Tier               crosssell.PriorityTier `json:"tier"`
	ValueTier          crosssell.ValueTier    `json:"value_tier"`
	Confidence         float64                `json:"confidence"`
	Enhanced           bool                   `json:"enhanced"`
	TalkingPoints      []string               `json:"talking_points,omitempty"`
	ScoredAt           time.Time              `json:"scored_at"`

	// ── Lifecycle ────────────────────────────────────────────────────────────
	Dismissed   bool       `json:"dismissed"`
	DismissedAt *time.Time `json:"dismissed_at,omitempty"`

	// TaskID links the follow-up task created for this opportunity.  Set at
	// most once; a second link attempt is a conflict.
	TaskID *string `json:"task_id,omitempty"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Factory
// ─────────────────────────────────────────────────────────────────────────────

// New creates an Opportunity from an ingested record and its scoring result.
// The customer name must be non-empty; nameless rows are dropped upstream, so
// reaching here with one is a programming error surfaced as validation.
func New(r *crosssell.Record, res crosssell.EnhancedResult) (*Opportunity, error) {
	name := strings.TrimSpace(r.CustomerName)
	if name == "" {
		return nil, errors.Validation("opportunity requires a customer name")
	}

	now := time.Now().UTC()
	o := &Opportunity{
		BaseEntity: common.BaseEntity{
			ID:        common.NewID(),
			CreatedAt: now,
			UpdatedAt: now,
			Version:   1,
		},
		CustomerName:     name,
		AgencyID:         common.AgencyID(r.AgencyID),
		Products:         r.Products,
		PolicyCount:      r.PolicyCount,
		AnnualPremium:    r.AnnualPremium,
		TenureYears:      r.TenureYears,
		RenewalDate:      r.RenewalDate,
		DaysUntilRenewal: r.DaysUntilRenewal,
		BalanceDue:       r.BalanceDue,
		Autopay:          r.Autopay,
		Phone:            r.Phone,
		Email:            r.Email,
	}
	o.applyResult(res, now)
	return o, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Lifecycle operations
// ─────────────────────────────────────────────────────────────────────────────

// ApplyScore replaces the derived scoring fields with a fresh result.  This is
// the re-ingest path: policy facts may have changed, so the record's facts are
// copied in alongside the new scores.  Dismissal state and the task link are
// preserved across rescores.
func (o *Opportunity) ApplyScore(r *crosssell.Record, res crosssell.EnhancedResult) {
	now := time.Now().UTC()
	o.Products = r.Products
	o.PolicyCount = r.PolicyCount
	o.AnnualPremium = r.AnnualPremium
	o.TenureYears = r.TenureYears
	o.RenewalDate = r.RenewalDate
	o.DaysUntilRenewal = r.DaysUntilRenewal
	o.BalanceDue = r.BalanceDue
	o.Autopay = r.Autopay
	if r.Phone != "" {
		o.Phone = r.Phone
	}
	if r.Email != "" {
		o.Email = r.Email
	}
	o.applyResult(res, now)
	o.touch()
}

// applyResult copies derived fields from the scoring result.
func (o *Opportunity) applyResult(res crosssell.EnhancedResult, at time.Time) {
	o.Holdings = res.Base.Holdings
	o.TrueMonoline = res.Base.TrueMonoline
	o.Segment = res.Base.Segment
	o.RecommendedProduct = res.Base.Product
	o.Score = res.Score
	o.Tier = res.Tier
	o.ValueTier = res.Base.ValueTier
	o.Confidence = res.Confidence
	o.Enhanced = res.Enhanced
	o.ScoredAt = at

	points := res.Base.TalkingPoints
	if len(points) > maxTalkingPoints {
		points = points[:maxTalkingPoints]
	}
	o.TalkingPoints = points
}

// Dismiss marks the opportunity as not actionable.  Dismissing an already
// dismissed opportunity is a conflict, not a no-op: callers that see it have
// stale state.
func (o *Opportunity) Dismiss() error {
	if o.Dismissed {
		return errors.New(errors.CodeOpportunityDismissed,
			fmt.Sprintf("opportunity %s is already dismissed", o.ID))
	}
	now := time.Now().UTC()
	o.Dismissed = true
	o.DismissedAt = &now
	o.touch()
	return nil
}

// Reopen clears a dismissal so the opportunity re-enters the ranked list.
func (o *Opportunity) Reopen() error {
	if !o.Dismissed {
		return errors.Conflict(
			fmt.Sprintf("opportunity %s is not dismissed", o.ID))
	}
	o.Dismissed = false
	o.DismissedAt = nil
	o.touch()
	return nil
}

// LinkTask associates a follow-up task.  The link is set at most once.
func (o *Opportunity) LinkTask(taskID string) error {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return errors.InvalidParam("task id must not be empty")
	}
	if o.TaskID != nil {
		return errors.New(errors.CodeTaskAlreadyLinked,
			fmt.Sprintf("opportunity %s already has task %s linked", o.ID, *o.TaskID))
	}
	o.TaskID = &taskID
	o.touch()
	return nil
}

// Actionable reports whether the opportunity should appear in agent queues.
func (o *Opportunity) Actionable() bool {
	return !o.Dismissed
}

// touch updates UpdatedAt and bumps the optimistic-lock Version.
// It must be called at the end of every mutating method.
func (o *Opportunity) touch() {
	o.UpdatedAt = time.Now().UTC()
	o.Version++
}
