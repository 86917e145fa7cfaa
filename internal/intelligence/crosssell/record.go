// Package crosssell implements the cross-sell opportunity scoring and
// segmentation engine: customer-value tiering, product-gap classification,
// priority scoring, lead-quality estimation, score blending, and batch
// orchestration.  Every function in this package is deterministic and free of
// I/O; collaborators (ingestion, persistence, transport) live in the
// application and infrastructure layers and pass plain data in.
package crosssell

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// AutopayStatus enumeration
// ---------------------------------------------------------------------------

// AutopayStatus is the tri-state billing automation enrollment.
type AutopayStatus int

const (
	AutopayUnknown AutopayStatus = iota
	AutopayNo
	AutopayPending
	AutopayYes
)

var autopayNames = map[AutopayStatus]string{
	AutopayUnknown: "UNKNOWN",
	AutopayNo:      "NO",
	AutopayPending: "PENDING",
	AutopayYes:     "YES",
}

func (s AutopayStatus) String() string {
	if n, ok := autopayNames[s]; ok {
		return n
	}
	return "UNKNOWN"
}

// Resolved reports whether enrollment is settled one way or the other.
// Pending and unknown statuses count against data completeness.
func (s AutopayStatus) Resolved() bool {
	return s == AutopayYes || s == AutopayNo
}

// MarshalJSON serialises AutopayStatus as a JSON string.
func (s AutopayStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON deserialises a JSON string into AutopayStatus.
func (s *AutopayStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = ParseAutopayStatus(str)
	return nil
}

// ParseAutopayStatus maps free-text enrollment values ("Yes", "ezpay active",
// "pending enrollment", ...) to the tri-state.  Unrecognised text maps to
// AutopayUnknown rather than an error.
func ParseAutopayStatus(raw string) AutopayStatus {
	switch v := strings.ToLower(strings.TrimSpace(raw)); {
	case v == "":
		return AutopayUnknown
	case strings.Contains(v, "pend"):
		return AutopayPending
	case strings.HasPrefix(v, "y") || strings.Contains(v, "active") || strings.Contains(v, "enrolled"):
		return AutopayYes
	case strings.HasPrefix(v, "n"):
		return AutopayNo
	default:
		return AutopayUnknown
	}
}

// ---------------------------------------------------------------------------
// Record: the flat scoring input
// ---------------------------------------------------------------------------

// Record is one customer cross-sell candidate, reduced by the ingestion layer
// to the flat shape the engine scores.  All fields are optional except
// CustomerName; missing values degrade to minimum sub-score contributions,
// never to an error.
type Record struct {
	// CustomerName is free text, not a stable key.  Rows without it are
	// dropped upstream before reaching the engine.
	CustomerName string `json:"customer_name"`
	AgencyID     string `json:"agency_id,omitempty"`

	// Products is a comma/semicolon-delimited free-text product list
	// ("Auto; Homeowners").  When empty, Holdings flags may be set instead.
	Products string    `json:"products,omitempty"`
	Holdings *Holdings `json:"holdings,omitempty"`

	// MonolineFlag is the source system's own monoline indicator, reconciled
	// against the parsed product count (see TrueMonoline).
	MonolineFlag string `json:"monoline_flag,omitempty"`

	PolicyCount   int     `json:"policy_count"`
	AnnualPremium float64 `json:"annual_premium"`
	TenureYears   float64 `json:"tenure_years"`

	// RenewalDate is optional; DaysUntilRenewal overrides it when set.
	RenewalDate      *time.Time `json:"renewal_date,omitempty"`
	DaysUntilRenewal *int       `json:"days_until_renewal,omitempty"`

	BalanceDue float64       `json:"balance_due"`
	Autopay    AutopayStatus `json:"autopay"`

	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// RenewalWindow returns the signed days-until-renewal and whether it is
// known.  Negative values mean the renewal is overdue; callers that need a
// floor clamp it themselves (the timing sub-score does, display paths do not).
func (r *Record) RenewalWindow(now time.Time) (int, bool) {
	if r.DaysUntilRenewal != nil {
		return *r.DaysUntilRenewal, true
	}
	if r.RenewalDate == nil {
		return 0, false
	}
	days := int(r.RenewalDate.Sub(now).Hours() / 24)
	return days, true
}

// EffectiveHoldings resolves the product-holding flags: explicit flags win,
// otherwise the free-text Products field is parsed.
func (r *Record) EffectiveHoldings() Holdings {
	if r.Holdings != nil {
		return *r.Holdings
	}
	return ParseHoldings(r.Products)
}

// Validate checks the minimal engine contract.  Numeric fields are accepted
// as-is; negative values fall through to minimum sub-score contributions.
func (r *Record) Validate() error {
	if r == nil {
		return fmt.Errorf("record is nil")
	}
	if strings.TrimSpace(r.CustomerName) == "" {
		return fmt.Errorf("customer name is required")
	}
	return nil
}
