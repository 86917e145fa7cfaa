package crosssell

import "encoding/json"

// ---------------------------------------------------------------------------
// ValueTier enumeration
// ---------------------------------------------------------------------------

// ValueTier is the customer-value tier derived from total premium and policy
// count.  It is independent of the cross-sell PriorityTier: the two use
// different input dimensions and must never be conflated.
type ValueTier int

const (
	ValueEntry ValueTier = iota
	ValueStandard
	ValuePremium
	ValueElite
)

var valueTierNames = map[ValueTier]string{
	ValueEntry:    "entry",
	ValueStandard: "standard",
	ValuePremium:  "premium",
	ValueElite:    "elite",
}

func (t ValueTier) String() string {
	if s, ok := valueTierNames[t]; ok {
		return s
	}
	return "entry"
}

// MarshalJSON serialises ValueTier as a JSON string.
func (t ValueTier) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON deserialises a JSON string into ValueTier.
func (t *ValueTier) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*t = ParseValueTier(s)
	return nil
}

// ParseValueTier maps a tier name to its ValueTier; unknown names fall back
// to ValueEntry.
func ParseValueTier(s string) ValueTier {
	for k, v := range valueTierNames {
		if v == s {
			return k
		}
	}
	return ValueEntry
}

// ---------------------------------------------------------------------------
// Classification
// ---------------------------------------------------------------------------

// Value-tier qualification thresholds.  Each tier qualifies via an AND clause
// on both dimensions OR a high-water mark on either single dimension.
const (
	eliteComboPremium   = 15000.0
	eliteComboPolicies  = 3
	elitePremiumAlone   = 20000.0
	elitePoliciesAlone  = 5

	premiumComboPremium  = 7000.0
	premiumComboPolicies = 2
	premiumPremiumAlone  = 10000.0
	premiumPoliciesAlone = 4

	standardPremium  = 3000.0
	standardPolicies = 2
)

// ClassifyValueTier maps total annual premium and policy count to a
// ValueTier.  Evaluation is top-down, first match wins; thresholds are
// inclusive on the qualifying side.  All numeric inputs are accepted:
// negative values simply fall through to ValueEntry.  Side-effect free.
func ClassifyValueTier(totalPremium float64, policyCount int) ValueTier {
	switch {
	case (totalPremium >= eliteComboPremium && policyCount >= eliteComboPolicies) ||
		totalPremium >= elitePremiumAlone || policyCount >= elitePoliciesAlone:
		return ValueElite
	case (totalPremium >= premiumComboPremium && policyCount >= premiumComboPolicies) ||
		totalPremium >= premiumPremiumAlone || policyCount >= premiumPoliciesAlone:
		return ValuePremium
	case totalPremium >= standardPremium || policyCount >= standardPolicies:
		return ValueStandard
	default:
		return ValueEntry
	}
}
