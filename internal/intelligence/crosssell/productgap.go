package crosssell

import "strings"

// ---------------------------------------------------------------------------
// SegmentType enumeration
// ---------------------------------------------------------------------------

// SegmentType is the cross-sell segment derived from product gaps.
type SegmentType string

const (
	SegmentAutoToHome   SegmentType = "auto_to_home"
	SegmentHomeToAuto   SegmentType = "home_to_auto"
	SegmentMonoToBundle SegmentType = "mono_to_bundle"
	SegmentAddLife      SegmentType = "add_life"
	SegmentAddUmbrella  SegmentType = "add_umbrella"
	SegmentOther        SegmentType = "other"
)

// ---------------------------------------------------------------------------
// Holdings: parsed product presence flags
// ---------------------------------------------------------------------------

// Holdings is the 4-tuple of product-line presence flags derived from a
// customer's product list.
type Holdings struct {
	Auto     bool `json:"auto"`
	Property bool `json:"property"`
	Life     bool `json:"life"`
	Umbrella bool `json:"umbrella"`
}

// Count returns the number of distinct held product lines.
func (h Holdings) Count() int {
	n := 0
	for _, held := range []bool{h.Auto, h.Property, h.Life, h.Umbrella} {
		if held {
			n++
		}
	}
	return n
}

// Product-name synonyms matched case-insensitively as substrings.
var (
	autoSynonyms     = []string{"auto", "vehicle", "car", "motorcycle"}
	propertySynonyms = []string{"home", "renter", "condo", "property", "landlord", "dwelling"}
	lifeSynonyms     = []string{"life"}
	umbrellaSynonyms = []string{"umbrella", "pup"}
)

func matchesAny(token string, synonyms []string) bool {
	for _, s := range synonyms {
		if strings.Contains(token, s) {
			return true
		}
	}
	return false
}

// ParseHoldings derives product-line presence flags from a comma or
// semicolon-delimited free-text products field via case-insensitive
// substring match against product-name synonyms.
func ParseHoldings(products string) Holdings {
	var h Holdings
	for _, tok := range strings.FieldsFunc(products, func(r rune) bool {
		return r == ',' || r == ';'
	}) {
		t := strings.ToLower(strings.TrimSpace(tok))
		if t == "" {
			continue
		}
		if matchesAny(t, autoSynonyms) {
			h.Auto = true
		}
		if matchesAny(t, propertySynonyms) {
			h.Property = true
		}
		if matchesAny(t, lifeSynonyms) {
			h.Life = true
		}
		if matchesAny(t, umbrellaSynonyms) {
			h.Umbrella = true
		}
	}
	return h
}

// TrueMonoline reports whether the customer genuinely holds a single product
// line, reconciling the parsed count with the source system's free-text
// monoline flag.  A flag containing "multi" always overrides a naive "mono"
// substring match: "Multiline Household" textually contains "mono" but must
// never classify as monoline.
func TrueMonoline(h Holdings, policyCount int, monolineFlag string) bool {
	counted := h.Count()
	if counted == 0 {
		counted = policyCount
	}
	if counted > 1 {
		return false
	}

	flag := strings.ToLower(strings.TrimSpace(monolineFlag))
	if flag == "" {
		return counted <= 1
	}
	if strings.Contains(flag, "multi") {
		return false
	}
	if strings.Contains(flag, "mono") {
		return true
	}
	return counted <= 1
}

// ---------------------------------------------------------------------------
// Recommendation: ordered decision list
// ---------------------------------------------------------------------------

// Recommendation is the product-gap classification outcome: which cross-sell
// segment the customer belongs to and which product to pitch next.
type Recommendation struct {
	Segment SegmentType `json:"segment"`
	Product string      `json:"product"`
}

// Recommended next-product names.
const (
	ProductHomeRenters = "Homeowners/Renters"
	ProductAuto        = "Auto"
	ProductBundle      = "Auto + Home Bundle"
	ProductLife        = "Life"
	ProductUmbrella    = "Umbrella"
)

// Recommend classifies product gaps into a cross-sell segment and a
// recommended next product.  The rules form an ordered decision list, first
// match wins; checks become progressively less specific so that more specific
// gaps are never shadowed by general fallbacks.
func Recommend(h Holdings, trueMonoline bool) Recommendation {
	switch {
	case trueMonoline && h.Auto && !h.Property:
		return Recommendation{Segment: SegmentAutoToHome, Product: ProductHomeRenters}
	case trueMonoline && h.Property && !h.Auto:
		return Recommendation{Segment: SegmentHomeToAuto, Product: ProductAuto}
	case trueMonoline && !h.Auto && !h.Property:
		return Recommendation{Segment: SegmentMonoToBundle, Product: ProductBundle}
	case h.Auto && h.Property && !h.Life:
		return Recommendation{Segment: SegmentAddLife, Product: ProductLife}
	case h.Auto && h.Property && h.Life && !h.Umbrella:
		return Recommendation{Segment: SegmentAddUmbrella, Product: ProductUmbrella}
	case !h.Life:
		return Recommendation{Segment: SegmentAddLife, Product: ProductLife}
	default:
		// Fully loaded customers still get the umbrella conversation.
		return Recommendation{Segment: SegmentAddUmbrella, Product: ProductUmbrella}
	}
}

// Classify runs holdings parsing, monoline reconciliation, and the
// recommendation decision list for a record in one call.
func Classify(r *Record) (Holdings, bool, Recommendation) {
	h := r.EffectiveHoldings()
	mono := TrueMonoline(h, r.PolicyCount, r.MonolineFlag)
	return h, mono, Recommend(h, mono)
}
