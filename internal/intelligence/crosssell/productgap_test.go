package crosssell

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseHoldings(t *testing.T) {
	tests := []struct {
		name     string
		products string
		want     Holdings
	}{
		{"empty", "", Holdings{}},
		{"auto only", "Auto", Holdings{Auto: true}},
		{"comma delimited", "Auto, Homeowners", Holdings{Auto: true, Property: true}},
		{"semicolon delimited", "auto;life;umbrella", Holdings{Auto: true, Life: true, Umbrella: true}},
		{"synonyms", "Vehicle Insurance; Renters; PUP", Holdings{Auto: true, Property: true, Umbrella: true}},
		{"case insensitive", "CONDO, MOTORCYCLE", Holdings{Auto: true, Property: true}},
		{"landlord dwelling", "Landlord Package; Dwelling Fire", Holdings{Property: true}},
		{"unknown products ignored", "Pet, Travel", Holdings{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseHoldings(tt.products))
		})
	}
}

func TestTrueMonoline_MultiOverridesMonoSubstring(t *testing.T) {
	h := Holdings{Auto: true}

	// "Multiline Household" contains "mono" nowhere, but "Multiline" style
	// flags contain "multi" and must always win over a naive substring match.
	assert.False(t, TrueMonoline(h, 1, "Multiline Household"))
	assert.False(t, TrueMonoline(h, 1, "multi-line"))

	assert.True(t, TrueMonoline(h, 1, "Monoline"))
	assert.True(t, TrueMonoline(h, 1, ""))
}

func TestTrueMonoline_CountOverridesFlag(t *testing.T) {
	// Two held product lines can never be monoline regardless of flag text.
	h := Holdings{Auto: true, Property: true}
	assert.False(t, TrueMonoline(h, 2, "Monoline"))

	// No parsed products: fall back to policy count.
	assert.False(t, TrueMonoline(Holdings{}, 3, ""))
	assert.True(t, TrueMonoline(Holdings{}, 1, ""))
}

func TestRecommend_DecisionListOrder(t *testing.T) {
	tests := []struct {
		name        string
		holdings    Holdings
		mono        bool
		wantSegment SegmentType
		wantProduct string
	}{
		{"monoline auto", Holdings{Auto: true}, true, SegmentAutoToHome, ProductHomeRenters},
		{"monoline property", Holdings{Property: true}, true, SegmentHomeToAuto, ProductAuto},
		{"monoline neither", Holdings{Life: true}, true, SegmentMonoToBundle, ProductBundle},
		{"bundled no life", Holdings{Auto: true, Property: true}, false, SegmentAddLife, ProductLife},
		{"bundled with life no umbrella", Holdings{Auto: true, Property: true, Life: true}, false, SegmentAddUmbrella, ProductUmbrella},
		{"auto plus umbrella no life", Holdings{Auto: true, Umbrella: true}, false, SegmentAddLife, ProductLife},
		{"fully loaded", Holdings{Auto: true, Property: true, Life: true, Umbrella: true}, false, SegmentAddUmbrella, ProductUmbrella},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Recommend(tt.holdings, tt.mono)
			assert.Equal(t, tt.wantSegment, got.Segment)
			assert.Equal(t, tt.wantProduct, got.Product)
		})
	}
}

func TestClassify_FullyLoadedRegardlessOfOtherFields(t *testing.T) {
	r := &Record{
		CustomerName: "Dana Fulton",
		Products:     "Auto, Homeowners, Life, Umbrella",
		PolicyCount:  4,
	}
	_, mono, rec := Classify(r)
	assert.False(t, mono)
	assert.Equal(t, SegmentAddUmbrella, rec.Segment)
}
