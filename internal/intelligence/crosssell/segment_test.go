package crosssell

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyValueTier_Boundaries(t *testing.T) {
	tests := []struct {
		name    string
		premium float64
		count   int
		want    ValueTier
	}{
		{"elite combo inclusive", 15000, 3, ValueElite},
		{"just below elite combo premium", 14999, 3, ValuePremium},
		{"just below elite combo count", 15000, 2, ValuePremium},
		{"elite by premium alone", 20000, 1, ValueElite},
		{"elite by policy count alone", 0, 5, ValueElite},
		{"premium combo inclusive", 7000, 2, ValuePremium},
		{"premium by premium alone", 10000, 1, ValuePremium},
		{"premium by count alone", 0, 4, ValuePremium},
		{"standard by premium", 3000, 1, ValueStandard},
		{"standard by count", 0, 2, ValueStandard},
		{"entry", 2999, 1, ValueEntry},
		{"zero everything", 0, 0, ValueEntry},
		{"negative premium falls through", -500, 1, ValueEntry},
		{"negative count falls through", 100, -2, ValueEntry},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyValueTier(tt.premium, tt.count))
		})
	}
}

func TestClassifyValueTier_MonotoneInPremium(t *testing.T) {
	for _, count := range []int{0, 1, 2, 3, 5} {
		prev := ClassifyValueTier(0, count)
		for premium := 100.0; premium <= 25000; premium += 100 {
			cur := ClassifyValueTier(premium, count)
			assert.GreaterOrEqual(t, int(cur), int(prev),
				"tier must not decrease: premium=%v count=%d", premium, count)
			prev = cur
		}
	}
}

func TestClassifyValueTier_MonotoneInPolicyCount(t *testing.T) {
	for _, premium := range []float64{0, 1000, 3000, 8000, 16000} {
		prev := ClassifyValueTier(premium, 0)
		for count := 1; count <= 10; count++ {
			cur := ClassifyValueTier(premium, count)
			assert.GreaterOrEqual(t, int(cur), int(prev),
				"tier must not decrease: premium=%v count=%d", premium, count)
			prev = cur
		}
	}
}

func TestValueTier_JSONRoundTrip(t *testing.T) {
	for tier := range valueTierNames {
		data, err := tier.MarshalJSON()
		assert.NoError(t, err)

		var got ValueTier
		assert.NoError(t, got.UnmarshalJSON(data))
		assert.Equal(t, tier, got)
	}
}
