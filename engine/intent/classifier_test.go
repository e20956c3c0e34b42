package intent

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestClassifyBasics(t *testing.T) {
	c := NewClassifier(nil)
	tests := []struct {
		utterance string
		want      Intent
	}{
		{"hello", Greeting},
		{"good morning!", Greeting},
		{"bye, thanks", Farewell},
		{"show me ceramic mugs", ProductSearch},
		{"cheapest tumbler", ProductSearch},
		{"Is there an outlet in Petaling Jaya?", OutletSearch},
		{"what time does the SS2 outlet close", OutletSearch},
		{"20% discount on RM79", Calculation},
		{"what is 3 + 4", Calculation},
		{"6% SST on RM55", Calculation},
		{"any promotions right now?", PromotionInquiry},
		{"what did you show me earlier?", ContextRecall},
		{"who are you", About},
		{"what can you do", About},
	}
	for _, tt := range tests {
		got := c.Classify(tt.utterance, Context{})
		assert.Equal(t, tt.want, got.Intent, tt.utterance)
		assert.GreaterOrEqual(t, got.Confidence, scoreThreshold, tt.utterance)
	}
}

func TestClassifyMalicious(t *testing.T) {
	c := NewClassifier(nil)
	payloads := []string{
		"DROP TABLE outlets; --",
		"1 UNION SELECT password FROM users",
		"' or 1=1",
		"<script>alert(1)</script>",
		"javascript:void(0)",
	}
	for _, p := range payloads {
		got := c.Classify(p, Context{})
		assert.Equal(t, Malicious, got.Intent, p)
		assert.Equal(t, 1.0, got.Confidence, p)
	}

	// Context never rescues an injection attempt.
	got := c.Classify("drop table products", Context{LastIntent: ProductSearch})
	assert.Equal(t, Malicious, got.Intent)
}

func TestClassifyGarbage(t *testing.T) {
	c := NewClassifier(nil)
	for _, u := range []string{"#$%^&*", "aaaaaaa", "!!!!!!!!", "😀😀😀"} {
		got := c.Classify(u, Context{})
		assert.Equal(t, Unclear, got.Intent, u)
	}
}

func TestContextBoost(t *testing.T) {
	c := NewClassifier(nil)

	boosted := c.Classify("do they have dine-in?", Context{LastIntent: OutletSearch})
	assert.Equal(t, OutletSearch, boosted.Intent)

	cold := c.Classify("do they have dine-in?", Context{})
	assert.GreaterOrEqual(t, boosted.Confidence, cold.Confidence)

	prod := c.Classify("what colors do those come in?", Context{LastIntent: ProductSearch})
	assert.Equal(t, ProductSearch, prod.Intent)
}

func TestConflictResolution(t *testing.T) {
	c := NewClassifier(nil)

	// "discount" words usually mean promotion, but a concrete calculation
	// shape wins.
	calc := c.Classify("20% discount on RM79", Context{})
	assert.Equal(t, Calculation, calc.Intent)

	promo := c.Classify("any discount on tumblers?", Context{})
	assert.NotEqual(t, Calculation, promo.Intent)

	// Service keywords beat generic product words.
	outlet := c.Classify("which store has drive-thru", Context{})
	assert.Equal(t, OutletSearch, outlet.Intent)
}

func TestUnclearThreshold(t *testing.T) {
	c := NewClassifier(nil)
	got := c.Classify("42", Context{})
	assert.Equal(t, Unclear, got.Intent)
	assert.Less(t, got.Confidence, scoreThreshold)
}

// Every input classifies to some intent with confidence in [0,1].
func TestClassifyTotal(t *testing.T) {
	c := NewClassifier(nil)
	known := map[Intent]bool{
		Greeting: true, Farewell: true, ProductSearch: true, OutletSearch: true,
		Calculation: true, PromotionInquiry: true, ContextRecall: true,
		About: true, Malicious: true, Unclear: true,
	}
	properties := gopter.NewProperties(gopter.DefaultTestParameters())
	properties.Property("classify is total", prop.ForAll(
		func(s string, last string) bool {
			got := c.Classify(s, Context{LastIntent: Intent(last)})
			return known[got.Intent] && got.Confidence >= 0 && got.Confidence <= 1
		},
		gen.AnyString(),
		gen.OneConstOf("", "product_search", "outlet_search", "calculation"),
	))
	properties.TestingRun(t)
}

func TestBoundaryLengths(t *testing.T) {
	c := NewClassifier(nil)

	one := c.Classify("x", Context{})
	assert.Equal(t, Unclear, one.Intent)

	long := strings.Repeat("show me ceramic mugs ", 47) // ~1000 chars
	assert.Equal(t, ProductSearch, c.Classify(long, Context{}).Intent)
}
