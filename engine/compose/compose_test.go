package compose

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kopibot/kopibot/engine/calc"
	"github.com/kopibot/kopibot/engine/catalog"
	"github.com/kopibot/kopibot/engine/outlet"
	"github.com/kopibot/kopibot/engine/planner"
	"github.com/kopibot/kopibot/engine/slot"
)

// Monday for hours resolution.
func testComposer() *Composer {
	monday := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	return New(WithClock(func() time.Time { return monday }))
}

func TestProductListNumbered(t *testing.T) {
	c := testComposer()
	products := []catalog.Product{
		{
			Name: "OG Tumbler", PriceDisplay: "RM 79.00", Price: 79,
			Capacity: "500ml", Material: catalog.MaterialStainlessSteel,
			Collection: "OG",
			Colors:     []string{"Black", "Cream", "Sage", "Navy", "Rose"},
		},
		{
			Name: "Frozee Cold Cup", PriceDisplay: "RM 55.00", Price: 55,
			RegularPrice: 69, OnSale: true,
		},
	}

	out := c.ProductList(products)
	assert.Contains(t, out, "Here are 2 matches:")
	assert.Contains(t, out, "1. OG Tumbler - RM 79.00")
	assert.Contains(t, out, "2. Frozee Cold Cup - RM 55.00 (on sale, was RM 69.00)")
	assert.Contains(t, out, "500ml | stainless-steel | OG collection")
	// color list truncates at three
	assert.Contains(t, out, "Colors: Black, Cream, Sage (+2 more)")
	assert.NotContains(t, out, "Navy")
}

func TestProductListSingleItemBlock(t *testing.T) {
	c := testComposer()
	out := c.ProductList([]catalog.Product{{
		Name: "Corak Ceramic Mug", PriceDisplay: "RM 39.00", Price: 39,
		Material: catalog.MaterialCeramic,
		Features: []catalog.Feature{catalog.FeatureMicrowave, catalog.FeatureDishwasher},
	}})

	assert.NotContains(t, out, "1.")
	assert.Contains(t, out, "Corak Ceramic Mug - RM 39.00")
	assert.Contains(t, out, "Features: microwave-safe, dishwasher-safe")
	// recommendation sentence closes the block
	assert.Contains(t, out, "solid pick")
}

func TestEmptyProductsEchoesFilters(t *testing.T) {
	c := testComposer()
	max := 20.0
	out := c.EmptyProducts(slot.Slots{
		Materials: []catalog.Material{catalog.MaterialGlass},
		Budget:    &slot.PriceRange{Max: &max},
	})
	assert.Contains(t, out, "glass")
	assert.Contains(t, out, "under RM20")
	assert.Contains(t, out, "broader search")
}

func TestOutletListTodayHoursAndIcons(t *testing.T) {
	c := testComposer()
	res := outlet.Result{
		Total: 1,
		Outlets: []catalog.Outlet{{
			Name:     "ZUS Coffee SS2",
			Address:  "12 Jalan SS2/61, Petaling Jaya",
			Hours:    map[string]string{"monday": "09:00 - 22:00"},
			Services: []catalog.Service{catalog.ServiceDineIn, catalog.ServiceWifi},
		}},
	}

	out := c.OutletList(res)
	assert.Contains(t, out, "Found 1 outlet:")
	assert.Contains(t, out, "ZUS Coffee SS2")
	assert.Contains(t, out, "Today: 9:00 AM - 10:00 PM")
	assert.Contains(t, out, "🍽 dine-in")
	assert.Contains(t, out, "📶 wifi")
}

func TestOutletListEmptyNamesFilters(t *testing.T) {
	c := testComposer()
	out := c.OutletList(outlet.Result{
		Applied: []string{"area: kuala lumpur", "service: drive-thru"},
		EmptyAt: "service",
	})
	assert.Contains(t, out, "No outlets match")
	assert.Contains(t, out, "service: drive-thru")
}

func TestCalculationEchoesBreakdown(t *testing.T) {
	c := testComposer()
	out := c.Calculation(calc.Result{
		Expression: "79 - 20%",
		Text:       "RM 63.20",
		Breakdown:  []string{"Discount: RM 15.80", "Final price: RM 63.20"},
		IsCurrency: true,
	})
	require.True(t, strings.HasPrefix(out, "79 - 20% = RM 63.20"))
	assert.Contains(t, out, "Discount: RM 15.80")
	assert.Contains(t, out, "Final price: RM 63.20")
}

func TestCalcErrorTemplates(t *testing.T) {
	c := testComposer()
	cases := map[calc.ErrKind]string{
		calc.ErrDivisionByZero:    "divide by zero",
		calc.ErrOutOfRange:        "too large",
		calc.ErrInvalidExpression: "couldn't read",
		calc.ErrNotACalculation:   "couldn't work that out",
	}
	for kind, want := range cases {
		err := &calc.Error{Kind: kind, Message: "internal detail xyzzy"}
		out := c.CalcError(err)
		assert.Contains(t, out, want, string(kind))
		assert.NotContains(t, out, "xyzzy", "raw error text must not surface")
	}
}

func TestPromoSummary(t *testing.T) {
	c := testComposer()
	out := c.PromoSummary([]catalog.Product{{
		Name: "Frozee Cold Cup", PriceDisplay: "RM 55.00",
		Price: 55, RegularPrice: 69, OnSale: true,
		Promotion: "Merdeka bundle deal",
	}})
	assert.Contains(t, out, "1 items on promotion")
	assert.Contains(t, out, "was RM 69.00, save RM 14.00")
	assert.Contains(t, out, "Merdeka bundle deal")

	assert.Contains(t, c.PromoSummary(nil), "No promotions")
}

func TestRecall(t *testing.T) {
	c := testComposer()
	out := c.Recall(
		[]catalog.Product{{Name: "OG Tumbler"}},
		[]catalog.Outlet{{Name: "ZUS Coffee SS2"}},
	)
	assert.Contains(t, out, "Earlier I showed you: OG Tumbler.")
	assert.Contains(t, out, "ZUS Coffee SS2")

	// nothing to recall falls back to clarification
	assert.Equal(t, c.Clarify(), c.Recall(nil, nil))
}

func TestStaticAnswers(t *testing.T) {
	c := testComposer()
	assert.Contains(t, c.Answer(planner.AnswerWelcome), "drinkware")
	assert.Contains(t, c.Answer(planner.AnswerBye), "See you")
	assert.Contains(t, c.Answer(planner.AnswerAbout), "assistant")
	assert.Contains(t, c.Followup(planner.HintArea), "Which area")
	assert.Contains(t, c.Followup(planner.HintProductType), "drinkware")
	assert.Contains(t, c.Followup(planner.HintCalculation), "calculate")
	assert.Contains(t, c.Reject(), "can't help with that")
	assert.Contains(t, c.Trouble(), "trouble")
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "a\n\nb", Join("a", "", "b"))
	assert.Equal(t, "a", Join("a"))
}
