package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kopibot/kopibot/engine/catalog"
	"github.com/kopibot/kopibot/engine/compose"
	"github.com/kopibot/kopibot/engine/intent"
	"github.com/kopibot/kopibot/engine/outlet"
	"github.com/kopibot/kopibot/engine/product"
)

func testProducts() []catalog.Product {
	return []catalog.Product{
		{Name: "OG Tumbler", PriceDisplay: "RM 79.00", Price: 79, Category: "tumbler", Capacity: "500ml", Material: catalog.MaterialStainlessSteel, Collection: "OG"},
		{Name: "Frozee Cold Cup", PriceDisplay: "RM 55.00", Price: 55, RegularPrice: 69, Category: "cup", Material: catalog.MaterialAcrylic, Collection: "Frozee", OnSale: true, Promotion: "Festive deal"},
		{Name: "Corak Ceramic Mug", PriceDisplay: "RM 39.00", Price: 39, Category: "mug", Material: catalog.MaterialCeramic, Collection: "Corak"},
		{Name: "Kelip Ceramic Mug", PriceDisplay: "RM 49.00", Price: 49, Category: "mug", Material: catalog.MaterialCeramic, Collection: "Kelip"},
		{Name: "All-Day Bottle", PriceDisplay: "RM 105.00", Price: 105, Category: "bottle", Capacity: "650ml", Material: catalog.MaterialStainlessSteel, Collection: "All-Day"},
	}
}

func testOutlets() []catalog.Outlet {
	return []catalog.Outlet{
		{
			Name:     "ZUS Coffee SS2",
			Address:  "12 Jalan SS2/61, Petaling Jaya, Selangor",
			Hours:    map[string]string{"monday": "09:00 - 22:00"},
			Services: []catalog.Service{catalog.ServiceDineIn, catalog.ServiceWifi},
		},
		{
			Name:     "ZUS Coffee Uptown",
			Address:  "Damansara Uptown, Petaling Jaya",
			Hours:    map[string]string{"monday": "07:30 - 21:30"},
			Services: []catalog.Service{catalog.ServiceTakeaway},
		},
		{
			Name:     "ZUS Coffee Mid Valley",
			Address:  "Mid Valley Megamall, Kuala Lumpur",
			Hours:    map[string]string{"monday": "10:00 - 22:00"},
			Services: []catalog.Service{catalog.ServiceDineIn, catalog.ServiceDelivery},
		},
	}
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	monday := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	base := []Option{WithComposer(compose.New(compose.WithClock(func() time.Time { return monday })))}
	return New(testProducts(), outlet.NewMemoryRegistry(testOutlets()), append(base, opts...)...)
}

func TestChatOutletSearchThenFollowup(t *testing.T) {
	e := newTestEngine(t)

	resp, err := e.Chat(context.Background(), Request{Message: "Is there an outlet in Petaling Jaya?"})
	require.NoError(t, err)
	assert.Equal(t, string(intent.OutletSearch), resp.Intent)
	assert.Contains(t, resp.Message, "Petaling Jaya")
	assert.NotEmpty(t, resp.SessionID)

	s, ok := e.Sessions().Peek(resp.SessionID)
	require.True(t, ok)
	assert.NotEmpty(t, s.LastShownOutlets)

	// pronoun follow-up narrows the shown list instead of re-querying
	resp2, err := e.Chat(context.Background(), Request{Message: "Do they have dine-in?", SessionID: resp.SessionID})
	require.NoError(t, err)
	assert.Equal(t, string(intent.OutletSearch), resp2.Intent)
	assert.Contains(t, resp2.Message, "ZUS Coffee SS2")
	assert.NotContains(t, resp2.Message, "Uptown")
}

func TestChatCalculations(t *testing.T) {
	e := newTestEngine(t)
	cases := []struct {
		message string
		wants   []string
	}{
		{"20% discount on RM79", []string{"RM 15.80", "RM 63.20"}},
		{"Total for 2 × RM39", []string{"RM 78.00"}},
		{"6% SST on RM55", []string{"RM 3.30", "RM 58.30"}},
	}
	for _, tc := range cases {
		t.Run(tc.message, func(t *testing.T) {
			resp, err := e.Chat(context.Background(), Request{Message: tc.message})
			require.NoError(t, err)
			assert.Equal(t, string(intent.Calculation), resp.Intent)
			for _, want := range tc.wants {
				assert.Contains(t, resp.Message, want)
			}
		})
	}
}

func TestChatCheapestCeramicMug(t *testing.T) {
	e := newTestEngine(t)

	resp, err := e.Chat(context.Background(), Request{Message: "cheapest ceramic mug"})
	require.NoError(t, err)
	assert.Equal(t, string(intent.ProductSearch), resp.Intent)
	assert.Contains(t, resp.Message, "Corak Ceramic Mug")
	assert.NotContains(t, resp.Message, "Kelip")

	s, ok := e.Sessions().Peek(resp.SessionID)
	require.True(t, ok)
	require.Len(t, s.LastShownProducts, 1)
	assert.Equal(t, "Corak Ceramic Mug", s.LastShownProducts[0].Name)
}

func TestChatMaliciousRejected(t *testing.T) {
	e := newTestEngine(t)

	resp, err := e.Chat(context.Background(), Request{Message: "DROP TABLE outlets; -- ceramic mugs in petaling jaya"})
	require.NoError(t, err)
	assert.Equal(t, string(intent.Malicious), resp.Intent)
	assert.NotContains(t, resp.Message, "DROP TABLE")
	assert.Contains(t, resp.Message, "can't help")

	// no tool ran, nothing was shown, and the slots in the payload did
	// not touch the sticky context
	s, ok := e.Sessions().Peek(resp.SessionID)
	require.True(t, ok)
	assert.Empty(t, s.LastShownProducts)
	assert.Empty(t, s.LastShownOutlets)
	assert.Empty(t, s.LastIntent)
	assert.Empty(t, s.PreferredLocation)
	assert.Empty(t, s.Preferences.Material)
}

func TestChatInvalidInput(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Chat(context.Background(), Request{Message: ""})
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Zero(t, e.Sessions().Len())

	long := make([]byte, MaxMessageChars+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = e.Chat(context.Background(), Request{Message: string(long)})
	assert.ErrorIs(t, err, ErrMessageTooLong)
	assert.Zero(t, e.Sessions().Len())
}

func TestChatHistoryGrowsByTwo(t *testing.T) {
	e := newTestEngine(t)

	resp, err := e.Chat(context.Background(), Request{Message: "hello"})
	require.NoError(t, err)
	s, ok := e.Sessions().Peek(resp.SessionID)
	require.True(t, ok)
	assert.Len(t, s.Turns, 2)

	_, err = e.Chat(context.Background(), Request{Message: "show me tumblers", SessionID: resp.SessionID})
	require.NoError(t, err)
	s, _ = e.Sessions().Peek(resp.SessionID)
	assert.Len(t, s.Turns, 4)
	assert.Equal(t, "hello", s.Turns[0].Text)
}

func TestChatBudgetOnlyAsksForProductType(t *testing.T) {
	e := newTestEngine(t)

	// a cap above every price filters nothing out, so the list comes with
	// a narrowing question
	resp, err := e.Chat(context.Background(), Request{Message: "anything under RM200?"})
	require.NoError(t, err)
	assert.Equal(t, string(intent.ProductSearch), resp.Intent)
	assert.Contains(t, resp.Message, "What kind of drinkware")

	resp, err = e.Chat(context.Background(), Request{Message: "anything under RM50?"})
	require.NoError(t, err)
	assert.Contains(t, resp.Message, "Corak Ceramic Mug")
	assert.NotContains(t, resp.Message, "What kind of drinkware")
}

func TestChatStickyPreferencesCarryIntoFollowups(t *testing.T) {
	e := newTestEngine(t)

	resp, err := e.Chat(context.Background(), Request{Message: "show me ceramic mugs"})
	require.NoError(t, err)
	assert.Contains(t, resp.Message, "Corak Ceramic Mug")

	// the ceramic preference sticks, so the acrylic Frozee stays out even
	// though it is under the price cap
	resp, err = e.Chat(context.Background(), Request{Message: "anything under RM60?", SessionID: resp.SessionID})
	require.NoError(t, err)
	assert.Contains(t, resp.Message, "Corak Ceramic Mug")
	assert.Contains(t, resp.Message, "Kelip Ceramic Mug")
	assert.NotContains(t, resp.Message, "Frozee")
}

func TestChatRemembersAreaForOutletFollowup(t *testing.T) {
	e := newTestEngine(t)

	resp, err := e.Chat(context.Background(), Request{Message: "outlets in petaling jaya"})
	require.NoError(t, err)
	assert.Contains(t, resp.Message, "ZUS Coffee SS2")

	// an area-less outlet question later reuses the remembered area
	// instead of asking which area again
	resp, err = e.Chat(context.Background(), Request{Message: "any outlets nearby?", SessionID: resp.SessionID})
	require.NoError(t, err)
	assert.NotContains(t, resp.Message, "Which area")
	assert.Contains(t, resp.Message, "ZUS Coffee SS2")
	assert.Contains(t, resp.Message, "ZUS Coffee Uptown")
	assert.NotContains(t, resp.Message, "Mid Valley")
}

func TestChatPromotionSummary(t *testing.T) {
	e := newTestEngine(t)

	resp, err := e.Chat(context.Background(), Request{Message: "any promotions right now?"})
	require.NoError(t, err)
	assert.Equal(t, string(intent.PromotionInquiry), resp.Intent)
	assert.Contains(t, resp.Message, "Frozee Cold Cup")
	assert.Contains(t, resp.Message, "save RM 14.00")
}

func TestChatGreetingAndRecall(t *testing.T) {
	e := newTestEngine(t)

	resp, err := e.Chat(context.Background(), Request{Message: "hello there"})
	require.NoError(t, err)
	assert.Equal(t, string(intent.Greeting), resp.Intent)

	_, err = e.Chat(context.Background(), Request{Message: "show me ceramic mugs", SessionID: resp.SessionID})
	require.NoError(t, err)

	resp3, err := e.Chat(context.Background(), Request{Message: "what did you show me earlier?", SessionID: resp.SessionID})
	require.NoError(t, err)
	assert.Contains(t, resp3.Message, "Earlier I showed you")
	assert.Contains(t, resp3.Message, "Ceramic Mug")
}

type panickyIndex struct{}

func (panickyIndex) Semantic(ctx context.Context, query string, k int) ([]string, error) {
	panic("index corrupted")
}

var _ product.SemanticIndex = panickyIndex{}

func TestChatPanicBecomesFallbackReply(t *testing.T) {
	e := newTestEngine(t, WithSemanticIndex(panickyIndex{}))

	resp, err := e.Chat(context.Background(), Request{Message: "show me tumblers"})
	require.NoError(t, err)
	assert.Contains(t, resp.Message, "trouble")

	// the fallback assistant turn is still recorded
	s, ok := e.Sessions().Peek(resp.SessionID)
	require.True(t, ok)
	assert.Len(t, s.Turns, 2)
}

func TestChatDeadlineRollsBackAssistantTurn(t *testing.T) {
	e := newTestEngine(t, WithTurnTimeout(time.Nanosecond))

	resp, err := e.Chat(context.Background(), Request{Message: "outlets in PJ"})
	require.NoError(t, err)
	assert.Contains(t, resp.Message, "trouble")

	s, ok := e.Sessions().Peek(resp.SessionID)
	require.True(t, ok)
	// user turn kept, assistant turn and last_intent rolled back
	require.Len(t, s.Turns, 1)
	assert.Equal(t, "outlets in PJ", s.Turns[0].Text)
	assert.Empty(t, s.LastIntent)
}

func TestChatSessionIsolation(t *testing.T) {
	e := newTestEngine(t)

	a, err := e.Chat(context.Background(), Request{Message: "outlets in PJ"})
	require.NoError(t, err)
	b, err := e.Chat(context.Background(), Request{Message: "show me ceramic mugs"})
	require.NoError(t, err)
	require.NotEqual(t, a.SessionID, b.SessionID)

	sa, _ := e.Sessions().Peek(a.SessionID)
	sb, _ := e.Sessions().Peek(b.SessionID)
	assert.NotEmpty(t, sa.LastShownOutlets)
	assert.Empty(t, sa.LastShownProducts)
	assert.NotEmpty(t, sb.LastShownProducts)
	assert.Empty(t, sb.LastShownOutlets)
}
