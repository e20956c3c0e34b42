package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kopibot/kopibot/engine/catalog"
	"github.com/kopibot/kopibot/engine/intent"
)

func TestWithTurnCreatesLazily(t *testing.T) {
	st := NewStore(nil)
	require.Equal(t, 0, st.Len())

	err := st.WithTurn("s1", func(s *Session) error {
		s.AppendTurn(NewTurn(RoleUser, "hello"))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, st.Len())

	got, ok := st.Peek("s1")
	require.True(t, ok)
	assert.Len(t, got.Turns, 1)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestHistoryCap(t *testing.T) {
	s := &Session{ID: "x"}
	for i := 0; i < HistoryCap+6; i++ {
		s.AppendTurn(NewTurn(RoleUser, "m"))
	}
	assert.Len(t, s.Turns, HistoryCap)
}

func TestEntitiesCap(t *testing.T) {
	s := &Session{ID: "x"}
	for i := 0; i < EntitiesCap+10; i++ {
		s.RememberEntities("e")
	}
	assert.Len(t, s.ContextEntities, EntitiesCap)
}

func TestShownCap(t *testing.T) {
	s := &Session{ID: "x"}
	products := make([]catalog.Product, ShownCap+3)
	for i := range products {
		products[i] = catalog.Product{Name: string(rune('a' + i)), Price: 1}
	}
	s.SetShownProducts(products)
	assert.Len(t, s.LastShownProducts, ShownCap)

	// Empty tool output keeps the previous list.
	s.SetShownProducts(nil)
	assert.Len(t, s.LastShownProducts, ShownCap)
}

func TestEviction(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	st := NewStore(nil, WithClock(clock), WithIdleTimeout(time.Hour))

	require.NoError(t, st.WithTurn("stale", func(s *Session) error { return nil }))

	now = now.Add(2 * time.Hour)
	require.NoError(t, st.WithTurn("fresh", func(s *Session) error { return nil }))

	_, ok := st.Peek("stale")
	assert.False(t, ok, "stale session must be unreachable after the timeout")
	_, ok = st.Peek("fresh")
	assert.True(t, ok)
	assert.Equal(t, uint64(1), st.Evictions())
}

func TestPeekHidesIdleSessionBeforeSweep(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	st := NewStore(nil, WithClock(clock), WithIdleTimeout(time.Hour))

	require.NoError(t, st.WithTurn("idle", func(s *Session) error { return nil }))
	_, ok := st.Peek("idle")
	require.True(t, ok)

	// past the timeout the session reads as gone even though no turn has
	// triggered the sweep yet
	now = now.Add(time.Hour + time.Minute)
	_, ok = st.Peek("idle")
	assert.False(t, ok)
}

func TestSessionIsolation(t *testing.T) {
	st := NewStore(nil)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = st.WithTurn("a", func(s *Session) error {
				s.AppendTurn(NewTurn(RoleUser, "a"))
				return nil
			})
		}()
		go func() {
			defer wg.Done()
			_ = st.WithTurn("b", func(s *Session) error {
				s.AppendTurn(NewTurn(RoleUser, "b"))
				return nil
			})
		}()
	}
	wg.Wait()

	a, _ := st.Peek("a")
	b, _ := st.Peek("b")
	for _, turn := range a.Turns {
		assert.Equal(t, "a", turn.Text)
	}
	for _, turn := range b.Turns {
		assert.Equal(t, "b", turn.Text)
	}
}

func TestSaveContext(t *testing.T) {
	s := &Session{
		ID:               "x",
		LastIntent:       intent.OutletSearch,
		LastShownOutlets: []catalog.Outlet{{Name: "SS2", Address: "PJ"}},
		ContextLocation:  "petaling jaya",
	}
	s.SaveContext(time.Now())
	require.NotNil(t, s.SavedContext)
	assert.Equal(t, intent.OutletSearch, s.SavedContext.LastIntent)
	assert.Len(t, s.SavedContext.LastShownOutlets, 1)

	// The snapshot is detached from later mutations.
	s.LastShownOutlets[0].Name = "changed"
	assert.Equal(t, "SS2", s.SavedContext.LastShownOutlets[0].Name)
}

func TestNewID(t *testing.T) {
	assert.NotEqual(t, NewID(), NewID())
	assert.NotEmpty(t, NewID())
}
