// Package session owns per-conversation state: turn history, last-shown
// entities and the derived context the planner reads. Sessions live in
// process memory only and are evicted after an idle timeout.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/kopibot/kopibot/engine/catalog"
	"github.com/kopibot/kopibot/engine/intent"
	"github.com/kopibot/kopibot/engine/slot"
)

// Bounds on per-session state. Oldest entries are dropped first.
const (
	HistoryCap  = 10
	EntitiesCap = 20
	ShownCap    = 5
)

// Role tags one side of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one immutable history record.
type Turn struct {
	ID         string
	Role       Role
	Text       string
	Intent     intent.Intent
	Confidence float64
	ToolUsed   string
	Metadata   map[string]string
	CreatedAt  time.Time
}

// NewTurn stamps a fresh turn record.
func NewTurn(role Role, text string) Turn {
	return Turn{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		CreatedAt: time.Now(),
	}
}

// Preferences holds the sticky product preferences gleaned from slots.
type Preferences struct {
	Material catalog.Material
	Capacity slot.CapacityClass
	Features []catalog.Feature
}

// Snapshot is the context saved on a topic switch, recalled on an explicit
// "back to earlier" request.
type Snapshot struct {
	LastIntent        intent.Intent
	LastShownProducts []catalog.Product
	LastShownOutlets  []catalog.Outlet
	ContextLocation   string
	Budget            *slot.PriceRange
	SavedAt           time.Time
}

// Session is the per-conversation state. It is mutated only by the
// controller while the store holds the per-session lock.
type Session struct {
	ID                string
	Turns             []Turn
	LastIntent        intent.Intent
	LastShownProducts []catalog.Product
	LastShownOutlets  []catalog.Outlet
	PreferredLocation string
	ContextLocation   string
	Budget            *slot.PriceRange
	Preferences       Preferences
	ContextEntities   []string
	SavedContext      *Snapshot
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// AppendTurn appends to the bounded history, dropping the oldest.
func (s *Session) AppendTurn(t Turn) {
	s.Turns = append(s.Turns, t)
	if len(s.Turns) > HistoryCap {
		s.Turns = s.Turns[len(s.Turns)-HistoryCap:]
	}
}

// RememberEntities appends to the bounded context-entity list.
func (s *Session) RememberEntities(entities ...string) {
	for _, e := range entities {
		if e == "" {
			continue
		}
		s.ContextEntities = append(s.ContextEntities, e)
	}
	if len(s.ContextEntities) > EntitiesCap {
		s.ContextEntities = s.ContextEntities[len(s.ContextEntities)-EntitiesCap:]
	}
}

// SetShownProducts replaces last_shown_products, most recent first, capped.
func (s *Session) SetShownProducts(products []catalog.Product) {
	if len(products) == 0 {
		return
	}
	if len(products) > ShownCap {
		products = products[:ShownCap]
	}
	s.LastShownProducts = append([]catalog.Product(nil), products...)
}

// SetShownOutlets replaces last_shown_outlets, most recent first, capped.
func (s *Session) SetShownOutlets(outlets []catalog.Outlet) {
	if len(outlets) == 0 {
		return
	}
	if len(outlets) > ShownCap {
		outlets = outlets[:ShownCap]
	}
	s.LastShownOutlets = append([]catalog.Outlet(nil), outlets...)
}

// SaveContext snapshots the current derived context ahead of a topic switch.
func (s *Session) SaveContext(now time.Time) {
	s.SavedContext = &Snapshot{
		LastIntent:        s.LastIntent,
		LastShownProducts: append([]catalog.Product(nil), s.LastShownProducts...),
		LastShownOutlets:  append([]catalog.Outlet(nil), s.LastShownOutlets...),
		ContextLocation:   s.ContextLocation,
		Budget:            s.Budget,
		SavedAt:           now,
	}
}
