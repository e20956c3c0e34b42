// Package slot extracts the structured options an utterance carries:
// locations, services, materials, features, price ranges, capacity and
// time-of-day questions. One regex table per slot family, consulted in a
// defined order; aliases live in lookup tables.
package slot

import "github.com/kopibot/kopibot/engine/catalog"

// CapacityClass buckets free-text capacities into coarse sizes.
type CapacityClass string

const (
	CapacityNone   CapacityClass = ""
	CapacitySmall  CapacityClass = "small"
	CapacityMedium CapacityClass = "medium"
	CapacityLarge  CapacityClass = "large"
)

// TimeQuery distinguishes the kind of opening-hours question.
type TimeQuery string

const (
	TimeNone      TimeQuery = ""
	TimeOpening   TimeQuery = "opening"
	TimeClosing   TimeQuery = "closing"
	TimeFullHours TimeQuery = "full_hours"
)

// Superlative marks price-extreme queries.
type Superlative string

const (
	SuperlativeNone     Superlative = ""
	SuperlativeCheapest Superlative = "cheapest"
	SuperlativePriciest Superlative = "priciest"
)

// PriceRange is a half-open budget. A nil bound is unbounded.
type PriceRange struct {
	Min *float64
	Max *float64
}

// Contains reports whether price falls inside the range.
func (r PriceRange) Contains(price float64) bool {
	if r.Min != nil && price < *r.Min {
		return false
	}
	if r.Max != nil && price > *r.Max {
		return false
	}
	return true
}

// Slots is the structured record extracted from one utterance. All fields
// are optional; the planner decides per intent whether absence broadens.
type Slots struct {
	Locations   []string
	Landmarks   []string
	Services    []catalog.Service
	Materials   []catalog.Material
	Features    []catalog.Feature
	Collections []string
	Capacity    CapacityClass
	Budget      *PriceRange
	TimeQuery   TimeQuery
	Keywords    []string
	Superlative Superlative
	Singular    bool
	ShowAll     bool
}

// Empty reports whether nothing at all was extracted.
func (s Slots) Empty() bool {
	return len(s.Locations) == 0 && len(s.Landmarks) == 0 && len(s.Services) == 0 &&
		len(s.Materials) == 0 && len(s.Features) == 0 && len(s.Collections) == 0 &&
		s.Capacity == CapacityNone && s.Budget == nil && s.TimeQuery == TimeNone &&
		len(s.Keywords) == 0 && s.Superlative == SuperlativeNone && !s.ShowAll
}
