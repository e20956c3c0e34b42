// Package outlet resolves natural-language outlet questions against the
// outlet registry. Filters apply conjunctively in a fixed order and never
// widen silently: when a step empties the set, the reply reports which
// filters were in force.
package outlet

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kopibot/kopibot/engine/catalog"
	"github.com/kopibot/kopibot/engine/slot"
)

// DefaultK caps the display list. Counting always uses the full filtered
// set, never the truncated list.
const DefaultK = 5

// Registry is the consumed outlet source. SQL-backed implementations build
// parameterised queries from the structured city filter only; user text
// never reaches a WHERE clause.
type Registry interface {
	All(ctx context.Context) ([]catalog.Outlet, error)
	ByCity(ctx context.Context, city string) ([]catalog.Outlet, error)
}

// Result is a filtered outlet set plus the filter trail for the composer.
type Result struct {
	Outlets []catalog.Outlet // display list, clamped to k
	Total   int              // exact size of the filtered set
	Applied []string         // human-readable filters, in application order
	EmptyAt string           // the filter step that emptied the set, if any
}

// Engine filters the registry with predicate composition.
type Engine struct {
	reg    Registry
	logger *slog.Logger
}

// NewEngine wraps a registry.
func NewEngine(reg Registry, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{reg: reg, logger: logger}
}

// Search applies city → service → landmark → keyword conjunctively.
func (e *Engine) Search(ctx context.Context, s slot.Slots, k int) (Result, error) {
	if k <= 0 {
		k = DefaultK
	}
	var res Result

	var outlets []catalog.Outlet
	var err error
	if len(s.Locations) > 0 {
		city := s.Locations[0]
		res.Applied = append(res.Applied, "area: "+city)
		outlets, err = e.reg.ByCity(ctx, city)
	} else {
		outlets, err = e.reg.All(ctx)
	}
	if err != nil {
		return Result{}, fmt.Errorf("outlet registry: %w", err)
	}
	if len(outlets) == 0 && len(s.Locations) > 0 {
		res.EmptyAt = "area"
		return res, nil
	}

	for _, svc := range s.Services {
		res.Applied = append(res.Applied, "service: "+string(svc))
		outlets = filterOutlets(outlets, func(o catalog.Outlet) bool { return o.HasService(svc) })
		if len(outlets) == 0 {
			res.EmptyAt = "service"
			return res, nil
		}
	}

	for _, lm := range s.Landmarks {
		res.Applied = append(res.Applied, "landmark: "+lm)
		outlets = filterOutlets(outlets, func(o catalog.Outlet) bool {
			return containsFold(o.Address, lm) || containsFold(o.Name, lm)
		})
		if len(outlets) == 0 {
			res.EmptyAt = "landmark"
			return res, nil
		}
	}

	for _, kw := range s.Keywords {
		if kw == "" {
			continue
		}
		res.Applied = append(res.Applied, "keyword: "+kw)
		outlets = filterOutlets(outlets, func(o catalog.Outlet) bool {
			return containsFold(o.Name, kw) || containsFold(o.Address, kw)
		})
		if len(outlets) == 0 {
			res.EmptyAt = "keyword"
			return res, nil
		}
	}

	res.Total = len(outlets)
	if len(outlets) > k {
		outlets = outlets[:k]
	}
	res.Outlets = outlets
	return res, nil
}

// Narrow filters an already-shown outlet list in place of a registry
// round-trip; used for pronoun follow-ups ("do they have dine-in?").
func Narrow(outlets []catalog.Outlet, s slot.Slots) []catalog.Outlet {
	out := append([]catalog.Outlet(nil), outlets...)
	for _, svc := range s.Services {
		out = filterOutlets(out, func(o catalog.Outlet) bool { return o.HasService(svc) })
	}
	return out
}

// HoursAnswer renders the requested slice of an outlet's hours for a day.
// Unparsed hours are reported verbatim, never fabricated.
func HoursAnswer(o catalog.Outlet, tq slot.TimeQuery, day time.Weekday) string {
	hr, raw, ok := o.HoursOn(day)
	if raw == "" {
		return "hours not available"
	}
	if !ok {
		return raw
	}
	switch tq {
	case slot.TimeOpening:
		return "opens at " + catalog.FormatClock(hr.Open)
	case slot.TimeClosing:
		return "closes at " + catalog.FormatClock(hr.Close)
	default:
		return catalog.FormatClock(hr.Open) + " - " + catalog.FormatClock(hr.Close)
	}
}

// CityMatches reports whether an outlet belongs to the canonical city,
// matching the canonical name or any of its known aliases against the
// outlet's name and address.
func CityMatches(o catalog.Outlet, city string) bool {
	for _, needle := range cityNeedles(city) {
		if matchesNeedle(o.Address, needle) || matchesNeedle(o.Name, needle) {
			return true
		}
	}
	return false
}

func cityNeedles(city string) []string {
	needles := []string{city}
	for alias, canonical := range slot.CityAliases {
		if canonical == city && alias != city {
			needles = append(needles, alias)
		}
	}
	return needles
}

// matchesNeedle uses whole-token matching for short aliases such as "kl"
// so they do not fire inside unrelated words like "Klang".
func matchesNeedle(text, needle string) bool {
	if len(needle) > 3 {
		return containsFold(text, needle)
	}
	needle = strings.ToLower(needle)
	for _, tok := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	}) {
		if tok == needle {
			return true
		}
	}
	return false
}

func filterOutlets(outlets []catalog.Outlet, keep func(catalog.Outlet) bool) []catalog.Outlet {
	out := outlets[:0:0]
	for _, o := range outlets {
		if keep(o) {
			out = append(out, o)
		}
	}
	return out
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
