// Package compose renders tool results into reply text. Every function is
// pure: same inputs, same string. Templates live here and nowhere else so
// the transport layers never invent their own wording.
package compose

import (
	"fmt"
	"strings"
	"time"

	"github.com/kopibot/kopibot/engine/calc"
	"github.com/kopibot/kopibot/engine/catalog"
	"github.com/kopibot/kopibot/engine/outlet"
	"github.com/kopibot/kopibot/engine/planner"
	"github.com/kopibot/kopibot/engine/slot"
)

const maxListedTraits = 3

var serviceIcons = map[catalog.Service]string{
	catalog.ServiceDineIn:    "🍽",
	catalog.ServiceTakeaway:  "🥡",
	catalog.ServiceDelivery:  "🛵",
	catalog.ServiceDriveThru: "🚗",
	catalog.ServiceWifi:      "📶",
	catalog.Service24Hour:    "🕛",
}

// Composer renders replies. The injected clock resolves "today" for outlet
// hours.
type Composer struct {
	now func() time.Time
}

// Option configures a Composer.
type Option func(*Composer)

// WithClock overrides the clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Composer) { c.now = now }
}

func New(opts ...Option) *Composer {
	c := &Composer{now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Join glues multi-action replies with a blank line.
func Join(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}

// ProductList renders search results. One hit gets the dense single-item
// block, several get a numbered list.
func (c *Composer) ProductList(products []catalog.Product) string {
	switch len(products) {
	case 0:
		return ""
	case 1:
		return c.singleProduct(products[0])
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Here are %d matches:\n", len(products))
	for i, p := range products {
		fmt.Fprintf(&b, "\n%d. %s - %s", i+1, p.Name, p.PriceDisplay)
		if p.OnSale && p.RegularPrice > p.Price {
			fmt.Fprintf(&b, " (on sale, was RM %.2f)", p.RegularPrice)
		}
		b.WriteString("\n")
		if line := traitLine(p); line != "" {
			b.WriteString("   " + line + "\n")
		}
		if len(p.Colors) > 0 {
			b.WriteString("   Colors: " + truncated(p.Colors) + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (c *Composer) singleProduct(p catalog.Product) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s - %s", p.Name, p.PriceDisplay)
	if p.OnSale && p.RegularPrice > p.Price {
		fmt.Fprintf(&b, " (on sale, was RM %.2f)", p.RegularPrice)
	}
	b.WriteString("\n")
	if line := traitLine(p); line != "" {
		b.WriteString(line + "\n")
	}
	if len(p.Colors) > 0 {
		b.WriteString("Colors: " + truncated(p.Colors) + "\n")
	}
	if len(p.Features) > 0 {
		b.WriteString("Features: " + truncated(featureStrings(p.Features)) + "\n")
	}
	b.WriteString(recommendation(p))
	return b.String()
}

func traitLine(p catalog.Product) string {
	var parts []string
	if p.Capacity != "" {
		parts = append(parts, p.Capacity)
	}
	if p.Material != "" && p.Material != catalog.MaterialOther {
		parts = append(parts, string(p.Material))
	}
	if p.Collection != "" {
		parts = append(parts, p.Collection+" collection")
	}
	return strings.Join(parts, " | ")
}

func recommendation(p catalog.Product) string {
	if p.OnSale {
		return fmt.Sprintf("Good timing, the %s is on promotion right now.", p.Name)
	}
	return fmt.Sprintf("The %s is a solid pick for daily use.", p.Name)
}

func featureStrings(features []catalog.Feature) []string {
	out := make([]string, 0, len(features))
	for _, f := range features {
		out = append(out, string(f))
	}
	return out
}

func truncated(items []string) string {
	if len(items) <= maxListedTraits {
		return strings.Join(items, ", ")
	}
	rest := len(items) - maxListedTraits
	return strings.Join(items[:maxListedTraits], ", ") + fmt.Sprintf(" (+%d more)", rest)
}

// EmptyProducts reports a miss and echoes the filters that were in force.
func (c *Composer) EmptyProducts(s slot.Slots) string {
	msg := "I couldn't find any drinkware matching that"
	if filters := describeSlots(s); filters != "" {
		msg += " (" + filters + ")"
	}
	return msg + ". Try a broader search, like \"show me tumblers\" or \"mugs under RM50\"."
}

func describeSlots(s slot.Slots) string {
	var parts []string
	for _, m := range s.Materials {
		parts = append(parts, string(m))
	}
	for _, f := range s.Features {
		parts = append(parts, string(f))
	}
	for _, col := range s.Collections {
		parts = append(parts, col+" collection")
	}
	if s.Capacity != slot.CapacityNone {
		parts = append(parts, string(s.Capacity)+" size")
	}
	if s.Budget != nil {
		switch {
		case s.Budget.Min != nil && s.Budget.Max != nil:
			parts = append(parts, fmt.Sprintf("RM%.0f-RM%.0f", *s.Budget.Min, *s.Budget.Max))
		case s.Budget.Max != nil:
			parts = append(parts, fmt.Sprintf("under RM%.0f", *s.Budget.Max))
		case s.Budget.Min != nil:
			parts = append(parts, fmt.Sprintf("above RM%.0f", *s.Budget.Min))
		}
	}
	parts = append(parts, s.Keywords...)
	return strings.Join(parts, ", ")
}

// OutletList renders a filtered outlet result with today's hours.
func (c *Composer) OutletList(res outlet.Result) string {
	if len(res.Outlets) == 0 {
		return c.EmptyOutlets(res)
	}
	day := c.now().Weekday()

	var b strings.Builder
	if res.Total == 1 {
		b.WriteString("Found 1 outlet:\n")
	} else {
		fmt.Fprintf(&b, "Found %d outlets:\n", res.Total)
	}
	for i, o := range res.Outlets {
		fmt.Fprintf(&b, "\n%d. %s\n   %s\n", i+1, o.Name, o.Address)
		if hours := outlet.HoursAnswer(o, slot.TimeFullHours, day); hours != "hours not available" {
			b.WriteString("   Today: " + hours + "\n")
		}
		if icons := serviceLine(o.Services); icons != "" {
			b.WriteString("   " + icons + "\n")
		}
	}
	if res.Total > len(res.Outlets) {
		fmt.Fprintf(&b, "\n(showing the first %d)", len(res.Outlets))
	}
	return strings.TrimRight(b.String(), "\n")
}

// Outlets is OutletList over a plain list, for narrowed follow-ups.
func (c *Composer) Outlets(outlets []catalog.Outlet) string {
	return c.OutletList(outlet.Result{Outlets: outlets, Total: len(outlets)})
}

// HoursReply answers an opening/closing question for the top outlet.
func (c *Composer) HoursReply(o catalog.Outlet, tq slot.TimeQuery) string {
	return fmt.Sprintf("%s %s.", o.Name, outlet.HoursAnswer(o, tq, c.now().Weekday()))
}

func serviceLine(services []catalog.Service) string {
	var parts []string
	for _, s := range services {
		if icon, ok := serviceIcons[s]; ok {
			parts = append(parts, icon+" "+string(s))
		} else {
			parts = append(parts, string(s))
		}
	}
	return strings.Join(parts, " · ")
}

// EmptyOutlets never widens a miss; it names the filters that emptied the
// set.
func (c *Composer) EmptyOutlets(res outlet.Result) string {
	msg := "No outlets match"
	if len(res.Applied) > 0 {
		msg += " (" + strings.Join(res.Applied, ", ") + ")"
	}
	return msg + ". Try another area, like KL or Petaling Jaya."
}

// Calculation echoes the normalised expression with the formatted result
// and any breakdown lines.
func (c *Composer) Calculation(r calc.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s = %s", r.Expression, r.Text)
	for _, line := range r.Breakdown {
		b.WriteString("\n" + line)
	}
	return b.String()
}

// CalcError maps a calculator error kind to user guidance. Raw error text
// never reaches the user.
func (c *Composer) CalcError(err error) string {
	switch calc.KindOf(err) {
	case calc.ErrDivisionByZero:
		return "I can't divide by zero. Try something like \"RM79 / 2\"."
	case calc.ErrOutOfRange:
		return "That result is too large for me to handle. Try smaller numbers."
	case calc.ErrInvalidExpression:
		return "I couldn't read that as a calculation. Try \"20% discount on RM79\" or \"6% SST on RM55\"."
	default:
		return "I couldn't work that out. Try \"20% discount on RM79\" or \"2 x RM39\"."
	}
}

// Answer returns the static reply for a planner answer kind.
func (c *Composer) Answer(kind planner.AnswerKind) string {
	switch kind {
	case planner.AnswerWelcome:
		return "Hi! I can help you find ZUS drinkware, locate outlets, and work out prices. What are you after?"
	case planner.AnswerBye:
		return "Thanks for dropping by. See you at ZUS!"
	case planner.AnswerAbout:
		return "I'm the ZUS Coffee assistant. Ask me about drinkware, outlet locations and hours, or price calculations like discounts and SST."
	default:
		return c.Clarify()
	}
}

// PromoSummary renders the on-sale subset with price deltas.
func (c *Composer) PromoSummary(onSale []catalog.Product) string {
	if len(onSale) == 0 {
		return "No promotions are running at the moment, but the full range is still worth a look."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d items on promotion right now:\n", len(onSale))
	for i, p := range onSale {
		fmt.Fprintf(&b, "\n%d. %s - %s", i+1, p.Name, p.PriceDisplay)
		if p.RegularPrice > p.Price {
			fmt.Fprintf(&b, " (was RM %.2f, save RM %.2f)", p.RegularPrice, p.RegularPrice-p.Price)
		}
		if p.Promotion != "" {
			b.WriteString("\n   " + p.Promotion)
		}
	}
	return b.String()
}

// Recall summarises what the session last showed.
func (c *Composer) Recall(products []catalog.Product, outlets []catalog.Outlet) string {
	var parts []string
	if len(products) > 0 {
		names := make([]string, 0, len(products))
		for _, p := range products {
			names = append(names, p.Name)
		}
		parts = append(parts, "Earlier I showed you: "+strings.Join(names, ", ")+".")
	}
	if len(outlets) > 0 {
		names := make([]string, 0, len(outlets))
		for _, o := range outlets {
			names = append(names, o.Name)
		}
		parts = append(parts, "We also looked at these outlets: "+strings.Join(names, ", ")+".")
	}
	if len(parts) == 0 {
		return c.Clarify()
	}
	return strings.Join(parts, " ")
}

// Followup asks the question matching a planner hint.
func (c *Composer) Followup(hint planner.Hint) string {
	switch hint {
	case planner.HintArea:
		return "Which area are you in? I cover KL, Petaling Jaya, Subang Jaya and nearby."
	case planner.HintCalculation:
		return "What would you like me to calculate? For example \"20% discount on RM79\" or \"6% SST on RM55\"."
	default:
		return "What kind of drinkware are you after? Tumblers, mugs, cups or bottles?"
	}
}

// Clarify is the reply for unclear input.
func (c *Composer) Clarify() string {
	return "I'm not sure I follow. I can help with drinkware (\"show me tumblers\"), outlets (\"outlets in PJ\"), or price maths (\"20% off RM79\")."
}

// Reject refuses malicious input without echoing it.
func (c *Composer) Reject() string {
	return "I can't help with that. I'm here for drinkware, outlets and price calculations."
}

// Trouble is the timeout / tool-failure reply.
func (c *Composer) Trouble() string {
	return "I'm having trouble right now. Please try again in a moment."
}
