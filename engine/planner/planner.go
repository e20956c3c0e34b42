// Package planner turns a classified utterance into the concrete actions a
// turn executes. All routing lives in one intent table; the handlers are
// data-driven so new intents extend the table instead of forking the flow.
package planner

import (
	"log/slog"
	"regexp"
	"sort"

	"github.com/kopibot/kopibot/engine/intent"
	"github.com/kopibot/kopibot/engine/slot"
)

// ActionType is the closed set of things a turn can do.
type ActionType string

const (
	ActProvideAnswer ActionType = "provide_answer"
	ActProductSearch ActionType = "call_product_search"
	ActOutletSearch  ActionType = "call_outlet_search"
	ActCalculator    ActionType = "call_calculator"
	ActAskFollowup   ActionType = "ask_followup"
	ActClarify       ActionType = "request_clarification"
	ActReject        ActionType = "reject"
)

// AnswerKind selects the static answer template for ActProvideAnswer.
type AnswerKind string

const (
	AnswerWelcome AnswerKind = "welcome"
	AnswerBye     AnswerKind = "bye"
	AnswerAbout   AnswerKind = "about"
	AnswerPromo   AnswerKind = "promo"
	AnswerRecall  AnswerKind = "recall"
)

// Hint tells the composer which follow-up question to ask.
type Hint string

const (
	HintProductType Hint = "product_type"
	HintArea        Hint = "area"
	HintCalculation Hint = "calculation"
)

// Action is one unit of work with everything its executor needs.
type Action struct {
	Type        ActionType
	Answer      AnswerKind
	Hint        Hint
	Slots       slot.Slots
	Utterance   string
	NarrowShown bool // outlet follow-up over last_shown_outlets, no registry hit
	PromoOnly   bool // restrict product search to the on-sale subset
}

// Plan is the full decision for a turn. TopicSwitch asks the controller to
// snapshot the session context before executing.
type Plan struct {
	Actions     []Action
	TopicSwitch bool
}

// Context is the slice of session state the planner reads. It never holds
// the session itself so planning stays pure.
type Context struct {
	LastIntent        intent.Intent
	HasShownProducts  bool
	HasShownOutlets   bool
	HasSavedContext   bool
	PreferredLocation string
}

const (
	multiIntentScoreMin = 0.5
	multiIntentConfMax  = 0.9
)

var productNounRe = regexp.MustCompile(`\b(tumblers?|mugs?|cups?|bottles?|flasks?|drinkware|merch|merchandise)\b`)

// Planner routes intents to actions.
type Planner struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{logger: logger}
}

// Plan decides the actions for one turn.
func (p *Planner) Plan(cls intent.Classification, s slot.Slots, utterance string, ctx Context) Plan {
	plan := Plan{TopicSwitch: topicSwitch(ctx.LastIntent, cls.Intent)}
	plan.Actions = append(plan.Actions, p.planOne(cls.Intent, s, utterance, ctx))

	if second, ok := p.secondaryIntent(cls); ok {
		act := p.planOne(second, s, utterance, ctx)
		plan.Actions = append(plan.Actions, act)
		p.logger.Debug("multi-intent plan",
			slog.String("primary", string(cls.Intent)),
			slog.String("secondary", string(second)))
	}
	return plan
}

func (p *Planner) planOne(in intent.Intent, s slot.Slots, utterance string, ctx Context) Action {
	switch in {
	case intent.Greeting:
		return Action{Type: ActProvideAnswer, Answer: AnswerWelcome}
	case intent.Farewell:
		return Action{Type: ActProvideAnswer, Answer: AnswerBye}
	case intent.About:
		return Action{Type: ActProvideAnswer, Answer: AnswerAbout}
	case intent.Malicious:
		return Action{Type: ActReject, Utterance: utterance}
	case intent.Calculation:
		return Action{Type: ActCalculator, Utterance: utterance}
	case intent.ProductSearch:
		return p.planProductSearch(s, utterance)
	case intent.OutletSearch:
		return p.planOutletSearch(s, ctx)
	case intent.PromotionInquiry:
		if s.Superlative != slot.SuperlativeNone {
			// "cheapest item on sale" is a ranked search over the sale subset
			return Action{Type: ActProductSearch, Slots: s, Utterance: utterance, PromoOnly: true}
		}
		return Action{Type: ActProvideAnswer, Answer: AnswerPromo}
	case intent.ContextRecall:
		if ctx.HasShownProducts || ctx.HasShownOutlets || ctx.HasSavedContext {
			return Action{Type: ActProvideAnswer, Answer: AnswerRecall}
		}
		return Action{Type: ActClarify}
	default:
		return Action{Type: ActClarify}
	}
}

func (p *Planner) planProductSearch(s slot.Slots, utterance string) Action {
	if s.Empty() && !productNounRe.MatchString(utterance) {
		return Action{Type: ActAskFollowup, Hint: HintProductType}
	}
	return Action{Type: ActProductSearch, Slots: s, Utterance: utterance}
}

func (p *Planner) planOutletSearch(s slot.Slots, ctx Context) Action {
	hasFilters := len(s.Locations) > 0 || len(s.Landmarks) > 0 ||
		len(s.Services) > 0 || s.TimeQuery != slot.TimeNone
	if !hasFilters {
		// an area remembered from earlier in the session beats asking again
		if ctx.PreferredLocation != "" {
			s.Locations = []string{ctx.PreferredLocation}
			return Action{Type: ActOutletSearch, Slots: s}
		}
		return Action{Type: ActAskFollowup, Hint: HintArea}
	}
	// a follow-up that adds only a service or time question narrows the
	// outlets already on screen instead of starting a fresh query
	if len(s.Locations) == 0 && len(s.Landmarks) == 0 && ctx.HasShownOutlets {
		return Action{Type: ActOutletSearch, Slots: s, NarrowShown: true}
	}
	return Action{Type: ActOutletSearch, Slots: s}
}

// OnNotACalculation reroutes a calculator miss: catalogue nouns make it a
// product search, otherwise the user is asked for a real expression.
func (p *Planner) OnNotACalculation(utterance string, s slot.Slots) Action {
	if productNounRe.MatchString(utterance) || !s.Empty() {
		return Action{Type: ActProductSearch, Slots: s, Utterance: utterance}
	}
	return Action{Type: ActAskFollowup, Hint: HintCalculation}
}

// secondaryIntent picks a second action when the utterance genuinely spans
// two intents: two scores above 0.5 with the winner below 0.9 confidence.
func (p *Planner) secondaryIntent(cls intent.Classification) (intent.Intent, bool) {
	if cls.Confidence >= multiIntentConfMax {
		return "", false
	}
	type scored struct {
		in    intent.Intent
		score float64
	}
	var over []scored
	for in, sc := range cls.Scores {
		if sc > multiIntentScoreMin {
			over = append(over, scored{in, sc})
		}
	}
	if len(over) < 2 {
		return "", false
	}
	sort.Slice(over, func(i, j int) bool {
		if over[i].score != over[j].score {
			return over[i].score > over[j].score
		}
		return over[i].in < over[j].in
	})
	for _, cand := range over {
		if cand.in != cls.Intent {
			return cand.in, true
		}
	}
	return "", false
}

func topicSwitch(prev, next intent.Intent) bool {
	pf, nf := prev.Family(), next.Family()
	if pf == intent.FamilyOther || nf == intent.FamilyOther {
		return false
	}
	return pf != nf
}
