// Package intent classifies one utterance into a closed intent vocabulary.
// Classification is an ordered predicate cascade over regex tables, scored
// rather than short-circuited, so every input maps to exactly one intent
// and the decision is explainable from the pattern table alone.
package intent

// Intent is the closed vocabulary of conversational goals.
type Intent string

const (
	Greeting         Intent = "greeting"
	Farewell         Intent = "farewell"
	ProductSearch    Intent = "product_search"
	OutletSearch     Intent = "outlet_search"
	Calculation      Intent = "calculation"
	PromotionInquiry Intent = "promotion_inquiry"
	ContextRecall    Intent = "context_recall"
	About            Intent = "about"
	Malicious        Intent = "malicious"
	Unclear          Intent = "unclear"
)

// Family groups intents for topic-switch detection.
type Family int

const (
	FamilyOther Family = iota
	FamilyProduct
	FamilyOutlet
)

// Family returns the topic family an intent belongs to.
func (i Intent) Family() Family {
	switch i {
	case ProductSearch, PromotionInquiry:
		return FamilyProduct
	case OutletSearch:
		return FamilyOutlet
	default:
		return FamilyOther
	}
}

// Conversational reports whether the intent should be persisted as a
// session's last_intent. Error-ish verdicts are not.
func (i Intent) Conversational() bool {
	switch i {
	case Malicious, Unclear:
		return false
	default:
		return true
	}
}

// Classification is the classifier verdict for one utterance.
type Classification struct {
	Intent     Intent
	Confidence float64
	// Scores holds the per-intent score table, used by the planner for
	// multi-intent handling.
	Scores map[Intent]float64
}

// Context carries the slice of session state the classifier is allowed to
// see: the previous conversational intent.
type Context struct {
	LastIntent Intent
}
