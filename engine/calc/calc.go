// Package calc is the safe arithmetic evaluator. It accepts free-form
// natural language and produces a number (or a rendered time delta) only
// when the utterance unambiguously denotes arithmetic. There is no
// free-form eval: recognition is an ordered pattern cascade and the
// residual numeric expression runs through a whitelisted cel-go program.
package calc

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// DefaultSSTRate is the sales-and-services tax rate applied when the
// utterance does not carry an explicit percentage.
const DefaultSSTRate = 6.0

// Result is the successful outcome of Evaluate.
type Result struct {
	Value      float64
	Expression string   // normalised form of what was computed
	Text       string   // formatted primary value ("RM 63.20", "30 minutes", "3")
	Breakdown  []string // optional intermediate lines (discount amount, tax, ...)
	IsCurrency bool
	IsTime     bool
}

var (
	currencyRe = regexp.MustCompile(`(?:\brm\s*\d|\$\s*\d|\bringgit\b)`)
	nounRe     = regexp.MustCompile(`\b(mugs?|tumblers?|cups?|bottles?|flasks?|drinkware|products?|outlets?|stores?|branch(?:es)?|merch(?:andise)?|coffee)\b`)
	opCoreRe   = regexp.MustCompile(`[\d)]\s*[-+*/^]\s*[\d(]`)
	calcCueRe  = regexp.MustCompile(`\b(sqrt|square root|power|discount|sst|tax|total for|add up|sum of|percent)\b|\d\s*%|√`)

	discountRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%\s*(?:discount|off|rebate)\s*(?:on|of|from)?\s*(?:rm|\$)?\s*(\d+(?:\.\d+)?)`)
	totalXRe   = regexp.MustCompile(`total\s+(?:for|of)\s+(\d+(?:\.\d+)?)\s*(?:x|\*)\s*(?:rm|\$)?\s*(\d+(?:\.\d+)?)`)
	tagXRe     = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:x|\*)\s*(?:rm|\$)\s*(\d+(?:\.\d+)?)`)
	unitsRe    = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*units?\s+of\s+(?:rm|\$)?\s*(\d+(?:\.\d+)?)`)
	itemsRe    = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*items?\s+(?:at|@)\s*(?:rm|\$)?\s*(\d+(?:\.\d+)?)`)
	sumCueRe   = regexp.MustCompile(`\b(add\s+up|sum)\b`)
	amountRe   = regexp.MustCompile(`(?:rm|\$)\s*(\d+(?:\.\d+)?)`)
	sstRe      = regexp.MustCompile(`(?:(\d+(?:\.\d+)?)\s*%\s*)?sst\s*(?:on|for)?\s*(?:rm|\$)?\s*(\d+(?:\.\d+)?)`)
	pctOfRe    = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%\s*of\s*(?:rm|\$)?\s*(\d+(?:\.\d+)?)`)
	sqrtRe     = regexp.MustCompile(`(?:square\s+root\s+of|sqrt\s*\(?|√)\s*(\d+(?:\.\d+)?)`)
	powerRe    = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:\^|\*\*|to\s+the\s+power\s+of)\s*(-?\d+(?:\.\d+)?)`)

	leadPhraseRe = regexp.MustCompile(`^(what\s+is|what's|whats|calculate|compute|evaluate|how\s+much\s+is)\s+`)
	currencyTag  = regexp.MustCompile(`rm\s*|\$`)
)

// wordOps maps spoken operators onto their symbols ahead of the cascade.
var wordOps = strings.NewReplacer(
	"multiplied by", "*",
	"divided by", "/",
	"times", "*",
	"plus", "+",
	"minus", "-",
	"×", "*",
	"÷", "/",
)

// Evaluate runs the recognition cascade over one utterance. The returned
// error, when non-nil, is always a *Error carrying an ErrKind.
func Evaluate(utterance string) (Result, error) {
	lower := strings.ToLower(strings.TrimSpace(utterance))
	if lower == "" {
		return Result{}, errf(ErrNotACalculation, "empty utterance")
	}

	if r, cerr := tryClockArithmetic(lower); cerr != nil {
		return Result{}, cerr
	} else if r != nil {
		return *r, nil
	}

	currency := currencyRe.MatchString(lower)
	norm := wordOps.Replace(lower)

	// Catalogue nouns without any operator belong to retrieval, not here.
	if nounRe.MatchString(norm) && !opCoreRe.MatchString(norm) && !calcCueRe.MatchString(norm) {
		return Result{}, errf(ErrNotACalculation, "utterance mentions catalogue items, not arithmetic")
	}

	if m := discountRe.FindStringSubmatch(norm); m != nil {
		return evalDiscount(m, currency)
	}
	for _, re := range []*regexp.Regexp{totalXRe, tagXRe, unitsRe, itemsRe} {
		if m := re.FindStringSubmatch(norm); m != nil {
			return evalTotal(m, currency)
		}
	}
	if sumCueRe.MatchString(norm) {
		if amounts := amountRe.FindAllStringSubmatch(norm, -1); len(amounts) >= 2 {
			return evalSum(amounts)
		}
	}
	if m := sstRe.FindStringSubmatch(norm); m != nil {
		return evalSST(m, currency)
	}
	if m := pctOfRe.FindStringSubmatch(norm); m != nil {
		n, base := mustFloat(m[1]), mustFloat(m[2])
		v := n / 100 * base
		return Result{
			Value:      v,
			Expression: fmt.Sprintf("%s%% of %s", m[1], m[2]),
			Text:       formatValue(v, currency),
			IsCurrency: currency,
		}, nil
	}
	if m := sqrtRe.FindStringSubmatch(norm); m != nil {
		n := mustFloat(m[1])
		v := math.Sqrt(n)
		if math.IsNaN(v) {
			return Result{}, errf(ErrOutOfRange, "square root of a negative number")
		}
		return Result{Value: v, Expression: fmt.Sprintf("√%s", m[1]), Text: formatValue(v, false)}, nil
	}
	if m := powerRe.FindStringSubmatch(norm); m != nil {
		base, exp := mustFloat(m[1]), mustFloat(m[2])
		v := math.Pow(base, exp)
		if math.IsInf(v, 0) || math.Abs(v) > resultAbsLimit {
			return Result{}, errf(ErrOutOfRange, "%s^%s overflows", m[1], m[2])
		}
		if math.IsNaN(v) {
			return Result{}, errf(ErrInvalidResult, "%s^%s has no real value", m[1], m[2])
		}
		return Result{Value: v, Expression: fmt.Sprintf("%s^%s", m[1], m[2]), Text: formatValue(v, false)}, nil
	}

	return evalPure(norm, currency)
}

func evalDiscount(m []string, currency bool) (Result, error) {
	pct, base := mustFloat(m[1]), mustFloat(m[2])
	discount := pct / 100 * base
	final := base - discount
	return Result{
		Value:      final,
		Expression: fmt.Sprintf("%s - %s%%", m[2], m[1]),
		Text:       formatValue(final, currency),
		Breakdown: []string{
			"Discount: " + formatValue(discount, currency),
			"Final price: " + formatValue(final, currency),
		},
		IsCurrency: currency,
	}, nil
}

func evalTotal(m []string, currency bool) (Result, error) {
	qty, unit := mustFloat(m[1]), mustFloat(m[2])
	v := qty * unit
	return Result{
		Value:      v,
		Expression: fmt.Sprintf("%s × %s", m[1], m[2]),
		Text:       formatValue(v, currency),
		IsCurrency: currency,
	}, nil
}

func evalSum(amounts [][]string) (Result, error) {
	var total float64
	parts := make([]string, 0, len(amounts))
	for _, a := range amounts {
		total += mustFloat(a[1])
		parts = append(parts, a[1])
	}
	return Result{
		Value:      total,
		Expression: strings.Join(parts, " + "),
		Text:       formatValue(total, true),
		IsCurrency: true,
	}, nil
}

func evalSST(m []string, currency bool) (Result, error) {
	rate := DefaultSSTRate
	rateLabel := strconv.FormatFloat(DefaultSSTRate, 'f', -1, 64)
	if m[1] != "" {
		rate = mustFloat(m[1])
		rateLabel = m[1]
	}
	base := mustFloat(m[2])
	tax := base * rate / 100
	total := base + tax
	return Result{
		Value:      total,
		Expression: fmt.Sprintf("%s + %s%% SST", m[2], rateLabel),
		Text:       formatValue(total, currency),
		Breakdown: []string{
			fmt.Sprintf("SST (%s%%): %s", rateLabel, formatValue(tax, currency)),
			"Total with SST: " + formatValue(total, currency),
		},
		IsCurrency: currency,
	}, nil
}

func evalPure(norm string, currency bool) (Result, error) {
	expr := leadPhraseRe.ReplaceAllString(norm, "")
	expr = currencyTag.ReplaceAllString(expr, "")
	expr = strings.Trim(expr, " ?=!.")

	if !opCoreRe.MatchString(expr) && !percentLitRe.MatchString(expr) {
		return Result{}, errf(ErrNotACalculation, "no arithmetic found")
	}
	if !allowedExprRe.MatchString(expr) {
		return Result{}, errf(ErrInvalidExpression, "expression carries characters outside the arithmetic whitelist")
	}
	v, cerr := evalArithmetic(expr)
	if cerr != nil {
		return Result{}, cerr
	}
	return Result{
		Value:      v,
		Expression: strings.Join(strings.Fields(expr), " "),
		Text:       formatValue(v, currency),
		IsCurrency: currency,
	}, nil
}

func mustFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func formatValue(v float64, currency bool) string {
	if currency {
		return fmt.Sprintf("RM %.2f", v)
	}
	if v == math.Trunc(v) && math.Abs(v) < 1e12 {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
