package slot

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/kopibot/kopibot/engine/catalog"
)

var (
	underRe   = regexp.MustCompile(`\b(?:under|below|less\s+than|within|at\s+most|max(?:imum)?(?:\s+of)?)\s+rm\s*(\d+(?:\.\d+)?)`)
	aboveRe   = regexp.MustCompile(`\b(?:above|over|more\s+than|at\s+least|min(?:imum)?(?:\s+of)?)\s+rm\s*(\d+(?:\.\d+)?)`)
	betweenRe = regexp.MustCompile(`\b(?:between\s+)?rm\s*(\d+(?:\.\d+)?)\s*(?:and|to|-|–)\s*rm\s*(\d+(?:\.\d+)?)`)

	// Bare amounts count only in a currency context (a price word or a
	// drinkware noun elsewhere in the utterance).
	underBareRe   = regexp.MustCompile(`\b(?:under|below|less\s+than|within|at\s+most|max(?:imum)?(?:\s+of)?)\s+(\d+(?:\.\d+)?)\b`)
	aboveBareRe   = regexp.MustCompile(`\b(?:above|over|more\s+than|at\s+least|min(?:imum)?(?:\s+of)?)\s+(\d+(?:\.\d+)?)\b`)
	betweenBareRe = regexp.MustCompile(`\bbetween\s+(\d+(?:\.\d+)?)\s*(?:and|to|-|–)\s*(\d+(?:\.\d+)?)\b`)
	currencyCtxRe = regexp.MustCompile(`\brm\b|\brm\d|\b(?:price[sd]?|cost(?:s|ing)?|budget|spend|afford|cheap(?:er|est)?|expensive|ringgit)\b`)

	cheapestRe  = regexp.MustCompile(`\b(cheapest|least\s+expensive|lowest\s+price[d]?|most\s+affordable)\b`)
	priciestRe  = regexp.MustCompile(`\b(most\s+expensive|priciest|dearest|highest\s+price[d]?)\b`)
	pluralRe    = regexp.MustCompile(`\b(mugs|tumblers|cups|bottles|flasks|products|items|options)\b`)
	showAllRe   = regexp.MustCompile(`\b(?:show|list)\s+(?:me\s+)?all\b|\beverything\b|\bentire\s+catalog(?:ue)?\b`)
	capacityML  = regexp.MustCompile(`(\d{2,4})\s*ml\b`)
	closingRe   = regexp.MustCompile(`\b(close|closes|closing|shut|shuts)\b`)
	openingRe   = regexp.MustCompile(`\b(open|opens|opening|start|starts)\b`)
	fullHoursRe = regexp.MustCompile(`\b(hours|schedule|timing|timings)\b`)
	categoryRe  = regexp.MustCompile(`\b(mugs?|tumblers?|cups?|bottles?|flasks?|drinkware)\b`)
)

var capacityWords = []struct {
	word  string
	class CapacityClass
}{
	{"small", CapacitySmall},
	{"mini", CapacitySmall},
	{"compact", CapacitySmall},
	{"medium", CapacityMedium},
	{"regular", CapacityMedium},
	{"standard", CapacityMedium},
	{"large", CapacityLarge},
	{"big", CapacityLarge},
	{"huge", CapacityLarge},
	{"tall", CapacityLarge},
}

// Extractor turns one utterance into Slots. It is stateless and safe for
// concurrent use.
type Extractor struct {
	cityKeys    []string // alias keys, longest first
	serviceKeys []string
	materials   []string
	features    []string
}

// NewExtractor precomputes the alias scan orders.
func NewExtractor() *Extractor {
	e := &Extractor{}
	for k := range CityAliases {
		e.cityKeys = append(e.cityKeys, k)
	}
	longestFirst(e.cityKeys)
	e.serviceKeys = []string{
		"drive-through", "drive through", "drive-thru", "drive thru", "drivethru",
		"dine-in", "dine in", "dinein", "eat in",
		"take away", "take-away", "takeaway", "take out", "takeout",
		"delivery", "deliver",
		"wi-fi", "wifi",
		"24 hours", "24-hour", "24 hour", "24hr", "24/7",
	}
	e.materials = []string{
		"stainless steel", "stainless-steel", "stainless", "steel",
		"ceramic", "porcelain", "acrylic", "plastic", "glass",
	}
	e.features = []string{
		"double-wall-insulation", "double wall", "double-wall", "insulated", "insulation",
		"leak-proof", "leak proof", "leakproof",
		"dishwasher-safe", "dishwasher safe", "dishwasher",
		"microwave-safe", "microwave safe", "microwavable",
		"screw-on lid", "screw lid", "screw-on-lid",
		"car cup holder", "cup holder", "car-cup-holder",
		"bpa-free", "bpa free",
		"spill-proof", "spill proof",
		"keeps cold", "keeps hot",
	}
	return e
}

func longestFirst(keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
}

// Extract runs every slot family's table over the utterance.
func (e *Extractor) Extract(utterance string) Slots {
	lower := strings.ToLower(utterance)
	var s Slots

	consumed := lower
	for _, key := range e.cityKeys {
		if containsToken(consumed, key) {
			canonical := CityAliases[key]
			if !containsString(s.Locations, canonical) {
				s.Locations = append(s.Locations, canonical)
			}
			consumed = strings.ReplaceAll(consumed, key, " ")
		}
	}
	for _, lm := range Landmarks {
		if containsToken(lower, lm) {
			s.Landmarks = append(s.Landmarks, lm)
		}
	}
	for _, key := range e.serviceKeys {
		if containsToken(lower, key) {
			if sv, ok := catalog.ParseService(key); ok && !containsService(s.Services, sv) {
				s.Services = append(s.Services, sv)
			}
		}
	}
	for _, key := range e.materials {
		if containsToken(lower, key) {
			if m, ok := catalog.ParseMaterial(key); ok && !containsMaterial(s.Materials, m) {
				s.Materials = append(s.Materials, m)
			}
		}
	}
	for _, key := range e.features {
		if containsToken(lower, key) {
			if f, ok := catalog.ParseFeature(key); ok && !containsFeature(s.Features, f) {
				s.Features = append(s.Features, f)
			}
		}
	}
	for _, col := range Collections {
		if containsToken(lower, col) {
			s.Collections = append(s.Collections, col)
		}
	}

	s.Budget = extractBudget(lower)
	s.Capacity = extractCapacity(lower)
	s.TimeQuery = extractTimeQuery(lower)

	switch {
	case cheapestRe.MatchString(lower):
		s.Superlative = SuperlativeCheapest
	case priciestRe.MatchString(lower):
		s.Superlative = SuperlativePriciest
	}
	if s.Superlative != SuperlativeNone {
		s.Singular = !pluralRe.MatchString(lower)
	}
	s.ShowAll = showAllRe.MatchString(lower)

	for _, m := range categoryRe.FindAllString(lower, -1) {
		kw := strings.TrimSuffix(m, "s")
		if !containsString(s.Keywords, kw) {
			s.Keywords = append(s.Keywords, kw)
		}
	}
	return s
}

func extractBudget(lower string) *PriceRange {
	if m := betweenRe.FindStringSubmatch(lower); m != nil {
		a, _ := strconv.ParseFloat(m[1], 64)
		b, _ := strconv.ParseFloat(m[2], 64)
		if a > b {
			a, b = b, a
		}
		return &PriceRange{Min: &a, Max: &b}
	}
	if m := underRe.FindStringSubmatch(lower); m != nil {
		v, _ := strconv.ParseFloat(m[1], 64)
		zero := 0.0
		return &PriceRange{Min: &zero, Max: &v}
	}
	if m := aboveRe.FindStringSubmatch(lower); m != nil {
		v, _ := strconv.ParseFloat(m[1], 64)
		return &PriceRange{Min: &v}
	}

	if !currencyCtxRe.MatchString(lower) && !categoryRe.MatchString(lower) {
		return nil
	}
	if m := betweenBareRe.FindStringSubmatch(lower); m != nil {
		a, aok := priceAmount(m[1])
		b, bok := priceAmount(m[2])
		if aok && bok {
			if a > b {
				a, b = b, a
			}
			return &PriceRange{Min: &a, Max: &b}
		}
	}
	if m := underBareRe.FindStringSubmatch(lower); m != nil {
		if v, ok := priceAmount(m[1]); ok {
			zero := 0.0
			return &PriceRange{Min: &zero, Max: &v}
		}
	}
	if m := aboveBareRe.FindStringSubmatch(lower); m != nil {
		if v, ok := priceAmount(m[1]); ok {
			return &PriceRange{Min: &v}
		}
	}
	return nil
}

// priceAmount applies the multi-amount rule: amounts of 10 and up read as
// prices, smaller bare numbers read as percentages and are skipped.
func priceAmount(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 10 {
		return 0, false
	}
	return v, true
}

func extractCapacity(lower string) CapacityClass {
	if m := capacityML.FindStringSubmatch(lower); m != nil {
		ml, _ := strconv.Atoi(m[1])
		switch {
		case ml < 400:
			return CapacitySmall
		case ml <= 600:
			return CapacityMedium
		default:
			return CapacityLarge
		}
	}
	for _, cw := range capacityWords {
		if containsToken(lower, cw.word) {
			return cw.class
		}
	}
	return CapacityNone
}

func extractTimeQuery(lower string) TimeQuery {
	switch {
	case closingRe.MatchString(lower):
		return TimeClosing
	case openingRe.MatchString(lower):
		return TimeOpening
	case fullHoursRe.MatchString(lower):
		return TimeFullHours
	default:
		return TimeNone
	}
}

// containsToken matches key at word boundaries, tolerating hyphen/space
// variants already expanded in the key lists.
func containsToken(s, key string) bool {
	idx := 0
	for {
		i := strings.Index(s[idx:], key)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(key)
		beforeOK := start == 0 || !isWordByte(s[start-1])
		afterOK := end == len(s) || !isWordByte(s[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func containsString(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func containsService(xs []catalog.Service, x catalog.Service) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func containsMaterial(xs []catalog.Material, x catalog.Material) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func containsFeature(xs []catalog.Feature, x catalog.Feature) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
