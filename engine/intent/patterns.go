package intent

import "regexp"

// Pattern tables, one per intent, consulted in a defined order. Each match
// adds a flat score; a match spanning the whole utterance adds a bonus
// scaled by coverage. Tables are data so that variant behaviour lives in
// one place instead of competing classifier implementations.

const (
	matchScore      = 0.3
	fullMatchBonus  = 0.4
	contextBoost    = 0.3
	scoreThreshold  = 0.3
	maxScore        = 1.0
	garbageAlnumMin = 0.3
)

// maliciousPatterns is the fixed injection blocklist. Any hit wins with
// confidence 1.0 before scoring starts.
var maliciousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bdrop\s+table\b`),
	regexp.MustCompile(`(?i)\bunion\s+select\b`),
	regexp.MustCompile(`(?i)\bor\s+1\s*=\s*1\b`),
	regexp.MustCompile(`(?i)\bdelete\s+from\b`),
	regexp.MustCompile(`(?i)\binsert\s+into\b`),
	regexp.MustCompile(`(?i)\btruncate\s+table\b`),
	regexp.MustCompile(`(?i)<\s*script`),
	regexp.MustCompile(`(?i)javascript\s*:`),
	regexp.MustCompile(`(?i)\bexec\s*\(`),
	regexp.MustCompile(`(?i)xp_cmdshell`),
	regexp.MustCompile(`(?i)/etc/passwd`),
	regexp.MustCompile(`;\s*--`),
	regexp.MustCompile(`--\s*$`),
	regexp.MustCompile(`\$\(.+\)`),
}

var intentPatterns = map[Intent][]*regexp.Regexp{
	Greeting: {
		regexp.MustCompile(`^\s*(hi|hii+|hello|hey|yo|howdy|good\s+(morning|afternoon|evening))\b`),
		regexp.MustCompile(`^\s*(salam|apa khabar)\b`),
	},
	Farewell: {
		regexp.MustCompile(`\b(bye|goodbye|good\s*night|see\s+(you|ya)|farewell)\b`),
		regexp.MustCompile(`\bthanks?[,!.\s]*(bye|that('| i)?s all)\b`),
	},
	ProductSearch: {
		regexp.MustCompile(`\b(mugs?|tumblers?|cups?|bottles?|flasks?|drinkware|merch(andise)?)\b`),
		regexp.MustCompile(`\b(show|find|looking\s+for|recommend|suggest|buy|browse)\b.*\b(products?|items?|something)\b`),
		regexp.MustCompile(`\b(cheapest|most\s+expensive|priciest|largest|biggest|smallest)\b`),
		regexp.MustCompile(`\b(ceramic|stainless|acrylic|glass|leak[-\s]?proof|insulated|dishwasher)\b`),
		regexp.MustCompile(`\b(under|below|above|over|between)\s+rm\s*\d`),
		regexp.MustCompile(`\bshow\s+(me\s+)?all\s+products?\b`),
	},
	OutletSearch: {
		regexp.MustCompile(`\b(outlets?|stores?|branch(es)?|locations?|kedai)\b`),
		regexp.MustCompile(`\b(where|nearest|nearby)\b`),
		regexp.MustCompile(`\b(open|opens|opening|close|closes|closing|hours|schedule)\b`),
		regexp.MustCompile(`\b(dine[-\s]?in|takeaway|delivery|drive[-\s]?thru|drive[-\s]?through|wifi|24[-\s]?hours?)\b`),
		regexp.MustCompile(`\b(kl|kuala\s+lumpur|pj|petaling\s+jaya|selangor|subang|damansara|cheras|bangsar|klcc)\b`),
	},
	Calculation: {
		regexp.MustCompile(`\d\s*[-+*/^×÷]\s*\d`),
		regexp.MustCompile(`\d+\s*%`),
		regexp.MustCompile(`\b(calculate|compute|sqrt|square\s+root|power\s+of|add\s+up|sum\s+of|total\s+(for|of))\b`),
		regexp.MustCompile(`\b(sst|tax)\b`),
		regexp.MustCompile(`√`),
	},
	PromotionInquiry: {
		regexp.MustCompile(`\b(promo(tion)?s?|sale|discounts?|offers?|deals?|vouchers?)\b`),
		regexp.MustCompile(`\bon\s+sale\b`),
	},
	ContextRecall: {
		regexp.MustCompile(`\b(earlier|before|previous(ly)?|back\s+to|go\s+back|you\s+(showed|mentioned|said))\b`),
		regexp.MustCompile(`\b(what|which)\s+(was|were)\s+(that|those|it)\b`),
		regexp.MustCompile(`\bshow\s+(them|those|that)\s+again\b`),
	},
	About: {
		regexp.MustCompile(`\b(who|what)\s+are\s+you\b`),
		regexp.MustCompile(`\bwhat\s+can\s+you\s+do\b`),
		regexp.MustCompile(`^\s*(help|about)\s*[!?.]*\s*$`),
	},
}

// Specific calculation shapes outrank PROMOTION_INQUIRY even though the
// word "discount" appears in both vocabularies.
var specificCalcRe = regexp.MustCompile(`\d+(\.\d+)?\s*%\s*(discount|off)|\btotal\s+(for|of)\s+\d|\bsst\s+on\b|\d\s*%\s*sst`)

// Catalogue nouns with no operator anywhere suppress CALCULATION.
var (
	catalogueNounRe = regexp.MustCompile(`\b(mugs?|tumblers?|cups?|bottles?|flasks?|drinkware|products?|outlets?|stores?|branch(es)?)\b`)
	operatorRe      = regexp.MustCompile(`\d\s*[-+*/^×÷%]\s*\d|\d\s*%|√|\b(sqrt|square\s+root|power\s+of)\b`)
	serviceWordRe   = regexp.MustCompile(`\b(dine[-\s]?in|takeaway|delivery|drive[-\s]?thru|drive[-\s]?through|wifi|24[-\s]?hours?)\b`)
	pronounRe       = regexp.MustCompile(`\b(they|them|it|those|these)\b`)
	timeWordRe      = regexp.MustCompile(`\b(open|opens|close|closes|closing|opening|hours|schedule)\b`)
	productWordRe   = regexp.MustCompile(`\b(price|colors?|capacity|material|features?|size)\b`)
)
