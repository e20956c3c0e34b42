package intent

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"
)

// Classifier is the deterministic pattern-based intent classifier. With a
// fixed pattern table the verdict is a pure function of the utterance and
// the previous intent; there is no RNG and no learned model.
type Classifier struct {
	logger *slog.Logger
}

// NewClassifier builds a classifier. A nil logger falls back to the
// default slog logger.
func NewClassifier(logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{logger: logger}
}

// Classify maps an utterance plus session context to an intent and a
// confidence in [0,1]. It never fails: unrecognisable input yields Unclear.
func (c *Classifier) Classify(utterance string, sctx Context) Classification {
	lower := strings.ToLower(strings.TrimSpace(utterance))

	// Priority 0: injection blocklist.
	for _, re := range maliciousPatterns {
		if re.MatchString(utterance) {
			c.logger.Warn("malicious input blocked", "pattern", re.String())
			return Classification{Intent: Malicious, Confidence: 1.0, Scores: map[Intent]float64{Malicious: 1.0}}
		}
	}

	if isGarbage(lower) {
		return Classification{Intent: Unclear, Confidence: 0, Scores: map[Intent]float64{}}
	}

	scores := make(map[Intent]float64, len(intentPatterns))
	for in, patterns := range intentPatterns {
		scores[in] = scorePatterns(lower, patterns)
	}

	c.applyContextBoost(lower, sctx, scores)
	c.resolveConflicts(lower, scores)

	best, bestScore := Unclear, 0.0
	for in, s := range scores {
		if s > bestScore || (s == bestScore && in > best) {
			best, bestScore = in, s
		}
	}
	if bestScore > maxScore {
		bestScore = maxScore
	}
	if bestScore < scoreThreshold {
		return Classification{Intent: Unclear, Confidence: bestScore, Scores: scores}
	}
	return Classification{Intent: best, Confidence: bestScore, Scores: scores}
}

func scorePatterns(lower string, patterns []*regexp.Regexp) float64 {
	var score float64
	n := len([]rune(lower))
	for _, re := range patterns {
		loc := re.FindStringIndex(lower)
		if loc == nil {
			continue
		}
		score += matchScore
		if n > 0 {
			coverage := float64(len([]rune(lower[loc[0]:loc[1]]))) / float64(n)
			if coverage > 1 {
				coverage = 1
			}
			score += fullMatchBonus * coverage
		}
	}
	return score
}

// applyContextBoost lifts the follow-up intent when the previous turn was a
// search and the current utterance leans on pronouns.
func (c *Classifier) applyContextBoost(lower string, sctx Context, scores map[Intent]float64) {
	if !pronounRe.MatchString(lower) {
		return
	}
	switch sctx.LastIntent {
	case OutletSearch:
		if serviceWordRe.MatchString(lower) || timeWordRe.MatchString(lower) {
			scores[OutletSearch] += contextBoost
		}
	case ProductSearch:
		if productWordRe.MatchString(lower) {
			scores[ProductSearch] += contextBoost
		}
	}
}

// resolveConflicts applies the fixed priority rules between overlapping
// vocabularies.
func (c *Classifier) resolveConflicts(lower string, scores map[Intent]float64) {
	// Specific calculation shapes outrank promotion talk.
	if specificCalcRe.MatchString(lower) {
		if scores[Calculation] <= scores[PromotionInquiry] {
			scores[Calculation] = scores[PromotionInquiry] + matchScore
		}
	}
	// Outlet service keywords outrank generic product keywords.
	if serviceWordRe.MatchString(lower) && scores[ProductSearch] >= scores[OutletSearch] {
		scores[OutletSearch] = scores[ProductSearch] + 0.1
	}
	// Catalogue nouns without any operator are never arithmetic.
	if catalogueNounRe.MatchString(lower) && !operatorRe.MatchString(lower) {
		scores[Calculation] = 0
	}
}

// isGarbage flags inputs with a low alphanumeric ratio or a character
// repeated five or more times in a row.
func isGarbage(s string) bool {
	if s == "" {
		return true
	}
	var alnum, total int
	var prev rune
	run := 0
	for _, r := range s {
		if unicode.IsSpace(r) {
			prev, run = 0, 0
			continue
		}
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			alnum++
		}
		if r == prev {
			run++
			if run >= 4 { // fifth consecutive occurrence
				return true
			}
		} else {
			prev, run = r, 0
		}
	}
	if total == 0 {
		return true
	}
	return float64(alnum)/float64(total) < garbageAlnumMin
}
