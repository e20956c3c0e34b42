package product

import (
	"sort"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// fuzzyThreshold is the minimum token-sort ratio (0..100) for a fuzzy hit.
const fuzzyThreshold = 60

var levenshtein = metrics.NewLevenshtein()

// tokenSortRatio compares two strings after lowercasing and sorting their
// tokens, which makes the score order-insensitive and typo-tolerant.
func tokenSortRatio(a, b string) int {
	return int(strutil.Similarity(tokenSort(a), tokenSort(b), levenshtein) * 100)
}

func tokenSort(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	sort.Strings(fields)
	return strings.Join(fields, " ")
}
