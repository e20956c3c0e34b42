// Package product ranks catalogue products for a query. Retrieval is a
// cascade: structured slot filters, an optional injected semantic index,
// lexical matching and finally fuzzy matching for typo tolerance. The
// cascade never errors; an empty list is a valid outcome.
package product

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/kopibot/kopibot/engine/catalog"
	"github.com/kopibot/kopibot/engine/slot"
)

// DefaultK caps general category queries.
const DefaultK = 15

// SemanticIndex is the optional embedding-backed capability. The retriever
// is fully functional without one.
type SemanticIndex interface {
	// Semantic returns product names ranked by similarity to the query.
	Semantic(ctx context.Context, query string, k int) ([]string, error)
}

// Retriever searches an immutable product snapshot.
type Retriever struct {
	products []catalog.Product
	byName   map[string]catalog.Product
	semantic SemanticIndex
	logger   *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithSemanticIndex injects the optional semantic capability.
func WithSemanticIndex(idx SemanticIndex) Option {
	return func(r *Retriever) { r.semantic = idx }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Retriever) { r.logger = l }
}

// NewRetriever snapshots the catalogue. The slice is copied; the engine
// never mutates catalogue entries.
func NewRetriever(products []catalog.Product, opts ...Option) *Retriever {
	r := &Retriever{
		products: append([]catalog.Product(nil), products...),
		byName:   make(map[string]catalog.Product, len(products)),
		logger:   slog.Default(),
	}
	for _, p := range r.products {
		r.byName[p.Name] = p
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// All returns the full catalogue snapshot in catalogue order.
func (r *Retriever) All() []catalog.Product {
	return append([]catalog.Product(nil), r.products...)
}

// OnSale returns the promoted subset in catalogue order.
func (r *Retriever) OnSale() []catalog.Product {
	var out []catalog.Product
	for _, p := range r.products {
		if p.OnSale || p.Promotion != "" {
			out = append(out, p)
		}
	}
	return out
}

// Search applies the retrieval cascade and the ordering contract.
func (r *Retriever) Search(ctx context.Context, query string, s slot.Slots, k int) []catalog.Product {
	if k <= 0 {
		k = DefaultK
	}

	if s.ShowAll && s.Budget == nil && len(s.Materials) == 0 && len(s.Features) == 0 &&
		len(s.Collections) == 0 && s.Capacity == slot.CapacityNone && len(s.Keywords) == 0 {
		return r.All()
	}

	filtered, narrowed := r.applyFilters(s)

	// Relevance stages only run when the structured slots did not narrow
	// the set; category queries keep catalogue order.
	if !narrowed && strings.TrimSpace(query) != "" {
		filtered = r.rankByRelevance(ctx, query, filtered)
	}
	filtered = dedupeByName(filtered)

	switch s.Superlative {
	case slot.SuperlativeCheapest:
		sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].Price < filtered[j].Price })
		return clamp(filtered, superlativeK(s))
	case slot.SuperlativePriciest:
		sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].Price > filtered[j].Price })
		return clamp(filtered, superlativeK(s))
	}
	return clamp(filtered, k)
}

// Summarize is a one-line description of a result set for logs and reply
// lead-ins.
func (r *Retriever) Summarize(query string, results []catalog.Product) string {
	switch len(results) {
	case 0:
		return fmt.Sprintf("no products match %q", query)
	case 1:
		return fmt.Sprintf("1 product matches %q", query)
	default:
		return fmt.Sprintf("%d products match %q", len(results), query)
	}
}

func superlativeK(s slot.Slots) int {
	if s.Singular {
		return 1
	}
	return 3
}

func clamp(products []catalog.Product, k int) []catalog.Product {
	if len(products) > k {
		return products[:k]
	}
	return products
}

// applyFilters applies the structured slot filters conjunctively and
// reports whether any of them actually narrowed the catalogue.
func (r *Retriever) applyFilters(s slot.Slots) ([]catalog.Product, bool) {
	out := make([]catalog.Product, 0, len(r.products))
	active := len(s.Materials) > 0 || len(s.Features) > 0 || len(s.Collections) > 0 ||
		s.Capacity != slot.CapacityNone || s.Budget != nil || len(s.Keywords) > 0
	for _, p := range r.products {
		if matchesSlots(p, s) {
			out = append(out, p)
		}
	}
	return out, active
}

func matchesSlots(p catalog.Product, s slot.Slots) bool {
	if len(s.Materials) > 0 && !materialIn(p.Material, s.Materials) {
		return false
	}
	for _, f := range s.Features {
		if !featureIn(f, p.Features) {
			return false
		}
	}
	if len(s.Collections) > 0 && !collectionIn(p.Collection, s.Collections) {
		return false
	}
	if s.Capacity != slot.CapacityNone && capacityClassOf(p.Capacity) != s.Capacity {
		return false
	}
	if s.Budget != nil && !s.Budget.Contains(p.Price) {
		return false
	}
	if len(s.Keywords) > 0 && !keywordsMatch(p, s.Keywords) {
		return false
	}
	return true
}

func materialIn(m catalog.Material, want []catalog.Material) bool {
	for _, w := range want {
		if m == w {
			return true
		}
	}
	return false
}

func featureIn(f catalog.Feature, have []catalog.Feature) bool {
	for _, h := range have {
		if f == h {
			return true
		}
	}
	return false
}

func collectionIn(c string, want []string) bool {
	lc := strings.ToLower(c)
	for _, w := range want {
		if strings.Contains(lc, strings.ToLower(w)) {
			return true
		}
	}
	return false
}

func keywordsMatch(p catalog.Product, keywords []string) bool {
	hay := strings.ToLower(p.Name + " " + p.Category)
	for _, kw := range keywords {
		if strings.Contains(hay, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

var mlRe = regexp.MustCompile(`(\d{2,4})\s*ml`)

func capacityClassOf(capacity string) slot.CapacityClass {
	m := mlRe.FindStringSubmatch(strings.ToLower(capacity))
	if m == nil {
		return slot.CapacityNone
	}
	ml, _ := strconv.Atoi(m[1])
	switch {
	case ml < 400:
		return slot.CapacitySmall
	case ml <= 600:
		return slot.CapacityMedium
	default:
		return slot.CapacityLarge
	}
}

// rankByRelevance runs semantic → lexical → fuzzy over the candidate set.
func (r *Retriever) rankByRelevance(ctx context.Context, query string, candidates []catalog.Product) []catalog.Product {
	if r.semantic != nil {
		if ranked, err := r.semantic.Semantic(ctx, query, len(candidates)); err == nil && len(ranked) > 0 {
			if hits := r.intersectByName(ranked, candidates); len(hits) > 0 {
				return hits
			}
		} else if err != nil {
			r.logger.Warn("semantic index unavailable, falling back to lexical", "error", err)
		}
	}

	// Operator words ("cheapest", "show all") are not content terms; a
	// query carrying nothing else keeps the candidate set as-is.
	tokens := significantTokens(query)
	if len(tokens) == 0 {
		return candidates
	}
	if hits := lexicalTokenMatch(tokens, candidates); len(hits) > 0 {
		return hits
	}
	return fuzzyMatch(query, candidates)
}

func (r *Retriever) intersectByName(ranked []string, candidates []catalog.Product) []catalog.Product {
	allowed := make(map[string]bool, len(candidates))
	for _, p := range candidates {
		allowed[p.Name] = true
	}
	var out []catalog.Product
	for _, name := range ranked {
		if allowed[name] {
			out = append(out, r.byName[name])
		}
	}
	return out
}

func lexicalTokenMatch(tokens []string, candidates []catalog.Product) []catalog.Product {
	var out []catalog.Product
	for _, p := range candidates {
		hay := strings.ToLower(strings.Join(append([]string{
			p.Name, p.Category, string(p.Material), p.Collection, p.Capacity,
		}, flatten(p)...), " "))
		for _, tok := range tokens {
			if strings.Contains(hay, tok) {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

func flatten(p catalog.Product) []string {
	out := append([]string(nil), p.Colors...)
	for _, f := range p.Features {
		out = append(out, string(f))
	}
	return out
}

func fuzzyMatch(query string, candidates []catalog.Product) []catalog.Product {
	type scored struct {
		p     catalog.Product
		ratio int
	}
	var hits []scored
	for _, p := range candidates {
		ratio := tokenSortRatio(query, p.Name)
		if r2 := tokenSortRatio(query, p.Name+" "+p.Category); r2 > ratio {
			ratio = r2
		}
		if ratio >= fuzzyThreshold {
			hits = append(hits, scored{p, ratio})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].ratio > hits[j].ratio })
	out := make([]catalog.Product, len(hits))
	for i, h := range hits {
		out[i] = h.p
	}
	return out
}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "me": true, "show": true, "find": true,
	"for": true, "of": true, "in": true, "with": true, "do": true, "you": true,
	"have": true, "any": true, "is": true, "are": true, "there": true,
	"what": true, "which": true, "i": true, "want": true, "looking": true,
	"please": true, "can": true, "your": true, "something": true,
	// query operators, not content terms
	"most": true, "expensive": true, "cheapest": true, "priciest": true,
	"cheap": true, "largest": true, "smallest": true, "biggest": true,
	"all": true, "products": true, "items": true, "options": true,
}

func significantTokens(query string) []string {
	var out []string
	for _, tok := range strings.Fields(strings.ToLower(query)) {
		tok = strings.Trim(tok, "?!.,;:")
		if len(tok) < 3 || stopwords[tok] {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func dedupeByName(products []catalog.Product) []catalog.Product {
	seen := make(map[string]bool, len(products))
	out := products[:0:0]
	for _, p := range products {
		if seen[p.Name] {
			continue
		}
		seen[p.Name] = true
		out = append(out, p)
	}
	return out
}
