package retrieval

import (
	"sort"
	"strings"

	"github.com/docmindhq/docmind/store"
)

// Rerank reorders retrieved documents by a blended score of vector
// similarity and keyword coverage:
//
//	blended = similarity*wSim + coverage*wKw
//
// where coverage is the fraction of query terms appearing in the
// document's text fields. Pure and deterministic: the input slice is not
// mutated, similarity scores are left untouched for citation display, and
// the sort is stable so ties preserve the original retrieval order.
func Rerank(results []store.RetrievalResult, queryTerms []string, wSim, wKw float64) []store.RetrievalResult {
	out := make([]store.RetrievalResult, len(results))
	copy(out, results)

	if len(queryTerms) == 0 {
		return out
	}

	type scored struct {
		result  store.RetrievalResult
		blended float64
	}
	items := make([]scored, len(out))
	for i, r := range out {
		items[i] = scored{r, r.Similarity*wSim + keywordCoverage(r, queryTerms)*wKw}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].blended > items[j].blended
	})

	for i, it := range items {
		out[i] = it.result
	}
	return out
}

// keywordCoverage returns the fraction of terms present (case-insensitive)
// in the document's searchable text fields.
func keywordCoverage(r store.RetrievalResult, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	haystack := strings.ToLower(strings.Join([]string{
		r.Subject, r.Note, r.Sender, r.Receiver, r.Number,
	}, " "))

	matched := 0
	for _, t := range terms {
		if strings.Contains(haystack, t) {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}
