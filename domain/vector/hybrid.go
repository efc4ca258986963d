package vector

import (
	"sort"
	"strings"
)

// LexicalOverlap scores how much of the query appears in a payload's
// textual fields: the fraction of case-insensitive, whitespace-tokenized
// query terms found as substrings of any string-valued payload field.
// An empty query scores zero.
func LexicalOverlap(queryText string, payload Payload) float64 {
	terms := strings.Fields(strings.ToLower(queryText))
	if len(terms) == 0 {
		return 0
	}

	var haystack strings.Builder
	for _, value := range payload {
		if s, ok := value.(string); ok {
			haystack.WriteString(strings.ToLower(s))
			haystack.WriteByte(' ')
		}
	}
	text := haystack.String()

	found := 0
	for _, term := range terms {
		if strings.Contains(text, term) {
			found++
		}
	}
	return float64(found) / float64(len(terms))
}

// Rerank blends vector similarity with lexical overlap and re-sorts:
// blended = (1-alpha)*vectorScore + alpha*lexicalOverlap. The input must
// be in vector rank order; ties in the blended score keep that order.
// alpha 0 degenerates to pure vector ranking, alpha 1 to pure lexical
// ranking. Backends fetch candidates by vector and rerank through here.
func Rerank(vectorRanked []Result, queryText string, alpha float64) []Result {
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}

	blended := make([]Result, len(vectorRanked))
	for i, r := range vectorRanked {
		lexical := LexicalOverlap(queryText, r.Payload())
		blended[i] = r.WithScore((1-alpha)*r.Score() + alpha*lexical)
	}

	sort.SliceStable(blended, func(i, j int) bool {
		return blended[i].Score() > blended[j].Score()
	})
	return blended
}
