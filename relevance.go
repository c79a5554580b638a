package cairn

import "strings"

// RelevanceThreshold is the minimum token similarity for a past summary to
// count as relevant to the current prompt.
const RelevanceThreshold = 0.15

// TokenSimilarity computes the Jaccard similarity of the lowercase
// whitespace-token sets of a and b. Two empty strings score 0.
func TokenSimilarity(a, b string) float64 {
	sa := tokenSet(a)
	sb := tokenSet(b)
	if len(sa) == 0 || len(sb) == 0 {
		return 0
	}
	inter := 0
	for t := range sa {
		if _, ok := sb[t]; ok {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	return float64(inter) / float64(union)
}

// FilterRelevant keeps the candidates whose similarity to prompt meets
// RelevanceThreshold, preserving order.
func FilterRelevant(prompt string, candidates []string) []string {
	var kept []string
	for _, c := range candidates {
		if TokenSimilarity(prompt, c) >= RelevanceThreshold {
			kept = append(kept, c)
		}
	}
	return kept
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range strings.Fields(strings.ToLower(s)) {
		set[t] = struct{}{}
	}
	return set
}
