package analysis

import "strings"

// NGramSize is the character n-gram width used for readme similarity.
const NGramSize = 5

// plagiarismBand is the width of the transition band just below the
// similarity threshold. The signal is near-binary: at or above the
// threshold it is near-maximal, inside the band it is moderate, below the
// band it is zero.
const plagiarismBand = 0.05

const (
	plagiarismHigh = 0.95
	plagiarismMid  = 0.4
)

// NGrams returns the set of n-character grams of text, lowercased and
// whitespace-normalized. Texts shorter than n yield the whole text as a
// single gram.
func NGrams(text string, n int) map[string]struct{} {
	text = strings.Join(strings.Fields(strings.ToLower(text)), " ")
	out := make(map[string]struct{})
	if text == "" {
		return out
	}
	if len(text) < n {
		out[text] = struct{}{}
		return out
	}
	for i := 0; i+n <= len(text); i++ {
		out[text[i:i+n]] = struct{}{}
	}
	return out
}

// Jaccard computes |a ∩ b| / |a ∪ b|. Two empty sets have similarity 0.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	var inter int
	for g := range small {
		if _, ok := large[g]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// ReadmeSimilarity computes the 5-gram Jaccard similarity between the
// package description/readme and the repository readme. Returns 0 when
// either text is too short to carry a gram.
func ReadmeSimilarity(candidateText, repoText string) float64 {
	return Jaccard(NGrams(candidateText, NGramSize), NGrams(repoText, NGramSize))
}

// PlagiarismValue maps a raw similarity to the signal value. At or above
// threshold the signal is near-maximal; a narrow band just below the
// threshold scores moderate; anything lower is zero — the signal does not
// interpolate linearly.
func PlagiarismValue(similarity, threshold float64) float64 {
	switch {
	case similarity >= threshold:
		return plagiarismHigh
	case similarity >= threshold-plagiarismBand:
		return plagiarismMid
	default:
		return 0
	}
}
