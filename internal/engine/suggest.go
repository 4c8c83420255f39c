package engine

import (
	"strings"
	"unicode"

	"github.com/hbollon/go-edlib"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// suggestThreshold is the minimum Jaro-Winkler similarity for a
// nearest-title hint to be worth showing.
const suggestThreshold = 0.85

// Suggester finds the closest destination title for an unmatched source
// item. Purely advisory: it feeds the run summary, never the matcher.
type Suggester struct {
	titles     []string
	normalized []string
}

// NewSuggester builds a suggester over the destination titles collected
// while indexing.
func NewSuggester(titles []string) *Suggester {
	s := &Suggester{
		titles:     titles,
		normalized: make([]string, len(titles)),
	}
	for i, t := range titles {
		s.normalized[i] = normalizeTitle(t)
	}
	return s
}

// Closest returns the destination title most similar to the given one, if
// any clears the similarity threshold.
func (s *Suggester) Closest(title string) (string, bool) {
	needle := normalizeTitle(title)
	if needle == "" {
		return "", false
	}

	best := -1
	var bestScore float32
	for i, cand := range s.normalized {
		score := edlib.JaroWinklerSimilarity(needle, cand)
		if score > bestScore {
			bestScore = score
			best = i
		}
	}
	if best < 0 || bestScore < suggestThreshold {
		return "", false
	}
	return s.titles[best], true
}

var accentStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeTitle lowercases, strips accents, drops punctuation, and
// collapses whitespace so similarity scoring compares content, not styling.
func normalizeTitle(s string) string {
	s = strings.ToLower(s)
	if stripped, _, err := transform.String(accentStripper, s); err == nil {
		s = stripped
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
