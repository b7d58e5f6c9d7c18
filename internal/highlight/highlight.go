// Package highlight picks the sentence of a passage that best matches a query.
package highlight

import (
	"math"
	"regexp"
	"strings"
)

var (
	tokenPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)
	sentenceRe   = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
	stopwords    = defaultStopwords()
)

// Sentences splits text into trimmed sentences. Trailing text without
// terminal punctuation forms the last sentence.
func Sentences(text string) []string {
	var out []string
	consumed := 0
	for _, loc := range sentenceRe.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[loc[0]:loc[1]]); s != "" {
			out = append(out, s)
		}
		consumed = loc[1]
	}
	if rest := strings.TrimSpace(text[consumed:]); rest != "" {
		out = append(out, rest)
	}
	return out
}

// Best returns the sentences of text and the index of the one sharing most
// query terms. Ties go to the sentence whose terms are most frequent in the
// passage, normalised by sentence length. best is -1 when text has no
// sentence or the query has no terms.
func Best(text, query string) (sentences []string, best int) {
	sentences = Sentences(text)
	qset := tokenSet(query)
	if len(sentences) == 0 || len(qset) == 0 {
		return sentences, -1
	}

	freq := map[string]float64{}
	for _, sent := range sentences {
		for _, tok := range tokens(sent) {
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		maxF = math.Max(maxF, v)
	}

	best = 0
	bestOverlap, bestWeight := -1, -1.0
	for i, sent := range sentences {
		toks := tokens(sent)
		overlap := 0
		seen := make(map[string]struct{}, len(toks))
		weight := 0.0
		for _, t := range toks {
			weight += freq[t] / maxF
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			if _, ok := qset[t]; ok {
				overlap++
			}
		}
		if l := float64(len(toks)); l > 0 {
			weight /= math.Sqrt(l)
		}
		if overlap > bestOverlap || (overlap == bestOverlap && weight > bestWeight) {
			best, bestOverlap, bestWeight = i, overlap, weight
		}
	}
	return sentences, best
}

// Sentence returns the best matching sentence, or "" when there is none.
func Sentence(text, query string) string {
	sentences, best := Best(text, query)
	if best < 0 {
		return ""
	}
	return sentences[best]
}

func tokens(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := stopwords[t]; !isStop {
			out = append(out, t)
		}
	}
	return out
}

func tokenSet(s string) map[string]struct{} {
	toks := tokens(s)
	m := make(map[string]struct{}, len(toks))
	for _, t := range toks {
		m[t] = struct{}{}
	}
	return m
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
