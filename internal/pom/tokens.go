package pom

import "strings"

// EstimateTokens gives a rough token count for the tree's text using a
// words x 1.33 heuristic. It is only used for reporting prompt size.
func (t *Tree) EstimateTokens() int {
	words := 0
	for i := range t.nodes {
		n := &t.nodes[i]
		words += len(strings.Fields(n.title))
		words += len(strings.Fields(n.body))
		words += bulletWords(n.bullets)
	}
	return wordsToTokens(words)
}

// EstimateTextTokens applies the same heuristic to a plain string.
func EstimateTextTokens(text string) int {
	return wordsToTokens(len(strings.Fields(text)))
}

func wordsToTokens(words int) int {
	if words == 0 {
		return 0
	}
	tokens := int(float64(words) * 1.33)
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}

func bulletWords(entries []Bullet) int {
	n := 0
	for _, e := range entries {
		if e.IsGroup() {
			n += bulletWords(e.Entries)
			continue
		}
		n += len(strings.Fields(e.Text))
	}
	return n
}
