// Package tokencount estimates accounting tokens for usage metering. The
// numbers feed the token ledger only; they are never passed to a model
// provider.
package tokencount

import "strings"

// Estimate returns the accounting-token cost of a text: one token per
// whitespace-separated word, one per non-ASCII rune (CJK text rarely uses
// spaces), plus one for message framing. Empty text costs nothing.
func Estimate(text string) int64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	var count int64
	for _, r := range text {
		if r > 127 {
			count++
		}
	}
	count += int64(len(strings.Fields(text)))
	return count + 1
}

// EstimateAll sums Estimate over a slice of texts.
func EstimateAll(texts []string) int64 {
	var total int64
	for _, t := range texts {
		total += Estimate(t)
	}
	return total
}
