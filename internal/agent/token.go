package agent

// estimateTokens estimates token count using character-based heuristics.
// Hangul syllables (U+AC00–U+D7A3): ~1.5 tokens/char.
// ASCII and other characters: ~0.25 tokens/char.
//
// Precision is ±20–30% for mixed content, which is sufficient for
// threshold-based compression triggers. Jamo blocks and CJK punctuation
// are counted at the cheap rate.
func estimateTokens(text string) int {
	var korean, other int
	for _, r := range text {
		if r >= 0xAC00 && r <= 0xD7A3 {
			korean++
		} else {
			other++
		}
	}
	// ceil(1.5·korean + 0.25·other)
	return (6*korean + other + 3) / 4
}
