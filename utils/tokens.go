package utils

// CharsPerToken is a rough characters-per-token estimate. Conservative;
// actual values vary by tokenizer.
const CharsPerToken = 4

// EstimateTokens estimates the token count of a text.
func EstimateTokens(text string) int {
	return len(text) / CharsPerToken
}

// TruncateToTokenLimit truncates text to fit within a token limit.
func TruncateToTokenLimit(text string, tokenLimit int) string {
	maxChars := tokenLimit * CharsPerToken
	if len(text) <= maxChars {
		return text
	}
	if maxChars > 3 {
		return text[:maxChars-3] + "..."
	}
	return text[:maxChars]
}

// TruncateChars right-truncates text to at most maxChars bytes. Byte-based
// truncation is conservative for multi-byte scripts.
func TruncateChars(text string, maxChars int) string {
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}
	return text[:maxChars]
}
