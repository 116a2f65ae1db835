package llm

import (
	"math"
	"strings"
	"unicode"
)

// Approximate tokens per unit for BPE-style tokenizers.
const (
	wordRatio        = 1.3
	cjkRatio         = 1.6
	punctuationRatio = 0.5
	digitsPerToken   = 3
)

// EstimateTokens approximates the token count of text without a tokenizer.
// Non-blank text always counts as at least one token.
func EstimateTokens(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}

	var words, numbers, cjk, other, punct int
	for _, field := range strings.FieldsFunc(text, func(r rune) bool { return !isASCIIWordRune(r) }) {
		if hasASCIILetter(field) {
			words++
			continue
		}
		numbers += (len(field) + digitsPerToken - 1) / digitsPerToken
	}

	for _, r := range text {
		switch {
		case isCJK(r):
			cjk++
		case r > unicode.MaxASCII && unicode.IsLetter(r):
			other++
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			if r != '_' {
				punct++
			}
		}
	}

	estimate := int(math.Ceil(float64(words)*wordRatio + float64(cjk)*cjkRatio + float64(numbers+other) + float64(punct)*punctuationRatio))
	if estimate < 1 {
		return 1
	}
	return estimate
}

func isASCIIWordRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_'
}

func hasASCIILetter(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			return true
		}
	}
	return false
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Hangul, r)
}
