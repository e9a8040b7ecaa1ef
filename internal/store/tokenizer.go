package store

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// tokenRegex matches runs of letters, digits and underscores.
var tokenRegex = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// DefaultStopWords are words too common in catalog text to rank on.
var DefaultStopWords = []string{
	"a", "an", "and", "the", "of", "for", "to", "in", "on", "with", "by",
	"is", "are", "be", "it", "or", "as", "at", "from", "this", "that",
}

// span is a token and its byte offsets in the source text.
type span struct {
	term       string
	start, end int
}

// Tokenize splits text into lowercase tokens of at least two characters,
// breaking identifiers such as DataTable and data_table into their words.
func Tokenize(text string) []string {
	spans := tokenSpans(text)
	tokens := make([]string, 0, len(spans))
	for _, s := range spans {
		tokens = append(tokens, strings.ToLower(s.term))
	}
	return tokens
}

// tokenSpans returns the tokens of text with their byte offsets.
func tokenSpans(text string) []span {
	var spans []span
	for _, loc := range tokenRegex.FindAllStringIndex(text, -1) {
		word := text[loc[0]:loc[1]]
		cursor := 0
		for _, part := range SplitIdentifier(word) {
			i := strings.Index(word[cursor:], part)
			if i < 0 {
				continue
			}
			start := loc[0] + cursor + i
			cursor += i + len(part)
			if utf8.RuneCountInString(part) < 2 {
				continue
			}
			spans = append(spans, span{term: part, start: start, end: start + len(part)})
		}
	}
	return spans
}

// SplitIdentifier splits snake_case and camelCase identifiers.
func SplitIdentifier(token string) []string {
	var result []string
	for _, part := range strings.Split(token, "_") {
		if part != "" {
			result = append(result, SplitCamelCase(part)...)
		}
	}
	return result
}

// SplitCamelCase splits camelCase and PascalCase identifiers.
// Examples:
//   - "DataTable" -> ["Data", "Table"]
//   - "HTMLEditor" -> ["HTML", "Editor"]
//   - "useDataGrid" -> ["use", "Data", "Grid"]
func SplitCamelCase(s string) []string {
	if s == "" {
		return []string{}
	}

	var result []string
	var current strings.Builder

	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevIsLower := unicode.IsLower(runes[i-1])
			nextIsLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])

			// Split if previous is lowercase OR next is lowercase (handles acronyms)
			if prevIsLower || nextIsLower {
				if current.Len() > 0 {
					result = append(result, current.String())
					current.Reset()
				}
			}
		}
		current.WriteRune(r)
	}

	if current.Len() > 0 {
		result = append(result, current.String())
	}
	return result
}

// BuildStopWordMap converts a slice of stop words to a set.
func BuildStopWordMap(stopWords []string) map[string]struct{} {
	m := make(map[string]struct{}, len(stopWords))
	for _, word := range stopWords {
		m[strings.ToLower(word)] = struct{}{}
	}
	return m
}
