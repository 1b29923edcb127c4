package store

import "strings"

// TokenizeCode splits text into lowercase-friendly tokens suited to mixed
// prose/code content: splits on non-alphanumeric boundaries, then further
// splits camelCase and snake_case identifiers so "getUserName" yields
// "get", "User", "Name" in addition to the whole identifier — queries for
// either the compound term or its parts can match.
func TokenizeCode(text string) []string {
	var tokens []string
	var cur strings.Builder

	flush := func() {
		if cur.Len() == 0 {
			return
		}
		word := cur.String()
		tokens = append(tokens, word)
		tokens = append(tokens, splitIdentifier(word)...)
		cur.Reset()
	}

	for _, r := range text {
		if isWordRune(r) {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()

	return tokens
}

func isWordRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_'
}

// splitIdentifier breaks a camelCase or snake_case identifier into its
// constituent parts. Returns nil if the identifier has no internal
// boundaries (nothing new to add beyond the whole-word token).
func splitIdentifier(word string) []string {
	if strings.Contains(word, "_") {
		parts := strings.Split(word, "_")
		var out []string
		for _, p := range parts {
			if p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 1 {
			return out
		}
		return nil
	}

	var parts []string
	var cur strings.Builder
	runes := []rune(word)
	for i, r := range runes {
		if i > 0 && r >= 'A' && r <= 'Z' && runes[i-1] >= 'a' && runes[i-1] <= 'z' {
			parts = append(parts, cur.String())
			cur.Reset()
		}
		cur.WriteRune(r)
	}
	if cur.Len() > 0 {
		parts = append(parts, cur.String())
	}
	if len(parts) > 1 {
		return parts
	}
	return nil
}

// BuildStopWordMap turns a stop-word slice into a lookup set.
func BuildStopWordMap(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[strings.ToLower(w)] = struct{}{}
	}
	return m
}
