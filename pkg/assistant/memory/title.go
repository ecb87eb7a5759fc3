package memory

import (
	"strings"
)

const (
	maxTitleWords = 6
	maxTitleRunes = 50
)

// DeriveTitle names a session after its first message: up to six words when
// they fit in 50 characters, otherwise the first 47 characters and "...".
func DeriveTitle(message string) string {
	words := strings.Fields(message)
	if len(words) == 0 {
		return ""
	}
	if len(words) > maxTitleWords {
		words = words[:maxTitleWords]
	}
	title := strings.Join(words, " ")
	if len([]rune(title)) <= maxTitleRunes {
		return title
	}
	flat := []rune(strings.Join(strings.Fields(message), " "))
	return strings.TrimSpace(string(flat[:maxTitleRunes-3])) + "..."
}

// MergeTags appends new tags, case-insensitively deduplicated, keeping first-seen order.
func MergeTags(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing)+len(incoming))
	out := make([]string, 0, len(existing)+len(incoming))
	for _, list := range [][]string{existing, incoming} {
		for _, t := range list {
			t = strings.TrimSpace(t)
			key := strings.ToLower(t)
			if t == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, t)
		}
	}
	return out
}
