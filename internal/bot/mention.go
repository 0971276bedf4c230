package bot

import (
	"strings"
)

// MentionsBot reports whether text mentions @username (case-insensitive).
func MentionsBot(text, username string) bool {
	if username == "" {
		return false
	}
	return strings.Contains(asciiLower(text), "@"+asciiLower(username))
}

// StripMention removes every @username mention from text and normalizes the
// remaining whitespace.
func StripMention(text, username string) string {
	if username == "" {
		return strings.TrimSpace(text)
	}
	mention := "@" + asciiLower(username)
	lower := asciiLower(text)

	var b strings.Builder
	for {
		i := strings.Index(lower, mention)
		if i < 0 {
			b.WriteString(text)
			break
		}
		b.WriteString(text[:i])
		b.WriteByte(' ')
		text = text[i+len(mention):]
		lower = lower[i+len(mention):]
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// asciiLower lowercases A-Z byte by byte, so byte offsets in the result match
// s even when s is not valid UTF-8. Telegram usernames are ASCII.
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
