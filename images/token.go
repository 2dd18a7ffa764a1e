// Package images recognizes inline image markers in book content, assigns
// display sizes to them and prepares image data for fixed layout output.
package images

import (
	"regexp"
	"strings"
)

// Token is a single well formed `![alt](url "title")` marker. Start and End
// are byte offsets of the whole marker in scanned text.
type Token struct {
	Start, End int
	Alt        string
	URL        string
	Title      string
}

// Malformed markers (no closing bracket, empty url, url with spaces) never
// match and are left in text literally.
var tokenRe = regexp.MustCompile(`!\[([^\]\n]*)\]\(\s*<?([^\s()<>]+)>?(?:\s+"([^"\n]*)")?\s*\)`)

// Scan returns all image markers in order of appearance.
func Scan(text string) []Token {
	matches := tokenRe.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}
	tokens := make([]Token, 0, len(matches))
	for _, m := range matches {
		t := Token{
			Start: m[0],
			End:   m[1],
			Alt:   strings.TrimSpace(text[m[2]:m[3]]),
			URL:   text[m[4]:m[5]],
		}
		if m[6] >= 0 {
			t.Title = text[m[6]:m[7]]
		}
		tokens = append(tokens, t)
	}
	return tokens
}

// Replace rewrites every image marker in text with result of fn, text
// between markers is copied unchanged.
func Replace(text string, fn func(Token) string) string {
	tokens := Scan(text)
	if len(tokens) == 0 {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, t := range tokens {
		b.WriteString(text[last:t.Start])
		b.WriteString(fn(t))
		last = t.End
	}
	b.WriteString(text[last:])
	return b.String()
}
