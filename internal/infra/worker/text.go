package worker

import (
	"strings"
	"unicode/utf8"

	"interview-intel/internal/domain/model"
)

const (
	maxBodyChars    = 3000
	maxComments     = 3
	maxCommentChars = 200
	maxTextChars    = 32000
)

// PrepareText builds the embedding input for a post: title, a capped body
// and the first few comments. Returns "" when the post has no content.
func PrepareText(p *model.Post) string {
	title := strings.TrimSpace(p.Title)
	body := strings.TrimSpace(p.Body)
	if title == "" && body == "" {
		return ""
	}

	var b strings.Builder
	b.WriteString("Title: ")
	b.WriteString(title)
	b.WriteString("\n\nBody: ")
	b.WriteString(truncate(body, maxBodyChars))

	n := 0
	for _, c := range p.Comments {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if n == 0 {
			b.WriteString("\n\nTop Comments:")
		}
		b.WriteString("\n- ")
		b.WriteString(truncate(c, maxCommentChars))
		n++
		if n == maxComments {
			break
		}
	}
	return truncate(b.String(), maxTextChars)
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
