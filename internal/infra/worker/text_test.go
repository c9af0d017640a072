//go:build !integration

package worker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"interview-intel/internal/domain/model"
)

func TestPrepareText(t *testing.T) {
	t.Run("title body and first three comments", func(t *testing.T) {
		p := &model.Post{
			Title:    "Google L4 onsite",
			Body:     "Four rounds, one system design.",
			Comments: []string{"congrats", "", "which team?", "nice", "ignored"},
		}
		got := PrepareText(p)
		want := "Title: Google L4 onsite\n\nBody: Four rounds, one system design." +
			"\n\nTop Comments:\n- congrats\n- which team?\n- nice"
		if got != want {
			t.Errorf("unexpected text:\n%q\nwant\n%q", got, want)
		}
	})

	t.Run("no comments section when there are none", func(t *testing.T) {
		got := PrepareText(&model.Post{Title: "t", Body: "b"})
		if strings.Contains(got, "Top Comments") {
			t.Errorf("did not expect comments header in %q", got)
		}
	})

	t.Run("body and comments are capped", func(t *testing.T) {
		p := &model.Post{
			Title:    "x",
			Body:     strings.Repeat("é", 5000),
			Comments: []string{strings.Repeat("c", 500)},
		}
		got := PrepareText(p)
		if n := strings.Count(got, "é"); n != maxBodyChars {
			t.Errorf("expected body capped at %d runes, got %d", maxBodyChars, n)
		}
		if n := strings.Count(got, "c"); n != maxCommentChars {
			t.Errorf("expected comment capped at %d, got %d", maxCommentChars, n)
		}
		if !utf8.ValidString(got) {
			t.Error("truncation must not split runes")
		}
	})

	t.Run("empty post yields empty text", func(t *testing.T) {
		if got := PrepareText(&model.Post{Title: "  ", Comments: []string{"hi"}}); got != "" {
			t.Errorf("expected empty text, got %q", got)
		}
	})
}
