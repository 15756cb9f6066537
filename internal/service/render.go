package service

import (
	"html"
	"strings"
)

// Renderer converts raw post markup into the two derived forms stored on a
// post. The engine treats the output as opaque; the host application plugs
// in its own markup dialect here.
type Renderer interface {
	Render(raw string) (bodyHTML, bodyText string)
}

// EscapeRenderer default renderer: escapes HTML and wraps paragraphs.
// No markup grammar; used when the host supplies nothing.
type EscapeRenderer struct{}

func (EscapeRenderer) Render(raw string) (string, string) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", ""
	}

	var b strings.Builder
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(strings.ReplaceAll(html.EscapeString(para), "\n", "<br>"))
		b.WriteString("</p>")
	}
	return b.String(), text
}
