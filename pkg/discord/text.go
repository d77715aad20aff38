package discord

import (
	"html"
	"regexp"
	"strings"
)

const separator = " | "

var (
	mentions = regexp.MustCompile(`<@[!&]?\d+>`)
	channels = regexp.MustCompile(`<#\d+>`)
	emojis   = regexp.MustCompile(`<a?:\w+:\d+>`)
)

// Text flattens the message content and its embeds into a single line of
// text. Fragments are joined with " | " in display order.
func Text(m Message) string {
	var parts []string
	add := func(s string) {
		if s != "" {
			parts = append(parts, s)
		}
	}
	add(m.Content)
	for _, e := range m.Embeds {
		add(e.Title)
		add(e.Description)
		for _, f := range e.Fields {
			add(f.Name)
			add(f.Value)
		}
		if e.Footer != nil {
			add(e.Footer.Text)
		}
	}

	text := html.UnescapeString(strings.Join(parts, separator))
	text = mentions.ReplaceAllString(text, "")
	text = channels.ReplaceAllString(text, "")
	text = emojis.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
