package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/datalens/pkg/conversation"
	"github.com/rs/zerolog/log"
)

type renderKey struct {
	ts    int64
	width int
	size  int
}

// transcript renders the conversation for the viewport. Finalized messages
// go through glamour once per width; the revealing one is shown as plain
// wrapped text so every tick stays cheap.
type transcript struct {
	width    int
	renderer *glamour.TermRenderer
	cache    map[renderKey]string
}

func newTranscript() *transcript {
	return &transcript{cache: map[renderKey]string{}}
}

func (t *transcript) setWidth(width int) {
	if width == t.width && t.renderer != nil {
		return
	}
	t.width = width
	wrap := width - 2
	if wrap < 20 {
		wrap = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		log.Warn().Err(err).Msg("ui: markdown renderer unavailable, showing plain text")
		r = nil
	}
	t.renderer = r
	t.cache = map[renderKey]string{}
}

func (t *transcript) markdown(m conversation.Message) string {
	text := m.Text()
	key := renderKey{ts: m.Timestamp.UnixNano(), width: t.width, size: len(text)}
	if out, ok := t.cache[key]; ok {
		return out
	}
	out := ""
	if t.renderer != nil && m.Role == conversation.RoleAssistant {
		rendered, err := t.renderer.Render(text)
		if err != nil {
			log.Debug().Err(err).Time("timestamp", m.Timestamp).Msg("ui: markdown render failed")
		} else {
			out = strings.Trim(rendered, "\n")
		}
	}
	if out == "" {
		out = t.plain(text)
	}
	t.cache[key] = out
	return out
}

func (t *transcript) plain(text string) string {
	if t.width <= 0 {
		return text
	}
	return lipgloss.NewStyle().Width(t.width).PaddingLeft(2).Render(text)
}

func (t *transcript) Render(msgs []conversation.Message) string {
	if len(msgs) == 0 {
		return helpStyle.Render("Upload a spreadsheet with /upload <path> to get started. /help lists commands.")
	}

	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(header(m))
		b.WriteString("\n")

		switch {
		case m.Revealing:
			b.WriteString(t.plain(m.DisplayContent + "▌"))
		default:
			b.WriteString(t.markdown(m))
		}

		if n := len(m.Charts); n > 0 {
			titles := make([]string, 0, n)
			for _, c := range m.Charts {
				if c.Title != "" {
					titles = append(titles, c.Title)
				}
			}
			note := fmt.Sprintf("  %d chart(s) in the gallery", n)
			if len(titles) > 0 {
				note += ": " + strings.Join(titles, ", ")
			}
			b.WriteString("\n")
			b.WriteString(chartNoteStyle.Render(note))
		}
	}
	return b.String()
}

func header(m conversation.Message) string {
	name := assistantStyle.Render("Assistant")
	if m.Role == conversation.RoleUser {
		name = userStyle.Render("You")
	}
	return name + " " + timeStyle.Render(m.Timestamp.Local().Format(time.Kitchen))
}
