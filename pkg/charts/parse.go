package charts

import (
	"bufio"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-go-golems/glazed/pkg/helpers/markdown"
	"github.com/rs/zerolog/log"
)

// Marker is the info string that tags a fenced block as a chart payload.
const Marker = "chart-data"

// Display passes needed before the text stops changing. Trimming can turn an
// indented line into a fence, so one pass is not always enough.
const maxDisplayPasses = 4

var (
	emptyFenceRe = regexp.MustCompile("(?m)^```[\\w-]*[ \t]*\n[ \t]*```[ \t]*$")
	blankRunRe   = regexp.MustCompile(`\n{3,}`)
	ruleGapRe    = regexp.MustCompile(`(?m)^(-{3,})[ \t]*\n(?:[ \t]*\n)+`)
	crlfReplacer = strings.NewReplacer("\r\n", "\n")
)

// Parse splits an assistant reply into the charts it embeds and the prose
// left for display. Blocks that do not hold a valid chart are dropped; the
// remaining blocks and the surrounding text are unaffected.
func Parse(raw string) ([]Chart, string) {
	bodies, display := split(raw)
	charts := make([]Chart, 0, len(bodies))
	for i, body := range bodies {
		c, err := Decode([]byte(body))
		if err != nil {
			log.Warn().Err(err).Int("block", i).Msg("dropping malformed chart block")
			continue
		}
		charts = append(charts, c)
	}
	return charts, settle(display)
}

// StripBlocks removes chart blocks without decoding them.
func StripBlocks(raw string) string {
	_, display := split(raw)
	return settle(display)
}

// Normalize applies the whitespace rules used for displayed prose. It is
// idempotent.
func Normalize(text string) string {
	text = crlfReplacer.Replace(text)
	for {
		next := normalizeOnce(text)
		// every rule only ever shortens the text
		if next == text {
			return next
		}
		text = next
	}
}

func normalizeOnce(text string) string {
	text = strings.TrimSpace(text)
	text = emptyFenceRe.ReplaceAllString(text, "")
	text = blankRunRe.ReplaceAllString(text, "\n\n")
	text = ruleGapRe.ReplaceAllString(text, "$1\n")
	return strings.TrimSpace(text)
}

func isChartFence(language string) bool {
	return strings.TrimSpace(language) == Marker
}

// split returns the bodies of the chart blocks in raw and the text that is
// left once they and any empty code blocks are taken out. Other code blocks
// are written back with their fences.
func split(raw string) ([]string, string) {
	text, restore := shelveLongLines(crlfReplacer.Replace(raw))

	var (
		bodies  []string
		b       strings.Builder
		removed bool
	)
	for _, blk := range markdown.ExtractAllBlocks(text) {
		var part string
		switch {
		case blk.Type == markdown.Code && isChartFence(blk.Language):
			bodies = append(bodies, restore.Replace(blk.Content))
			removed = true
			continue
		case blk.Type == markdown.Code && strings.TrimSpace(blk.Content) == "":
			removed = true
			continue
		case blk.Type == markdown.Code:
			part = "```" + blk.Language + "\n" + restore.Replace(blk.Content) + "\n```"
		default:
			part = restore.Replace(blk.Content)
		}

		if b.Len() > 0 {
			if removed {
				b.WriteString("\n\n")
			} else {
				b.WriteString("\n")
			}
		}
		removed = false
		b.WriteString(part)
	}
	return bodies, Normalize(b.String())
}

// settle repeats the display pass until it is a fixed point, so that a
// displayed text parses back to itself.
func settle(display string) string {
	for i := 0; i < maxDisplayPasses; i++ {
		_, next := split(display)
		if next == display {
			break
		}
		display = next
	}
	return display
}

// ExtractAllBlocks reads lines with bufio's default token size and stops
// at a longer one, so long lines are swapped for placeholders while scanning.
func shelveLongLines(text string) (string, *strings.Replacer) {
	lines := strings.Split(text, "\n")
	var pairs []string
	for i, l := range lines {
		if len(l) < bufio.MaxScanTokenSize/2 || strings.HasPrefix(l, "```") {
			continue
		}
		key := fmt.Sprintf("\x00line-%d\x00", i)
		pairs = append(pairs, key, l)
		lines[i] = key
	}
	if pairs == nil {
		return text, strings.NewReplacer()
	}
	return strings.Join(lines, "\n"), strings.NewReplacer(pairs...)
}
