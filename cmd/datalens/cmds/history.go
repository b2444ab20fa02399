package cmds

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/go-go-golems/datalens/pkg/charts"
	"github.com/go-go-golems/datalens/pkg/client"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newHistoryCommand(a *app) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "history FILE_ID",
		Short: "Print the conversation the service kept for an upload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			h, err := c.History(cmd.Context(), args[0])
			if err != nil {
				return errors.Wrap(err, "history")
			}
			return writeHistory(cmd.OutOrStdout(), h, !raw && stdoutIsTerminal())
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print markdown without styling")
	return cmd
}

// historyMarkdown renders h as one markdown document with chart blocks
// replaced by a short note.
func historyMarkdown(h *client.History) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Conversation %s\n\n", h.FileID)
	if len(h.Entries) == 0 {
		b.WriteString("_No messages yet._\n")
		return b.String()
	}
	for i, e := range h.Entries {
		if i > 0 {
			b.WriteString("\n---\n\n")
		}
		who := "You"
		if e.Role == "assistant" {
			who = "Assistant"
		}
		fmt.Fprintf(&b, "**%s**", who)
		if !e.Timestamp.IsZero() {
			fmt.Fprintf(&b, " _%s_", e.Timestamp.Local().Format(time.DateTime))
		}
		b.WriteString("\n\n")

		body := e.Content
		if e.Role == "assistant" {
			cs, display := charts.Parse(e.Content)
			body = display
			for _, c := range cs {
				title := c.Title
				if title == "" {
					title = "untitled"
				}
				fmt.Fprintf(&b, "> chart: %s (%s)\n\n", title, c.Kind)
			}
		}
		b.WriteString(body)
		b.WriteString("\n")
	}
	return b.String()
}

func writeHistory(w io.Writer, h *client.History, styled bool) error {
	md := historyMarkdown(h)
	if styled {
		out, err := glamour.Render(md, "dark")
		if err != nil {
			return errors.Wrap(err, "render history")
		}
		md = out
	}
	_, err := io.WriteString(w, md)
	return err
}
