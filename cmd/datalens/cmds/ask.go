package cmds

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-go-golems/datalens/pkg/conversation"
	"github.com/go-go-golems/datalens/pkg/gallery"
	"github.com/go-go-golems/datalens/pkg/session"
	"github.com/go-go-golems/datalens/pkg/typing"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type askOptions struct {
	File      string
	Question  string
	ChartsDir string
	Typing    bool
	Sleeper   typing.Sleeper
	Format    gallery.Format
}

func newAskCommand(a *app) *cobra.Command {
	var (
		file     string
		noTyping bool
		format   string
		noCharts bool
	)
	cmd := &cobra.Command{
		Use:   "ask --file FILE QUESTION...",
		Short: "Upload a spreadsheet, ask one question and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			opts := askOptions{
				File:      file,
				Question:  strings.Join(args, " "),
				ChartsDir: a.settings.ChartsDir,
				Typing:    !noTyping && stdoutIsTerminal(),
				Sleeper:   typing.RealSleeper,
				Format:    gallery.Format(format),
			}
			if noCharts {
				opts.ChartsDir = ""
			}
			sess := session.New(a.settings.SessionSettings())
			defer sess.Close()
			return runAsk(ctx, cmd.OutOrStdout(), c, sess, opts)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "spreadsheet to upload")
	cmd.Flags().BoolVar(&noTyping, "no-typing", false, "print the answer at once")
	cmd.Flags().StringVar(&format, "format", string(gallery.FormatPNG), "chart image format: png or svg")
	cmd.Flags().BoolVar(&noCharts, "no-charts", false, "do not export charts")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// runAsk performs one upload and one question against api through sess, the
// same path the interactive chat takes.
func runAsk(ctx context.Context, w io.Writer, api session.Backend, sess *session.Session, opts askOptions) error {
	if err := sess.BeginUpload(opts.File); err != nil {
		return err
	}
	ds, err := api.Upload(ctx, opts.File)
	if n := sess.FinishUpload(ds, err); n.Level == session.NoticeError {
		return errors.New(n.Text)
	}

	fileID, err := sess.BeginSend(opts.Question)
	if err != nil {
		return err
	}
	reply, err := api.Chat(ctx, fileID, opts.Question)
	out := sess.FinishSend(fileID, reply, err)
	if out.Notice.Level == session.NoticeError {
		return errors.New(out.Notice.Text)
	}

	printed := 0
	printStep := func(step typing.Step) {
		m, ok := sess.Store().Get(step.Timestamp)
		if !ok {
			return
		}
		r := []rune(m.Text())
		if printed < len(r) {
			_, _ = io.WriteString(w, string(r[printed:]))
			printed = len(r)
		}
	}

	if out.Step.State == typing.StateRevealing && opts.Typing {
		if err := typing.Play(ctx, sess.Renderer(), out.Step, opts.Sleeper, printStep); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	} else {
		sess.Renderer().Cancel()
		last, _ := sess.Store().Last(conversation.RoleAssistant)
		_, _ = io.WriteString(w, last.Text())
	}
	_, _ = io.WriteString(w, "\n")

	if len(out.Charts) == 0 || opts.ChartsDir == "" {
		return nil
	}
	res, err := gallery.Export(ctx, opts.ChartsDir, out.Charts, gallery.ExportOptions{Format: opts.Format})
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(w)
	for _, r := range res {
		if r.Err != nil {
			_, _ = fmt.Fprintf(w, "chart %d (%s) failed: %v\n", r.Index+1, r.Title, r.Err)
			continue
		}
		_, _ = fmt.Fprintf(w, "chart %d: %s -> %s\n", r.Index+1, gallery.Summary(out.Charts[r.Index]), r.Path)
	}
	return nil
}
