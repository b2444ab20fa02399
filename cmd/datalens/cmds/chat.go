package cmds

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/datalens/pkg/session"
	"github.com/go-go-golems/datalens/pkg/ui"
	"github.com/go-go-golems/datalens/pkg/watch"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newChatCommand(a *app) *cobra.Command {
	var (
		file     string
		watchDir string
		pick     bool
	)
	cmd := &cobra.Command{
		Use:         "chat",
		Short:       "Open the interactive chat",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationTUI: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if pick && file == "" {
				picked, err := pickSpreadsheet(cmd.Context(), ".")
				if err != nil {
					return err
				}
				file = picked
			}
			if file != "" {
				if err := session.ValidateFileName(file); err != nil {
					return err
				}
			}
			c, err := a.client()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			var events <-chan watch.Event
			if watchDir != "" {
				w, err := watch.New(watchDir, a.settings.Watch.Settle, a.settings.WatchOptions()...)
				if err != nil {
					return err
				}
				defer func() { _ = w.Close() }()
				events = w.Run(ctx)
				log.Info().Str("dir", w.Dir()).Msg("chat: watching for spreadsheets")
			}

			sess := session.New(a.settings.SessionSettings())
			defer sess.Close()
			backend := ui.NewBackend(ctx, c)
			defer backend.Interrupt()

			model := ui.NewModel(ui.Options{
				Session:          sess,
				Backend:          backend,
				InitialFile:      file,
				Watch:            events,
				ChartsDir:        a.settings.ChartsDir,
				NoticeDuration:   a.settings.NoticeDuration,
				ProgressInterval: a.settings.Upload.ProgressInterval,
				ClearDelay:       a.settings.Upload.ClearDelay,
			})

			p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
			if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return errors.Wrap(err, "run chat")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "spreadsheet to upload on start")
	cmd.Flags().BoolVar(&pick, "pick", false, "choose the spreadsheet with a file picker before starting")
	cmd.Flags().StringVar(&watchDir, "watch", "", "upload spreadsheets dropped into this directory")
	return cmd
}
