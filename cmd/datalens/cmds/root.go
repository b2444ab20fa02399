package cmds

import (
	"os"

	"github.com/go-go-golems/datalens/pkg/client"
	"github.com/go-go-golems/datalens/pkg/config"
	"github.com/go-go-golems/datalens/pkg/logging"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// annotationTUI marks commands that take over the terminal; their logs must
// go to a file or nowhere.
const annotationTUI = "datalens/tui"

// app carries what every subcommand needs once the root has parsed flags.
type app struct {
	v        *viper.Viper
	settings *config.Settings
}

func (a *app) client() (*client.Client, error) {
	return client.New(a.settings.BaseURL, client.WithTimeout(a.settings.Timeout))
}

func stdoutIsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func NewRootCommand() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:           "datalens",
		Short:         "Chat with a spreadsheet through a remote analysis service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("config")
			s, err := config.Load(a.v, file)
			if err != nil {
				return err
			}
			a.settings = s

			ls := s.Logging()
			if err := logging.ApplyFlags(cmd, &ls); err != nil {
				return err
			}
			_, ls.Quiet = cmd.Annotations[annotationTUI]
			if err := logging.Init(ls); err != nil {
				return err
			}
			log.Debug().Str("command", cmd.Name()).Str("base_url", s.BaseURL).Msg("datalens: starting")
			return nil
		},
	}

	cobra.CheckErr(logging.AddFlags(root, "datalens"))
	pf := root.PersistentFlags()
	pf.String("config", "", "config file (default $HOME/.datalens/config.yaml)")
	pf.String("base-url", "", "analysis service URL")
	pf.Duration("timeout", 0, "request timeout")
	pf.String("charts-dir", "", "directory exported charts are written to")
	for _, name := range []string{"base-url", "timeout", "log-level", "log-format", "log-file", "with-caller", "charts-dir"} {
		cobra.CheckErr(a.v.BindPFlag(name, pf.Lookup(name)))
	}

	root.AddCommand(
		newChatCommand(a),
		newUploadCommand(a),
		newAskCommand(a),
		newHistoryCommand(a),
		newExtractChartsCommand(),
	)
	return root
}
