package cmds

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-go-golems/datalens/pkg/charts"
	"github.com/go-go-golems/datalens/pkg/gallery"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type extractChartsSettings struct {
	Output    string
	RenderDir string
	Format    string
}

func newExtractChartsCommand() *cobra.Command {
	s := &extractChartsSettings{}
	cmd := &cobra.Command{
		Use:   "extract-charts [FILE|-]",
		Short: "Extract chart-data blocks from an assistant reply",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := "-"
			if len(args) == 1 {
				file = args[0]
			}
			var r io.Reader = cmd.InOrStdin()
			if file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return errors.Wrapf(err, "open %s", file)
				}
				defer func() { _ = f.Close() }()
				r = f
			}
			return runExtractCharts(cmd, r, s)
		},
	}
	cmd.Flags().StringVarP(&s.Output, "output", "o", "yaml",
		"one row per chart as "+strings.Join(rowFormats, ", ")+", or display for the text left without chart blocks")
	cmd.Flags().StringVar(&s.RenderDir, "render-dir", "", "also render the charts into this directory")
	cmd.Flags().StringVar(&s.Format, "format", string(gallery.FormatPNG), "image format for --render-dir")
	return cmd
}

func runExtractCharts(cmd *cobra.Command, r io.Reader, s *extractChartsSettings) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "read input")
	}
	cs, display := charts.Parse(string(data))

	w := cmd.OutOrStdout()
	if strings.ToLower(s.Output) == "display" {
		if _, err := fmt.Fprintln(w, display); err != nil {
			return err
		}
	} else if err := writeRows(cmd.Context(), w, s.Output, chartRows(cs)); err != nil {
		return err
	}

	if s.RenderDir == "" || len(cs) == 0 {
		return nil
	}
	res, err := gallery.Export(cmd.Context(), s.RenderDir, cs, gallery.ExportOptions{Format: gallery.Format(s.Format)})
	if err != nil {
		return err
	}
	for _, p := range gallery.Written(res) {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", p)
	}
	if n := len(res) - len(gallery.Written(res)); n > 0 {
		return errors.Errorf("%d chart(s) could not be rendered", n)
	}
	return nil
}
