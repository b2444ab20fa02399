package cmds

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/go-go-golems/datalens/pkg/dataset"
	"github.com/go-go-golems/datalens/pkg/session"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newUploadCommand(a *app) *cobra.Command {
	var (
		output  string
		preview int
	)
	cmd := &cobra.Command{
		Use:   "upload [FILE]",
		Short: "Upload a spreadsheet and print its summary",
		Long:  "Upload a spreadsheet and print its summary. Without FILE a file picker opens.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var file string
			if len(args) == 1 {
				file = args[0]
			} else {
				if !stdoutIsTerminal() {
					return errors.New("upload needs a FILE when not run in a terminal")
				}
				picked, err := pickSpreadsheet(cmd.Context(), ".")
				if err != nil {
					return err
				}
				file = picked
			}
			if err := session.ValidateFileName(file); err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			ds, err := c.Upload(cmd.Context(), file)
			if err != nil {
				return errors.Wrap(err, "upload")
			}
			return writeDataset(cmd.Context(), cmd.OutOrStdout(), ds, output, preview)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text",
		"output format: text, or one row per column as "+strings.Join(rowFormats, ", "))
	cmd.Flags().IntVar(&preview, "preview", 5, "preview rows to show in text output")
	return cmd
}

func writeDataset(ctx context.Context, w io.Writer, ds *dataset.Dataset, output string, preview int) error {
	if o := strings.ToLower(output); o != "text" && o != "" {
		return writeRows(ctx, w, o, datasetRows(ds))
	}

	if _, err := fmt.Fprintf(w, "%s\n\nfile id: %s\n", ds.Welcome(), ds.ID); err != nil {
		return err
	}
	if types := ds.TypeSummary(); len(types) > 0 {
		if _, err := fmt.Fprintf(w, "types:   %s\n", strings.Join(types, ", ")); err != nil {
			return err
		}
	}
	if preview > 0 && len(ds.Preview) > 0 {
		if _, err := fmt.Fprintf(w, "\n%s\n", ds.PreviewTable(preview)); err != nil {
			return err
		}
	}
	return nil
}
