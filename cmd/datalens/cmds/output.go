package cmds

import (
	"context"
	"io"
	"strings"

	"github.com/go-go-golems/datalens/pkg/charts"
	"github.com/go-go-golems/datalens/pkg/dataset"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	"github.com/go-go-golems/glazed/pkg/middlewares/table"
	"github.com/go-go-golems/glazed/pkg/settings"
	"github.com/go-go-golems/glazed/pkg/types"
	"github.com/pkg/errors"
)

// rowFormats are the glazed output formats the commands accept.
var rowFormats = []string{"table", "json", "yaml", "csv", "tsv", "markdown"}

func isRowFormat(output string) bool {
	for _, f := range rowFormats {
		if f == output {
			return true
		}
	}
	return false
}

// writeRows prints rows through a glazed table processor and the formatter
// selected by output.
func writeRows(ctx context.Context, w io.Writer, output string, rows []types.Row) error {
	output = strings.ToLower(output)
	if !isRowFormat(output) {
		return errors.Errorf("unknown output format %q (want one of %s)", output, strings.Join(rowFormats, ", "))
	}
	ofs := &settings.OutputFormatterSettings{
		Output:       output,
		TableFormat:  "ascii",
		TableStyle:   "default",
		WithHeaders:  true,
		CsvSeparator: ",",
	}
	of, err := ofs.CreateTableOutputFormatter()
	if err != nil {
		return err
	}

	gp := middlewares.NewTableProcessor()
	if err := of.RegisterTableMiddlewares(gp); err != nil {
		return err
	}
	gp.AddTableMiddleware(table.NewOutputMiddleware(of, w))
	for _, row := range rows {
		if err := gp.AddRow(ctx, row); err != nil {
			return err
		}
	}
	if err := gp.Close(ctx); err != nil {
		return err
	}
	return of.Close(ctx, w)
}

// datasetRows has one row per column, so that the table output lines up
// columns with their inferred types.
func datasetRows(ds *dataset.Dataset) []types.Row {
	row := func(column, kind string) types.Row {
		return types.NewRow(
			types.MRP("file_id", ds.ID),
			types.MRP("filename", ds.Filename),
			types.MRP("rows", ds.RowCount),
			types.MRP("column", column),
			types.MRP("type", kind),
		)
	}
	if len(ds.Columns) == 0 {
		return []types.Row{row("", "")}
	}
	rows := make([]types.Row, 0, len(ds.Columns))
	for _, c := range ds.Columns {
		rows = append(rows, row(c, ds.ColumnTypes[c]))
	}
	return rows
}

func chartRows(cs []charts.Chart) []types.Row {
	rows := make([]types.Row, 0, len(cs))
	for i, c := range cs {
		rows = append(rows, types.NewRow(
			types.MRP("index", i+1),
			types.MRP("title", c.Title),
			types.MRP("kind", string(c.Kind)),
			types.MRP("series_count", len(c.Series)),
			types.MRP("description", c.Description),
			types.MRP("labels", c.Labels),
			types.MRP("series", c.Series),
		))
	}
	return rows
}
