package gallery

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-go-golems/datalens/pkg/charts"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type ExportOptions struct {
	Format      Format
	Width       int
	Height      int
	Concurrency int
}

// Exported is the outcome for one chart. Err is set when that chart could not
// be written; the others are unaffected.
type Exported struct {
	Index int
	Title string
	Path  string
	Err   error
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// FileName is the file a chart is exported to within its gallery.
func FileName(index int, c charts.Chart, format Format) string {
	slug := strings.Trim(slugRe.ReplaceAllString(strings.ToLower(c.Title), "-"), "-")
	if slug == "" {
		slug = string(c.Kind.RenderKind())
	}
	if len(slug) > 48 {
		slug = strings.TrimRight(slug[:48], "-")
	}
	return fmt.Sprintf("%02d-%s.%s", index+1, slug, format.Ext())
}

// Export renders every chart into dir. The returned slice is in chart order.
// The error is only set when dir cannot be created or ctx ends early.
func Export(ctx context.Context, dir string, cs []charts.Chart, opts ExportOptions) ([]Exported, error) {
	if _, err := opts.Format.provider(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create %s", dir)
	}
	limit := opts.Concurrency
	if limit <= 0 {
		limit = 4
	}

	results := make([]Exported, len(cs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, c := range cs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := Exported{Index: i, Title: c.Title, Path: filepath.Join(dir, FileName(i, c, opts.Format))}

			var buf bytes.Buffer
			if err := Render(&buf, c, opts.Format, opts.Width, opts.Height); err != nil {
				res.Err = err
			} else if err := os.WriteFile(res.Path, buf.Bytes(), 0o644); err != nil {
				res.Err = errors.Wrapf(err, "write %s", res.Path)
			}
			if res.Err != nil {
				log.Warn().Err(res.Err).Int("index", i).Str("title", c.Title).Msg("gallery: chart export failed")
				res.Path = ""
			}

			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, errors.Wrap(err, "export charts")
	}
	return results, nil
}

// Written returns the paths of the charts that were exported.
func Written(rs []Exported) []string {
	var out []string
	for _, r := range rs {
		if r.Err == nil && r.Path != "" {
			out = append(out, r.Path)
		}
	}
	return out
}
