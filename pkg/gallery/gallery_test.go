package gallery

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-go-golems/datalens/pkg/charts"
	"github.com/stretchr/testify/require"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func barChart() charts.Chart {
	return charts.Chart{
		Title:  "Revenue by region",
		Kind:   charts.KindBar,
		Labels: []string{"north", "south", "east"},
		Series: []charts.Series{{Name: "revenue", Values: []float64{10, 20, 15}}},
	}
}

func TestRender_AllKinds(t *testing.T) {
	twoSeries := barChart()
	twoSeries.Series = append(twoSeries.Series, charts.Series{Name: "cost", Values: []float64{4, 8, 6}})

	cases := map[string]charts.Chart{
		"bar":     barChart(),
		"stacked": twoSeries,
		"line": {
			Kind:   charts.KindLine,
			Labels: []string{"jan", "feb", "mar"},
			Series: []charts.Series{{Name: "a", Values: []float64{1, 3, 2}, Style: charts.Style{Stroke: []string{"#ff0000"}}}},
		},
		"flat line": {
			Kind:   charts.KindLine,
			Labels: []string{"jan", "feb"},
			Series: []charts.Series{{Values: []float64{5, 5}}},
		},
		"single point line": {
			Kind:   charts.KindLine,
			Labels: []string{"jan"},
			Series: []charts.Series{{Values: []float64{5}}},
		},
		"pie": {
			Kind:   charts.KindPie,
			Labels: []string{"a", "b"},
			Series: []charts.Series{{Values: []float64{1, 3}, Style: charts.Style{Fill: []string{"rgba(255, 99, 132, 0.5)", "#36a2eb"}}}},
		},
		"doughnut": {
			Kind:   charts.KindDoughnut,
			Labels: []string{"a", "b"},
			Series: []charts.Series{{Values: []float64{2, 3}}},
		},
		"scatter": {
			Kind:   charts.KindScatter,
			Series: []charts.Series{{Name: "pts", Points: []charts.Point{{X: 1, Y: 2}, {X: 3, Y: 5}, {X: 4, Y: 1}}}},
		},
		"scatter on one x": {
			Kind:   charts.KindScatter,
			Series: []charts.Series{{Name: "pts", Points: []charts.Point{{X: 2, Y: 1}, {X: 2, Y: 5}, {X: 2, Y: 3}}}},
		},
		"single scatter point": {
			Kind:   charts.KindScatter,
			Series: []charts.Series{{Points: []charts.Point{{X: 7, Y: 7}}}},
		},
		"heatmap falls back to bars": {
			Kind:   charts.KindHeatmap,
			Labels: []string{"a", "b"},
			Series: []charts.Series{{Values: []float64{1, 2}}},
		},
		"unknown kind": {
			Kind:   charts.Kind("radar"),
			Labels: []string{"a", "b"},
			Series: []charts.Series{{Values: []float64{1, 2}}},
		},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, RenderPNG(&buf, c, 400, 300))
			require.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
		})
	}
}

func TestRender_SVG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, barChart(), FormatSVG, 400, 300))
	require.Contains(t, buf.String(), "<svg")
}

func TestRender_Errors(t *testing.T) {
	var buf bytes.Buffer
	require.Error(t, RenderPNG(&buf, charts.Chart{Kind: charts.KindBar}, 0, 0))
	require.Error(t, Render(&buf, barChart(), Format("gif"), 0, 0))

	pie := charts.Chart{Kind: charts.KindPie, Labels: []string{"a"}, Series: []charts.Series{{Values: []float64{0}}}}
	require.Error(t, RenderPNG(&buf, pie, 0, 0))
}

func TestPadRange(t *testing.T) {
	require.Nil(t, padRange(nil))
	require.Nil(t, padRange([]float64{1, 2}))

	r := padRange([]float64{3, 3, 3})
	require.NotNil(t, r)
	require.Equal(t, 2.0, r.GetMin())
	require.Equal(t, 4.0, r.GetMax())
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#ff0000")
	require.NoError(t, err)
	require.Equal(t, drawing.Color{R: 255, A: 255}, c)

	c, err = ParseColor("rgba(54, 162, 235, 0.5)")
	require.NoError(t, err)
	require.Equal(t, drawing.Color{R: 54, G: 162, B: 235, A: 128}, c)

	c, err = ParseColor(" RGB(1,2,3) ")
	require.NoError(t, err)
	require.Equal(t, drawing.Color{R: 1, G: 2, B: 3, A: 255}, c)

	for _, bad := range []string{"red", "#12", "#zzzzzz", "rgb(1,2)", "rgb(300,0,0)", "rgba(1,2,3,2)"} {
		_, err := ParseColor(bad)
		require.Error(t, err, bad)
	}
}

func TestFileName(t *testing.T) {
	require.Equal(t, "01-revenue-by-region.png", FileName(0, barChart(), FormatPNG))
	require.Equal(t, "12-scatter.svg", FileName(11, charts.Chart{Kind: charts.KindScatter}, FormatSVG))
	require.Equal(t, "03-bar.png", FileName(2, charts.Chart{Title: "!!!", Kind: charts.Kind("weird")}, ""))
}

func TestExport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	bad := charts.Chart{Title: "broken", Kind: charts.KindBar}
	line := barChart()
	line.Kind = charts.KindLine
	line.Title = "Trend"

	res, err := Export(context.Background(), dir, []charts.Chart{barChart(), bad, line}, ExportOptions{Width: 300, Height: 200, Concurrency: 2})
	require.NoError(t, err)
	require.Len(t, res, 3)

	require.NoError(t, res[0].Err)
	require.Equal(t, filepath.Join(dir, "01-revenue-by-region.png"), res[0].Path)
	require.Error(t, res[1].Err)
	require.Empty(t, res[1].Path)
	require.NoError(t, res[2].Err)

	written := Written(res)
	require.Len(t, written, 2)
	for _, p := range written {
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		require.True(t, bytes.HasPrefix(data, pngMagic))
	}
}

func TestExport_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Export(ctx, t.TempDir(), []charts.Chart{barChart()}, ExportOptions{})
	require.Error(t, err)
}

func TestPreview(t *testing.T) {
	out := Preview(barChart(), 40)
	require.Contains(t, out, "Revenue by region")
	require.Contains(t, out, "south")
	require.Contains(t, out, "20")
	require.Contains(t, out, "█")
	for _, line := range strings.Split(out, "\n") {
		require.LessOrEqual(t, len([]rune(stripANSI(line))), 40, line)
	}

	scatter := charts.Chart{Kind: charts.KindScatter, Series: []charts.Series{{Points: []charts.Point{{X: 1, Y: 2}, {X: 3, Y: 4}}}}}
	require.Contains(t, Preview(scatter, 40), "2 points")
}

func TestSummary(t *testing.T) {
	require.Equal(t, "Revenue by region (bar, 1 series)", Summary(barChart()))
	require.Equal(t, "untitled (pie, 0 series)", Summary(charts.Chart{Kind: charts.KindPie}))
}

func stripANSI(s string) string {
	var b strings.Builder
	in := false
	for _, r := range s {
		switch {
		case r == 0x1b:
			in = true
		case in && (r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'):
			in = false
		case !in:
			b.WriteRune(r)
		}
	}
	return b.String()
}
