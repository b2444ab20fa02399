package gallery

import (
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/go-go-golems/datalens/pkg/charts"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	DefaultWidth  = 960
	DefaultHeight = 540
)

// Format selects the image encoding of a rendered chart.
type Format string

const (
	FormatPNG Format = "png"
	FormatSVG Format = "svg"
)

func (f Format) provider() (chart.RendererProvider, error) {
	switch f {
	case FormatPNG, "":
		return chart.PNG, nil
	case FormatSVG:
		return chart.SVG, nil
	default:
		return nil, errors.Errorf("unknown image format %q", f)
	}
}

// Ext is the file extension for images of this format.
func (f Format) Ext() string {
	if f == "" {
		return string(FormatPNG)
	}
	return string(f)
}

// Render draws c to w. Kinds without a dedicated drawing are drawn as bars.
func Render(w io.Writer, c charts.Chart, format Format, width, height int) error {
	if err := c.Validate(); err != nil {
		return errors.Wrap(err, "render chart")
	}
	rp, err := format.provider()
	if err != nil {
		return err
	}
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}

	kind := c.Kind.RenderKind()
	log.Debug().Str("kind", string(c.Kind)).Str("drawn_as", string(kind)).Str("title", c.Title).Msg("gallery: rendering chart")

	switch kind {
	case charts.KindLine:
		if len(c.Labels) >= 2 {
			return renderLine(w, rp, c, width, height)
		}
	case charts.KindPie, charts.KindDoughnut, charts.KindPolarArea:
		return renderPie(w, rp, c, width, height)
	case charts.KindScatter:
		return renderScatter(w, rp, c, width, height)
	}
	return renderBars(w, rp, c, width, height)
}

// RenderPNG is Render with FormatPNG.
func RenderPNG(w io.Writer, c charts.Chart, width, height int) error {
	return Render(w, c, FormatPNG, width, height)
}

func background() chart.Style {
	return chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}}
}

func renderBars(w io.Writer, rp chart.RendererProvider, c charts.Chart, width, height int) error {
	if len(c.Series) == 1 && !c.Series[0].IsPoints() {
		s := c.Series[0]
		bars := make([]chart.Value, 0, len(s.Values))
		for i, v := range s.Values {
			bars = append(bars, chart.Value{
				Label: labelAt(c.Labels, i),
				Value: v,
				Style: chart.Style{
					FillColor:   seriesColor(s.Style.Fill, i, i),
					StrokeColor: seriesColor(s.Style.Stroke, i, i),
					StrokeWidth: strokeWidth(s.Style),
				},
			})
		}
		bc := chart.BarChart{
			Title:      c.Title,
			Width:      width,
			Height:     height,
			Background: background(),
			BarWidth:   barWidth(width, len(bars)),
			Bars:       bars,
		}
		if r := flatRange(c.Series); r != nil {
			bc.YAxis.Range = r
		}
		return errors.Wrap(bc.Render(rp, w), "render bar chart")
	}

	// several series are stacked per label
	stacks := make([]chart.StackedBar, 0, len(c.Labels))
	for li := range c.Labels {
		bar := chart.StackedBar{Name: labelAt(c.Labels, li)}
		for si, s := range c.Series {
			if s.IsPoints() || li >= len(s.Values) {
				continue
			}
			bar.Values = append(bar.Values, chart.Value{
				Label: s.Name,
				Value: math.Abs(s.Values[li]),
				Style: chart.Style{FillColor: seriesColor(s.Style.Fill, 0, si)},
			})
		}
		stacks = append(stacks, bar)
	}
	sbc := chart.StackedBarChart{
		Title:      c.Title,
		Width:      width,
		Height:     height,
		Background: background(),
		Bars:       stacks,
	}
	return errors.Wrap(sbc.Render(rp, w), "render stacked bar chart")
}

func renderLine(w io.Writer, rp chart.RendererProvider, c charts.Chart, width, height int) error {
	ticks := make([]chart.Tick, len(c.Labels))
	xs := make([]float64, len(c.Labels))
	for i, l := range c.Labels {
		xs[i] = float64(i)
		ticks[i] = chart.Tick{Value: float64(i), Label: l}
	}

	series := make([]chart.Series, 0, len(c.Series))
	for si, s := range c.Series {
		color := seriesColor(s.Style.Stroke, 0, si)
		series = append(series, chart.ContinuousSeries{
			Name:    s.Name,
			XValues: xs,
			YValues: s.Values,
			Style: chart.Style{
				StrokeColor: color,
				StrokeWidth: strokeWidth(s.Style),
				DotColor:    color,
				DotWidth:    3,
			},
		})
	}

	ch := chart.Chart{
		Title:      c.Title,
		Width:      width,
		Height:     height,
		Background: background(),
		XAxis:      chart.XAxis{Ticks: ticks},
		YAxis:      chart.YAxis{Range: flatRange(c.Series)},
		Series:     series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	return errors.Wrap(ch.Render(rp, w), "render line chart")
}

func renderPie(w io.Writer, rp chart.RendererProvider, c charts.Chart, width, height int) error {
	s := c.Series[0]
	values := make([]chart.Value, 0, len(s.Values))
	for i, v := range s.Values {
		if v <= 0 {
			continue
		}
		values = append(values, chart.Value{
			Label: labelAt(c.Labels, i),
			Value: v,
			Style: chart.Style{FillColor: seriesColor(s.Style.Fill, i, i)},
		})
	}
	if len(values) == 0 {
		return errors.New("render pie chart: no positive values")
	}
	pc := chart.PieChart{
		Title:      c.Title,
		Width:      width,
		Height:     height,
		Background: background(),
		Values:     values,
	}
	return errors.Wrap(pc.Render(rp, w), "render pie chart")
}

func renderScatter(w io.Writer, rp chart.RendererProvider, c charts.Chart, width, height int) error {
	series := make([]chart.Series, 0, len(c.Series))
	var allX []float64
	for si, s := range c.Series {
		xs, ys := make([]float64, 0, s.Len()), make([]float64, 0, s.Len())
		if s.IsPoints() {
			for _, p := range s.Points {
				xs = append(xs, p.X)
				ys = append(ys, p.Y)
			}
		} else {
			for i, v := range s.Values {
				xs = append(xs, float64(i))
				ys = append(ys, v)
			}
		}
		allX = append(allX, xs...)
		color := seriesColor(s.Style.Fill, 0, si)
		series = append(series, chart.ContinuousSeries{
			Name:    s.Name,
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeWidth: chart.Disabled,
				DotWidth:    4,
				DotColor:    color,
			},
		})
	}
	ch := chart.Chart{
		Title:      c.Title,
		Width:      width,
		Height:     height,
		Background: background(),
		XAxis:      chart.XAxis{Range: padRange(allX)},
		YAxis:      chart.YAxis{Range: flatRange(c.Series)},
		Series:     series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	return errors.Wrap(ch.Render(rp, w), "render scatter chart")
}

// flatRange returns a fixed axis range when every value is the same, which
// go-chart cannot scale on its own.
func flatRange(ss []charts.Series) chart.Range {
	var all []float64
	for _, s := range ss {
		all = append(all, s.Values...)
		for _, p := range s.Points {
			all = append(all, p.Y)
		}
	}
	if len(all) == 0 {
		return nil
	}
	if lo, hi := valueRange(all); lo == hi {
		return &chart.ContinuousRange{Min: math.Min(0, lo), Max: math.Max(1, hi+1)}
	}
	return nil
}

// padRange widens a zero-width x range around its single value; go-chart
// refuses to scale an axis whose delta is zero.
func padRange(xs []float64) chart.Range {
	if len(xs) == 0 {
		return nil
	}
	if lo, hi := valueRange(xs); lo == hi {
		return &chart.ContinuousRange{Min: lo - 1, Max: hi + 1}
	}
	return nil
}

func labelAt(labels []string, i int) string {
	if i < len(labels) {
		return labels[i]
	}
	return strconv.Itoa(i + 1)
}

func valueRange(vs []float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range vs {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

func barWidth(width, n int) int {
	if n == 0 {
		return 40
	}
	bw := (width - 80) / (n * 2)
	switch {
	case bw < 8:
		return 8
	case bw > 80:
		return 80
	}
	return bw
}

func strokeWidth(s charts.Style) float64 {
	if s.StrokeWidth > 0 {
		return s.StrokeWidth
	}
	return 2
}

// seriesColor picks the i-th entry of a color list, cycling through it, and
// falls back to the go-chart palette at fallback.
func seriesColor(list []string, i, fallback int) drawing.Color {
	if len(list) > 0 {
		if col, err := ParseColor(list[i%len(list)]); err == nil {
			return col
		}
	}
	return chart.GetDefaultColor(fallback)
}

// ParseColor accepts #rgb, #rrggbb, rgb(r, g, b) and rgba(r, g, b, a) with a
// in [0, 1].
func ParseColor(s string) (drawing.Color, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch {
	case strings.HasPrefix(s, "#"):
		hex := s[1:]
		if len(hex) != 3 && len(hex) != 6 {
			return drawing.Color{}, errors.Errorf("bad hex color %q", s)
		}
		if _, err := strconv.ParseUint(hex, 16, 32); err != nil {
			return drawing.Color{}, errors.Errorf("bad hex color %q", s)
		}
		return drawing.ColorFromHex(hex), nil
	case strings.HasPrefix(s, "rgb"):
		open, end := strings.IndexByte(s, '('), strings.LastIndexByte(s, ')')
		if open < 0 || end < open {
			return drawing.Color{}, errors.Errorf("bad rgb color %q", s)
		}
		parts := strings.Split(s[open+1:end], ",")
		if len(parts) != 3 && len(parts) != 4 {
			return drawing.Color{}, errors.Errorf("bad rgb color %q", s)
		}
		var ch [3]uint8
		for i := 0; i < 3; i++ {
			v, err := strconv.Atoi(strings.TrimSpace(parts[i]))
			if err != nil || v < 0 || v > 255 {
				return drawing.Color{}, errors.Errorf("bad rgb component %q", parts[i])
			}
			ch[i] = uint8(v)
		}
		alpha := uint8(255)
		if len(parts) == 4 {
			a, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
			if err != nil || a < 0 || a > 1 {
				return drawing.Color{}, errors.Errorf("bad alpha %q", parts[3])
			}
			alpha = uint8(math.Round(a * 255))
		}
		return drawing.Color{R: ch[0], G: ch[1], B: ch[2], A: alpha}, nil
	}
	return drawing.Color{}, errors.Errorf("unsupported color %q", s)
}
