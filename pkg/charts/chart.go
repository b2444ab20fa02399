package charts

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
)

// Kind is the chart type named by the "type" field of a chart block.
type Kind string

const (
	KindBar       Kind = "bar"
	KindLine      Kind = "line"
	KindPie       Kind = "pie"
	KindDoughnut  Kind = "doughnut"
	KindPolarArea Kind = "polarArea"
	KindScatter   Kind = "scatter"
	KindHeatmap   Kind = "heatmap"
	KindHistogram Kind = "histogram"
	KindBoxplot   Kind = "boxplot"
)

var knownKinds = map[Kind]bool{
	KindBar:       true,
	KindLine:      true,
	KindPie:       true,
	KindDoughnut:  true,
	KindPolarArea: true,
	KindScatter:   true,
	KindHeatmap:   true,
	KindHistogram: true,
	KindBoxplot:   true,
}

// Known reports whether k is one of the chart kinds this client can draw.
func (k Kind) Known() bool {
	return knownKinds[k]
}

// RenderKind is the kind a renderer should draw. Kinds the backend invents
// after this client was built fall back to bar.
func (k Kind) RenderKind() Kind {
	if !k.Known() {
		return KindBar
	}
	return k
}

// Point is one (x, y) pair of a scatter-style series.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Style carries the optional styling hints sent along with a series.
// Colors are kept verbatim (hex or rgb()/rgba() notation).
type Style struct {
	Fill        []string `json:"fill,omitempty" yaml:"fill,omitempty"`
	Stroke      []string `json:"stroke,omitempty" yaml:"stroke,omitempty"`
	StrokeWidth float64  `json:"strokeWidth,omitempty" yaml:"strokeWidth,omitempty"`
}

// Series is either flat (Values aligned with the chart labels) or a list of
// points. Exactly one of Values and Points is populated.
type Series struct {
	Name   string    `json:"name" yaml:"name"`
	Values []float64 `json:"values,omitempty" yaml:"values,omitempty"`
	Points []Point   `json:"points,omitempty" yaml:"points,omitempty"`
	Style  Style     `json:"style" yaml:"style,omitempty"`
}

func (s Series) IsPoints() bool {
	return s.Points != nil
}

func (s Series) Len() int {
	if s.IsPoints() {
		return len(s.Points)
	}
	return len(s.Values)
}

type Chart struct {
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description" yaml:"description"`
	Kind        Kind     `json:"kind" yaml:"kind"`
	Labels      []string `json:"labels" yaml:"labels"`
	Series      []Series `json:"series" yaml:"series"`
}

// Validate checks the structural invariants a renderer relies on.
func (c Chart) Validate() error {
	if len(c.Series) == 0 {
		return errors.New("chart has no series")
	}
	if c.Kind == KindScatter {
		return nil
	}
	for i, s := range c.Series {
		if s.IsPoints() {
			return errors.Errorf("series %d (%q) carries points on a %s chart", i, s.Name, c.Kind)
		}
		if len(s.Values) != len(c.Labels) {
			return errors.Errorf("series %d (%q) has %d values for %d labels", i, s.Name, len(s.Values), len(c.Labels))
		}
	}
	return nil
}

// wireChart mirrors the chart-data document the backend embeds in replies.
type wireChart struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Type        string        `json:"type"`
	Labels      labelList     `json:"labels"`
	Datasets    []wireDataset `json:"datasets"`
}

type wireDataset struct {
	Label           string          `json:"label"`
	Data            json.RawMessage `json:"data"`
	BackgroundColor colorList       `json:"backgroundColor"`
	BorderColor     colorList       `json:"borderColor"`
	BorderWidth     float64         `json:"borderWidth"`
}

// Decode turns one chart-data document into a validated Chart.
func Decode(doc []byte) (Chart, error) {
	var w wireChart
	if err := json.Unmarshal(doc, &w); err != nil {
		return Chart{}, errors.Wrap(err, "decode chart document")
	}

	c := Chart{
		Title:       w.Title,
		Description: w.Description,
		Kind:        Kind(w.Type),
		Labels:      []string(w.Labels),
	}
	if c.Kind == "" {
		c.Kind = KindBar
	}
	if c.Labels == nil {
		c.Labels = []string{}
	}

	for i, ds := range w.Datasets {
		s := Series{
			Name: ds.Label,
			Style: Style{
				Fill:        []string(ds.BackgroundColor),
				Stroke:      []string(ds.BorderColor),
				StrokeWidth: ds.BorderWidth,
			},
		}
		if err := decodeData(ds.Data, &s); err != nil {
			return Chart{}, errors.Wrapf(err, "dataset %d", i)
		}
		c.Series = append(c.Series, s)
	}

	if err := c.Validate(); err != nil {
		return Chart{}, err
	}
	return c, nil
}

func decodeData(raw json.RawMessage, s *Series) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		s.Values = []float64{}
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return errors.Wrap(err, "data is not an array")
	}
	if len(items) == 0 {
		s.Values = []float64{}
		return nil
	}

	first := bytes.TrimSpace(items[0])
	if len(first) > 0 && first[0] == '{' {
		points := make([]Point, 0, len(items))
		for _, item := range items {
			var p struct {
				X *float64 `json:"x"`
				Y *float64 `json:"y"`
			}
			if err := json.Unmarshal(item, &p); err != nil {
				return errors.Wrap(err, "decode point")
			}
			if p.X == nil || p.Y == nil {
				return errors.New("point is missing x or y")
			}
			points = append(points, Point{X: *p.X, Y: *p.Y})
		}
		s.Points = points
		return nil
	}

	values := make([]float64, 0, len(items))
	for _, item := range items {
		var v float64
		if err := json.Unmarshal(item, &v); err != nil {
			return errors.Wrap(err, "decode value")
		}
		values = append(values, v)
	}
	s.Values = values
	return nil
}

// labelList accepts labels sent as strings or as bare numbers.
type labelList []string

func (l *labelList) UnmarshalJSON(b []byte) error {
	var items []json.RawMessage
	if err := json.Unmarshal(b, &items); err != nil {
		return err
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
			continue
		}
		var f float64
		if err := json.Unmarshal(item, &f); err != nil {
			return errors.Errorf("label %s is neither a string nor a number", string(item))
		}
		out = append(out, strconv.FormatFloat(f, 'f', -1, 64))
	}
	*l = out
	return nil
}

// colorList accepts a single color or a list of colors.
type colorList []string

func (c *colorList) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}
	var single string
	if err := json.Unmarshal(b, &single); err == nil {
		*c = []string{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return errors.Wrap(err, "color must be a string or a list of strings")
	}
	*c = many
	return nil
}
