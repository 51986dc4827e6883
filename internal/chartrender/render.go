// Package chartrender draws static line charts for baked pages, labelling both
// axes with ticks from the axis package.
package chartrender

import (
	"errors"
	"fmt"
	"io"
	"math"

	chart "github.com/wcharczuk/go-chart/v2"
	"go.uber.org/zap"

	"chartpress/internal/axis"
)

const (
	defaultWidth  = 640
	defaultHeight = 400
)

var (
	ErrNoData           = errors.New("chartrender: no plottable data")
	ErrMismatchedSeries = errors.New("chartrender: series x and y lengths differ")
)

type Series struct {
	Name string    `json:"name"`
	X    []float64 `json:"x"`
	Y    []float64 `json:"y"`
}

type ChartSpec struct {
	Title       string               `json:"title"`
	Width       int                  `json:"width,omitempty"`
	Height      int                  `json:"height,omitempty"`
	XLabel      string               `json:"xLabel,omitempty"`
	YLabel      string               `json:"yLabel,omitempty"`
	YScale      axis.ScaleType       `json:"yScale,omitempty"`
	Series      []Series             `json:"series"`
	XTickFormat func(float64) string `json:"-"`
	YTickFormat func(float64) string `json:"-"`
}

type Renderer struct {
	logger *zap.Logger
}

func NewRenderer(logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{logger: logger}
}

func (r *Renderer) RenderSVG(w io.Writer, spec ChartSpec) error {
	return r.render(w, spec, chart.SVG)
}

func (r *Renderer) RenderPNG(w io.Writer, spec ChartSpec) error {
	return r.render(w, spec, chart.PNG)
}

func (r *Renderer) render(w io.Writer, spec ChartSpec, provider chart.RendererProvider) error {
	c, err := r.build(spec)
	if err != nil {
		return err
	}
	if err := c.Render(provider, w); err != nil {
		return fmt.Errorf("render chart %q: %w", spec.Title, err)
	}
	return nil
}

func (r *Renderer) build(spec ChartSpec) (chart.Chart, error) {
	logY := spec.YScale == axis.Log
	width, height := spec.Width, spec.Height
	if width <= 0 {
		width = defaultWidth
	}
	if height <= 0 {
		height = defaultHeight
	}

	plotted := make([]Series, 0, len(spec.Series))
	for _, s := range spec.Series {
		if len(s.X) != len(s.Y) {
			return chart.Chart{}, fmt.Errorf("%w: %s has %d x and %d y values", ErrMismatchedSeries, s.Name, len(s.X), len(s.Y))
		}
		kept := r.plottable(s, logY)
		if len(kept.X) < 2 {
			r.logger.Debug("chartrender: skipping series with fewer than two points", zap.String("series", s.Name))
			continue
		}
		plotted = append(plotted, kept)
	}
	if len(plotted) == 0 {
		return chart.Chart{}, ErrNoData
	}

	xMin, xMax, yMin, yMax := bounds(plotted)
	xScale := axis.New(axis.Config{
		ScaleType:  axis.Linear,
		Domain:     pad(xMin, xMax),
		Range:      &[2]float64{0, float64(width)},
		TickFormat: spec.XTickFormat,
	}, r.logger)
	yType := axis.Linear
	yDomain := pad(yMin, yMax)
	yExtent := yDomain
	if logY {
		yType = axis.Log
		yDomain = [2]float64{yMin, yMax}
		yExtent = [2]float64{math.Log10(yMin), math.Log10(yMax)}
	}
	yScale := axis.New(axis.Config{
		ScaleType:  yType,
		Domain:     yDomain,
		Range:      &[2]float64{float64(height), 0},
		TickFormat: spec.YTickFormat,
	}, r.logger)

	xTicks := xScale.ChartTicks()
	yTicks := yScale.ChartTicks()
	if logY {
		// go-chart has no log axis; plot exponents and keep the original labels
		for i := range yTicks {
			yTicks[i].Value = math.Log10(yTicks[i].Value)
		}
	}

	series := make([]chart.Series, 0, len(plotted))
	for i, s := range plotted {
		ys := s.Y
		if logY {
			ys = make([]float64, len(s.Y))
			for j, v := range s.Y {
				ys[j] = math.Log10(v)
			}
		}
		series = append(series, chart.ContinuousSeries{
			Name:    s.Name,
			XValues: s.X,
			YValues: ys,
			Style: chart.Style{
				StrokeColor: chart.GetDefaultColor(i),
				StrokeWidth: 2,
			},
		})
	}

	c := chart.Chart{
		Title:      spec.Title,
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 24, Left: 16, Right: 16, Bottom: 16}},
		XAxis: chart.XAxis{
			Name:  spec.XLabel,
			Range: tickRange(xTicks, xScale.Domain()),
			Ticks: xTicks,
		},
		YAxis: chart.YAxis{
			Name:  spec.YLabel,
			Range: tickRange(yTicks, yExtent),
			Ticks: yTicks,
		},
		Series: series,
	}
	if len(series) > 1 {
		c.Elements = []chart.Renderable{chart.Legend(&c)}
	}
	return c, nil
}

// plottable drops points that cannot be drawn: NaN/Inf anywhere and
// non-positive values on a log axis.
func (r *Renderer) plottable(s Series, logY bool) Series {
	out := Series{Name: s.Name, X: make([]float64, 0, len(s.X)), Y: make([]float64, 0, len(s.Y))}
	dropped := 0
	for i := range s.X {
		x, y := s.X[i], s.Y[i]
		if !finite(x) || !finite(y) || (logY && y <= 0) {
			dropped++
			continue
		}
		out.X = append(out.X, x)
		out.Y = append(out.Y, y)
	}
	if dropped > 0 {
		r.logger.Warn("chartrender: dropped unplottable points",
			zap.String("series", s.Name),
			zap.Int("dropped", dropped),
			zap.Bool("log", logY),
		)
	}
	return out
}

func bounds(series []Series) (xMin, xMax, yMin, yMax float64) {
	xMin, yMin = math.Inf(1), math.Inf(1)
	xMax, yMax = math.Inf(-1), math.Inf(-1)
	for _, s := range series {
		for i := range s.X {
			xMin = math.Min(xMin, s.X[i])
			xMax = math.Max(xMax, s.X[i])
			yMin = math.Min(yMin, s.Y[i])
			yMax = math.Max(yMax, s.Y[i])
		}
	}
	return xMin, xMax, yMin, yMax
}

// pad widens a zero-width domain so go-chart gets a non-empty range.
func pad(lo, hi float64) [2]float64 {
	if lo != hi {
		return [2]float64{lo, hi}
	}
	delta := math.Abs(lo) * 0.1
	if delta == 0 {
		delta = 1
	}
	return [2]float64{lo - delta, hi + delta}
}

func tickRange(ticks []chart.Tick, domain [2]float64) *chart.ContinuousRange {
	lo, hi := math.Min(domain[0], domain[1]), math.Max(domain[0], domain[1])
	if len(ticks) > 0 {
		lo = math.Min(lo, ticks[0].Value)
		hi = math.Max(hi, ticks[len(ticks)-1].Value)
	}
	return &chart.ContinuousRange{Min: lo, Max: hi}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
