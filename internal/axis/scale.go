// Package axis maps chart data values onto pixel ranges and produces the tick
// sets used to label chart axes.
package axis

import (
	"math"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"
	"go.uber.org/zap"
)

// ScaleType selects the transform family of a Scale.
type ScaleType string

const (
	Linear ScaleType = "linear"
	Log    ScaleType = "log"
)

// defaultTickCount is the approximate number of ticks requested from the
// linear tick algorithm.
const defaultTickCount = 6

// Config is the immutable snapshot a Scale is derived from. A nil Range means
// no pixel range has been configured yet.
type Config struct {
	ScaleType  ScaleType
	Domain     [2]float64
	Range      *[2]float64
	TickFormat func(float64) string
}

// Overrides holds the fields Extend replaces. Nil fields keep the current value.
type Overrides struct {
	ScaleType  *ScaleType
	Domain     *[2]float64
	Range      *[2]float64
	TickFormat func(float64) string
}

// Scale is a value type; every derived quantity is computed from cfg on demand.
type Scale struct {
	cfg    Config
	logger *zap.Logger
}

func New(cfg Config, logger *zap.Logger) Scale {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Range != nil {
		r := *cfg.Range
		cfg.Range = &r
	}
	return Scale{cfg: cfg, logger: logger}
}

// Config returns a copy of the snapshot the scale was built from.
func (s Scale) Config() Config {
	cfg := s.cfg
	if cfg.Range != nil {
		r := *cfg.Range
		cfg.Range = &r
	}
	return cfg
}

func (s Scale) ScaleType() ScaleType {
	if s.cfg.ScaleType == Log {
		return Log
	}
	return Linear
}

func (s Scale) Domain() [2]float64 {
	return s.cfg.Domain
}

// Extend returns a new Scale with overrides applied on top of the receiver.
func (s Scale) Extend(o Overrides) Scale {
	cfg := s.Config()
	if o.ScaleType != nil {
		cfg.ScaleType = *o.ScaleType
	}
	if o.Domain != nil {
		cfg.Domain = *o.Domain
	}
	if o.Range != nil {
		cfg.Range = o.Range
	}
	if o.TickFormat != nil {
		cfg.TickFormat = o.TickFormat
	}
	return New(cfg, s.logger)
}

// Place maps value into the configured range, rounded to one decimal place.
// Invalid input is logged and value is returned unchanged.
func (s Scale) Place(value float64) float64 {
	if s.cfg.Range == nil {
		s.logger.Error("axis: cannot place value without a range", zap.Float64("value", value))
		return value
	}
	if s.ScaleType() == Log && value <= 0 {
		s.logger.Error("axis: cannot place non-positive value on a log scale", zap.Float64("value", value))
		return value
	}

	placed, ok := s.transform(value)
	if !ok {
		s.logger.Error("axis: log scale domain must be positive",
			zap.Float64("value", value),
			zap.Float64s("domain", s.cfg.Domain[:]),
		)
		return value
	}
	return math.Round(placed*10) / 10
}

func (s Scale) transform(value float64) (float64, bool) {
	d0, d1 := s.cfg.Domain[0], s.cfg.Domain[1]
	x := value
	if s.ScaleType() == Log {
		if d0 <= 0 || d1 <= 0 {
			return 0, false
		}
		d0, d1, x = log10(d0), log10(d1), log10(value)
	}

	r0, r1 := s.cfg.Range[0], s.cfg.Range[1]
	span := d1 - d0
	if span == 0 {
		// degenerate domain collapses onto the middle of the range
		return r0 + (r1-r0)/2, true
	}
	return r0 + (x-d0)/span*(r1-r0), true
}

// TickValues returns ascending tick positions in domain units.
func (s Scale) TickValues() []float64 {
	if s.ScaleType() == Log {
		return logTicks(s.cfg.Domain)
	}
	return linearTicks(s.cfg.Domain[0], s.cfg.Domain[1], defaultTickCount)
}

// FormattedTicks applies the tick formatter to every tick, preserving order.
func (s Scale) FormattedTicks() []string {
	format := s.tickFormat()
	ticks := s.TickValues()
	labels := make([]string, 0, len(ticks))
	for _, tick := range ticks {
		labels = append(labels, format(tick))
	}
	return labels
}

// ChartTicks pairs every tick value with its label for go-chart renderers.
func (s Scale) ChartTicks() []chart.Tick {
	format := s.tickFormat()
	values := s.TickValues()
	ticks := make([]chart.Tick, 0, len(values))
	for _, value := range values {
		ticks = append(ticks, chart.Tick{Value: value, Label: format(value)})
	}
	return ticks
}

func (s Scale) tickFormat() func(float64) string {
	if s.cfg.TickFormat != nil {
		return s.cfg.TickFormat
	}
	return DefaultTickFormat
}

func (s Scale) RangeSize() float64 {
	if s.cfg.Range == nil {
		return 0
	}
	return math.Abs(s.cfg.Range[1] - s.cfg.Range[0])
}

func (s Scale) RangeMax() float64 {
	if s.cfg.Range == nil {
		return 0
	}
	return math.Max(s.cfg.Range[0], s.cfg.Range[1])
}

func (s Scale) RangeMin() float64 {
	if s.cfg.Range == nil {
		return 0
	}
	return math.Min(s.cfg.Range[0], s.cfg.Range[1])
}

// DefaultTickFormat renders a tick with two decimals and drops trailing zeros.
func DefaultTickFormat(value float64) string {
	label := chart.FloatValueFormatterWithFormat(value, "%.2f")
	if strings.Contains(label, ".") {
		label = strings.TrimRight(label, "0")
		label = strings.TrimSuffix(label, ".")
	}
	if label == "-0" {
		return "0"
	}
	return label
}
