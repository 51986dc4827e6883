package axis

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func rangeOf(lo, hi float64) *[2]float64 {
	r := [2]float64{lo, hi}
	return &r
}

func observedScale(cfg Config) (Scale, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.ErrorLevel)
	return New(cfg, zap.New(core)), logs
}

func TestPlaceLinear(t *testing.T) {
	scale := New(Config{ScaleType: Linear, Domain: [2]float64{0, 10}, Range: rangeOf(0, 100)}, nil)

	for _, value := range []float64{0, 1, 2.5, 3.33, 7, 10} {
		want := math.Round(value*10*10) / 10
		if got := scale.Place(value); got != want {
			t.Errorf("Place(%v) = %v, want %v", value, got, want)
		}
	}
}

func TestPlaceLinearInvertedRange(t *testing.T) {
	scale := New(Config{Domain: [2]float64{0, 10}, Range: rangeOf(200, 0)}, nil)
	if got := scale.Place(2.5); got != 150 {
		t.Fatalf("Place(2.5) = %v, want 150", got)
	}
}

func TestPlaceLog(t *testing.T) {
	scale := New(Config{ScaleType: Log, Domain: [2]float64{1, 1000}, Range: rangeOf(0, 300)}, nil)
	tests := map[float64]float64{1: 0, 10: 100, 100: 200, 1000: 300}
	for value, want := range tests {
		if got := scale.Place(value); got != want {
			t.Errorf("Place(%v) = %v, want %v", value, got, want)
		}
	}
}

func TestPlaceSoftFails(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		value float64
	}{
		{name: "missing range", cfg: Config{Domain: [2]float64{0, 10}}, value: 4},
		{name: "log zero", cfg: Config{ScaleType: Log, Domain: [2]float64{1, 100}, Range: rangeOf(0, 10)}, value: 0},
		{name: "log negative", cfg: Config{ScaleType: Log, Domain: [2]float64{1, 100}, Range: rangeOf(0, 10)}, value: -3},
		{name: "log non-positive domain", cfg: Config{ScaleType: Log, Domain: [2]float64{0, 100}, Range: rangeOf(0, 10)}, value: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scale, logs := observedScale(tt.cfg)
			if got := scale.Place(tt.value); got != tt.value {
				t.Fatalf("Place(%v) = %v, want input unchanged", tt.value, got)
			}
			if logs.Len() != 1 {
				t.Fatalf("expected one error log, got %d", logs.Len())
			}
		})
	}
}

func TestLogTickValues(t *testing.T) {
	tests := []struct {
		domain [2]float64
		want   []float64
	}{
		{domain: [2]float64{1, 1000}, want: []float64{1, 10, 100, 1000}},
		{domain: [2]float64{0.5, 250}, want: []float64{1, 10, 100}},
		{domain: [2]float64{50, 60}, want: []float64{100, 1000}},
		{domain: [2]float64{10, 10}, want: []float64{10, 100}},
		{domain: [2]float64{0, 50}, want: []float64{1, 10}},
		{domain: [2]float64{-5, 5000}, want: []float64{1, 10, 100, 1000}},
	}

	for _, tt := range tests {
		scale := New(Config{ScaleType: Log, Domain: tt.domain}, nil)
		if diff := cmp.Diff(tt.want, scale.TickValues()); diff != "" {
			t.Errorf("TickValues(%v) mismatch (-want +got):\n%s", tt.domain, diff)
		}
	}
}

func TestLogTickValuesProperties(t *testing.T) {
	domains := [][2]float64{
		{0.001, 0.002}, {0.3, 7}, {1, 1}, {2, 3}, {9, 11}, {15, 15000}, {123456, 987654}, {1e-6, 1e6},
	}
	for _, domain := range domains {
		ticks := New(Config{ScaleType: Log, Domain: domain}, nil).TickValues()
		if len(ticks) < 2 {
			t.Fatalf("domain %v: expected at least two ticks, got %v", domain, ticks)
		}
		for i, tick := range ticks {
			power := math.Log10(tick)
			if math.Abs(power-math.Round(power)) > 1e-9 {
				t.Fatalf("domain %v: tick %v is not a power of ten", domain, tick)
			}
			if i > 0 && tick <= ticks[i-1] {
				t.Fatalf("domain %v: ticks not ascending: %v", domain, ticks)
			}
		}
	}
}

func TestLinearTickValues(t *testing.T) {
	tests := []struct {
		domain [2]float64
		want   []float64
	}{
		{domain: [2]float64{0, 10}, want: []float64{0, 2, 4, 6, 8, 10}},
		{domain: [2]float64{0, 100}, want: []float64{0, 20, 40, 60, 80, 100}},
		{domain: [2]float64{0, 1}, want: []float64{0, 0.2, 0.4, 0.6, 0.8, 1}},
		{domain: [2]float64{-7, 13}, want: []float64{-5, 0, 5, 10}},
		{domain: [2]float64{10, 0}, want: []float64{10, 8, 6, 4, 2, 0}},
		{domain: [2]float64{3, 3}, want: []float64{3}},
	}

	for _, tt := range tests {
		scale := New(Config{Domain: tt.domain}, nil)
		if diff := cmp.Diff(tt.want, scale.TickValues()); diff != "" {
			t.Errorf("TickValues(%v) mismatch (-want +got):\n%s", tt.domain, diff)
		}
	}
}

func TestLinearTickValuesBeyondIntegerPrecision(t *testing.T) {
	start := math.Ldexp(1, 60)
	stop := math.Nextafter(math.Nextafter(start, math.Inf(1)), math.Inf(1))
	domains := [][2]float64{
		{start, stop},
		{1152921504606846976, 1152921504606847232},
		{stop, start},
	}

	for _, domain := range domains {
		done := make(chan []float64, 1)
		go func() {
			done <- New(Config{Domain: domain}, nil).TickValues()
		}()
		select {
		case ticks := <-done:
			if len(ticks) > defaultTickCount*maxTickMultiple {
				t.Errorf("TickValues(%v) returned %d ticks", domain, len(ticks))
			}
			for _, tick := range ticks {
				if math.IsNaN(tick) || math.IsInf(tick, 0) {
					t.Errorf("TickValues(%v) returned non-finite tick %v", domain, tick)
				}
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("TickValues(%v) did not return", domain)
		}
	}
}

func TestFormattedTicks(t *testing.T) {
	scale := New(Config{
		ScaleType:  Log,
		Domain:     [2]float64{1, 100},
		TickFormat: func(v float64) string { return "v" + DefaultTickFormat(v) },
	}, nil)
	want := []string{"v1", "v10", "v100"}
	if diff := cmp.Diff(want, scale.FormattedTicks()); diff != "" {
		t.Fatalf("FormattedTicks mismatch (-want +got):\n%s", diff)
	}

	plain := New(Config{Domain: [2]float64{0, 1}}, nil)
	wantPlain := []string{"0", "0.2", "0.4", "0.6", "0.8", "1"}
	if diff := cmp.Diff(wantPlain, plain.FormattedTicks()); diff != "" {
		t.Fatalf("default format mismatch (-want +got):\n%s", diff)
	}
}

func TestChartTicksMatchFormattedTicks(t *testing.T) {
	scale := New(Config{Domain: [2]float64{0, 10}}, nil)
	ticks := scale.ChartTicks()
	labels := scale.FormattedTicks()
	if len(ticks) != len(labels) {
		t.Fatalf("expected %d chart ticks, got %d", len(labels), len(ticks))
	}
	for i := range ticks {
		if ticks[i].Label != labels[i] {
			t.Fatalf("tick %d label = %q, want %q", i, ticks[i].Label, labels[i])
		}
	}
}

func TestRangeAccessors(t *testing.T) {
	scale := New(Config{Domain: [2]float64{0, 1}, Range: rangeOf(400, 40)}, nil)
	if scale.RangeSize() != 360 || scale.RangeMax() != 400 || scale.RangeMin() != 40 {
		t.Fatalf("unexpected range accessors: size=%v max=%v min=%v", scale.RangeSize(), scale.RangeMax(), scale.RangeMin())
	}

	empty := New(Config{Domain: [2]float64{0, 1}}, nil)
	if empty.RangeSize() != 0 || empty.RangeMax() != 0 || empty.RangeMin() != 0 {
		t.Fatal("expected zero accessors without a range")
	}
}

func TestExtendLeavesOriginalUntouched(t *testing.T) {
	original := New(Config{Domain: [2]float64{0, 10}, Range: rangeOf(0, 50)}, nil)
	before := original.Place(5)

	extended := original.Extend(Overrides{Domain: &[2]float64{0, 5}})
	if got := extended.Place(5); got != 50 {
		t.Fatalf("extended Place(5) = %v, want 50", got)
	}
	if got := original.Place(5); got != before || got != 25 {
		t.Fatalf("original Place(5) changed: before=%v after=%v", before, got)
	}

	logType := Log
	asLog := original.Extend(Overrides{ScaleType: &logType, Domain: &[2]float64{1, 100}})
	if asLog.ScaleType() != Log {
		t.Fatal("expected log scale after extend")
	}
	if original.ScaleType() != Linear {
		t.Fatal("original scale type changed")
	}
}

func TestExtendDoesNotShareRange(t *testing.T) {
	r := rangeOf(0, 100)
	original := New(Config{Domain: [2]float64{0, 10}, Range: r}, nil)
	r[1] = 1000
	if got := original.Place(10); got != 100 {
		t.Fatalf("scale observed caller mutation of range: Place(10) = %v", got)
	}
}

func TestDefaultTickFormat(t *testing.T) {
	tests := map[float64]string{0: "0", 1: "1", 2.5: "2.5", 1000000: "1000000", 0.126: "0.13", -0.001: "0"}
	for value, want := range tests {
		if got := DefaultTickFormat(value); got != want {
			t.Errorf("DefaultTickFormat(%v) = %q, want %q", value, got, want)
		}
	}
}
