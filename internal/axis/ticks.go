package axis

import "math"

var (
	e10 = math.Sqrt(50)
	e5  = math.Sqrt(10)
	e2  = math.Sqrt(2)
)

// A linear domain never yields more than a small multiple of the requested
// tick count.
const maxTickMultiple = 4

// logTicks emits powers of ten spanning domain, always at least two of them.
func logTicks(domain [2]float64) []float64 {
	minPower := math.Ceil(log10(domain[0]))
	if math.IsNaN(minPower) || math.IsInf(minPower, 0) {
		minPower = 0
	}
	maxPower := math.Floor(log10(domain[1]))
	if math.IsNaN(maxPower) || math.IsInf(maxPower, 0) || maxPower <= minPower {
		maxPower = minPower + 1
	}

	ticks := make([]float64, 0, int(maxPower-minPower)+1)
	for i := minPower; i <= maxPower; i++ {
		ticks = append(ticks, math.Pow(10, i))
	}
	return ticks
}

// log10 snaps results within float noise of an integer, so exact powers of
// ten such as 1000 yield exactly 3.
func log10(x float64) float64 {
	p := math.Log10(x)
	if r := math.Round(p); math.Abs(p-r) < 1e-9 {
		return r
	}
	return p
}

// tickSpan is the number of ticks from index r0 to r1 inclusive, or 0 when
// the span is empty or far beyond count.
func tickSpan(r0, r1 float64, count int) int {
	n := r1 - r0 + 1
	if !(n >= 1) || n > float64(count*maxTickMultiple) {
		return 0
	}
	return int(n)
}

// linearTicks returns roughly count evenly spaced round values (1, 2 or 5
// times a power of ten) that fall inside [start, stop].
func linearTicks(start, stop float64, count int) []float64 {
	if math.IsNaN(start) || math.IsNaN(stop) || count <= 0 {
		return []float64{}
	}
	if start == stop {
		return []float64{start}
	}

	reverse := stop < start
	if reverse {
		start, stop = stop, start
	}

	inc := tickIncrement(start, stop, count)
	if inc == 0 || math.IsInf(inc, 0) || math.IsNaN(inc) {
		return []float64{}
	}

	var ticks []float64
	if inc > 0 {
		r0 := math.Round(start / inc)
		r1 := math.Round(stop / inc)
		if r0*inc < start {
			r0++
		}
		if r1*inc > stop {
			r1--
		}
		n := tickSpan(r0, r1, count)
		for k := 0; k < n; k++ {
			ticks = append(ticks, (r0+float64(k))*inc)
		}
	} else {
		inv := -inc
		r0 := math.Round(start * inv)
		r1 := math.Round(stop * inv)
		if r0/inv < start {
			r0++
		}
		if r1/inv > stop {
			r1--
		}
		n := tickSpan(r0, r1, count)
		for k := 0; k < n; k++ {
			ticks = append(ticks, (r0+float64(k))/inv)
		}
	}

	if reverse {
		for i, j := 0, len(ticks)-1; i < j; i, j = i+1, j-1 {
			ticks[i], ticks[j] = ticks[j], ticks[i]
		}
	}
	if ticks == nil {
		return []float64{}
	}
	return ticks
}

// tickIncrement returns the step between ticks. Negative results encode the
// reciprocal of a sub-unit step so fractional ticks are computed without
// accumulating float error.
func tickIncrement(start, stop float64, count int) float64 {
	step := (stop - start) / float64(count)
	power := math.Floor(math.Log10(step))
	errRatio := step / math.Pow(10, power)

	factor := 1.0
	switch {
	case errRatio >= e10:
		factor = 10
	case errRatio >= e5:
		factor = 5
	case errRatio >= e2:
		factor = 2
	}

	if power >= 0 {
		return factor * math.Pow(10, power)
	}
	return -math.Pow(10, -power) / factor
}
