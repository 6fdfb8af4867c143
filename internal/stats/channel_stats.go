package stats

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// ChannelStats is the intensity summary of one image.
type ChannelStats struct {
	// ImageIndex is the position of the measured image in the batch request.
	ImageIndex int

	Min        int64
	Max        int64
	Mean       float64
	PixelCount uint64

	// Histogram counts pixels in equal-width bins starting at intensity 0.
	Histogram []float64
	BinWidth  float64
}

// AutoscaleRange is the display range that ignores ignoredPercentile percent
// of pixels at each end of the histogram. With no histogram, or nothing to
// ignore, it is the plain min/max.
func (s ChannelStats) AutoscaleRange(ignoredPercentile float64) (lo, hi int64) {
	lo, hi = s.Min, s.Max
	if ignoredPercentile <= 0 || len(s.Histogram) == 0 || s.BinWidth <= 0 {
		return lo, hi
	}

	cumulative := make([]float64, len(s.Histogram))
	floats.CumSum(cumulative, s.Histogram)
	total := cumulative[len(cumulative)-1]
	if total <= 0 {
		return lo, hi
	}

	fraction := math.Min(ignoredPercentile, 50) / 100
	lowCount := total * fraction
	highCount := total * (1 - fraction)

	lowBin := firstBin(cumulative, func(c float64) bool { return c > lowCount })
	highBin := firstBin(cumulative, func(c float64) bool { return c >= highCount })

	lo = max(s.Min, int64(math.Floor(float64(lowBin)*s.BinWidth)))
	hi = min(s.Max, int64(math.Ceil(float64(highBin+1)*s.BinWidth))-1)
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

// firstBin returns the first bin whose cumulative count satisfies reached, or
// the last bin.
func firstBin(cumulative []float64, reached func(float64) bool) int {
	for i, c := range cumulative {
		if reached(c) {
			return i
		}
	}
	return len(cumulative) - 1
}

// TotalCount is the number of pixels accounted for by the histogram.
func (s ChannelStats) TotalCount() float64 {
	return floats.Sum(s.Histogram)
}
