// Package imagestats computes the per-image intensity statistics that viewers
// publish, using OpenCV.
package imagestats

import (
	"fmt"

	"gocv.io/x/gocv"

	"intensity-inspector/internal/stats"
)

// Compute summarises a single-channel image. bins equal-width histogram bins
// cover [0, rangeMax).
func Compute(mat gocv.Mat, imageIndex, bins int, rangeMax float64) (stats.ChannelStats, error) {
	if mat.Empty() {
		return stats.ChannelStats{}, fmt.Errorf("image %d is empty", imageIndex)
	}
	if mat.Channels() != 1 {
		return stats.ChannelStats{}, fmt.Errorf("image %d has %d components, want 1", imageIndex, mat.Channels())
	}
	if bins <= 0 || rangeMax <= 0 {
		return stats.ChannelStats{}, fmt.Errorf("invalid histogram shape: bins=%d range=%g", bins, rangeMax)
	}

	minVal, maxVal, _, _ := gocv.MinMaxLoc(mat)
	mean := mat.Mean()

	hist := gocv.NewMat()
	defer hist.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	gocv.CalcHist([]gocv.Mat{mat}, []int{0}, mask, &hist, []int{bins}, []float64{0, rangeMax}, false)

	counts := make([]float64, bins)
	for i := 0; i < bins && i < hist.Rows(); i++ {
		counts[i] = float64(hist.GetFloatAt(i, 0))
	}

	return stats.ChannelStats{
		ImageIndex: imageIndex,
		Min:        int64(minVal),
		Max:        int64(maxVal),
		Mean:       mean.Val1,
		PixelCount: uint64(mat.Total()),
		Histogram:  counts,
		BinWidth:   rangeMax / float64(bins),
	}, nil
}

// Synthesize produces a width x height 8-bit frame with normally distributed
// intensities around mean.
func Synthesize(width, height int, mean, stddev float64) gocv.Mat {
	mat := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8U)
	Fill(&mat, mean, stddev)
	return mat
}

// Fill overwrites mat with normally distributed intensities around mean.
func Fill(mat *gocv.Mat, mean, stddev float64) {
	gocv.RandN(mat, gocv.NewScalar(mean, 0, 0, 0), gocv.NewScalar(stddev, 0, 0, 0))
}
