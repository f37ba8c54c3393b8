package pipeline

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"msiconvert/pkg/volume"
)

// RoundTripMetrics summarizes how closely a converted volume matches its
// source. For an identity conversion every field should report an exact
// match; deviations locate lossy or missing regions.
type RoundTripMetrics struct {
	// RMSE is the root mean square error between source and result
	RMSE float64

	// Correlation is the Pearson correlation of the two volumes
	Correlation float64

	// MeanDiff is the difference of the two volume means
	MeanDiff float64

	// MatchFraction is the fraction of elements that are exactly equal
	MatchFraction float64
}

// ValidateRoundTrip compares a converted volume against its source and
// computes agreement metrics. Both volumes are read in full, so this is a
// diagnostic for runs whose volume fits in memory twice over, not part of
// the bounded-memory pipeline.
func ValidateRoundTrip(source, result volume.ReadView) (RoundTripMetrics, error) {
	if source.Bounds() != result.Bounds() {
		return RoundTripMetrics{}, fmt.Errorf("bounds differ: source %v, result %v",
			source.Bounds().Shape(), result.Bounds().Shape())
	}

	srcData, err := source.ReadRegion(source.Bounds().FullChunk())
	if err != nil {
		return RoundTripMetrics{}, fmt.Errorf("reading source: %w", err)
	}
	resData, err := result.ReadRegion(result.Bounds().FullChunk())
	if err != nil {
		return RoundTripMetrics{}, fmt.Errorf("reading result: %w", err)
	}

	n := len(srcData)
	orig := make([]float64, n)
	recon := make([]float64, n)
	matches := 0
	sumSq := 0.0
	for i := range srcData {
		orig[i] = float64(srcData[i])
		recon[i] = float64(resData[i])
		if srcData[i] == resData[i] {
			matches++
		}
		diff := orig[i] - recon[i]
		sumSq += diff * diff
	}

	m := RoundTripMetrics{
		RMSE:          math.Sqrt(sumSq / float64(n)),
		MeanDiff:      stat.Mean(orig, nil) - stat.Mean(recon, nil),
		MatchFraction: float64(matches) / float64(n),
	}

	// Correlation is undefined for constant volumes; report perfect
	// agreement when both sides are constant and identical.
	if stat.Variance(orig, nil) == 0 && stat.Variance(recon, nil) == 0 {
		if m.MatchFraction == 1 {
			m.Correlation = 1
		}
	} else {
		m.Correlation = stat.Correlation(orig, recon, nil)
	}
	return m, nil
}
