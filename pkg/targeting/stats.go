package targeting

import "math"

// Confidence approximates the statistical significance of the difference
// between a treatment and a control conversion rate, as a percentage capped
// at 99.9.
//
// This is a closed-form approximation of a two-proportion z-test: the
// z-score is computed exactly, then mapped through 1-exp(-z²/2) instead of
// a normal CDF lookup. The result is an accepted approximation for report
// display, not a rigorous hypothesis test.
func Confidence(treatmentN, treatmentConversions, controlN, controlConversions int64) float64 {
	if treatmentN == 0 || controlN == 0 {
		return 0
	}

	tN := float64(treatmentN)
	cN := float64(controlN)
	p1 := float64(treatmentConversions) / tN
	p2 := float64(controlConversions) / cN

	pooled := float64(treatmentConversions+controlConversions) / (tN + cN)
	se := math.Sqrt(pooled * (1 - pooled) * (1/tN + 1/cN))
	if se == 0 {
		return 0
	}

	z := math.Abs(p1-p2) / se
	confidence := (1 - math.Exp(-0.5*z*z)) * 100
	return math.Min(math.Max(confidence, 0), 99.9)
}
