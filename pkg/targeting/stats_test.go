package targeting_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/marketfold/go-targeting-service/pkg/targeting"
)

func TestConfidence_ZeroSamples(t *testing.T) {
	assert.Zero(t, targeting.Confidence(0, 0, 1000, 100))
	assert.Zero(t, targeting.Confidence(1000, 100, 0, 0))
	assert.Zero(t, targeting.Confidence(0, 0, 0, 0))
}

func TestConfidence_NoVariance(t *testing.T) {
	// All subjects converting (or none) leaves zero standard error.
	assert.Zero(t, targeting.Confidence(100, 0, 100, 0))
	assert.Zero(t, targeting.Confidence(100, 100, 100, 100))
}

func TestConfidence_IdenticalRates(t *testing.T) {
	assert.Zero(t, targeting.Confidence(1000, 100, 1000, 100))
}

func TestConfidence_ModerateDifference(t *testing.T) {
	// 12% vs 10% over 1000 subjects each: significant but not saturated.
	c := targeting.Confidence(1000, 120, 1000, 100)
	assert.Greater(t, c, 0.0)
	assert.Less(t, c, 99.9)
}

func TestConfidence_LargeDifferenceSaturates(t *testing.T) {
	c := targeting.Confidence(10_000, 5_000, 10_000, 1_000)
	assert.Equal(t, 99.9, c)
}

func TestConfidence_Symmetric(t *testing.T) {
	// Direction of the difference must not matter.
	a := targeting.Confidence(1000, 120, 1000, 100)
	b := targeting.Confidence(1000, 100, 1000, 120)
	assert.InDelta(t, a, b, 1e-12)
}

func TestConfidence_GrowsWithSampleSize(t *testing.T) {
	small := targeting.Confidence(100, 12, 100, 10)
	large := targeting.Confidence(10_000, 1_200, 10_000, 1_000)
	assert.Greater(t, large, small)
}
