package targeting_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketfold/go-targeting-service/pkg/targeting"
)

func TestBucket_Deterministic(t *testing.T) {
	first := targeting.Bucket("user-42", "checkout-button")
	for i := 0; i < 100; i++ {
		require.Equal(t, first, targeting.Bucket("user-42", "checkout-button"))
	}
}

func TestBucket_Range(t *testing.T) {
	for i := 0; i < 10_000; i++ {
		b := targeting.Bucket(fmt.Sprintf("user-%d", i), "some-flag")
		require.GreaterOrEqual(t, b, 0.0)
		require.Less(t, b, 1.0)
	}
}

func TestBucket_NamespaceIndependence(t *testing.T) {
	// The same user must not land on the same bucket for every feature.
	a := targeting.Bucket("user-42", "feature-a")
	b := targeting.Bucket("user-42", "feature-b")
	assert.NotEqual(t, a, b)
}

func TestBucket_UniformDistribution(t *testing.T) {
	// Chi-square test against uniform over 10 equal-width bins. With
	// N=100000 and df=9 the 99.9% critical value is 27.88; anything close
	// to that would mean the hash is badly skewed.
	const (
		samples = 100_000
		bins    = 10
	)

	var counts [bins]int
	for i := 0; i < samples; i++ {
		b := targeting.Bucket(fmt.Sprintf("subject-%d", i), "uniformity-check")
		idx := int(b * bins)
		if idx == bins {
			idx = bins - 1
		}
		counts[idx]++
	}

	expected := float64(samples) / bins
	var chiSquare float64
	for _, observed := range counts {
		diff := float64(observed) - expected
		chiSquare += diff * diff / expected
	}

	assert.Less(t, chiSquare, 27.88, "bucket distribution deviates from uniform: %v", counts)
}

func TestInRollout_Boundaries(t *testing.T) {
	for i := 0; i < 1000; i++ {
		id := fmt.Sprintf("user-%d", i)
		assert.False(t, targeting.InRollout(id, "any-key", 0))
		assert.False(t, targeting.InRollout(id, "any-key", -5))
		assert.True(t, targeting.InRollout(id, "any-key", 100))
		assert.True(t, targeting.InRollout(id, "any-key", 150))
	}
}

func TestInRollout_Deterministic(t *testing.T) {
	first := targeting.InRollout("user-42", "dark-mode", 50)
	for i := 0; i < 100; i++ {
		require.Equal(t, first, targeting.InRollout("user-42", "dark-mode", 50))
	}
}

func TestInRollout_Proportional(t *testing.T) {
	const samples = 100_000
	included := 0
	for i := 0; i < samples; i++ {
		if targeting.InRollout(fmt.Sprintf("user-%d", i), "gradual-rollout", 30) {
			included++
		}
	}
	// 30% of 100k, with a generous band for hash variance.
	assert.InDelta(t, 30_000, included, 1_000)
}
