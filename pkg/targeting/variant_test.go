package targeting_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketfold/go-targeting-service/pkg/targeting"
	"github.com/marketfold/go-targeting-service/pkg/types"
)

func evenSplit() []types.Variant {
	return []types.Variant{
		{Key: "A", Weight: 50, IsControl: true},
		{Key: "B", Weight: 50},
	}
}

func TestSelectVariant_Deterministic(t *testing.T) {
	first := targeting.SelectVariant("user-42", "checkout-button", evenSplit())
	for i := 0; i < 100; i++ {
		got := targeting.SelectVariant("user-42", "checkout-button", evenSplit())
		require.Equal(t, first.Key, got.Key)
	}
}

func TestSelectVariant_WeightConvergence(t *testing.T) {
	const samples = 100_000
	counts := map[string]int{}
	for i := 0; i < samples; i++ {
		v := targeting.SelectVariant(fmt.Sprintf("user-%d", i), "split-check", evenSplit())
		counts[v.Key]++
	}

	assert.InDelta(t, 50_000, counts["A"], 1_000)
	assert.InDelta(t, 50_000, counts["B"], 1_000)
}

func TestSelectVariant_SkewedWeights(t *testing.T) {
	variants := []types.Variant{
		{Key: "control", Weight: 90, IsControl: true},
		{Key: "treatment", Weight: 10},
	}

	const samples = 100_000
	counts := map[string]int{}
	for i := 0; i < samples; i++ {
		v := targeting.SelectVariant(fmt.Sprintf("user-%d", i), "skewed-check", variants)
		counts[v.Key]++
	}

	assert.InDelta(t, 90_000, counts["control"], 1_000)
	assert.InDelta(t, 10_000, counts["treatment"], 1_000)
}

func TestSelectVariant_UnderweightFallsBackToLast(t *testing.T) {
	// Weights summing below 100 leave a gap; subjects bucketed past the
	// final cumulative weight get the last variant rather than nothing.
	variants := []types.Variant{
		{Key: "a", Weight: 1, IsControl: true},
		{Key: "b", Weight: 1},
	}

	sawB := false
	for i := 0; i < 1000; i++ {
		v := targeting.SelectVariant(fmt.Sprintf("user-%d", i), "tiny-weights", variants)
		require.Contains(t, []string{"a", "b"}, v.Key)
		if v.Key == "b" {
			sawB = true
		}
	}
	assert.True(t, sawB, "fallback variant never selected")
}

func TestSelectVariant_NoVariants(t *testing.T) {
	v := targeting.SelectVariant("user-42", "empty", nil)
	assert.Empty(t, v.Key)
}
