package targeting

import "github.com/marketfold/go-targeting-service/pkg/types"

// SelectVariant picks the experiment arm for a subject by walking the
// variants in stored order and accumulating weights until the subject's
// bucket value is covered.
//
// Selection and traffic inclusion deliberately hash the same
// (subjectID, experimentKey) pair: one hash per subject keeps decisions
// cheap and reproducible, at the cost of the two outcomes being
// statistically correlated.
func SelectVariant(subjectID, experimentKey string, variants []types.Variant) types.Variant {
	if len(variants) == 0 {
		return types.Variant{}
	}

	h := Bucket(subjectID, experimentKey) * 100

	var cumulative float64
	for _, v := range variants {
		cumulative += v.Weight
		if h < cumulative {
			return v
		}
	}

	// Rounding can leave h just past the final cumulative weight when
	// weights sum to slightly under 100.
	return variants[len(variants)-1]
}
