package builder

import (
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/pkg/errors"
)

// ContextMode selects which side of a target event the window covers.
type ContextMode string

const (
	// ContextSymmetric splits the window evenly before and after the target.
	ContextSymmetric ContextMode = "symmetric"
	// ContextLeft looks back windowSize days and never forward.
	ContextLeft ContextMode = "left"
)

// WindowBounds returns how many days before (prior) and after (post) a
// target event its window reaches.
func WindowBounds(windowSize int, mode ContextMode) (prior, post int, err error) {
	if windowSize < 0 {
		return 0, 0, fmt.Errorf("%w: window size %d is negative", apperrors.ErrInvalidConfig, windowSize)
	}
	switch mode {
	case ContextSymmetric:
		return windowSize / 2, windowSize / 2, nil
	case ContextLeft:
		return windowSize, 0, nil
	default:
		return 0, 0, fmt.Errorf("%w: unknown context %q", apperrors.ErrInvalidConfig, mode)
	}
}

// WeightTable maps offset = contextDay - targetDay + prior to the weight a
// pair contributes.
type WeightTable []float64

// NewWeightTable checks that weights covers every offset of the window.
func NewWeightTable(weights []float64, prior, post int) (WeightTable, error) {
	want := prior + post + 1
	if len(weights) != want {
		return nil, fmt.Errorf("%w: weight vector has %d entries, window needs %d", apperrors.ErrInvalidConfig, len(weights), want)
	}
	wt := make(WeightTable, len(weights))
	copy(wt, weights)
	return wt, nil
}

// Weighting schemes for DefaultWeights.
const (
	WeightingUniform  = "uniform"
	WeightingHarmonic = "harmonic"
)

// DefaultWeights generates a table when no explicit vector is configured.
// Uniform gives every offset weight 1; harmonic gives 1/(1+|days apart|).
func DefaultWeights(prior, post int, scheme string) (WeightTable, error) {
	wt := make(WeightTable, prior+post+1)
	for i := range wt {
		switch scheme {
		case WeightingUniform:
			wt[i] = 1
		case WeightingHarmonic:
			d := i - prior
			if d < 0 {
				d = -d
			}
			wt[i] = 1 / float64(1+d)
		default:
			return nil, fmt.Errorf("%w: unknown weighting %q", apperrors.ErrInvalidConfig, scheme)
		}
	}
	return wt, nil
}
