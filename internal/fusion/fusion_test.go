package fusion

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/mohamedbenhasan1/VRUGuard/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sensors(n int) []core.SensorSource {
	out := make([]core.SensorSource, n)
	for i := range out {
		out[i] = core.SensorSource{
			ID:       fmt.Sprintf("s%d", i+1),
			Category: core.GNSS,
			Accuracy: 5,
			Active:   true,
		}
	}
	return out
}

func newTestEstimator() *Estimator {
	return NewEstimator(rand.NewSource(42))
}

func TestIsAdvancedFusionEligible(t *testing.T) {
	for n := 0; n <= 10; n++ {
		assert.Equal(t, n >= 3, IsAdvancedFusionEligible(sensors(n)), "n=%d", n)
	}
	assert.False(t, IsAdvancedFusionEligible(nil))
}

func TestEstimateError_NoSources(t *testing.T) {
	e := newTestEstimator()
	assert.Equal(t, BaseError, e.EstimateError(nil))
	assert.Equal(t, BaseError, e.EstimateError([]core.SensorSource{}))
}

func TestEstimateError_ClassicalBranchBounds(t *testing.T) {
	e := newTestEstimator()
	for n := 1; n < AdvancedFusionThreshold; n++ {
		floor := BaseError / math.Sqrt(float64(n))
		for i := 0; i < 200; i++ {
			got := e.EstimateError(sensors(n))
			require.GreaterOrEqual(t, got, floor)
			require.Less(t, got, floor+ClassicalJitter)
		}
	}
}

func TestEstimateError_AdvancedBranchBounds(t *testing.T) {
	e := newTestEstimator()
	for n := AdvancedFusionThreshold; n <= 10; n++ {
		floor := BaseError / float64(n*n) * EfficiencyFactor
		for i := 0; i < 200; i++ {
			got := e.EstimateError(sensors(n))
			require.GreaterOrEqual(t, got, floor)
			require.Less(t, got, floor+AdvancedJitter)
		}
	}
}

func TestEstimateError_NonIncreasingInExpectation(t *testing.T) {
	e := newTestEstimator()
	mean := func(n int) float64 {
		sum := 0.0
		for i := 0; i < 2000; i++ {
			sum += e.EstimateError(sensors(n))
		}
		return sum / 2000
	}

	prev := mean(1)
	for n := 2; n <= 8; n++ {
		cur := mean(n)
		assert.LessOrEqual(t, cur, prev, "mean error should not grow from n=%d to n=%d", n-1, n)
		assert.GreaterOrEqual(t, cur, 0.0)
		prev = cur
	}
}

func TestEstimateError_ThresholdIsAPhaseChange(t *testing.T) {
	e := newTestEstimator()
	worstAdvanced := BaseError/9*EfficiencyFactor + AdvancedJitter
	bestClassical := BaseError / math.Sqrt(2)

	assert.Less(t, worstAdvanced, bestClassical)
	assert.Less(t, e.EstimateError(sensors(3)), e.EstimateError(sensors(2)))
}

func TestOptimizeWeights_ClassicalIsUniform(t *testing.T) {
	e := newTestEstimator()
	w := e.OptimizeWeights(sensors(2))
	require.Len(t, w, 2)
	assert.Equal(t, []float64{0.5, 0.5}, w)
}

func TestOptimizeWeights_AdvancedIsNearUniform(t *testing.T) {
	e := newTestEstimator()
	src := sensors(5)
	w := e.OptimizeWeights(src)

	require.Len(t, w, len(src))
	for _, v := range w {
		assert.InDelta(t, 0.2, v, WeightPerturbation)
	}
}

func TestOptimizeWeights_Empty(t *testing.T) {
	e := newTestEstimator()
	assert.Empty(t, e.OptimizeWeights(nil))
}

func TestEstimate_Combined(t *testing.T) {
	e := newTestEstimator()

	est := e.Estimate(sensors(4))
	assert.True(t, est.Eligible)
	assert.Len(t, est.Weights, 4)
	assert.Less(t, est.Error, BaseError/16*EfficiencyFactor+AdvancedJitter)

	est = e.Estimate(sensors(1))
	assert.False(t, est.Eligible)
	assert.Equal(t, []float64{1}, est.Weights)
}

func TestEstimator_SameSeedSameOutput(t *testing.T) {
	a := NewEstimator(rand.NewSource(7))
	b := NewEstimator(rand.NewSource(7))
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.EstimateError(sensors(2)), b.EstimateError(sensors(2)))
	}
}
