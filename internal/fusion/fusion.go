// Package fusion estimates localization error from a set of fused sensor
// sources. Two regimes are modelled: a classical 1/sqrt(n) averaging limit
// and an advanced regime past a hard sensor-count threshold in which error
// decays as 1/n².
package fusion

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/mohamedbenhasan1/VRUGuard/pkg/core"
)

const (
	// AdvancedFusionThreshold is the number of fused sources that switches
	// the estimator into the advanced regime.
	AdvancedFusionThreshold = 3

	// BaseError is the error in meters with no sources at all.
	BaseError = 5.0

	// EfficiencyFactor models the overhead of the advanced fusion step.
	EfficiencyFactor = 0.8

	// AdvancedJitter and ClassicalJitter bound the non-negative noise added
	// to each estimate.
	AdvancedJitter  = 0.1
	ClassicalJitter = 0.3

	// WeightPerturbation bounds the symmetric noise on advanced weights.
	WeightPerturbation = 0.025
)

// Estimate is the full output of one fusion step.
type Estimate struct {
	Error    float64
	Eligible bool
	Weights  []float64
}

// Estimator computes fused error estimates. It is safe for concurrent use.
type Estimator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewEstimator creates an Estimator drawing jitter from src.
// A nil src seeds from the clock.
func NewEstimator(src rand.Source) *Estimator {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Estimator{rng: rand.New(src)}
}

// IsAdvancedFusionEligible reports whether sources cross the threshold.
func IsAdvancedFusionEligible(sources []core.SensorSource) bool {
	return len(sources) >= AdvancedFusionThreshold
}

func (e *Estimator) unit() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Float64()
}

// EstimateError returns the fused localization error in meters.
func (e *Estimator) EstimateError(sources []core.SensorSource) float64 {
	n := float64(len(sources))
	if n == 0 {
		return BaseError
	}

	if IsAdvancedFusionEligible(sources) {
		return (BaseError/(n*n))*EfficiencyFactor + e.unit()*AdvancedJitter
	}
	return BaseError/math.Sqrt(n) + e.unit()*ClassicalJitter
}

// OptimizeWeights returns one weight per source in the same order.
// Weights are informational and do not feed back into EstimateError.
func (e *Estimator) OptimizeWeights(sources []core.SensorSource) []float64 {
	n := len(sources)
	weights := make([]float64, n)
	if n == 0 {
		return weights
	}

	uniform := 1 / float64(n)
	eligible := IsAdvancedFusionEligible(sources)
	for i := range weights {
		weights[i] = uniform
		if eligible {
			weights[i] += e.unit()*2*WeightPerturbation - WeightPerturbation
		}
	}
	return weights
}

// Estimate runs eligibility, error and weighting in one call.
func (e *Estimator) Estimate(sources []core.SensorSource) Estimate {
	return Estimate{
		Error:    e.EstimateError(sources),
		Eligible: IsAdvancedFusionEligible(sources),
		Weights:  e.OptimizeWeights(sources),
	}
}
