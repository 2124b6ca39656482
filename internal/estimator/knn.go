// Package estimator implements the KNN-style directional probability model.
//
// The model estimates the probability that price rises over the next
// `Horizon` bars by comparing the most recent trailing return against a
// training set of historical (trailing return, future direction) pairs and
// blending the nearest-neighbor vote with the unconditional up rate.
package estimator

import (
	"math"
	"sort"
)

const (
	// Horizon is the prediction horizon in bars (5-minute windows on 1m bars).
	Horizon = 5

	// MinTrainingPairs is the minimum number of valid (feature, label) pairs
	// required before the model produces a conditional estimate. Below this
	// the estimate degrades to the neutral fallback.
	MinTrainingPairs = 50

	// MinNeighbors floors k so a single close neighbor can't dominate.
	MinNeighbors = 10

	// Blending weights: conditional (neighbor vote) vs unconditional base
	// rate. Pure conditional probability on sparse neighborhoods overfits.
	condWeight   = 0.7
	uncondWeight = 0.3

	probFloor = 0.01
	probCeil  = 0.99
)

// Meta carries diagnostics alongside the estimate.
type Meta struct {
	SampleCount   int     `json:"sample_count"`
	CurrentReturn float64 `json:"current_5m_ret"`
	UncondProb    float64 `json:"uncond_up_prob"`
}

type pair struct {
	feature float64
	label   int
}

// Estimate returns the probability that the close rises over the next
// Horizon bars, given chronological closes. It never fails: with fewer than
// MinTrainingPairs usable pairs it returns a neutral 0.5 and zero-confidence
// metadata. The result is deterministic for a given input (stable ordering,
// no randomness) and always inside [probFloor, probCeil] except for the
// exact 0.5 fallback.
func Estimate(closes []float64, neighbors int) (float64, Meta) {
	pairs := buildTrainingPairs(closes)

	if len(pairs) < MinTrainingPairs {
		return 0.5, Meta{
			SampleCount:   len(pairs),
			CurrentReturn: 0,
			UncondProb:    0.5,
		}
	}

	curRet := closes[len(closes)-1]/closes[len(closes)-1-Horizon] - 1.0

	// Stable sort keeps chronological order among equidistant neighbors so
	// repeated calls produce bit-identical estimates.
	sort.SliceStable(pairs, func(i, j int) bool {
		return math.Abs(pairs[i].feature-curRet) < math.Abs(pairs[j].feature-curRet)
	})

	k := neighbors
	if k > len(pairs) {
		k = len(pairs)
	}
	if k < MinNeighbors {
		k = MinNeighbors
	}

	up := 0
	for _, p := range pairs[:k] {
		up += p.label
	}
	condProb := float64(up) / float64(k)

	total := 0
	for _, p := range pairs {
		total += p.label
	}
	uncondProb := float64(total) / float64(len(pairs))

	blended := condWeight*condProb + uncondWeight*uncondProb
	if blended < probFloor {
		blended = probFloor
	}
	if blended > probCeil {
		blended = probCeil
	}

	return blended, Meta{
		SampleCount:   len(pairs),
		CurrentReturn: curRet,
		UncondProb:    uncondProb,
	}
}

// buildTrainingPairs slides across the series collecting
// (trailing Horizon-bar return, future Horizon-bar direction) pairs.
// Indexes without both a back and forward neighbor, or with a non-positive
// denominator, are skipped.
func buildTrainingPairs(closes []float64) []pair {
	var pairs []pair
	for t := Horizon; t < len(closes)-Horizon; t++ {
		prev := closes[t-Horizon]
		cur := closes[t]
		next := closes[t+Horizon]
		if prev <= 0 || cur <= 0 {
			continue
		}
		label := 0
		if next/cur-1.0 > 0 {
			label = 1
		}
		pairs = append(pairs, pair{feature: cur/prev - 1.0, label: label})
	}
	return pairs
}
