package attractor

import (
	"math"

	"github.com/nmtsys/memstore/pkg/model"
	"github.com/nmtsys/memstore/pkg/vector"
)

// DefaultInfluenceRadius is R in calculateInfluence (spec.md §4.4); larger
// values let an attractor's pull extend further in embedding space.
const DefaultInfluenceRadius = 0.5

// CalculateInfluence returns attractor a's pull toward embedding v:
// strength * exp(-(1-cos(v,a.embedding))/R) * (priority/10).
func CalculateInfluence(v []float32, a model.Attractor, influenceRadius float64) float64 {
	d := vector.Distance(v, a.Embedding)
	return a.Strength * math.Exp(-d/influenceRadius) * (float64(a.Priority) / 10.0)
}

// TotalInfluence sums CalculateInfluence over every attractor in as.
func TotalInfluence(v []float32, as []model.Attractor, influenceRadius float64) float64 {
	var total float64
	for _, a := range as {
		total += CalculateInfluence(v, a, influenceRadius)
	}
	return total
}

// TransitionProbabilities blends semantic similarity (weight 0.4) with
// normalized attractor-gradient improvement (weight 0.6) for each candidate
// reachable from current, per spec.md §4.4. The gradient term is
// tanh(Σ_a(infl_cand(a) - infl_cur(a))); results are re-normalized to sum
// to 1 over candidates (negative raw scores are floored at 0 before the
// normalization so the output is a valid probability distribution).
func TransitionProbabilities(current []float32, candidates [][]float32, attractors []model.Attractor, influenceRadius float64) []float64 {
	if len(candidates) == 0 {
		return nil
	}
	inflCur := TotalInfluence(current, attractors, influenceRadius)

	raw := make([]float64, len(candidates))
	var sum float64
	for i, cand := range candidates {
		semantic := vector.CosineSimilarity(current, cand)
		inflCand := TotalInfluence(cand, attractors, influenceRadius)
		gradient := math.Tanh(inflCand - inflCur)
		score := 0.4*semantic + 0.6*gradient
		if score < 0 {
			score = 0
		}
		raw[i] = score
		sum += score
	}

	out := make([]float64, len(candidates))
	if sum == 0 {
		uniform := 1.0 / float64(len(candidates))
		for i := range out {
			out[i] = uniform
		}
		return out
	}
	for i := range out {
		out[i] = raw[i] / sum
	}
	return out
}
