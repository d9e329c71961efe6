package cozy

import (
	"math"

	"cozy/internal/domain/places"
)

// round2 rounds to two decimals, halves away from zero.
func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// Aggregate averages each dimension over the given scores and derives the
// cozyness as the mean of those rounded averages. No scores means all zeros.
func Aggregate(scores []places.Scores) (places.Scores, float64) {
	if len(scores) == 0 {
		return places.Scores{}, 0
	}

	var sums [6]float64
	for _, s := range scores {
		for i, v := range s.Values() {
			sums[i] += v
		}
	}

	var averages [6]float64
	total := 0.0
	for i, sum := range sums {
		averages[i] = round2(sum / float64(len(scores)))
		total += averages[i]
	}

	return places.ScoresFrom(averages), round2(total / float64(len(averages)))
}
