package risk

import (
	"math"

	"github.com/shipment-insights/backend/internal/models"
)

// shipmentScores computes the continuous [0,1] risk score per point from
// (a) its cluster's normalized severity rank and (b) its distance from its
// own centroid normalized against the cluster's farthest member. Both terms
// are in [0,1] and the weighted sum is clipped, so the score is bounded and
// monotone in each input.
func shipmentScores(points [][]float64, labels []int, centroids [][]float64,
	ordered []ClusterSeverity, weights models.ScoreWeights) (scores, intraDists []float64) {

	k := len(centroids)

	// Severity percentile by cluster label: rank/(k-1), single cluster = 0.
	percentile := make([]float64, k)
	for rank, c := range ordered {
		if k > 1 {
			percentile[c.Label] = float64(rank) / float64(k-1)
		}
	}

	intraDists = make([]float64, len(points))
	maxDist := make([]float64, k)
	for i, p := range points {
		d := math.Sqrt(sqDist(p, centroids[labels[i]]))
		intraDists[i] = d
		if d > maxDist[labels[i]] {
			maxDist[labels[i]] = d
		}
	}

	wSum := weights.Severity + weights.IntraDist
	scores = make([]float64, len(points))
	for i := range points {
		var normDist float64
		if m := maxDist[labels[i]]; m > 0 {
			normDist = intraDists[i] / m
		}
		s := (weights.Severity*percentile[labels[i]] + weights.IntraDist*normDist) / wSum
		scores[i] = clip01(s)
	}
	return scores, intraDists
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
