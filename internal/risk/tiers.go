package risk

import (
	"sort"

	"github.com/shipment-insights/backend/internal/models"
)

// ClusterSeverity is one cluster's standing in the severity ranking.
type ClusterSeverity struct {
	Label    int
	Severity float64
	Members  int
}

// TierStrategy buckets clusters, already sorted by ascending severity, into
// tierCount ordered tiers. The returned slice is positional: tiers[i] is the
// tier of ordered[i]. Implementations must be monotonic: tiers never
// decrease along the ordered slice.
type TierStrategy func(ordered []ClusterSeverity, tierCount int) []models.RiskTier

// clusterSeverity computes the severity statistic for one centroid: the
// weighted sum of its standardized features, weights favoring delay.
func clusterSeverity(centroid []float64, names []string, weights map[string]float64) float64 {
	var s float64
	for j, name := range names {
		s += weights[name] * centroid[j]
	}
	return s
}

// rankClusters orders clusters by severity ascending, breaking ties by
// cluster label ascending.
func rankClusters(centroids [][]float64, memberCounts []int, names []string, weights map[string]float64) []ClusterSeverity {
	ordered := make([]ClusterSeverity, len(centroids))
	for c, centroid := range centroids {
		ordered[c] = ClusterSeverity{
			Label:    c,
			Severity: clusterSeverity(centroid, names, weights),
			Members:  memberCounts[c],
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Severity != ordered[j].Severity {
			return ordered[i].Severity < ordered[j].Severity
		}
		return ordered[i].Label < ordered[j].Label
	})
	return ordered
}

// PopulationQuantileTiers sizes tiers to roughly equal cluster-weighted
// population: tier boundaries fall at total*(t+1)/tierCount shipments, and
// each cluster lands in the tier its cumulative population midpoint hits.
func PopulationQuantileTiers(ordered []ClusterSeverity, tierCount int) []models.RiskTier {
	tiers := make([]models.RiskTier, len(ordered))
	var total int
	for _, c := range ordered {
		total += c.Members
	}
	if total == 0 || tierCount == 1 {
		return tiers
	}

	var cum int
	for i, c := range ordered {
		mid := float64(cum) + float64(c.Members)/2
		t := int(mid * float64(tierCount) / float64(total))
		if t >= tierCount {
			t = tierCount - 1
		}
		// Monotonicity over equal-severity runs and tiny clusters.
		if i > 0 && models.RiskTier(t) < tiers[i-1] {
			t = int(tiers[i-1])
		}
		tiers[i] = models.RiskTier(t)
		cum += c.Members
	}
	return tiers
}

// EqualWidthTiers splits the severity range into tierCount equal-width bins.
// Clusters sharing a bin share a tier regardless of population.
func EqualWidthTiers(ordered []ClusterSeverity, tierCount int) []models.RiskTier {
	tiers := make([]models.RiskTier, len(ordered))
	if len(ordered) == 0 || tierCount == 1 {
		return tiers
	}

	lo := ordered[0].Severity
	hi := ordered[len(ordered)-1].Severity
	width := hi - lo
	if width == 0 {
		return tiers // all clusters equally severe: single lowest tier
	}

	for i, c := range ordered {
		t := int((c.Severity - lo) / width * float64(tierCount))
		if t >= tierCount {
			t = tierCount - 1
		}
		tiers[i] = models.RiskTier(t)
	}
	return tiers
}

// TierStrategyByName resolves a profile strategy name. Unknown names fall
// back to the population strategy.
func TierStrategyByName(name string) TierStrategy {
	switch name {
	case "width":
		return EqualWidthTiers
	default:
		return PopulationQuantileTiers
	}
}
