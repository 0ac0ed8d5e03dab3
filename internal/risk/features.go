package risk

import (
	"math"
	"sort"

	"github.com/shipment-insights/backend/internal/models"
)

// FeatureNames is the fixed feature order of every vector in a batch.
var FeatureNames = []string{"arrival_delay", "transit_days", "load_deviation"}

// FeatureMatrix holds the standardized feature vectors of one batch plus the
// batch statistics used to produce them. Scaling is batch-relative: vectors
// from different batches are not comparable.
type FeatureMatrix struct {
	Names  []string
	Rows   [][]float64 // standardized, len(Rows) == len(records)
	Means  []float64
	Stddev []float64
}

// Dim returns the fixed dimensionality of the batch.
func (m *FeatureMatrix) Dim() int { return len(m.Names) }

// BuildFeatures derives the feature vector for each record and standardizes
// each feature to zero mean and unit variance over the batch. Records must
// already be normalized: every required field present, no negative transit.
//
// Load deviation is the record's load count minus the median load count of
// its route cohort; cohorts smaller than cohortMin use the global median so
// a single-sample route does not zero out its own deviation.
func BuildFeatures(records []models.ShipmentRecord, cohortMin int) *FeatureMatrix {
	n := len(records)
	m := &FeatureMatrix{
		Names:  FeatureNames,
		Rows:   make([][]float64, n),
		Means:  make([]float64, len(FeatureNames)),
		Stddev: make([]float64, len(FeatureNames)),
	}
	if n == 0 {
		return m
	}

	routeMedians, globalMedian := loadMedians(records, cohortMin)

	for i, rec := range records {
		median, ok := routeMedians[rec.RouteKey()]
		if !ok {
			median = globalMedian
		}
		m.Rows[i] = []float64{
			*rec.ArrivalDelay,
			*rec.TransitDays,
			float64(*rec.LoadCount) - median,
		}
	}

	standardize(m)
	return m
}

// loadMedians computes per-route load medians for cohorts of at least
// cohortMin shipments, plus the global median fallback.
func loadMedians(records []models.ShipmentRecord, cohortMin int) (map[string]float64, float64) {
	byRoute := make(map[string][]float64)
	all := make([]float64, 0, len(records))
	for _, rec := range records {
		v := float64(*rec.LoadCount)
		byRoute[rec.RouteKey()] = append(byRoute[rec.RouteKey()], v)
		all = append(all, v)
	}

	medians := make(map[string]float64, len(byRoute))
	for route, loads := range byRoute {
		if len(loads) >= cohortMin {
			medians[route] = median(loads)
		}
	}
	return medians, median(all)
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// standardize rescales every column in place to zero mean, unit variance.
// A zero-variance column becomes all zeros so no NaN can reach clustering.
func standardize(m *FeatureMatrix) {
	n := float64(len(m.Rows))
	for j := range m.Names {
		var sum float64
		for _, row := range m.Rows {
			sum += row[j]
		}
		mean := sum / n

		var sqSum float64
		for _, row := range m.Rows {
			d := row[j] - mean
			sqSum += d * d
		}
		std := math.Sqrt(sqSum / n)

		m.Means[j] = mean
		m.Stddev[j] = std
		for _, row := range m.Rows {
			if std == 0 {
				row[j] = 0
			} else {
				row[j] = (row[j] - mean) / std
			}
		}
	}
}
