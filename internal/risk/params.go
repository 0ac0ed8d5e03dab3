package risk

import (
	"fmt"

	"github.com/shipment-insights/backend/internal/models"
)

// DuplicatePolicy decides what happens to records sharing a Bill of Lading.
type DuplicatePolicy string

const (
	// DuplicateKeepLatest keeps the copy with the most recent departure date.
	DuplicateKeepLatest DuplicatePolicy = "keep_latest"
	// DuplicateReject excludes every copy of a duplicated identifier.
	DuplicateReject DuplicatePolicy = "reject"
)

// Defaults for Params fields left at their zero value.
const (
	DefaultTrials          = 10
	DefaultMaxIterations   = 300
	DefaultTierCount       = 4
	DefaultMinValidRecords = 2
	DefaultRouteCohortMin  = 3
	DefaultSeed            = 42
	// MaxAutoK bounds the k range the internal heuristic searches.
	MaxAutoK = 8
)

// Params carries the full configuration of one scoring call. The zero value
// plus WithDefaults is a usable configuration with k chosen automatically.
type Params struct {
	// K is the requested cluster count. 0 means choose automatically.
	K int
	// Trials is how many independently seeded runs to race; the lowest
	// total within-cluster distance wins.
	Trials int
	// MaxIterations caps each run's centroid-relocation loop.
	MaxIterations int
	// TierCount is the number of ordered risk tiers.
	TierCount int
	// Seed is the master random seed; trial i runs with Seed+i.
	Seed int64
	// MinValidRecords is the fatal lower bound on valid records.
	MinValidRecords int
	// RouteCohortMin is the minimum route cohort size for route-median
	// load normalization; smaller cohorts fall back to the global median.
	RouteCohortMin int
	// FeatureWeights weighs features in the cluster severity statistic.
	// Nil means the default profile weights.
	FeatureWeights map[string]float64
	// ScoreWeights combines severity percentile and intra-cluster distance.
	ScoreWeights models.ScoreWeights
	// DuplicatePolicy handles repeated Bills of Lading.
	DuplicatePolicy DuplicatePolicy
	// TierStrategy buckets severity-ordered clusters into tiers.
	// Nil means PopulationQuantileTiers.
	TierStrategy TierStrategy
	// TierLabels are the display names per tier, lowest risk first.
	TierLabels []string
}

// WithDefaults returns a copy with zero-valued fields filled in.
func (p Params) WithDefaults() Params {
	if p.Trials == 0 {
		p.Trials = DefaultTrials
	}
	if p.MaxIterations == 0 {
		p.MaxIterations = DefaultMaxIterations
	}
	if p.TierCount == 0 {
		p.TierCount = DefaultTierCount
	}
	if p.Seed == 0 {
		p.Seed = DefaultSeed
	}
	if p.MinValidRecords == 0 {
		p.MinValidRecords = DefaultMinValidRecords
	}
	if p.RouteCohortMin == 0 {
		p.RouteCohortMin = DefaultRouteCohortMin
	}
	profile := models.DefaultScoringProfile()
	if p.FeatureWeights == nil {
		p.FeatureWeights = profile.FeatureWeights
	}
	if p.ScoreWeights == (models.ScoreWeights{}) {
		p.ScoreWeights = profile.ScoreWeights
	}
	if p.DuplicatePolicy == "" {
		p.DuplicatePolicy = DuplicateKeepLatest
	}
	if p.TierStrategy == nil {
		p.TierStrategy = PopulationQuantileTiers
	}
	if p.TierLabels == nil {
		p.TierLabels = profile.TierLabels
	}
	return p
}

// Validate checks constraints after defaults are applied.
func (p Params) Validate() error {
	if p.K < 0 {
		return &ConfigurationError{Field: "k", Detail: "must be positive or unset"}
	}
	if p.Trials < 1 {
		return &ConfigurationError{Field: "trials", Detail: "must be at least 1"}
	}
	if p.MaxIterations < 1 {
		return &ConfigurationError{Field: "maxIterations", Detail: "must be at least 1"}
	}
	if p.TierCount < 1 {
		return &ConfigurationError{Field: "tierCount", Detail: "must be at least 1"}
	}
	if p.MinValidRecords < 2 {
		return &ConfigurationError{Field: "minValidRecords", Detail: "must be at least 2"}
	}
	if p.RouteCohortMin < 1 {
		return &ConfigurationError{Field: "routeCohortMin", Detail: "must be at least 1"}
	}
	var weightSum float64
	for name, w := range p.FeatureWeights {
		if w < 0 {
			return &ConfigurationError{Field: "featureWeights", Detail: fmt.Sprintf("weight for %q is negative", name)}
		}
		weightSum += w
	}
	if weightSum == 0 {
		return &ConfigurationError{Field: "featureWeights", Detail: "all weights are zero"}
	}
	if p.ScoreWeights.Severity < 0 || p.ScoreWeights.IntraDist < 0 {
		return &ConfigurationError{Field: "scoreWeights", Detail: "weights must be non-negative"}
	}
	if p.ScoreWeights.Severity+p.ScoreWeights.IntraDist == 0 {
		return &ConfigurationError{Field: "scoreWeights", Detail: "both weights are zero"}
	}
	switch p.DuplicatePolicy {
	case DuplicateKeepLatest, DuplicateReject:
	default:
		return &ConfigurationError{Field: "duplicatePolicy", Detail: fmt.Sprintf("unknown policy %q", p.DuplicatePolicy)}
	}
	return nil
}
