package risk

import (
	"github.com/shipment-insights/backend/internal/models"
)

// Result is the immutable outcome of one scoring call. Assignments[i]
// corresponds to Valid[i].
type Result struct {
	Assignments []models.RiskAssignment
	Valid       []models.ShipmentRecord
	Excluded    []models.ExcludedRecord
	Clusters    []models.Cluster
	K           int     // effective cluster count
	Inertia     float64 // total within-cluster distance of the retained run
	Converged   bool
	TrialsRun   int
}

// Engine runs the full scoring pipeline: normalize, build features, cluster,
// map tiers, score. It holds no state between calls; every invocation is a
// pure function of its inputs.
type Engine struct{}

// NewEngine creates a scoring engine.
func NewEngine() *Engine { return &Engine{} }

// Score scores a batch of shipment records. Returns *ConfigurationError for
// invalid params and *InsufficientDataError when fewer than the minimum
// valid records survive normalization; per-record problems never abort the
// batch, they land in Result.Excluded. The input slice is never mutated.
func (e *Engine) Score(records []models.ShipmentRecord, params Params) (*Result, error) {
	p := params.WithDefaults()
	if err := p.Validate(); err != nil {
		return nil, err
	}

	valid, excluded := Normalize(records, p.DuplicatePolicy)
	if len(valid) < p.MinValidRecords {
		return nil, &InsufficientDataError{Valid: len(valid), Minimum: p.MinValidRecords}
	}

	matrix := BuildFeatures(valid, p.RouteCohortMin)
	n := len(matrix.Rows)

	k := p.K
	if k == 0 {
		k = chooseK(matrix.Rows, p.Trials, p.MaxIterations, p.Seed)
	}
	if k > n {
		k = n // degenerate input: one shipment per cluster
	}

	run := bestOfTrials(matrix.Rows, k, p.Trials, p.MaxIterations, p.Seed)

	memberCounts := make([]int, k)
	for _, c := range run.labels {
		memberCounts[c]++
	}
	ordered := rankClusters(run.centroids, memberCounts, matrix.Names, p.FeatureWeights)
	tierByRank := p.TierStrategy(ordered, p.TierCount)

	tierByLabel := make([]models.RiskTier, k)
	for rank, c := range ordered {
		tierByLabel[c.Label] = tierByRank[rank]
	}

	scores, intraDists := shipmentScores(matrix.Rows, run.labels, run.centroids, ordered, p.ScoreWeights)

	assignments := make([]models.RiskAssignment, n)
	for i, rec := range valid {
		label := run.labels[i]
		breakdown := make(map[string]float64, matrix.Dim())
		for j, name := range matrix.Names {
			breakdown[name] = matrix.Rows[i][j]
		}
		assignments[i] = models.RiskAssignment{
			BillOfLading: rec.BillOfLading,
			Cluster:      label,
			Tier:         tierByLabel[label],
			TierLabel:    tierByLabel[label].Label(p.TierLabels),
			Score:        scores[i],
			IntraDist:    intraDists[i],
			Features:     breakdown,
		}
	}

	clusters := make([]models.Cluster, k)
	for rank, c := range ordered {
		clusters[c.Label] = models.Cluster{
			Label:       c.Label,
			Centroid:    clonePoint(run.centroids[c.Label]),
			Severity:    c.Severity,
			Tier:        tierByRank[rank],
			TierLabel:   tierByRank[rank].Label(p.TierLabels),
			MemberCount: c.Members,
		}
	}

	return &Result{
		Assignments: assignments,
		Valid:       valid,
		Excluded:    excluded,
		Clusters:    clusters,
		K:           k,
		Inertia:     run.inertia,
		Converged:   run.converged,
		TrialsRun:   p.Trials,
	}, nil
}
