package models

// ScoringProfile is the YAML-configurable part of the risk engine: feature
// weights for the severity statistic, tier labels, and the tiering strategy.
// Mirrors the reference `profile.yaml`.
type ScoringProfile struct {
	Name           string             `yaml:"name" json:"name"`
	FeatureWeights map[string]float64 `yaml:"feature_weights" json:"featureWeights"`
	TierLabels     []string           `yaml:"tier_labels" json:"tierLabels"`
	TierStrategy   string             `yaml:"tier_strategy" json:"tierStrategy"` // "population" or "width"
	ScoreWeights   ScoreWeights       `yaml:"score_weights" json:"scoreWeights"`
}

// ScoreWeights is the fixed combination of cluster severity and
// intra-cluster distance in the final score.
type ScoreWeights struct {
	Severity  float64 `yaml:"severity" json:"severity"`
	IntraDist float64 `yaml:"intra_dist" json:"intraDist"`
}

// DefaultScoringProfile returns the built-in profile used when no
// profile.yaml has been loaded.
func DefaultScoringProfile() *ScoringProfile {
	return &ScoringProfile{
		Name: "default",
		FeatureWeights: map[string]float64{
			"arrival_delay":  0.6,
			"transit_days":   0.3,
			"load_deviation": 0.1,
		},
		TierLabels:   append([]string(nil), DefaultTierLabels...),
		TierStrategy: "population",
		ScoreWeights: ScoreWeights{Severity: 0.7, IntraDist: 0.3},
	}
}
