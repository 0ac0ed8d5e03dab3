package models

// RiskTier is an ordered risk category. Higher values mean higher risk.
type RiskTier int

const (
	TierLow RiskTier = iota
	TierMedium
	TierHigh
	TierCritical
)

// DefaultTierLabels are the display names used when a scoring profile does
// not override them. Tier i of an n-tier run uses label min(i, len-1).
var DefaultTierLabels = []string{"Low", "Medium", "High", "Critical"}

// Label returns the display name for a tier given the labels in effect.
func (t RiskTier) Label(labels []string) string {
	if len(labels) == 0 {
		labels = DefaultTierLabels
	}
	i := int(t)
	if i < 0 {
		i = 0
	}
	if i >= len(labels) {
		i = len(labels) - 1
	}
	return labels[i]
}

// Cluster describes one cluster of a finished run. Labels are 0..k-1 and
// carry no identity across runs.
type Cluster struct {
	Label       int       `json:"label"`
	Centroid    []float64 `json:"centroid"` // standardized feature space
	Severity    float64   `json:"severity"`
	Tier        RiskTier  `json:"tier"`
	TierLabel   string    `json:"tierLabel"`
	MemberCount int       `json:"memberCount"`
}

// RiskAssignment is the per-shipment output of the scoring engine.
// Immutable once returned.
type RiskAssignment struct {
	BillOfLading string             `json:"billOfLading"`
	Cluster      int                `json:"cluster"`
	Tier         RiskTier           `json:"tier"`
	TierLabel    string             `json:"tierLabel"`
	Score        float64            `json:"score"` // [0,1]
	IntraDist    float64            `json:"intraDist"`
	Features     map[string]float64 `json:"features"` // standardized values by feature name
}
