// Package models contains domain types for the Shipment Risk Insights backend.
package models

import "time"

// ShipmentRecord represents one shipment row keyed by Bill of Lading.
// Numeric fields that may be absent in the source export are pointers;
// the normalizer decides what absence means.
type ShipmentRecord struct {
	BillOfLading string     `json:"billOfLading"`
	Carrier      string     `json:"carrier"`
	Origin       string     `json:"origin"`      // POL LOCODE
	Destination  string     `json:"destination"` // POD LOCODE
	Route        string     `json:"route"`       // "Origin Country → Destination Country"
	ArrivalDelay *float64   `json:"arrivalDelay,omitempty"` // days, negative = early
	TransitDays  *float64   `json:"transitDays,omitempty"`
	LoadCount    *int       `json:"loadCount,omitempty"` // containers loaded at origin
	DepartureAt  *time.Time `json:"departureAt,omitempty"`
}

// RouteKey returns the origin/destination pair used for route cohorts.
func (r *ShipmentRecord) RouteKey() string {
	return r.Origin + "→" + r.Destination
}

// ExclusionReason classifies why a record was kept out of clustering.
type ExclusionReason string

const (
	ReasonMissingFeature  ExclusionReason = "missing_feature"
	ReasonInvalidFeature  ExclusionReason = "invalid_feature"
	ReasonDuplicateRecord ExclusionReason = "duplicate_record"
)

// ExcludedRecord reports a record that did not reach the clustering stage.
type ExcludedRecord struct {
	BillOfLading string          `json:"billOfLading"`
	Reason       ExclusionReason `json:"reason"`
	Detail       string          `json:"detail,omitempty"`
}

// DelayCategory buckets an arrival delay the way the reporting layer groups
// shipments: on time/early, 1-3 days, 4-7 days, over a week.
func DelayCategory(delayDays float64) string {
	switch {
	case delayDays <= 0:
		return "On Time/Early"
	case delayDays <= 3:
		return "1-3 Days Late"
	case delayDays <= 7:
		return "4-7 Days Late"
	default:
		return "7+ Days Late"
	}
}
