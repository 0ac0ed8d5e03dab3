package risk

import (
	"fmt"
	"sort"

	"github.com/shipment-insights/backend/internal/models"
)

// Normalize validates raw shipment records and resolves duplicate Bills of
// Lading. It returns the records fit for feature building plus every
// rejected record with its reason. The input slice is not modified.
func Normalize(records []models.ShipmentRecord, policy DuplicatePolicy) ([]models.ShipmentRecord, []models.ExcludedRecord) {
	valid := make([]models.ShipmentRecord, 0, len(records))
	excluded := make([]models.ExcludedRecord, 0)

	// Records without an identifier cannot take part in duplicate
	// resolution; reject them up front.
	withID := make([]models.ShipmentRecord, 0, len(records))
	for _, rec := range records {
		if rec.BillOfLading == "" {
			excluded = append(excluded, models.ExcludedRecord{
				Reason: models.ReasonMissingFeature,
				Detail: "bill of lading is empty",
			})
			continue
		}
		withID = append(withID, rec)
	}

	// Duplicate resolution first so a kept duplicate still goes through
	// field validation below.
	deduped, dupExcluded := resolveDuplicates(withID, policy)
	excluded = append(excluded, dupExcluded...)

	for _, rec := range deduped {
		if reason, detail, ok := validateRecord(&rec); !ok {
			excluded = append(excluded, models.ExcludedRecord{
				BillOfLading: rec.BillOfLading,
				Reason:       reason,
				Detail:       detail,
			})
			continue
		}
		valid = append(valid, rec)
	}

	return valid, excluded
}

func validateRecord(rec *models.ShipmentRecord) (models.ExclusionReason, string, bool) {
	switch {
	case rec.BillOfLading == "":
		return models.ReasonMissingFeature, "bill of lading is empty", false
	case rec.Carrier == "":
		return models.ReasonMissingFeature, "carrier is empty", false
	case rec.Origin == "" || rec.Destination == "":
		return models.ReasonMissingFeature, "origin or destination code is empty", false
	case rec.ArrivalDelay == nil:
		return models.ReasonMissingFeature, "arrival delay is missing", false
	case rec.TransitDays == nil:
		return models.ReasonMissingFeature, "transit duration is missing", false
	case rec.LoadCount == nil:
		return models.ReasonMissingFeature, "load count is missing", false
	case *rec.TransitDays < 0:
		return models.ReasonInvalidFeature, fmt.Sprintf("negative transit duration %.2f", *rec.TransitDays), false
	case *rec.LoadCount < 0:
		return models.ReasonInvalidFeature, fmt.Sprintf("negative load count %d", *rec.LoadCount), false
	}
	return "", "", true
}

// resolveDuplicates collapses records sharing a Bill of Lading. Under
// keep-latest the copy with the most recent departure date survives (a copy
// without a date never wins over one with a date; full ties keep the first
// occurrence). Under reject every copy is excluded. Input order of unique
// records is preserved.
func resolveDuplicates(records []models.ShipmentRecord, policy DuplicatePolicy) ([]models.ShipmentRecord, []models.ExcludedRecord) {
	byBOL := make(map[string][]int, len(records))
	order := make([]string, 0, len(records))
	for i, rec := range records {
		if _, seen := byBOL[rec.BillOfLading]; !seen {
			order = append(order, rec.BillOfLading)
		}
		byBOL[rec.BillOfLading] = append(byBOL[rec.BillOfLading], i)
	}

	kept := make([]models.ShipmentRecord, 0, len(order))
	excluded := make([]models.ExcludedRecord, 0)

	for _, bol := range order {
		idxs := byBOL[bol]
		if len(idxs) == 1 {
			kept = append(kept, records[idxs[0]])
			continue
		}

		if policy == DuplicateReject {
			for range idxs {
				excluded = append(excluded, models.ExcludedRecord{
					BillOfLading: bol,
					Reason:       models.ReasonDuplicateRecord,
					Detail:       fmt.Sprintf("%d records share this identifier", len(idxs)),
				})
			}
			continue
		}

		winner := idxs[0]
		for _, i := range idxs[1:] {
			if departsAfter(&records[i], &records[winner]) {
				winner = i
			}
		}
		kept = append(kept, records[winner])
		for _, i := range idxs {
			if i == winner {
				continue
			}
			excluded = append(excluded, models.ExcludedRecord{
				BillOfLading: bol,
				Reason:       models.ReasonDuplicateRecord,
				Detail:       "superseded by a later departure",
			})
		}
	}

	sort.SliceStable(excluded, func(i, j int) bool {
		return excluded[i].BillOfLading < excluded[j].BillOfLading
	})
	return kept, excluded
}

func departsAfter(a, b *models.ShipmentRecord) bool {
	if a.DepartureAt == nil {
		return false
	}
	if b.DepartureAt == nil {
		return true
	}
	return a.DepartureAt.After(*b.DepartureAt)
}
