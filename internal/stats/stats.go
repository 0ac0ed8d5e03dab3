// Package stats computes descriptive aggregates over a scored batch:
// batch KPIs, per-carrier and per-route performance, monthly trends, and
// composite route risk listings.
package stats

import (
	"math"
	"sort"

	"github.com/shipment-insights/backend/internal/models"
)

// severeDelayDays is the threshold separating late from severely late.
const severeDelayDays = 7

// KPIs summarizes one batch of valid shipment records.
type KPIs struct {
	TotalShipments int     `json:"totalShipments"`
	TotalCarriers  int     `json:"totalCarriers"`
	TotalRoutes    int     `json:"totalRoutes"`
	AvgDelay       float64 `json:"avgDelay"`
	MedianDelay    float64 `json:"medianDelay"`
	StdDelay       float64 `json:"stdDelay"`
	OnTimeRate     float64 `json:"onTimeRate"` // percent
	LateRate       float64 `json:"lateRate"`
	SevereLateRate float64 `json:"severeLateRate"`
	AvgTransit     float64 `json:"avgTransit"`
	TotalLoads     int     `json:"totalLoads"`
}

// GroupStats is the shared aggregate shape for carriers and routes.
type GroupStats struct {
	Name           string  `json:"name"`
	Shipments      int     `json:"shipments"`
	AvgDelay       float64 `json:"avgDelay"`
	MedianDelay    float64 `json:"medianDelay"`
	StdDelay       float64 `json:"stdDelay"`
	AvgTransit     float64 `json:"avgTransit"`
	OnTimeRate     float64 `json:"onTimeRate"`
	LateRate       float64 `json:"lateRate"`
	SevereLateRate float64 `json:"severeLateRate"`
	MarketShare    float64 `json:"marketShare,omitempty"` // carriers only
	RiskScore      int     `json:"riskScore,omitempty"`   // banded composite, routes only
}

// MonthlyTrend is one departure-month bucket.
type MonthlyTrend struct {
	Month          string  `json:"month"` // "2024-05"
	Shipments      int     `json:"shipments"`
	AvgDelay       float64 `json:"avgDelay"`
	AvgTransit     float64 `json:"avgTransit"`
	LateRate       float64 `json:"lateRate"`
	SevereLateRate float64 `json:"severeLateRate"`
	TotalLoads     int     `json:"totalLoads"`
}

// MatrixCell is one carrier×route intersection.
type MatrixCell struct {
	Carrier  string  `json:"carrier"`
	Route    string  `json:"route"`
	Count    int     `json:"count"`
	AvgDelay float64 `json:"avgDelay"`
	OnTime   float64 `json:"onTimeRate"`
}

// ComputeKPIs aggregates batch-level indicators. Records are assumed valid
// (normalizer output): delay, transit and load are always present.
func ComputeKPIs(records []models.ShipmentRecord) KPIs {
	k := KPIs{TotalShipments: len(records)}
	if len(records) == 0 {
		return k
	}

	carriers := make(map[string]struct{})
	routes := make(map[string]struct{})
	delays := make([]float64, 0, len(records))
	var delaySum, transitSum float64
	var late, severe int

	for _, r := range records {
		carriers[r.Carrier] = struct{}{}
		routes[r.Route] = struct{}{}
		d := *r.ArrivalDelay
		delays = append(delays, d)
		delaySum += d
		transitSum += *r.TransitDays
		k.TotalLoads += *r.LoadCount
		if d > 0 {
			late++
		}
		if d > severeDelayDays {
			severe++
		}
	}

	n := float64(len(records))
	k.TotalCarriers = len(carriers)
	k.TotalRoutes = len(routes)
	k.AvgDelay = delaySum / n
	k.MedianDelay = medianOf(delays)
	k.StdDelay = stddevOf(delays, k.AvgDelay)
	k.AvgTransit = transitSum / n
	k.LateRate = float64(late) / n * 100
	k.SevereLateRate = float64(severe) / n * 100
	k.OnTimeRate = 100 - k.LateRate
	return k
}

// CarrierStats aggregates per carrier, sorted by shipment count descending.
func CarrierStats(records []models.ShipmentRecord) []GroupStats {
	stats := groupBy(records, func(r *models.ShipmentRecord) string { return r.Carrier })
	total := len(records)
	for i := range stats {
		if total > 0 {
			stats[i].MarketShare = round1(float64(stats[i].Shipments) / float64(total) * 100)
		}
	}
	return stats
}

// RouteStats aggregates per route, sorted by shipment count descending,
// with the banded composite risk score attached.
func RouteStats(records []models.ShipmentRecord) []GroupStats {
	stats := groupBy(records, func(r *models.ShipmentRecord) string { return r.Route })
	for i := range stats {
		stats[i].RiskScore = CompositeRiskScore(stats[i].AvgDelay, stats[i].StdDelay, stats[i].LateRate/100)
	}
	return stats
}

// HighRiskRoutes returns routes whose average delay meets the threshold,
// sorted by composite risk score descending.
func HighRiskRoutes(records []models.ShipmentRecord, thresholdDelay float64) []GroupStats {
	all := RouteStats(records)
	high := make([]GroupStats, 0)
	for _, s := range all {
		if s.AvgDelay >= thresholdDelay {
			high = append(high, s)
		}
	}
	sort.SliceStable(high, func(i, j int) bool {
		if high[i].RiskScore != high[j].RiskScore {
			return high[i].RiskScore > high[j].RiskScore
		}
		return high[i].AvgDelay > high[j].AvgDelay
	})
	return high
}

// BestPerformers returns carriers meeting a minimum volume, sorted by
// on-time rate descending.
func BestPerformers(records []models.ShipmentRecord, minVolume int) []GroupStats {
	all := CarrierStats(records)
	qualified := make([]GroupStats, 0)
	for _, s := range all {
		if s.Shipments >= minVolume {
			qualified = append(qualified, s)
		}
	}
	sort.SliceStable(qualified, func(i, j int) bool {
		if qualified[i].OnTimeRate != qualified[j].OnTimeRate {
			return qualified[i].OnTimeRate > qualified[j].OnTimeRate
		}
		return qualified[i].AvgDelay < qualified[j].AvgDelay
	})
	return qualified
}

// MonthlyTrends buckets records by departure month ascending. Records
// without a departure date are skipped.
func MonthlyTrends(records []models.ShipmentRecord) []MonthlyTrend {
	type acc struct {
		count      int
		delaySum   float64
		transitSum float64
		late       int
		severe     int
		loads      int
	}
	byMonth := make(map[string]*acc)
	for _, r := range records {
		if r.DepartureAt == nil {
			continue
		}
		month := r.DepartureAt.Format("2006-01")
		a, ok := byMonth[month]
		if !ok {
			a = &acc{}
			byMonth[month] = a
		}
		a.count++
		a.delaySum += *r.ArrivalDelay
		a.transitSum += *r.TransitDays
		a.loads += *r.LoadCount
		if *r.ArrivalDelay > 0 {
			a.late++
		}
		if *r.ArrivalDelay > severeDelayDays {
			a.severe++
		}
	}

	months := make([]string, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	sort.Strings(months)

	trends := make([]MonthlyTrend, 0, len(months))
	for _, m := range months {
		a := byMonth[m]
		n := float64(a.count)
		trends = append(trends, MonthlyTrend{
			Month:          m,
			Shipments:      a.count,
			AvgDelay:       round2(a.delaySum / n),
			AvgTransit:     round2(a.transitSum / n),
			LateRate:       round1(float64(a.late) / n * 100),
			SevereLateRate: round1(float64(a.severe) / n * 100),
			TotalLoads:     a.loads,
		})
	}
	return trends
}

// CarrierRouteMatrix computes the carrier×route cells for the top carriers
// and routes by volume. Cells with no shipments are omitted.
func CarrierRouteMatrix(records []models.ShipmentRecord, topCarriers, topRoutes int) []MatrixCell {
	carrierSet := topNames(CarrierStats(records), topCarriers)
	routeSet := topNames(RouteStats(records), topRoutes)

	type acc struct {
		count    int
		delaySum float64
		onTime   int
	}
	cells := make(map[[2]string]*acc)
	for _, r := range records {
		if _, ok := carrierSet[r.Carrier]; !ok {
			continue
		}
		if _, ok := routeSet[r.Route]; !ok {
			continue
		}
		key := [2]string{r.Carrier, r.Route}
		a, ok := cells[key]
		if !ok {
			a = &acc{}
			cells[key] = a
		}
		a.count++
		a.delaySum += *r.ArrivalDelay
		if *r.ArrivalDelay <= 0 {
			a.onTime++
		}
	}

	out := make([]MatrixCell, 0, len(cells))
	for key, a := range cells {
		out = append(out, MatrixCell{
			Carrier:  key[0],
			Route:    key[1],
			Count:    a.count,
			AvgDelay: round2(a.delaySum / float64(a.count)),
			OnTime:   round1(float64(a.onTime) / float64(a.count) * 100),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Carrier != out[j].Carrier {
			return out[i].Carrier < out[j].Carrier
		}
		return out[i].Route < out[j].Route
	})
	return out
}

// CompositeRiskScore bands delay, delay variability and late rate into a
// 0-100 composite. The bands mirror the operational review thresholds:
// delay contributes up to 40 points, variability and late rate up to 30.
func CompositeRiskScore(avgDelay, stdDelay, lateRate float64) int {
	score := 0
	switch {
	case avgDelay <= 0:
	case avgDelay <= 3:
		score += 10
	case avgDelay <= 7:
		score += 25
	default:
		score += 40
	}
	switch {
	case stdDelay <= 2:
	case stdDelay <= 5:
		score += 15
	default:
		score += 30
	}
	switch {
	case lateRate <= 0.3:
	case lateRate <= 0.5:
		score += 15
	default:
		score += 30
	}
	return score
}

func groupBy(records []models.ShipmentRecord, key func(*models.ShipmentRecord) string) []GroupStats {
	type acc struct {
		delays     []float64
		transitSum float64
		late       int
		severe     int
	}
	groups := make(map[string]*acc)
	for i := range records {
		r := &records[i]
		name := key(r)
		a, ok := groups[name]
		if !ok {
			a = &acc{}
			groups[name] = a
		}
		d := *r.ArrivalDelay
		a.delays = append(a.delays, d)
		a.transitSum += *r.TransitDays
		if d > 0 {
			a.late++
		}
		if d > severeDelayDays {
			a.severe++
		}
	}

	out := make([]GroupStats, 0, len(groups))
	for name, a := range groups {
		n := float64(len(a.delays))
		var delaySum float64
		for _, d := range a.delays {
			delaySum += d
		}
		avg := delaySum / n
		s := GroupStats{
			Name:           name,
			Shipments:      len(a.delays),
			AvgDelay:       round2(avg),
			MedianDelay:    round2(medianOf(a.delays)),
			StdDelay:       round2(stddevOf(a.delays, avg)),
			AvgTransit:     round2(a.transitSum / n),
			LateRate:       round1(float64(a.late) / n * 100),
			SevereLateRate: round1(float64(a.severe) / n * 100),
		}
		s.OnTimeRate = round1(100 - s.LateRate)
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Shipments != out[j].Shipments {
			return out[i].Shipments > out[j].Shipments
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func topNames(stats []GroupStats, n int) map[string]struct{} {
	if n > len(stats) {
		n = len(stats)
	}
	set := make(map[string]struct{}, n)
	for _, s := range stats[:n] {
		set[s.Name] = struct{}{}
	}
	return set
}

func medianOf(values []float64) float64 {
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

// stddevOf is the sample standard deviation; single-element groups get 0
// rather than a division by zero.
func stddevOf(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sqSum float64
	for _, v := range values {
		d := v - mean
		sqSum += d * d
	}
	return math.Sqrt(sqSum / float64(len(values)-1))
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
