package stats

import (
	"testing"
	"time"

	"github.com/shipment-insights/backend/internal/models"
)

func rec(bol, carrier, route string, delay, transit float64, load int, departure string) models.ShipmentRecord {
	d, t, l := delay, transit, load
	r := models.ShipmentRecord{
		BillOfLading: bol,
		Carrier:      carrier,
		Route:        route,
		ArrivalDelay: &d,
		TransitDays:  &t,
		LoadCount:    &l,
	}
	if departure != "" {
		ts, _ := time.Parse("2006-01-02", departure)
		r.DepartureAt = &ts
	}
	return r
}

func sampleBatch() []models.ShipmentRecord {
	return []models.ShipmentRecord{
		rec("1", "Maersk", "China → Netherlands", -1, 28, 10, "2024-04-10"),
		rec("2", "Maersk", "China → Netherlands", 2, 30, 12, "2024-04-20"),
		rec("3", "Maersk", "China → Netherlands", 9, 33, 8, "2024-05-05"),
		rec("4", "CMA CGM", "Germany → United States", 12, 40, 5, "2024-05-15"),
		rec("5", "CMA CGM", "Germany → United States", 15, 42, 6, "2024-05-25"),
	}
}

func TestComputeKPIs(t *testing.T) {
	k := ComputeKPIs(sampleBatch())

	if k.TotalShipments != 5 {
		t.Errorf("Expected 5 shipments, got %d", k.TotalShipments)
	}
	if k.TotalCarriers != 2 || k.TotalRoutes != 2 {
		t.Errorf("Expected 2 carriers / 2 routes, got %d / %d", k.TotalCarriers, k.TotalRoutes)
	}
	if k.MedianDelay != 9 {
		t.Errorf("Expected median delay 9, got %f", k.MedianDelay)
	}
	// 4 of 5 are late, 3 of 5 severely.
	if k.LateRate != 80 {
		t.Errorf("Expected late rate 80, got %f", k.LateRate)
	}
	if k.SevereLateRate != 60 {
		t.Errorf("Expected severe late rate 60, got %f", k.SevereLateRate)
	}
	if k.OnTimeRate != 20 {
		t.Errorf("Expected on-time rate 20, got %f", k.OnTimeRate)
	}
	if k.TotalLoads != 41 {
		t.Errorf("Expected 41 total loads, got %d", k.TotalLoads)
	}
}

func TestCarrierStats(t *testing.T) {
	stats := CarrierStats(sampleBatch())
	if len(stats) != 2 {
		t.Fatalf("Expected 2 carriers, got %d", len(stats))
	}
	// Sorted by volume: Maersk (3) before CMA CGM (2).
	if stats[0].Name != "Maersk" || stats[0].Shipments != 3 {
		t.Errorf("Expected Maersk with 3 shipments first, got %s/%d", stats[0].Name, stats[0].Shipments)
	}
	if stats[0].MarketShare != 60 {
		t.Errorf("Expected 60%% market share, got %f", stats[0].MarketShare)
	}
	if stats[1].LateRate != 100 {
		t.Errorf("Expected CMA CGM fully late, got %f", stats[1].LateRate)
	}
}

func TestHighRiskRoutes(t *testing.T) {
	high := HighRiskRoutes(sampleBatch(), 5.0)
	if len(high) != 1 {
		t.Fatalf("Expected 1 route above 5-day threshold, got %d", len(high))
	}
	if high[0].Name != "Germany → United States" {
		t.Errorf("Wrong high-risk route: %s", high[0].Name)
	}
	if high[0].RiskScore == 0 {
		t.Errorf("High-risk route must carry a composite score")
	}
}

func TestBestPerformers(t *testing.T) {
	best := BestPerformers(sampleBatch(), 3)
	if len(best) != 1 || best[0].Name != "Maersk" {
		t.Fatalf("Expected only Maersk to qualify at volume 3, got %+v", best)
	}
}

func TestMonthlyTrends(t *testing.T) {
	trends := MonthlyTrends(sampleBatch())
	if len(trends) != 2 {
		t.Fatalf("Expected 2 months, got %d", len(trends))
	}
	if trends[0].Month != "2024-04" || trends[1].Month != "2024-05" {
		t.Errorf("Months out of order: %s, %s", trends[0].Month, trends[1].Month)
	}
	if trends[0].Shipments != 2 || trends[1].Shipments != 3 {
		t.Errorf("Wrong bucket sizes: %d, %d", trends[0].Shipments, trends[1].Shipments)
	}
}

func TestCarrierRouteMatrix(t *testing.T) {
	cells := CarrierRouteMatrix(sampleBatch(), 8, 10)
	if len(cells) != 2 {
		t.Fatalf("Expected 2 populated cells, got %d", len(cells))
	}
	for _, c := range cells {
		if c.Count == 0 {
			t.Errorf("Empty cell emitted: %+v", c)
		}
	}
}

func TestCompositeRiskScore(t *testing.T) {
	tests := []struct {
		avgDelay, stdDelay, lateRate float64
		want                         int
	}{
		{0, 0, 0, 0},
		{2, 1, 0.2, 10},
		{5, 3, 0.4, 25 + 15 + 15},
		{10, 8, 0.9, 40 + 30 + 30},
	}
	for _, tt := range tests {
		if got := CompositeRiskScore(tt.avgDelay, tt.stdDelay, tt.lateRate); got != tt.want {
			t.Errorf("CompositeRiskScore(%v, %v, %v) = %d, want %d",
				tt.avgDelay, tt.stdDelay, tt.lateRate, got, tt.want)
		}
	}
}
