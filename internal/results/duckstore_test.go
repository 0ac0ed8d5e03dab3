// duckstore_test.go - Tests for DuckDB-backed assignment storage
package results

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// createTestStore creates a temporary AssignmentStore for testing
func createTestStore(t *testing.T) (*AssignmentStore, func()) {
	tempDir := t.TempDir()
	sessionID := "test_" + time.Now().Format("20060102_150405")

	store, err := NewAssignmentStore(tempDir, sessionID)
	if err != nil {
		t.Fatalf("Failed to create AssignmentStore: %v", err)
	}

	cleanup := func() {
		store.Close()
	}

	return store, cleanup
}

func testRow(bol, carrier, route string, tier int, score float64) ScoredShipment {
	origin, dest := "CNSHA", "USNYC"
	return ScoredShipment{
		BillOfLading: bol,
		Carrier:      carrier,
		Origin:       origin,
		Destination:  dest,
		Route:        route,
		ArrivalDelay: 3.5,
		TransitDays:  21,
		LoadCount:    12,
		Cluster:      0,
		Tier:         tier,
		TierLabel:    "Low",
		Score:        score,
		IntraDist:    0.4,
	}
}

func TestNewAssignmentStore(t *testing.T) {
	t.Run("creates store successfully", func(t *testing.T) {
		store, cleanup := createTestStore(t)
		defer cleanup()

		if store == nil {
			t.Fatal("Expected store to be created, got nil")
		}
		if store.db == nil {
			t.Error("Expected database connection to be initialized")
		}
	})

	t.Run("creates database file", func(t *testing.T) {
		tempDir := t.TempDir()
		store, err := NewAssignmentStore(tempDir, "file_test")
		if err != nil {
			t.Fatalf("Failed to create store: %v", err)
		}
		defer store.Close()

		dbPath := filepath.Join(tempDir, "score_file_test.duckdb")
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			t.Error("Expected database file to be created")
		}
	})

	t.Run("close removes database file", func(t *testing.T) {
		tempDir := t.TempDir()
		store, err := NewAssignmentStore(tempDir, "close_test")
		if err != nil {
			t.Fatalf("Failed to create store: %v", err)
		}

		dbPath := store.dbPath
		store.Close()

		if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
			t.Error("Expected database file to be removed on close")
		}
	})
}

func TestAssignmentStore_Add(t *testing.T) {
	t.Run("counts added rows", func(t *testing.T) {
		store, cleanup := createTestStore(t)
		defer cleanup()

		for i := 0; i < 5; i++ {
			if err := store.Add(testRow("BOL-0001", "Maersk", "China → United States", 0, 0.1)); err != nil {
				t.Fatalf("Failed to add row: %v", err)
			}
		}

		if store.Len() != 5 {
			t.Errorf("Expected length 5, got %d", store.Len())
		}
	})

	t.Run("stores optional departure timestamp", func(t *testing.T) {
		store, cleanup := createTestStore(t)
		defer cleanup()

		departed := time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)
		withDate := testRow("BOL-DATED", "Maersk", "China → United States", 0, 0.2)
		withDate.DepartureAt = &departed
		store.Add(withDate)
		store.Add(testRow("BOL-UNDATED", "Maersk", "China → United States", 0, 0.3))

		if err := store.Finalize(); err != nil {
			t.Fatalf("Failed to finalize: %v", err)
		}

		rows, _, err := store.Query(context.Background(), QueryParams{Tier: -1, SortColumn: "bol", SortDirection: "asc"}, 1, 10)
		if err != nil {
			t.Fatalf("Failed to query: %v", err)
		}
		if len(rows) != 2 {
			t.Fatalf("Expected 2 rows, got %d", len(rows))
		}

		if rows[0].DepartureAt == nil || !rows[0].DepartureAt.Equal(departed) {
			t.Errorf("Expected departure %v, got %v", departed, rows[0].DepartureAt)
		}
		if rows[1].DepartureAt != nil {
			t.Errorf("Expected nil departure, got %v", rows[1].DepartureAt)
		}
	})
}

func TestAssignmentStore_Query(t *testing.T) {
	// populate fills a store with a mixed batch and finalizes it
	populate := func(t *testing.T, store *AssignmentStore) {
		rows := []ScoredShipment{
			testRow("MAEU100", "Maersk", "China → United States", 0, 0.10),
			testRow("MAEU200", "Maersk", "China → Germany", 1, 0.40),
			testRow("MSCU300", "MSC", "China → United States", 2, 0.75),
			testRow("MSCU400", "MSC", "Germany → Brazil", 3, 0.95),
			testRow("HLCU500", "Hapag-Lloyd", "China → United States", 1, 0.35),
		}
		for _, r := range rows {
			if err := store.Add(r); err != nil {
				t.Fatalf("Failed to add row: %v", err)
			}
		}
		if err := store.Finalize(); err != nil {
			t.Fatalf("Failed to finalize: %v", err)
		}
	}

	t.Run("default sort is score descending", func(t *testing.T) {
		store, cleanup := createTestStore(t)
		defer cleanup()
		populate(t, store)

		rows, total, err := store.Query(context.Background(), QueryParams{Tier: -1}, 1, 10)
		if err != nil {
			t.Fatalf("Failed to query: %v", err)
		}

		if total != 5 {
			t.Errorf("Expected total 5, got %d", total)
		}
		for i := 1; i < len(rows); i++ {
			if rows[i].Score > rows[i-1].Score {
				t.Errorf("Expected descending scores, got %.2f after %.2f", rows[i].Score, rows[i-1].Score)
			}
		}
		if rows[0].BillOfLading != "MSCU400" {
			t.Errorf("Expected highest-risk shipment first, got %s", rows[0].BillOfLading)
		}
	})

	t.Run("filters by tier", func(t *testing.T) {
		store, cleanup := createTestStore(t)
		defer cleanup()
		populate(t, store)

		rows, total, err := store.Query(context.Background(), QueryParams{Tier: 1}, 1, 10)
		if err != nil {
			t.Fatalf("Failed to query: %v", err)
		}

		if total != 2 {
			t.Errorf("Expected 2 tier-1 shipments, got %d", total)
		}
		for _, r := range rows {
			if r.Tier != 1 {
				t.Errorf("Expected tier 1, got %d", r.Tier)
			}
		}
	})

	t.Run("filters by carrier and route", func(t *testing.T) {
		store, cleanup := createTestStore(t)
		defer cleanup()
		populate(t, store)

		params := QueryParams{Tier: -1, Carrier: "MSC", Route: "China → United States"}
		rows, total, err := store.Query(context.Background(), params, 1, 10)
		if err != nil {
			t.Fatalf("Failed to query: %v", err)
		}

		if total != 1 {
			t.Fatalf("Expected 1 match, got %d", total)
		}
		if rows[0].BillOfLading != "MSCU300" {
			t.Errorf("Expected MSCU300, got %s", rows[0].BillOfLading)
		}
	})

	t.Run("filters by minimum score", func(t *testing.T) {
		store, cleanup := createTestStore(t)
		defer cleanup()
		populate(t, store)

		_, total, err := store.Query(context.Background(), QueryParams{Tier: -1, MinScore: 0.5}, 1, 10)
		if err != nil {
			t.Fatalf("Failed to query: %v", err)
		}

		if total != 2 {
			t.Errorf("Expected 2 shipments above 0.5, got %d", total)
		}
	})

	t.Run("searches bill of lading case-insensitively", func(t *testing.T) {
		store, cleanup := createTestStore(t)
		defer cleanup()
		populate(t, store)

		_, total, err := store.Query(context.Background(), QueryParams{Tier: -1, Search: "mscu"}, 1, 10)
		if err != nil {
			t.Fatalf("Failed to query: %v", err)
		}

		if total != 2 {
			t.Errorf("Expected 2 MSCU matches, got %d", total)
		}
	})

	t.Run("paginates correctly", func(t *testing.T) {
		store, cleanup := createTestStore(t)
		defer cleanup()

		for i := 0; i < 100; i++ {
			row := testRow("BOL-"+time.Now().Format("150405")+string(rune('A'+i%26))+string(rune('A'+i/26)), "Maersk", "China → United States", i%4, float64(i)/100)
			if err := store.Add(row); err != nil {
				t.Fatalf("Failed to add row: %v", err)
			}
		}
		if err := store.Finalize(); err != nil {
			t.Fatalf("Failed to finalize: %v", err)
		}

		ctx := context.Background()
		params := QueryParams{Tier: -1}

		page1, total, err := store.Query(ctx, params, 1, 10)
		if err != nil {
			t.Fatalf("Failed to query page 1: %v", err)
		}
		if total != 100 {
			t.Errorf("Expected total 100, got %d", total)
		}
		if len(page1) != 10 {
			t.Errorf("Expected 10 rows on page 1, got %d", len(page1))
		}

		page2, _, err := store.Query(ctx, params, 2, 10)
		if err != nil {
			t.Fatalf("Failed to query page 2: %v", err)
		}
		if len(page2) != 10 {
			t.Errorf("Expected 10 rows on page 2, got %d", len(page2))
		}
		if page2[0].BillOfLading == page1[0].BillOfLading {
			t.Error("Expected page 2 to start at a different row")
		}

		// Page past the end is empty but total is still reported
		beyond, total2, err := store.Query(ctx, params, 11, 10)
		if err != nil {
			t.Fatalf("Failed to query past last page: %v", err)
		}
		if len(beyond) != 0 {
			t.Errorf("Expected empty page past end, got %d rows", len(beyond))
		}
		if total2 != 100 {
			t.Errorf("Expected total 100 past end, got %d", total2)
		}
	})

	t.Run("caches filtered counts", func(t *testing.T) {
		store, cleanup := createTestStore(t)
		defer cleanup()
		populate(t, store)

		ctx := context.Background()
		params := QueryParams{Tier: -1, Carrier: "Maersk"}

		_, total1, err := store.Query(ctx, params, 1, 2)
		if err != nil {
			t.Fatalf("Failed to query: %v", err)
		}
		_, total2, err := store.Query(ctx, params, 2, 2)
		if err != nil {
			t.Fatalf("Failed to query: %v", err)
		}

		if total1 != total2 {
			t.Errorf("Expected same total from cache, got %d and %d", total1, total2)
		}
		if len(store.countCache) == 0 {
			t.Error("Expected count cache to be populated")
		}
	})

	t.Run("handles empty store gracefully", func(t *testing.T) {
		store, cleanup := createTestStore(t)
		defer cleanup()

		if err := store.Finalize(); err != nil {
			t.Fatalf("Failed to finalize empty store: %v", err)
		}

		rows, total, err := store.Query(context.Background(), QueryParams{Tier: -1}, 1, 10)
		if err != nil {
			t.Fatalf("Failed to query empty store: %v", err)
		}
		if total != 0 {
			t.Errorf("Expected total 0, got %d", total)
		}
		if len(rows) != 0 {
			t.Errorf("Expected 0 rows, got %d", len(rows))
		}
	})
}

func TestAssignmentStore_TierSummaries(t *testing.T) {
	t.Run("aggregates per tier", func(t *testing.T) {
		store, cleanup := createTestStore(t)
		defer cleanup()

		low1 := testRow("BOL-1", "Maersk", "China → United States", 0, 0.10)
		low1.ArrivalDelay = 1
		low2 := testRow("BOL-2", "MSC", "China → Germany", 0, 0.20)
		low2.ArrivalDelay = 3
		high := testRow("BOL-3", "MSC", "Germany → Brazil", 3, 0.90)
		high.TierLabel = "Critical"
		high.ArrivalDelay = 14

		for _, r := range []ScoredShipment{low1, low2, high} {
			if err := store.Add(r); err != nil {
				t.Fatalf("Failed to add row: %v", err)
			}
		}
		if err := store.Finalize(); err != nil {
			t.Fatalf("Failed to finalize: %v", err)
		}

		summaries, err := store.TierSummaries(context.Background())
		if err != nil {
			t.Fatalf("Failed to get tier summaries: %v", err)
		}

		if len(summaries) != 2 {
			t.Fatalf("Expected 2 tiers, got %d", len(summaries))
		}
		if summaries[0].Tier != 0 || summaries[0].Shipments != 2 {
			t.Errorf("Expected tier 0 with 2 shipments, got tier %d with %d", summaries[0].Tier, summaries[0].Shipments)
		}
		if summaries[0].AvgScore < 0.149 || summaries[0].AvgScore > 0.151 {
			t.Errorf("Expected tier 0 avg score 0.15, got %f", summaries[0].AvgScore)
		}
		if summaries[0].AvgDelay != 2 {
			t.Errorf("Expected tier 0 avg delay 2, got %f", summaries[0].AvgDelay)
		}
		if summaries[1].Tier != 3 || summaries[1].TierLabel != "Critical" {
			t.Errorf("Expected Critical tier 3, got tier %d label %s", summaries[1].Tier, summaries[1].TierLabel)
		}
	})
}

func BenchmarkAssignmentStore_Add(b *testing.B) {
	store, cleanup := createTestStore(&testing.T{})
	defer cleanup()

	row := testRow("BOL-BENCH", "Maersk", "China → United States", 1, 0.42)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		store.Add(row)
	}
}
