// Package results stores scored shipments in a per-session DuckDB file so
// result sets can be filtered, sorted and paginated without holding the
// whole batch as Go structs.
package results

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/marcboeker/go-duckdb"
)

const insertBatchSize = 10000

// ScoredShipment is one assignment row joined with the shipment fields the
// API exposes for filtering and display.
type ScoredShipment struct {
	BillOfLading string     `json:"billOfLading" msgpack:"bol"`
	Carrier      string     `json:"carrier" msgpack:"carrier"`
	Origin       string     `json:"origin" msgpack:"origin"`
	Destination  string     `json:"destination" msgpack:"destination"`
	Route        string     `json:"route" msgpack:"route"`
	DepartureAt  *time.Time `json:"departureAt,omitempty" msgpack:"departure,omitempty"`
	ArrivalDelay float64    `json:"arrivalDelay" msgpack:"delay"`
	TransitDays  float64    `json:"transitDays" msgpack:"transit"`
	LoadCount    int        `json:"loadCount" msgpack:"load"`
	Cluster      int        `json:"cluster" msgpack:"cluster"`
	Tier         int        `json:"tier" msgpack:"tier"`
	TierLabel    string     `json:"tierLabel" msgpack:"tierLabel"`
	Score        float64    `json:"score" msgpack:"score"`
	IntraDist    float64    `json:"intraDist" msgpack:"intraDist"`
}

// TierSummary aggregates one tier across the whole session.
type TierSummary struct {
	Tier      int     `json:"tier"`
	TierLabel string  `json:"tierLabel"`
	Shipments int     `json:"shipments"`
	AvgScore  float64 `json:"avgScore"`
	AvgDelay  float64 `json:"avgDelay"`
}

// QueryParams defines filters and sorting for assignment queries.
type QueryParams struct {
	Tier          int // -1 = all tiers
	Carrier       string
	Route         string
	MinScore      float64 // 0 = no floor
	Search        string  // Bill of Lading substring
	SortColumn    string  // score, delay, transit, bol
	SortDirection string  // "asc" or "desc"
}

// AssignmentStore is a DuckDB-backed store of one session's scored
// shipments. Writes go through the native Appender in batches; reads are
// plain SQL with a cached filtered count.
type AssignmentStore struct {
	db     *sql.DB
	dbPath string
	count  int
	batch  []ScoredShipment

	countCache   map[string]int
	countCacheMu sync.RWMutex

	// Limits concurrent reads; assignment pages are requested in bursts
	// while the frontend paints tables.
	querySem chan struct{}
}

// NewAssignmentStore creates the store file for a session in tempDir.
func NewAssignmentStore(tempDir, sessionID string) (*AssignmentStore, error) {
	dbPath := filepath.Join(tempDir, fmt.Sprintf("score_%s.duckdb", sessionID))

	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		pragmas := []string{
			"PRAGMA memory_limit='512MB'",
			"PRAGMA threads=4",
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("creating DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)
	_, err = db.Exec(`
		CREATE TABLE assignments (
			bol        VARCHAR NOT NULL,
			carrier    VARCHAR NOT NULL,
			origin     VARCHAR NOT NULL,
			dest       VARCHAR NOT NULL,
			route      VARCHAR NOT NULL,
			departure  BIGINT,
			delay      DOUBLE NOT NULL,
			transit    DOUBLE NOT NULL,
			load_count INTEGER NOT NULL,
			cluster    INTEGER NOT NULL,
			tier       INTEGER NOT NULL,
			tier_label VARCHAR NOT NULL,
			score      DOUBLE NOT NULL,
			intra_dist DOUBLE NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		os.Remove(dbPath)
		return nil, fmt.Errorf("creating assignments table: %w", err)
	}

	return &AssignmentStore{
		db:         db,
		dbPath:     dbPath,
		batch:      make([]ScoredShipment, 0, insertBatchSize),
		countCache: make(map[string]int),
		querySem:   make(chan struct{}, 3),
	}, nil
}

// Add queues one scored shipment for insertion.
func (s *AssignmentStore) Add(row ScoredShipment) error {
	s.batch = append(s.batch, row)
	s.count++
	if len(s.batch) >= insertBatchSize {
		return s.flushBatch()
	}
	return nil
}

// Finalize flushes pending rows and creates the query indexes. Indexes are
// built after the inserts; building them during the append phase slows it
// down considerably.
func (s *AssignmentStore) Finalize() error {
	if err := s.flushBatch(); err != nil {
		return err
	}
	for _, stmt := range []string{
		"CREATE INDEX idx_score ON assignments(score)",
		"CREATE INDEX idx_tier ON assignments(tier)",
		"CREATE INDEX idx_carrier ON assignments(carrier)",
	} {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("index creation failed: %w", err)
		}
	}
	return nil
}

// flushBatch writes queued rows through the native Appender API.
func (s *AssignmentStore) flushBatch() error {
	if len(s.batch) == 0 {
		return nil
	}

	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("getting connection: %w", err)
	}
	defer conn.Close()

	err = conn.Raw(func(driverConn interface{}) error {
		dConn, ok := driverConn.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("failed to cast to duckdb.Conn")
		}

		appender, err := duckdb.NewAppenderFromConn(dConn, "", "assignments")
		if err != nil {
			return fmt.Errorf("creating appender: %w", err)
		}
		defer appender.Close()

		for _, row := range s.batch {
			var departure int64
			if row.DepartureAt != nil {
				departure = row.DepartureAt.UnixMilli()
			}
			if err := appender.AppendRow(
				row.BillOfLading,
				row.Carrier,
				row.Origin,
				row.Destination,
				row.Route,
				departure,
				row.ArrivalDelay,
				row.TransitDays,
				int32(row.LoadCount),
				int32(row.Cluster),
				int32(row.Tier),
				row.TierLabel,
				row.Score,
				row.IntraDist,
			); err != nil {
				return fmt.Errorf("appending row: %w", err)
			}
		}
		return appender.Flush()
	})
	if err != nil {
		return err
	}

	s.batch = s.batch[:0]
	return nil
}

// Len returns the total number of stored assignments.
func (s *AssignmentStore) Len() int {
	return s.count
}

// Query returns a filtered, sorted page of assignments plus the filtered
// total.
func (s *AssignmentStore) Query(ctx context.Context, params QueryParams, page, pageSize int) ([]ScoredShipment, int, error) {
	select {
	case s.querySem <- struct{}{}:
		defer func() { <-s.querySem }()
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	}

	where, args := buildWhereClause(params)

	cacheKey := fmt.Sprintf("%s|%v", where, args)
	s.countCacheMu.RLock()
	total, found := s.countCache[cacheKey]
	s.countCacheMu.RUnlock()

	if !found {
		countQuery := "SELECT COUNT(*) FROM assignments"
		if where != "" {
			countQuery += " WHERE " + where
		}
		if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("count query failed: %w", err)
		}
		s.countCacheMu.Lock()
		s.countCache[cacheKey] = total
		s.countCacheMu.Unlock()
	}

	if total == 0 {
		return []ScoredShipment{}, 0, nil
	}

	query := `SELECT bol, carrier, origin, dest, route, departure, delay, transit,
		load_count, cluster, tier, tier_label, score, intra_dist FROM assignments`
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY " + orderClause(params) + " LIMIT ? OFFSET ?"
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("assignment query failed: %w", err)
	}
	defer rows.Close()

	out := make([]ScoredShipment, 0, pageSize)
	for rows.Next() {
		row, err := scanShipment(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, row)
	}
	return out, total, rows.Err()
}

// TierSummaries aggregates shipment counts and averages per tier.
func (s *AssignmentStore) TierSummaries(ctx context.Context) ([]TierSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tier, tier_label, COUNT(*), AVG(score), AVG(delay)
		FROM assignments GROUP BY tier, tier_label ORDER BY tier
	`)
	if err != nil {
		return nil, fmt.Errorf("tier summary query failed: %w", err)
	}
	defer rows.Close()

	out := make([]TierSummary, 0, 4)
	for rows.Next() {
		var ts TierSummary
		if err := rows.Scan(&ts.Tier, &ts.TierLabel, &ts.Shipments, &ts.AvgScore, &ts.AvgDelay); err != nil {
			return nil, err
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

// Close closes the database and removes the session file.
func (s *AssignmentStore) Close() error {
	err := s.db.Close()
	os.Remove(s.dbPath)
	return err
}

func buildWhereClause(params QueryParams) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if params.Tier >= 0 {
		conds = append(conds, "tier = ?")
		args = append(args, params.Tier)
	}
	if params.Carrier != "" {
		conds = append(conds, "carrier = ?")
		args = append(args, params.Carrier)
	}
	if params.Route != "" {
		conds = append(conds, "route = ?")
		args = append(args, params.Route)
	}
	if params.MinScore > 0 {
		conds = append(conds, "score >= ?")
		args = append(args, params.MinScore)
	}
	if params.Search != "" {
		conds = append(conds, "bol ILIKE ?")
		args = append(args, "%"+params.Search+"%")
	}
	return strings.Join(conds, " AND "), args
}

// orderClause whitelists sort columns; anything unknown falls back to
// score descending.
func orderClause(params QueryParams) string {
	col := "score"
	switch params.SortColumn {
	case "delay":
		col = "delay"
	case "transit":
		col = "transit"
	case "bol":
		col = "bol"
	case "tier":
		col = "tier"
	}
	dir := "DESC"
	if params.SortDirection == "asc" {
		dir = "ASC"
	}
	// Secondary key keeps pagination stable across equal values.
	return fmt.Sprintf("%s %s, bol ASC", col, dir)
}

func scanShipment(rows *sql.Rows) (ScoredShipment, error) {
	var row ScoredShipment
	var departure int64
	if err := rows.Scan(
		&row.BillOfLading, &row.Carrier, &row.Origin, &row.Destination, &row.Route,
		&departure, &row.ArrivalDelay, &row.TransitDays, &row.LoadCount,
		&row.Cluster, &row.Tier, &row.TierLabel, &row.Score, &row.IntraDist,
	); err != nil {
		return ScoredShipment{}, fmt.Errorf("scanning assignment row: %w", err)
	}
	if departure != 0 {
		ts := time.UnixMilli(departure).UTC()
		row.DepartureAt = &ts
	}
	return row, nil
}
