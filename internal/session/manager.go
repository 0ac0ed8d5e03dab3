// Package session manages batch scoring runs over uploaded datasets.
package session

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shipment-insights/backend/internal/ingest"
	"github.com/shipment-insights/backend/internal/models"
	"github.com/shipment-insights/backend/internal/results"
	"github.com/shipment-insights/backend/internal/risk"
)

// MaxSessions limits concurrent sessions to prevent memory exhaustion
const MaxSessions = 10

// SessionMaxAge is how long to keep completed sessions before cleanup
const SessionMaxAge = 30 * time.Minute

// SessionKeepAliveWindow is how long to keep sessions that are actively being used
const SessionKeepAliveWindow = 5 * time.Minute

// shortID safely truncates an ID for logging (handles short IDs gracefully)
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// Manager handles active scoring sessions.
type Manager struct {
	sessions map[string]*SessionState
	mu       sync.RWMutex
	registry *ingest.Registry
	engine   *risk.Engine
	tempDir  string
}

// SessionState holds session metadata, the DuckDB-backed assignment store
// and the in-memory data the stats endpoints aggregate over.
type SessionState struct {
	Session      *models.ScoreSession
	Store        *results.AssignmentStore
	Valid        []models.ShipmentRecord // survivors of normalization, aligned with scoring order
	Excluded     []models.ExcludedRecord
	Clusters     []models.Cluster
	LastAccessed time.Time
}

// NewManager creates a new session manager.
// Uses environment variable DUCKDB_TEMP_DIR for temp directory, defaults to ./data/temp
func NewManager() *Manager {
	tempDir := os.Getenv("DUCKDB_TEMP_DIR")
	if tempDir == "" {
		tempDir = "./data/temp"
	}
	os.MkdirAll(tempDir, 0755)
	return NewManagerWithTempDir(tempDir)
}

// NewManagerWithTempDir creates a session manager with a specific temp directory.
func NewManagerWithTempDir(tempDir string) *Manager {
	return &Manager{
		sessions: make(map[string]*SessionState),
		registry: ingest.GetGlobalRegistry(),
		engine:   risk.NewEngine(),
		tempDir:  tempDir,
	}
}

// StartScoring begins parsing and scoring a dataset file.
func (m *Manager) StartScoring(fileID, filePath string, params risk.Params) (*models.ScoreSession, error) {
	// Clean up old sessions if at limit
	m.cleanupOldSessionsIfNeeded()

	sessionID := uuid.New().String()

	session := models.NewScoreSession(sessionID, fileID)
	session.Status = models.SessionStatusParsing

	state := &SessionState{
		Session:      session,
		LastAccessed: time.Now(),
	}

	m.mu.Lock()
	m.sessions[sessionID] = state
	m.mu.Unlock()

	// Run the pipeline in a background goroutine
	go m.runScore(sessionID, filePath, params)

	snapshot := *session
	return &snapshot, nil
}

func (m *Manager) runScore(sessionID, filePath string, params risk.Params) {
	// Recover from panics to prevent backend crash
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("[Score %s] PANIC recovered: %v\n", shortID(sessionID), r)
			m.updateSessionError(sessionID, fmt.Sprintf("scoring panicked: %v", r))
		}
	}()

	start := time.Now()
	fmt.Printf("[Score %s] Starting run on %s\n", shortID(sessionID), filePath)

	if info, err := os.Stat(filePath); err != nil {
		fmt.Printf("[Score %s] ERROR stat file: %v\n", shortID(sessionID), err)
	} else {
		fmt.Printf("[Score %s] File info: size=%d bytes\n", shortID(sessionID), info.Size())
	}

	p, err := m.registry.FindParser(filePath)
	if err != nil {
		fmt.Printf("[Score %s] ERROR: failed to find parser: %v\n", shortID(sessionID), err)
		m.updateSessionError(sessionID, fmt.Sprintf("failed to find parser: %v", err))
		return
	}

	fmt.Printf("[Score %s] Using parser: %s\n", shortID(sessionID), p.Name())

	// Parsing covers 5-60% of the progress bar; clustering and storage take
	// the rest.
	progressCb := func(rows int, bytesRead, totalBytes int64) {
		progress := 5.0
		if totalBytes > 0 {
			progress = 5.0 + float64(bytesRead)*55.0/float64(totalBytes)
		}
		if progress > 59.9 {
			progress = 59.9
		}

		m.mu.Lock()
		if state, ok := m.sessions[sessionID]; ok {
			state.Session.Progress = progress
			state.Session.RecordCount = rows
		}
		m.mu.Unlock()
	}

	dataset, rowErrors, err := p.ParseWithProgress(filePath, progressCb)
	if err != nil {
		fmt.Printf("[Score %s] ERROR: parse failed: %v\n", shortID(sessionID), err)
		m.updateSessionError(sessionID, fmt.Sprintf("parse failed: %v", err))
		return
	}

	fmt.Printf("[Score %s] Parse complete: %d records, %d row errors\n",
		shortID(sessionID), len(dataset.Records), len(rowErrors))

	m.mu.Lock()
	if state, ok := m.sessions[sessionID]; ok {
		state.Session.Status = models.SessionStatusScoring
		state.Session.Progress = 60
		state.Session.RecordCount = len(dataset.Records)
	}
	m.mu.Unlock()

	result, err := m.engine.Score(dataset.Records, params)
	if err != nil {
		fmt.Printf("[Score %s] ERROR: scoring failed: %v\n", shortID(sessionID), err)
		m.updateSessionError(sessionID, err.Error())
		return
	}

	fmt.Printf("[Score %s] Scoring complete: k=%d, %d scored, %d excluded, convergence=%v\n",
		shortID(sessionID), result.K, len(result.Assignments), len(result.Excluded), result.Converged)

	m.mu.Lock()
	if state, ok := m.sessions[sessionID]; ok {
		state.Session.Progress = 85
	}
	m.mu.Unlock()

	store, err := results.NewAssignmentStore(m.tempDir, sessionID)
	if err != nil {
		fmt.Printf("[Score %s] ERROR: failed to create result storage: %v\n", shortID(sessionID), err)
		m.updateSessionError(sessionID, fmt.Sprintf("failed to create result storage: %v", err))
		return
	}

	if err := m.storeAssignments(store, result); err != nil {
		store.Close()
		fmt.Printf("[Score %s] ERROR: failed to store assignments: %v\n", shortID(sessionID), err)
		m.updateSessionError(sessionID, fmt.Sprintf("failed to store assignments: %v", err))
		return
	}

	elapsed := time.Since(start).Milliseconds()

	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[sessionID]
	if !ok {
		store.Close()
		return
	}

	state.Store = store
	state.Valid = result.Valid
	state.Excluded = result.Excluded
	state.Clusters = result.Clusters
	state.Session.Status = models.SessionStatusComplete
	state.Session.Progress = 100
	state.Session.ValidCount = len(result.Assignments)
	state.Session.ExcludedCount = len(result.Excluded)
	state.Session.ClusterCount = result.K
	state.Session.Inertia = result.Inertia
	state.Session.Converged = result.Converged
	state.Session.TrialsRun = result.TrialsRun
	state.Session.ProcessingTimeMs = elapsed
	state.Session.ParserName = p.Name()

	errs := make([]models.RowError, 0, len(rowErrors))
	for _, e := range rowErrors {
		if e != nil {
			errs = append(errs, *e)
		}
	}
	state.Session.RowErrors = errs
}

// storeAssignments writes the scored batch into the assignment store.
func (m *Manager) storeAssignments(store *results.AssignmentStore, result *risk.Result) error {
	for i, a := range result.Assignments {
		rec := result.Valid[i]
		row := results.ScoredShipment{
			BillOfLading: a.BillOfLading,
			Carrier:      rec.Carrier,
			Origin:       rec.Origin,
			Destination:  rec.Destination,
			Route:        rec.Route,
			DepartureAt:  rec.DepartureAt,
			Cluster:      a.Cluster,
			Tier:         int(a.Tier),
			TierLabel:    a.TierLabel,
			Score:        a.Score,
			IntraDist:    a.IntraDist,
		}
		if rec.ArrivalDelay != nil {
			row.ArrivalDelay = *rec.ArrivalDelay
		}
		if rec.TransitDays != nil {
			row.TransitDays = *rec.TransitDays
		}
		if rec.LoadCount != nil {
			row.LoadCount = *rec.LoadCount
		}
		if err := store.Add(row); err != nil {
			return err
		}
	}
	return store.Finalize()
}

func (m *Manager) updateSessionError(sessionID, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[sessionID]
	if !ok {
		return
	}

	state.Session.Status = models.SessionStatusError
	state.Session.Error = reason
}

// cleanupOldSessionsIfNeeded removes oldest completed sessions if at capacity
func (m *Manager) cleanupOldSessionsIfNeeded() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) < MaxSessions {
		return
	}

	var toDelete []string
	for id, state := range m.sessions {
		if state.Session.Status == models.SessionStatusComplete ||
			state.Session.Status == models.SessionStatusError {
			toDelete = append(toDelete, id)
		}
	}

	toFree := len(m.sessions) - MaxSessions + 1
	deleted := 0
	for _, id := range toDelete {
		if deleted >= toFree {
			break
		}
		if state, ok := m.sessions[id]; ok {
			if state.Store != nil {
				state.Store.Close()
			}
			delete(m.sessions, id)
			deleted++
			fmt.Printf("[Manager] Cleaned up old session %s to free memory\n", shortID(id))
		}
	}
}

// CleanupOldSessions removes sessions older than maxAge,
// but keeps sessions that have been accessed within SessionKeepAliveWindow.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	keepAliveCutoff := time.Now().Add(-SessionKeepAliveWindow)

	for id, state := range m.sessions {
		// Only clean up completed/error sessions
		if state.Session.Status != models.SessionStatusComplete &&
			state.Session.Status != models.SessionStatusError {
			continue
		}

		if state.LastAccessed.After(keepAliveCutoff) {
			continue
		}

		sessionTime := state.LastAccessed
		if sessionTime.IsZero() {
			sessionTime = time.Now().Add(-maxAge - time.Hour) // Force cleanup
		}

		if sessionTime.Before(cutoff) {
			if state.Store != nil {
				state.Store.Close()
			}
			delete(m.sessions, id)
			fmt.Printf("[Manager] Cleaned up aged session %s (last accessed: %s ago)\n",
				shortID(id), time.Since(state.LastAccessed).Round(time.Second))
		}
	}
}

// GetSession returns a snapshot of a session by ID. A copy is returned so
// callers never observe fields mid-update while the scoring goroutine
// mutates the session under the lock.
func (m *Manager) GetSession(id string) (*models.ScoreSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	snapshot := *state.Session
	return &snapshot, true
}

// TouchSession updates the LastAccessed timestamp for a session.
// This should be called whenever a session is actively being used
// to prevent it from being cleaned up.
func (m *Manager) TouchSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return false
	}
	state.LastAccessed = time.Now()
	return true
}

// QueryAssignments returns a filtered, sorted page of scored shipments.
func (m *Manager) QueryAssignments(ctx context.Context, id string, params results.QueryParams, page, pageSize int) ([]results.ScoredShipment, int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok || state.Store == nil {
		return nil, 0, false
	}

	rows, total, err := state.Store.Query(ctx, params, page, pageSize)
	if err != nil {
		if err == context.DeadlineExceeded || err == context.Canceled {
			fmt.Printf("[Manager] QueryAssignments timeout/cancelled for session %s\n", shortID(id))
		} else {
			fmt.Printf("[Manager] QueryAssignments error: %v\n", err)
		}
		return nil, 0, false
	}
	return rows, total, true
}

// GetExclusions returns a page of excluded records for a session.
func (m *Manager) GetExclusions(id string, page, pageSize int) ([]models.ExcludedRecord, int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok || state.Session.Status != models.SessionStatusComplete {
		return nil, 0, false
	}

	total := len(state.Excluded)
	start := (page - 1) * pageSize
	if start < 0 {
		start = 0
	}
	if start >= total {
		return []models.ExcludedRecord{}, total, true
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return state.Excluded[start:end], total, true
}

// GetClusters returns the cluster table for a completed session.
func (m *Manager) GetClusters(id string) ([]models.Cluster, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok || state.Session.Status != models.SessionStatusComplete {
		return nil, false
	}
	return state.Clusters, true
}

// GetTierSummaries returns per-tier aggregates for a completed session.
func (m *Manager) GetTierSummaries(ctx context.Context, id string) ([]results.TierSummary, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok || state.Store == nil {
		return nil, false
	}

	summaries, err := state.Store.TierSummaries(ctx)
	if err != nil {
		fmt.Printf("[Manager] TierSummaries error: %v\n", err)
		return nil, false
	}
	return summaries, true
}

// GetValidRecords returns the normalized records of a completed session.
// The stats endpoints aggregate over these.
func (m *Manager) GetValidRecords(id string) ([]models.ShipmentRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok || state.Session.Status != models.SessionStatusComplete {
		return nil, false
	}
	return state.Valid, true
}

// DeleteSession removes a session and its result storage.
func (m *Manager) DeleteSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return false
	}
	if state.Store != nil {
		state.Store.Close()
	}
	delete(m.sessions, id)
	return true
}
