// handlers_score.go - Scoring session handlers
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shipment-insights/backend/internal/models"
	"github.com/shipment-insights/backend/internal/results"
	"github.com/shipment-insights/backend/internal/risk"
	"github.com/shipment-insights/backend/internal/storage"
	"github.com/vmihailenco/msgpack/v5"
)

// Pagination defaults for result listings
const (
	DefaultPageSize = 100
	MaxPageSize     = 1000
)

// ScoreHandlerImpl implements the ScoreHandler interface
type ScoreHandlerImpl struct {
	store      storage.Store
	sessionMgr SessionManager
	profile    ProfileHandler
}

// NewScoreHandler creates a new scoring handler instance
func NewScoreHandler(store storage.Store, sessionMgr SessionManager, profile ProfileHandler) ScoreHandler {
	return &ScoreHandlerImpl{
		store:      store,
		sessionMgr: sessionMgr,
		profile:    profile,
	}
}

// HandleStartScore starts an async scoring run over an uploaded dataset
func (h *ScoreHandlerImpl) HandleStartScore(c echo.Context) error {
	var req startScoreRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	if req.FileID == "" {
		return NewValidationError("fileId")
	}

	path, err := h.store.GetFilePath(req.FileID)
	if err != nil {
		return NewNotFoundError("file", req.FileID)
	}

	params, apiErr := req.params(h.currentProfile())
	if apiErr != nil {
		return apiErr
	}

	session, err := h.sessionMgr.StartScoring(req.FileID, path, params)
	if err != nil {
		return NewInternalError("failed to start scoring", err)
	}

	return c.JSON(http.StatusAccepted, session)
}

// HandleScoreStatus returns the current status of a scoring session
func (h *ScoreHandlerImpl) HandleScoreStatus(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	session, ok := h.sessionMgr.GetSession(id)
	if !ok {
		return NewNotFoundError("session", id)
	}

	h.sessionMgr.TouchSession(id)
	return c.JSON(http.StatusOK, session)
}

// HandleSessionKeepAlive refreshes the session's last-accessed timestamp
// so it survives the periodic cleanup while a client is still viewing it
func (h *ScoreHandlerImpl) HandleSessionKeepAlive(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	if !h.sessionMgr.TouchSession(id) {
		return NewNotFoundError("session", id)
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// HandleGetAssignments returns a filtered, sorted page of scored shipments
func (h *ScoreHandlerImpl) HandleGetAssignments(c echo.Context) error {
	rows, total, page, pageSize, apiErr := h.queryAssignments(c)
	if apiErr != nil {
		return apiErr
	}

	return c.JSON(http.StatusOK, assignmentsResponse{
		Items:    rows,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// HandleGetAssignmentsMsgpack is the msgpack variant of HandleGetAssignments
// for large result pages
func (h *ScoreHandlerImpl) HandleGetAssignmentsMsgpack(c echo.Context) error {
	rows, total, page, pageSize, apiErr := h.queryAssignments(c)
	if apiErr != nil {
		return apiErr
	}

	data, err := msgpack.Marshal(assignmentsResponse{
		Items:    rows,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return NewInternalError("failed to encode response", err)
	}

	return c.Blob(http.StatusOK, "application/x-msgpack", data)
}

// HandleGetExclusions returns a page of records excluded during normalization
func (h *ScoreHandlerImpl) HandleGetExclusions(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	page, pageSize := parsePagination(c)

	excluded, total, ok := h.sessionMgr.GetExclusions(id, page, pageSize)
	if !ok {
		return h.sessionNotReady(id)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"items":    excluded,
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
	})
}

// HandleGetClusters returns the cluster table for a completed session
func (h *ScoreHandlerImpl) HandleGetClusters(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	clusters, ok := h.sessionMgr.GetClusters(id)
	if !ok {
		return h.sessionNotReady(id)
	}

	return c.JSON(http.StatusOK, clusters)
}

// HandleGetTierSummaries returns per-tier aggregates for a completed session
func (h *ScoreHandlerImpl) HandleGetTierSummaries(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	summaries, ok := h.sessionMgr.GetTierSummaries(c.Request().Context(), id)
	if !ok {
		return h.sessionNotReady(id)
	}

	return c.JSON(http.StatusOK, summaries)
}

// HandleDeleteSession removes a session and its result storage
func (h *ScoreHandlerImpl) HandleDeleteSession(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	if !h.sessionMgr.DeleteSession(id) {
		return NewNotFoundError("session", id)
	}

	return c.NoContent(http.StatusNoContent)
}

// queryAssignments is the shared implementation behind the JSON and msgpack
// assignment listings.
func (h *ScoreHandlerImpl) queryAssignments(c echo.Context) ([]results.ScoredShipment, int, int, int, *APIError) {
	id := c.Param("sessionId")
	if id == "" {
		return nil, 0, 0, 0, NewValidationError("sessionId")
	}

	page, pageSize := parsePagination(c)

	params := results.QueryParams{
		Tier:          -1,
		Carrier:       c.QueryParam("carrier"),
		Route:         c.QueryParam("route"),
		Search:        c.QueryParam("search"),
		SortColumn:    c.QueryParam("sortBy"),
		SortDirection: c.QueryParam("sortDir"),
	}
	if v := c.QueryParam("tier"); v != "" {
		tier, err := strconv.Atoi(v)
		if err != nil {
			return nil, 0, 0, 0, NewValidationError("tier")
		}
		params.Tier = tier
	}
	if v := c.QueryParam("minScore"); v != "" {
		minScore, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, 0, 0, 0, NewValidationError("minScore")
		}
		params.MinScore = minScore
	}

	h.sessionMgr.TouchSession(id)

	rows, total, ok := h.sessionMgr.QueryAssignments(c.Request().Context(), id, params, page, pageSize)
	if !ok {
		return nil, 0, 0, 0, h.sessionNotReady(id)
	}

	return rows, total, page, pageSize, nil
}

// sessionNotReady distinguishes an unknown session from one whose results
// are not available yet.
func (h *ScoreHandlerImpl) sessionNotReady(id string) *APIError {
	session, ok := h.sessionMgr.GetSession(id)
	if !ok {
		return NewNotFoundError("session", id)
	}
	if session.Status == models.SessionStatusError {
		return NewUnprocessableError(session.Error)
	}
	return NewConflictError("scoring is still in progress")
}

func (h *ScoreHandlerImpl) currentProfile() *models.ScoringProfile {
	if h.profile != nil {
		return h.profile.Current()
	}
	return models.DefaultScoringProfile()
}

func parsePagination(c echo.Context) (int, int) {
	page := 1
	pageSize := DefaultPageSize
	if v := c.QueryParam("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}
	if v := c.QueryParam("pageSize"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			pageSize = n
		}
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// Request/Response types

type startScoreRequest struct {
	FileID          string             `json:"fileId"`
	K               int                `json:"k"`
	Trials          int                `json:"trials"`
	MaxIterations   int                `json:"maxIterations"`
	TierCount       int                `json:"tierCount"`
	Seed            int64              `json:"seed"`
	DuplicatePolicy string             `json:"duplicatePolicy"`
	TierStrategy    string             `json:"tierStrategy"` // "population" or "width"
	FeatureWeights  map[string]float64 `json:"featureWeights"`
	TierLabels      []string           `json:"tierLabels"`
}

// params builds the engine configuration for this run. The active scoring
// profile supplies defaults; request fields override it.
func (r *startScoreRequest) params(profile *models.ScoringProfile) (risk.Params, *APIError) {
	p := risk.Params{
		K:               r.K,
		Trials:          r.Trials,
		MaxIterations:   r.MaxIterations,
		TierCount:       r.TierCount,
		Seed:            r.Seed,
		DuplicatePolicy: risk.DuplicatePolicy(r.DuplicatePolicy),
		FeatureWeights:  r.FeatureWeights,
		TierLabels:      r.TierLabels,
	}

	if p.FeatureWeights == nil {
		p.FeatureWeights = profile.FeatureWeights
	}
	if p.TierLabels == nil {
		p.TierLabels = profile.TierLabels
	}
	p.ScoreWeights = profile.ScoreWeights

	strategyName := r.TierStrategy
	if strategyName == "" {
		strategyName = profile.TierStrategy
	}
	strategy, ok := tierStrategyByName(strategyName)
	if !ok {
		return risk.Params{}, NewInvalidConfigError("unknown tier strategy: "+strategyName, nil)
	}
	p.TierStrategy = strategy

	p = p.WithDefaults()
	if err := p.Validate(); err != nil {
		var cfgErr *risk.ConfigurationError
		if errors.As(err, &cfgErr) {
			return risk.Params{}, NewInvalidConfigError("invalid scoring parameters", err)
		}
		return risk.Params{}, NewBadRequestError("invalid scoring parameters", err)
	}

	return p, nil
}

func tierStrategyByName(name string) (risk.TierStrategy, bool) {
	switch name {
	case "", "population":
		return risk.PopulationQuantileTiers, true
	case "width":
		return risk.EqualWidthTiers, true
	}
	return nil, false
}

type assignmentsResponse struct {
	Items    []results.ScoredShipment `json:"items" msgpack:"items"`
	Total    int                      `json:"total" msgpack:"total"`
	Page     int                      `json:"page" msgpack:"page"`
	PageSize int                      `json:"pageSize" msgpack:"pageSize"`
}
