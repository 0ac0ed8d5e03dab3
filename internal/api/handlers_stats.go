// handlers_stats.go - Aggregate reporting handlers over a completed session
package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shipment-insights/backend/internal/models"
	"github.com/shipment-insights/backend/internal/stats"
)

// Reporting defaults
const (
	DefaultHighRiskDelay = 5.0
	DefaultMinVolume     = 5
	DefaultMatrixTop     = 10
)

// StatsHandlerImpl implements the StatsHandler interface
type StatsHandlerImpl struct {
	sessionMgr SessionManager
}

// NewStatsHandler creates a new stats handler instance
func NewStatsHandler(sessionMgr SessionManager) StatsHandler {
	return &StatsHandlerImpl{sessionMgr: sessionMgr}
}

// HandleKPIs returns batch-level indicators for a completed session
func (h *StatsHandlerImpl) HandleKPIs(c echo.Context) error {
	records, apiErr := h.records(c)
	if apiErr != nil {
		return apiErr
	}
	return c.JSON(http.StatusOK, stats.ComputeKPIs(records))
}

// HandleCarrierStats returns per-carrier aggregates
func (h *StatsHandlerImpl) HandleCarrierStats(c echo.Context) error {
	records, apiErr := h.records(c)
	if apiErr != nil {
		return apiErr
	}
	return c.JSON(http.StatusOK, stats.CarrierStats(records))
}

// HandleRouteStats returns per-route aggregates with composite risk scores
func (h *StatsHandlerImpl) HandleRouteStats(c echo.Context) error {
	records, apiErr := h.records(c)
	if apiErr != nil {
		return apiErr
	}
	return c.JSON(http.StatusOK, stats.RouteStats(records))
}

// HandleHighRiskRoutes returns routes whose average delay meets a threshold
func (h *StatsHandlerImpl) HandleHighRiskRoutes(c echo.Context) error {
	records, apiErr := h.records(c)
	if apiErr != nil {
		return apiErr
	}

	threshold := DefaultHighRiskDelay
	if v := c.QueryParam("threshold"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return NewValidationError("threshold")
		}
		threshold = t
	}

	return c.JSON(http.StatusOK, stats.HighRiskRoutes(records, threshold))
}

// HandleBestPerformers returns carriers meeting a minimum volume, best
// on-time rate first
func (h *StatsHandlerImpl) HandleBestPerformers(c echo.Context) error {
	records, apiErr := h.records(c)
	if apiErr != nil {
		return apiErr
	}

	minVolume := DefaultMinVolume
	if v := c.QueryParam("minVolume"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return NewValidationError("minVolume")
		}
		minVolume = n
	}

	return c.JSON(http.StatusOK, stats.BestPerformers(records, minVolume))
}

// HandleMonthlyTrends returns departure-month buckets
func (h *StatsHandlerImpl) HandleMonthlyTrends(c echo.Context) error {
	records, apiErr := h.records(c)
	if apiErr != nil {
		return apiErr
	}
	return c.JSON(http.StatusOK, stats.MonthlyTrends(records))
}

// HandleCarrierRouteMatrix returns carrier x route cells for the top
// carriers and routes by volume
func (h *StatsHandlerImpl) HandleCarrierRouteMatrix(c echo.Context) error {
	records, apiErr := h.records(c)
	if apiErr != nil {
		return apiErr
	}

	topCarriers := DefaultMatrixTop
	topRoutes := DefaultMatrixTop
	if v := c.QueryParam("topCarriers"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return NewValidationError("topCarriers")
		}
		topCarriers = n
	}
	if v := c.QueryParam("topRoutes"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return NewValidationError("topRoutes")
		}
		topRoutes = n
	}

	return c.JSON(http.StatusOK, stats.CarrierRouteMatrix(records, topCarriers, topRoutes))
}

// records resolves the session's normalized records, distinguishing unknown
// sessions from incomplete ones.
func (h *StatsHandlerImpl) records(c echo.Context) ([]models.ShipmentRecord, *APIError) {
	id := c.Param("sessionId")
	if id == "" {
		return nil, NewValidationError("sessionId")
	}

	records, ok := h.sessionMgr.GetValidRecords(id)
	if !ok {
		session, exists := h.sessionMgr.GetSession(id)
		if !exists {
			return nil, NewNotFoundError("session", id)
		}
		if session.Status == models.SessionStatusError {
			return nil, NewUnprocessableError(session.Error)
		}
		return nil, NewConflictError("scoring is still in progress")
	}

	h.sessionMgr.TouchSession(id)
	return records, nil
}
