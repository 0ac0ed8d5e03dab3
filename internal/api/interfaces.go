// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/shipment-insights/backend/internal/models"
	"github.com/shipment-insights/backend/internal/results"
	"github.com/shipment-insights/backend/internal/risk"
)

// UploadHandler handles dataset file upload operations
type UploadHandler interface {
	HandleUploadFile(c echo.Context) error
	HandleUploadChunk(c echo.Context) error
	HandleCompleteUpload(c echo.Context) error
	HandleUploadBinary(c echo.Context) error
	HandleGetRecentFiles(c echo.Context) error
	HandleGetFile(c echo.Context) error
	HandleDeleteFile(c echo.Context) error
	HandleRenameFile(c echo.Context) error
	HandleUploadJobStatus(c echo.Context) error
}

// ScoreHandler handles scoring session operations
type ScoreHandler interface {
	HandleStartScore(c echo.Context) error
	HandleScoreStatus(c echo.Context) error
	HandleSessionKeepAlive(c echo.Context) error
	HandleGetAssignments(c echo.Context) error
	HandleGetAssignmentsMsgpack(c echo.Context) error
	HandleGetExclusions(c echo.Context) error
	HandleGetClusters(c echo.Context) error
	HandleGetTierSummaries(c echo.Context) error
	HandleDeleteSession(c echo.Context) error
}

// StatsHandler handles aggregate reporting over a completed session
type StatsHandler interface {
	HandleKPIs(c echo.Context) error
	HandleCarrierStats(c echo.Context) error
	HandleRouteStats(c echo.Context) error
	HandleHighRiskRoutes(c echo.Context) error
	HandleBestPerformers(c echo.Context) error
	HandleMonthlyTrends(c echo.Context) error
	HandleCarrierRouteMatrix(c echo.Context) error
}

// ProfileHandler handles the scoring profile configuration
type ProfileHandler interface {
	HandleGetProfile(c echo.Context) error
	HandleUpdateProfile(c echo.Context) error
	Current() *models.ScoringProfile
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// SessionManager defines the interface for scoring session management
// This allows mocking in tests
type SessionManager interface {
	StartScoring(fileID, filePath string, params risk.Params) (*models.ScoreSession, error)
	GetSession(id string) (*models.ScoreSession, bool)
	TouchSession(id string) bool
	QueryAssignments(ctx context.Context, id string, params results.QueryParams, page, pageSize int) ([]results.ScoredShipment, int, bool)
	GetExclusions(id string, page, pageSize int) ([]models.ExcludedRecord, int, bool)
	GetClusters(id string) ([]models.Cluster, bool)
	GetTierSummaries(ctx context.Context, id string) ([]results.TierSummary, bool)
	GetValidRecords(id string) ([]models.ShipmentRecord, bool)
	DeleteSession(id string) bool
}
