// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"github.com/labstack/echo/v4"
	"github.com/shipment-insights/backend/internal/session"
	"github.com/shipment-insights/backend/internal/storage"
	"github.com/shipment-insights/backend/internal/upload"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store             storage.Store
	SessionMgr        *session.Manager
	UploadMgr         *upload.Manager
	ProfilePath       string
	Version           string
	AllowFileDeletion bool
}

// Handlers holds all handler instances
type Handlers struct {
	Health  HealthHandler
	Upload  UploadHandler
	Score   ScoreHandler
	Stats   StatsHandler
	Profile ProfileHandler
	WS      *WebSocketHandler

	allowFileDeletion bool
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	profile := NewProfileHandler(deps.ProfilePath)
	return &Handlers{
		Health:  NewHealthHandler(deps.Version),
		Upload:  NewUploadHandler(deps.Store, deps.UploadMgr),
		Score:   NewScoreHandler(deps.Store, deps.SessionMgr, profile),
		Stats:   NewStatsHandler(deps.SessionMgr),
		Profile: profile,
		WS:      NewWebSocketHandler(deps.Store, deps.SessionMgr),

		allowFileDeletion: deps.AllowFileDeletion,
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	// Health check
	e.GET("/api/health", handlers.Health.HandleHealth)

	// File upload routes
	uploadGroup := e.Group("/api/files")
	uploadGroup.POST("/upload", handlers.Upload.HandleUploadFile)
	uploadGroup.POST("/upload/chunk", handlers.Upload.HandleUploadChunk)
	uploadGroup.POST("/upload/complete", handlers.Upload.HandleCompleteUpload)
	uploadGroup.POST("/upload/binary", handlers.Upload.HandleUploadBinary)
	uploadGroup.GET("/recent", handlers.Upload.HandleGetRecentFiles)
	uploadGroup.GET("/jobs/:jobId", handlers.Upload.HandleUploadJobStatus)
	uploadGroup.GET("/:id", handlers.Upload.HandleGetFile)
	uploadGroup.PUT("/:id", handlers.Upload.HandleRenameFile)

	// Conditional delete based on config
	if handlers.allowFileDeletion {
		uploadGroup.DELETE("/:id", handlers.Upload.HandleDeleteFile)
	}

	// Scoring session routes
	scoreGroup := e.Group("/api/score")
	scoreGroup.POST("", handlers.Score.HandleStartScore)
	scoreGroup.GET("/:sessionId/status", handlers.Score.HandleScoreStatus)
	scoreGroup.POST("/:sessionId/keepalive", handlers.Score.HandleSessionKeepAlive)
	scoreGroup.GET("/:sessionId/assignments", handlers.Score.HandleGetAssignments)
	scoreGroup.GET("/:sessionId/assignments/msgpack", handlers.Score.HandleGetAssignmentsMsgpack)
	scoreGroup.GET("/:sessionId/exclusions", handlers.Score.HandleGetExclusions)
	scoreGroup.GET("/:sessionId/clusters", handlers.Score.HandleGetClusters)
	scoreGroup.GET("/:sessionId/tiers", handlers.Score.HandleGetTierSummaries)
	scoreGroup.DELETE("/:sessionId", handlers.Score.HandleDeleteSession)

	// Aggregate reporting routes
	statsGroup := e.Group("/api/score/:sessionId/stats")
	statsGroup.GET("/kpis", handlers.Stats.HandleKPIs)
	statsGroup.GET("/carriers", handlers.Stats.HandleCarrierStats)
	statsGroup.GET("/carriers/best", handlers.Stats.HandleBestPerformers)
	statsGroup.GET("/routes", handlers.Stats.HandleRouteStats)
	statsGroup.GET("/routes/high-risk", handlers.Stats.HandleHighRiskRoutes)
	statsGroup.GET("/trends", handlers.Stats.HandleMonthlyTrends)
	statsGroup.GET("/matrix", handlers.Stats.HandleCarrierRouteMatrix)

	// Scoring profile routes
	e.GET("/api/profile", handlers.Profile.HandleGetProfile)
	e.PUT("/api/profile", handlers.Profile.HandleUpdateProfile)
}

// RegisterWebSocketRoutes registers WebSocket routes
func RegisterWebSocketRoutes(e *echo.Echo, handlers *Handlers) {
	e.GET("/api/ws", handlers.WS.HandleWebSocket)
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo) {
	// Use custom error handler
	e.HTTPErrorHandler = ErrorHandler
}
