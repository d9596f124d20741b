package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/auth"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/config"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/handler"
	middlewarepkg "github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/middleware"
)

// Handlers aggregates HTTP handlers used by the router.
type Handlers struct {
	Auth        *handler.AuthHandler
	Businesses  *handler.BusinessesHandler
	Reports     *handler.ReportsHandler
	AdminUpload *handler.AdminUploadHandler
	Ingest      *handler.IngestHandler
}

// Register wires all HTTP routes for the API.
func Register(e *echo.Echo, cfg *config.Config, jwtManager *auth.JWTManager, handlers Handlers, logger *zap.Logger) {
	e.GET("/healthz", func(c echo.Context) error {
		return handler.Success(c, http.StatusOK, "service healthy", map[string]any{"status": "ok"})
	})

	api := e.Group("/api")
	api.POST("/auth/login", handlers.Auth.Login)

	api.GET("/dubai-visa-services", handlers.Businesses.Directory)
	api.GET("/businesses", handlers.Businesses.List)
	api.GET("/business-db/:id", handlers.Businesses.Get)
	api.GET("/business-photos/:id", handlers.Businesses.Photos)
	api.GET("/business-reviews/:id", handlers.Businesses.Reviews)
	api.GET("/companies/search", handlers.Businesses.SearchCompanies)

	api.POST("/reports/submit", handlers.Reports.Submit, middlewarepkg.RateLimiter("reports", cfg.RateLimitReports, logger))

	admin := api.Group("/admin", middlewarepkg.JWT(jwtManager), middlewarepkg.RequireRole(auth.RoleAdmin))
	admin.POST("/super-fast-batch-upload", handlers.Ingest.BatchUpload, middlewarepkg.RateLimiter("batch", cfg.RateLimitBatch, logger))
	admin.GET("/progress-stream", handlers.Ingest.ProgressStream)
	admin.GET("/progress", handlers.Ingest.Progress)
	admin.GET("/test-hostinger", handlers.Ingest.TestStore)
	admin.GET("/jobs", handlers.Ingest.Jobs)
	admin.GET("/jobs/:id", handlers.Ingest.Job)
	admin.POST("/jobs/:id/cancel", handlers.Ingest.CancelJob)
	admin.POST("/stop-sync", handlers.Ingest.StopSync)

	admin.POST("/upload-csv", handlers.AdminUpload.UploadCSV)
	admin.POST("/import-places", handlers.AdminUpload.ImportPlaces)

	admin.GET("/reports", handlers.Reports.List)
	admin.PATCH("/reports/:id", handlers.Reports.Moderate)
}
