// Package server configures the HTTP server and routes.
package server

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tabarnam/company-importer/internal/config"
	"github.com/tabarnam/company-importer/internal/handler"
	"github.com/tabarnam/company-importer/internal/importer"
	"github.com/tabarnam/company-importer/internal/middleware"
	"github.com/tabarnam/company-importer/internal/storage"
)

// Deps bundles the constructed dependencies handlers need. Dependencies are
// passed explicitly; no DI container, no magic.
type Deps struct {
	Importer  *importer.Importer
	Companies storage.CompanyRepository
	LLMCalls  storage.LLMCallRepository
}

// RegisterRoutes sets up all HTTP routes on the Gin engine.
func RegisterRoutes(r *gin.Engine, cfg *config.Config, deps Deps, logger *zap.Logger) {
	healthHandler := handler.NewHealthHandler()
	importHandler := handler.NewImportHandler(deps.Importer, logger)
	companyHandler := handler.NewCompanyHandler(deps.Companies, deps.LLMCalls, logger)

	// Public endpoint (no auth)
	r.GET("/healthz", healthHandler.Healthz)

	// CORS applies to the whole API group, including OPTIONS preflights.
	// The catch-all OPTIONS route exists so preflights match a route and
	// reach the CORS middleware instead of the 405 NoMethod handler.
	api := r.Group("/api/v1")
	api.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	api.OPTIONS("/*path", func(c *gin.Context) {})

	authed := api.Group("")
	authed.Use(middleware.APIKeyAuth(cfg.Auth.APIKeys))
	authed.Use(middleware.RateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
	{
		authed.POST("/import", importHandler.Import)
		authed.GET("/import", importHandler.Usage)
		authed.GET("/stats", companyHandler.Stats)
		authed.GET("/companies", companyHandler.Get)
		authed.GET("/sessions/:id/companies", companyHandler.ListSession)
	}
}
