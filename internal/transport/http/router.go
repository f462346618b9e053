package httptransport

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/brightmesh/querycore/internal/repository"
	"github.com/brightmesh/querycore/internal/transport/http/handler"
	"github.com/brightmesh/querycore/internal/transport/http/middleware"
)

// Handlers bundles every entity's HTTP handler so NewRouter's signature
// stays stable as the surface grows.
type Handlers struct {
	Health        *handler.HealthHandler
	Auth          *handler.AuthHandler
	Datasource    *handler.DatasourceHandler
	Query         *handler.QueryHandler
	Run           *handler.RunHandler
	Schedule      *handler.ScheduleHandler
	Visualization *handler.VisualizationHandler
	Dashboard     *handler.DashboardHandler
	Canvas        *handler.CanvasHandler
}

func NewRouter(h Handlers, users repository.UserRepository, jwtKey []byte, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	r.Use(middleware.Metrics())

	r.GET("/healthz", h.Health.Liveness)
	r.GET("/readyz", h.Health.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/auth/register", h.Auth.Register)
	r.POST("/auth/login", h.Auth.Login)

	api := r.Group("/", middleware.Auth(jwtKey), middleware.LoadUser(users, logger))

	ds := api.Group("/datasources")
	ds.POST("", h.Datasource.Create)
	ds.GET("", h.Datasource.List)
	ds.GET("/:id", h.Datasource.Get)
	ds.PUT("/:id", h.Datasource.Update)
	ds.DELETE("/:id", h.Datasource.Delete)
	ds.POST("/:id/test", h.Datasource.Test)
	ds.GET("/:id/schema", h.Datasource.Schema)

	queries := api.Group("/queries")
	queries.POST("", h.Query.Create)
	queries.GET("", h.Query.List)
	queries.GET("/export", h.Query.Export)
	queries.POST("/import", h.Query.Import)
	queries.GET("/:id", h.Query.Get)
	queries.PUT("/:id", h.Query.Update)
	queries.DELETE("/:id", h.Query.Delete)

	runs := api.Group("/runs")
	runs.POST("", h.Run.Create)
	runs.POST("/adhoc", h.Run.CreateAdhoc)
	runs.GET("", h.Run.List)
	runs.GET("/:id", h.Run.Get)
	runs.GET("/:id/result", h.Run.GetResult)
	runs.POST("/:id/cancel", h.Run.Cancel)

	schedules := api.Group("/schedules")
	schedules.POST("", h.Schedule.Create)
	schedules.GET("", h.Schedule.List)
	schedules.GET("/:id", h.Schedule.Get)
	schedules.PUT("/:id", h.Schedule.Update)
	schedules.DELETE("/:id", h.Schedule.Delete)
	schedules.POST("/:id/pause", h.Schedule.Pause)
	schedules.POST("/:id/resume", h.Schedule.Resume)

	visualizations := api.Group("/visualizations")
	visualizations.POST("", h.Visualization.Create)
	visualizations.GET("", h.Visualization.List)
	visualizations.GET("/:id", h.Visualization.Get)
	visualizations.PUT("/:id", h.Visualization.Update)
	visualizations.DELETE("/:id", h.Visualization.Delete)

	dashboards := api.Group("/dashboards")
	dashboards.POST("", h.Dashboard.Create)
	dashboards.GET("", h.Dashboard.List)
	dashboards.GET("/:id", h.Dashboard.Get)
	dashboards.PUT("/:id", h.Dashboard.Update)
	dashboards.DELETE("/:id", h.Dashboard.Delete)
	dashboards.POST("/:id/tiles", h.Dashboard.AddTile)
	dashboards.GET("/:id/tiles", h.Dashboard.ListTiles)
	dashboards.DELETE("/:id/tiles/:tileID", h.Dashboard.DeleteTile)

	canvases := api.Group("/canvases")
	canvases.POST("", h.Canvas.Create)
	canvases.GET("", h.Canvas.List)
	canvases.GET("/:id", h.Canvas.Get)
	canvases.PUT("/:id", h.Canvas.Update)
	canvases.DELETE("/:id", h.Canvas.Delete)

	return r
}
