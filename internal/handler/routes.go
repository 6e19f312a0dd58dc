package handler

import (
	"github.com/gin-gonic/gin"
)

// Handlers groups the endpoint sets mounted by RegisterRoutes. Nil members
// are skipped so features can be switched off through configuration.
type Handlers struct {
	Timetables *TimetableHandler
	Exports    *ExportHandler
	Metrics    *MetricsHandler
}

// RegisterRoutes mounts system routes at the root and the API under prefix.
func RegisterRoutes(r *gin.Engine, prefix string, h Handlers) {
	if h.Metrics != nil {
		r.GET("/health", h.Metrics.Health)
		r.GET("/ready", h.Metrics.Ready)
		r.GET("/metrics", h.Metrics.Prometheus)
		r.GET("/metrics/summary", h.Metrics.Summary)
	}

	api := r.Group(prefix)
	if h.Timetables != nil {
		timetables := api.Group("/timetables")
		timetables.POST("/generate", h.Timetables.Generate)
		timetables.POST("", h.Timetables.Save)
		timetables.GET("", h.Timetables.List)
		timetables.GET("/:id", h.Timetables.Get)
		timetables.GET("/:id/sessions", h.Timetables.Sessions)
		timetables.POST("/:id/publish", h.Timetables.Publish)
		timetables.DELETE("/:id", h.Timetables.Delete)
		if h.Exports != nil {
			timetables.POST("/:id/exports", h.Exports.Create)
		}
	}
	if h.Exports != nil {
		exports := api.Group("/exports")
		exports.GET("/:id", h.Exports.Status)
		exports.GET("/download/:token", h.Exports.Download)
	}
}
