package api

import (
	httpSwagger "github.com/swaggo/http-swagger"

	_ "go-insight-pipeline/docs"
	"go-insight-pipeline/internal/api/handler"
	"go-insight-pipeline/pkg/router"
)

// RegisterRoutes wires the job endpoints and swagger UI onto r.
func RegisterRoutes(r *router.Router, jobs handler.Jobs) {
	h := handler.NewJobHandler(jobs)

	r.GET("/api/v1/health", handler.Health)
	r.POST("/api/v1/jobs", h.CreateJob)
	r.GET("/api/v1/jobs", h.ListJobs)
	// More specific routes first
	r.GET("/api/v1/jobs/*/summary", h.GetJobSummary)
	r.GET("/api/v1/jobs/*/errors", h.GetJobErrors)
	r.GET("/api/v1/jobs/*/events", h.StreamJobEvents)
	r.GET("/api/v1/jobs/*/export", h.ExportJob)
	r.POST("/api/v1/jobs/*/clean", h.CleanJob)
	r.POST("/api/v1/jobs/*/deduplicate", h.DeduplicateJob)
	r.POST("/api/v1/jobs/*/undo", h.UndoJob)
	// Generic job route last
	r.GET("/api/v1/jobs/*", h.GetJob)

	r.Mount("/swagger/", httpSwagger.WrapHandler)
}
