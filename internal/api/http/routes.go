package http

import (
	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/sidesnap/internal/api/middleware"
)

// Register mounts the API routes on r
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.GET("/metrics/json", h.Stats)

	api := r.Group("/api/snapshots", validParams("id", "panelId"))
	{
		// Multipart framing adds a little on top of the file itself.
		api.POST("", middleware.BodyLimit(h.maxUpload+1<<20), h.UploadSnapshot)
		api.GET("", h.ListSnapshots)
		api.GET("/:id", h.GetSnapshot)
		api.GET("/:id/parsed", h.GetParsedSnapshot)
		api.PUT("/:id", middleware.BodyLimit(h.maxUpload+1<<20), h.ReplaceSnapshot)
		api.DELETE("/:id", h.DeleteSnapshot)
		api.DELETE("/:id/panels/:panelId", h.DeletePanel)
		api.POST("/:id/nodes/delete", h.DeleteNode)
	}
}
