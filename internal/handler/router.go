package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/scholarai/internal/middleware"
	"github.com/xxxsen/scholarai/internal/pkg/response"
)

type RouterDeps struct {
	Documents          *DocumentHandler
	Images             *ImageHandler
	Videos             *VideoHandler
	Identity           middleware.IdentityResolver
	RateLimitPerMinute int
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/healthz", func(c *gin.Context) {
		response.Success(c, gin.H{"status": "ok"})
	})

	authGroup := api.Group("")
	authGroup.Use(middleware.Auth(deps.Identity), middleware.RateLimit(deps.RateLimitPerMinute))

	authGroup.POST("/documents/upload", deps.Documents.Upload)
	authGroup.POST("/documents/ask", deps.Documents.Ask)
	authGroup.GET("/documents", deps.Documents.List)
	authGroup.GET("/documents/:id", deps.Documents.Get)
	authGroup.GET("/documents/:id/history", deps.Documents.History)
	authGroup.DELETE("/documents/:id", deps.Documents.Delete)

	authGroup.POST("/images/upload", deps.Images.Upload)
	authGroup.POST("/images/ask", deps.Images.Ask)

	authGroup.POST("/videos/youtube", deps.Videos.YouTube)
	authGroup.POST("/videos/upload", deps.Videos.Upload)
	authGroup.POST("/videos/ask", deps.Videos.Ask)
}
