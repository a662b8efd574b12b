package handlers

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the API under api. Manual refresh and cleanup are
// and the raw snapshot archive are exposed only when debug is set.
func RegisterRoutes(api *gin.RouterGroup, asteroids *AsteroidHandler, pictures *PictureHandler, system *SystemHandler, debug bool) {
	api.GET("/health", system.Health)
	api.GET("/system/stats", system.Stats)

	asteroidRoutes := api.Group("/asteroids")
	{
		asteroidRoutes.GET("", asteroids.GetAsteroids)
		asteroidRoutes.GET("/stream", asteroids.StreamAsteroids)
		asteroidRoutes.GET("/export", asteroids.ExportAsteroids)
	}

	pictureRoutes := api.Group("/picture-of-day")
	{
		pictureRoutes.GET("", pictures.GetPictureOfDay)
		pictureRoutes.GET("/stream", pictures.StreamPictureOfDay)
	}

	if debug {
		api.POST("/refresh", system.Refresh)
		api.POST("/cleanup", system.Cleanup)
		api.GET("/snapshots/latest", system.LatestSnapshot)
	}
}
