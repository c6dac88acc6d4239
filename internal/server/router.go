package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/diegobr89/immich/internal/handlers"
	"github.com/diegobr89/immich/internal/middleware"
)

type RouterConfig struct {
	AuthMiddleware *middleware.AuthMiddleware
	AlbumHandler   *handlers.AlbumHandler
	JobHandler     *handlers.JobHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:2283",
			"http://localhost:3000",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)

	// ===============
	// || Protected ||
	// ===============
	protected := router.Group("/api")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	// Albums
	protected.POST("/albums", cfg.AlbumHandler.Create)
	protected.GET("/albums", cfg.AlbumHandler.List)
	protected.GET("/albums/:id", cfg.AlbumHandler.Get)
	protected.PATCH("/albums/:id", cfg.AlbumHandler.Update)
	protected.DELETE("/albums/:id", cfg.AlbumHandler.Delete)
	protected.PUT("/albums/:id/assets", cfg.AlbumHandler.AddAssets)
	protected.DELETE("/albums/:id/assets", cfg.AlbumHandler.RemoveAssets)
	protected.PUT("/albums/:id/people", cfg.AlbumHandler.AddPeople)
	// Jobs
	protected.POST("/jobs/smart-album-match", cfg.JobHandler.TriggerSmartAlbumMatch)

	return router
}
