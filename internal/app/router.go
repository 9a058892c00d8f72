package app

import (
	"fcr_assist_backend/docs"
	"fcr_assist_backend/internal/config"
	"fcr_assist_backend/internal/middleware"
	"fcr_assist_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}

	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		authGroup.GET("/profile", c.auth.GetProfile)
		authGroup.PUT("/profile", c.auth.UpdateProfile)

		authGroup.GET("/dashboard/stats", c.dashboard.GetStats)

		// Catalog (read-only)
		authGroup.GET("/assessments", c.assessment.List)
		authGroup.GET("/assessments/categories", c.assessment.Categories)
		authGroup.GET("/assessments/:id", c.assessment.Get)

		// Submission lifecycle
		authGroup.POST("/assessments/:id/submission", c.submission.Enter)
		authGroup.PUT("/assessments/:id/submission/answers", c.submission.Notify)
		authGroup.POST("/assessments/:id/submission/save", c.submission.Save)
		authGroup.POST("/assessments/:id/submission/exit", c.submission.Exit)
		authGroup.POST("/assessments/:id/submission/complete", c.submission.Complete)
	}
}
