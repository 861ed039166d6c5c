package app

import (
	"sa_assessment_backend/docs"
	"sa_assessment_backend/internal/config"
	"sa_assessment_backend/internal/middleware"
	"sa_assessment_backend/internal/model"
	"sa_assessment_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 公共路由（无需登录）
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}

	// 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		authGroup.GET("/me", c.auth.Me)

		authGroup.GET("/quizzes/:quizId", c.quiz.GetQuiz)
		authGroup.POST("/quizzes/:quizId/attempts", c.quiz.StartAttempt)

		authGroup.GET("/attempts", c.result.ListAttempts)
		authGroup.GET("/attempts/:attemptId/questions", c.quiz.GetQuestions)
		authGroup.POST("/attempts/:attemptId/submit", c.quiz.Submit)
		authGroup.GET("/attempts/:attemptId/result", c.result.GetResult)
		authGroup.POST("/attempts/:attemptId/recommendation/retry", c.result.RetryRecommendation)
	}

	// 管理员接口：内容包导入
	admin := router.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(cfg), middleware.RoleMiddleware(model.Admin, model.Author))
	{
		admin.POST("/quizzes/import", c.content.ImportBundle)
		admin.POST("/quizzes/import-from-storage", c.content.ImportFromStorage)
	}
}
