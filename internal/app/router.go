package app

import (
	"online_quiz_backend/docs"
	"online_quiz_backend/internal/config"
	"online_quiz_backend/internal/middleware"
	"online_quiz_backend/internal/model"
	"online_quiz_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	a.registerPublicRoutes(router, c)

	limiter := a.newWindowLimiter(cfg)

	userGroup := router.Group("/api/user")
	userGroup.Use(
		middleware.AuthMiddleware(cfg),
		middleware.RoleMiddleware(model.RoleUser),
		middleware.RateLimitMiddleware(limiter),
	)
	a.registerUserRoutes(userGroup, c)

	adminGroup := router.Group("/api/admin")
	adminGroup.Use(
		middleware.AuthMiddleware(cfg),
		middleware.RoleMiddleware(model.RoleAdmin),
		middleware.RateLimitMiddleware(limiter),
	)
	a.registerAdminRoutes(adminGroup, c)
}

// newWindowLimiter prefers the shared redis counter so limits hold across
// replicas, falling back to an in-process window when redis is not configured.
func (a *App) newWindowLimiter(cfg *config.Config) middleware.WindowLimiter {
	if cfg.Redis.Enabled && a.Redis != nil {
		return middleware.NewRedisWindowLimiter(a.Redis, cfg.RateLimit.MaxRequests, cfg.RateLimit.Window())
	}
	return middleware.NewLocalWindowLimiter(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window())
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.Check)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}

	profile := router.Group("/api")
	profile.Use(middleware.AuthMiddleware(a.Config))
	{
		profile.GET("/profile", c.auth.GetProfile)
	}
}

func (a *App) registerUserRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/quizzes", c.attempt.MyQuizzes)
	rg.POST("/quizzes/:quizId/start", c.attempt.Start)
	rg.GET("/quizzes/:quizId/questions", c.attempt.Paper)
	rg.GET("/quizzes/:quizId/result", c.attempt.Result)
	rg.POST("/attempts/:attemptId/answers", c.attempt.RecordAnswer)
	rg.POST("/attempts/:attemptId/submit", c.attempt.Submit)
	rg.GET("/attempts/:attemptId", c.attempt.Get)
}

func (a *App) registerAdminRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.POST("/quizzes", c.quiz.Create)
	rg.GET("/quizzes", c.quiz.List)
	rg.GET("/quizzes/:id", c.quiz.Get)
	rg.PUT("/quizzes/:id", c.quiz.Update)
	rg.DELETE("/quizzes/:id", c.quiz.Delete)
	rg.POST("/quizzes/:id/questions", c.quiz.MapQuestions)
	rg.GET("/quizzes/:id/attempts", c.report.QuizAttempts)

	rg.POST("/questions", c.question.Create)
	rg.GET("/questions", c.question.List)
	rg.GET("/questions/:id", c.question.Get)
	rg.PUT("/questions/:id", c.question.Update)
	rg.DELETE("/questions/:id", c.question.Delete)

	rg.GET("/attempts/:attemptId", c.report.AttemptDetail)
	rg.GET("/users", c.report.ListUsers)
}
