package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"online_quiz_backend/internal/config"
	"online_quiz_backend/internal/controller"
	"online_quiz_backend/internal/repository"
	"online_quiz_backend/internal/service"
	"online_quiz_backend/pkg/database"
	"online_quiz_backend/pkg/logger"
	"online_quiz_backend/pkg/monitoring"
	"online_quiz_backend/pkg/security"
	"online_quiz_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config *config.Config
	Router *gin.Engine
	DB     *gorm.DB
	Redis  *redis.Client
}

type repositories struct {
	user     *repository.UserRepository
	quiz     *repository.QuizRepository
	question *repository.QuestionRepository
	attempt  *repository.AttemptRepository
}

type services struct {
	auth     *service.AuthService
	user     *service.UserService
	quiz     *service.QuizService
	question *service.QuestionService
	session  *service.SessionService
	report   *service.ReportService
}

type controllers struct {
	auth     *controller.AuthController
	quiz     *controller.QuizController
	question *controller.QuestionController
	attempt  *controller.AttemptController
	report   *controller.ReportController
	health   *controller.HealthController
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:     repository.NewUserRepository(db),
		quiz:     repository.NewQuizRepository(db),
		question: repository.NewQuestionRepository(db),
		attempt:  repository.NewAttemptRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config) *services {
	s := &services{}

	s.auth = service.NewAuthService(repos.user, cfg)
	s.user = service.NewUserService(repos.user)
	s.quiz = service.NewQuizService(repos.quiz, repos.question)
	s.question = service.NewQuestionService(repos.question)
	s.session = service.NewSessionService(repos.attempt, repos.quiz, repos.question)
	s.report = service.NewReportService(repos.quiz, repos.question, repos.attempt, repos.user, s.session)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB) *controllers {
	return &controllers{
		auth:     controller.NewAuthController(s.auth, s.user),
		quiz:     controller.NewQuizController(s.quiz),
		question: controller.NewQuestionController(s.question),
		attempt:  controller.NewAttemptController(s.session, s.report),
		report:   controller.NewReportController(s.report, s.user),
		health:   controller.NewHealthController(db),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.IPRateLimiter(cfg.RateLimit.GlobalMax, time.Minute))

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	repository.SetStorageTimeout(cfg.Database.Timeout())

	if cfg.ForceMigrate || cfg.Server.Mode != "release" {
		if err := database.Migrate(db); err != nil {
			logger.Log.Fatal("Failed to run migrations", zap.Error(err))
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = database.InitRedis(&cfg.Redis)
		if err != nil {
			logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
			log.Fatalf("Failed to initialize redis: %v", err)
		}
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg)
	controllers := app.initControllers(services, db)

	monitoring.Init()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("online-quiz", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		go func() {
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
			}
		}()
	}

	app.registerRoutes(router, controllers, cfg)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Log.Sync()
	log.Println("Server exiting")
}
