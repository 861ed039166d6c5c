package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sa_assessment_backend/internal/config"
	"sa_assessment_backend/internal/controller"
	"sa_assessment_backend/internal/repository"
	"sa_assessment_backend/internal/service"
	"sa_assessment_backend/pkg/database"
	"sa_assessment_backend/pkg/logger"
	"sa_assessment_backend/pkg/monitoring"
	"sa_assessment_backend/pkg/security"
	"sa_assessment_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Mongo           *mongo.Database
	Redis           *redis.Client
	services        *services
	configCallbacks []func(*config.Config)

	workerCancel context.CancelFunc
}

type repositories struct {
	user           *repository.UserRepository
	attempt        *repository.AttemptRepository
	quizContent    *repository.QuizContentRepository
	question       *repository.QuestionRepository
	recommendation *repository.RecommendationRepository
}

type services struct {
	auth           *service.AuthService
	content        *service.ContentService
	storage        service.StorageProvider
	scoring        *service.ScoringService
	attempt        *service.AttemptService
	recommendation *service.RecommendationService
	result         *service.ResultService
}

type controllers struct {
	auth    *controller.AuthController
	quiz    *controller.QuizController
	result  *controller.ResultController
	content *controller.ContentController
	health  *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) ConfigCallbacks() []func(*config.Config) {
	return a.configCallbacks
}

func (a *App) initRepositories(db *gorm.DB, mongoDB *mongo.Database) *repositories {
	return &repositories{
		user:           repository.NewUserRepository(db),
		attempt:        repository.NewAttemptRepository(db),
		quizContent:    repository.NewQuizContentRepository(mongoDB),
		question:       repository.NewQuestionRepository(mongoDB),
		recommendation: repository.NewRecommendationRepository(mongoDB),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) (*services, error) {
	s := &services{}

	storage, err := service.NewStorageProvider(cfg)
	if err != nil {
		return nil, err
	}
	s.storage = storage

	s.auth = service.NewAuthService(repos.user, cfg)
	s.content = service.NewContentService(repos.quizContent, repos.question, rdb, cfg)
	s.scoring = service.NewScoringService(cfg.Scoring)

	modelClient := service.NewOpenAIClient(cfg.AI)
	s.recommendation = service.NewRecommendationService(repos.attempt, repos.user, repos.recommendation, modelClient, cfg)

	var recommender service.RecommendationScheduler
	if cfg.Recommendation.Enabled {
		recommender = s.recommendation
	}
	s.attempt = service.NewAttemptService(repos.attempt, s.content, s.scoring, recommender, cfg)
	s.result = service.NewResultService(s.attempt, repos.recommendation, s.recommendation)

	return s, nil
}

func (a *App) initControllers(s *services, db *gorm.DB, mongoDB *mongo.Database, rdb *redis.Client) *controllers {
	return &controllers{
		auth:    controller.NewAuthController(s.auth),
		quiz:    controller.NewQuizController(s.content, s.attempt),
		result:  controller.NewResultController(s.result, s.attempt),
		content: controller.NewContentController(s.content, s.storage),
		health:  controller.NewHealthController(db, mongoDB, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	maxRequests := cfg.RateLimit.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 1000
	}
	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	if window <= 0 {
		window = time.Minute
	}
	router.Use(security.RateLimiter(maxRequests, window))

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func (a *App) startBackgroundTasks(s *services) {
	if !a.Config.Recommendation.Enabled {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.workerCancel = cancel
	s.recommendation.StartWorker(ctx)
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	mongoDB, err := database.InitMongo(&cfg.Mongo)
	if err != nil {
		logger.Log.Fatal("Failed to initialize mongodb", zap.Error(err))
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Mongo:  mongoDB,
		Redis:  rdb,
	}

	repos := app.initRepositories(db, mongoDB)
	services, err := app.initServices(repos, cfg, rdb)
	if err != nil {
		logger.Log.Fatal("Failed to initialize services", zap.Error(err))
	}
	app.services = services
	controllers := app.initControllers(services, db, mongoDB, rdb)

	monitoring.Init()

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		if _, err := tracing.InitTracer("sa-assessment", cfg.Tracing.CollectorEndpoint); err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == "" || cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	app.startBackgroundTasks(services)

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

	// 等待中断信号优雅地关闭服务器
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	if a.workerCancel != nil {
		a.workerCancel()
		a.services.recommendation.WaitWorker()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
