package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tasktrack/internal/config"
	"tasktrack/internal/handler"
	"tasktrack/internal/middleware"
	"tasktrack/internal/repository"
	"tasktrack/internal/service"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Server struct {
	Engine *gin.Engine
	DB     *gorm.DB
	Config *config.Config
}

func Init(cfg *config.Config) (*Server, error) {
	// Setup GORM
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName,
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("❌ failed to connect to DB: %w", err)
	}
	log.Println("✅ Connected to database")

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("❌ failed to migrate DB: %w", err)
	}
	log.Println("✅ Migrations applied")

	// Setup Gin
	r := gin.Default()

	// Initialize the engine core
	recorder := service.NewRecorder()
	statusEngine := service.NewStatusEngine(db, recorder, service.ParseBlockerPolicy(cfg.BlockerPolicy))
	graphEngine := service.NewGraphEngine(db, statusEngine, recorder)
	taskService := service.NewTaskService(db, recorder, statusEngine)
	timelineService := service.NewTimelineService(db, cfg.TimelinePageSize)
	userRepo := repository.NewUserRepository(db)

	// Initialize handlers
	userHandler := handler.NewUserHandler(userRepo)
	taskHandler := handler.NewTaskHandler(taskService, statusEngine)
	dependencyHandler := handler.NewDependencyHandler(graphEngine)
	timelineHandler := handler.NewTimelineHandler(timelineService)

	// Public routes
	r.POST("/users", userHandler.Create)
	r.GET("/users/:id", userHandler.GetByID)
	r.GET("/tasks", taskHandler.List)
	r.GET("/tasks/:id", taskHandler.GetByID)
	r.GET("/tasks/:id/history", taskHandler.History)
	r.GET("/tasks/:id/blockers", dependencyHandler.GetBlockers)
	r.GET("/tasks/:id/blocking", dependencyHandler.GetBlocking)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Routes that require an acting user
	acting := r.Group("/")
	acting.Use(middleware.ActorMiddleware())
	{
		// Task routes
		acting.POST("/tasks", taskHandler.Create)
		acting.PATCH("/tasks", taskHandler.BulkUpdate)
		acting.PATCH("/tasks/:id", taskHandler.Update)
		acting.DELETE("/tasks/:id", taskHandler.Delete)
		acting.POST("/tasks/:id/status", taskHandler.SetStatus)
		acting.POST("/tasks/:id/assign", taskHandler.AssignUser)
		acting.DELETE("/tasks/:id/assign", taskHandler.UnassignUser)

		// Dependency routes
		acting.POST("/tasks/:id/dependencies", dependencyHandler.Add)
		acting.DELETE("/tasks/:id/dependencies/:blocker_id", dependencyHandler.Remove)

		// Timeline route
		acting.GET("/timeline", timelineHandler.Get)
	}

	return &Server{
		Engine: r,
		DB:     db,
		Config: cfg,
	}, nil
}

func (s *Server) Run() {
	srv := &http.Server{
		Addr:    ":" + s.Config.ServerPort,
		Handler: s.Engine,
	}

	go func() {
		log.Printf("🚀 Server running on port %s\n", s.Config.ServerPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Failed to listen: %s\n", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %s", err)
	}

	log.Println("✅ Server exited properly")
}
