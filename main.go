package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"lingoquest/config"
	"lingoquest/handlers"
	"lingoquest/middleware"
	"lingoquest/models"
	"lingoquest/routes"
	"lingoquest/services"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database models
	err = db.AutoMigrate(
		&models.User{},
		&models.Content{},
		&models.WordBankEntry{},
		&models.RoleCard{},
		&models.GameSession{},
		&models.PlayerSession{},
		&models.ChatMessage{},
		&models.ScoreRecord{},
	)
	if err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize Redis
	redisClient := config.InitRedis(cfg)

	// Initialize WebSocket hub
	hub := services.NewHub()
	go hub.Run()

	// Initialize services
	authService := services.NewAuthService(db, cfg.JWTSecret)
	contentService := services.NewContentService(db)
	registry := services.NewSessionRegistry()
	scoring := services.NewScoringPipeline(db)
	grader := services.NewAnalysisGateway(cfg.AnalysisURL, cfg.AnalysisTimeout, cfg.RoleCheckTimeout, cfg.AnalysisMaxRetries, cfg.AnalysisCacheTTL)
	matcher := services.NewWordBankMatcher(grader)
	gameService := services.NewGameService(db, redisClient, registry, scoring, grader, matcher, hub, cfg.DefaultTurnSeconds, cfg.DefaultTurnCycles)
	hub.SetGameService(gameService)

	// Start the turn scheduler sweep
	scheduler := services.NewTurnScheduler(registry, gameService)
	scheduler.Start()

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	contentHandler := handlers.NewContentHandler(contentService)
	gameHandler := handlers.NewGameHandler(gameService)

	// Setup Gin router
	router := gin.Default()

	// Add CORS middleware
	router.Use(middleware.CORS())

	// Setup routes
	routes.SetupRoutes(router, authHandler, contentHandler, gameHandler, hub, gameService, cfg.JWTSecret)

	// Stop the scheduler cleanly on SIGINT/SIGTERM
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		scheduler.Stop()
		os.Exit(0)
	}()

	// Start server
	log.Printf("Server starting on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
