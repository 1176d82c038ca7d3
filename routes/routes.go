package routes

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"lingoquest/handlers"
	"lingoquest/middleware"
	"lingoquest/models"
	"lingoquest/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

func SetupRoutes(
	router *gin.Engine,
	authHandler *handlers.AuthHandler,
	contentHandler *handlers.ContentHandler,
	gameHandler *handlers.GameHandler,
	hub *services.Hub,
	gameService *services.GameService,
	jwtSecret string,
) {
	// API routes
	api := router.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
		}

		// Protected routes
		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware(jwtSecret))
		{
			protected.GET("/auth/profile", authHandler.GetProfile)

			// Content routes (teacher-owned word banks and role cards)
			contents := protected.Group("/contents")
			{
				contents.GET("", contentHandler.GetTeacherContents)
				contents.POST("", contentHandler.CreateContent)
				contents.GET("/:id", contentHandler.GetContentByID)
				contents.DELETE("/:id", contentHandler.DeleteContent)
			}

			// Session routes
			sessions := protected.Group("/sessions")
			{
				sessions.POST("", gameHandler.CreateSession)
				sessions.POST("/join", gameHandler.JoinGame)
				sessions.POST("/:id/start", gameHandler.StartGame)
				sessions.POST("/:id/submit", gameHandler.SubmitWord)
				sessions.GET("/:id/state", gameHandler.GetGameState)
				sessions.GET("/:id/leaderboard", gameHandler.GetLeaderboard)
				sessions.GET("/:id/messages", gameHandler.GetSessionMessages)
				sessions.GET("/:id/scores", gameHandler.GetScoreHistory)
			}
		}
	}

	// WebSocket endpoint for real-time session events
	router.GET("/ws/:joinCode/:userID", func(c *gin.Context) {
		joinCode := strings.ToLower(c.Param("joinCode"))
		userIDStr := c.Param("userID")
		nickname := c.Query("nickname")

		userID, err := strconv.ParseUint(userIDStr, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
			return
		}

		session, err := gameService.GetSessionByCode(joinCode)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
			return
		}

		if err := validatePlayerAccess(session.TeacherID, session.Players, uint(userID)); err != nil {
			log.Printf("WebSocket access denied for session %s, user %d: %v", joinCode, userID, err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Not a member of this session"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("WebSocket upgrade failed for session %s, user %s: %v", joinCode, userIDStr, err)
			return
		}

		if nickname == "" {
			for _, p := range session.Players {
				if p.UserID == uint(userID) {
					nickname = p.Nickname
					break
				}
			}
		}

		hub.RegisterClient(conn, session.ID, joinCode, uint(userID), nickname)
	})

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// validatePlayerAccess allows the owning teacher and joined players onto
// the session's websocket topic.
func validatePlayerAccess(teacherID uint, players []models.PlayerSession, userID uint) error {
	if teacherID == userID {
		return nil
	}
	for _, player := range players {
		if player.UserID == userID {
			return nil
		}
	}
	return fmt.Errorf("user %d not in session", userID)
}
