package api

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/codyseavey/cardvault/internal/api/handlers"
	"github.com/codyseavey/cardvault/internal/auth"
	"github.com/codyseavey/cardvault/internal/models"
	"github.com/codyseavey/cardvault/internal/services"
	"github.com/codyseavey/cardvault/internal/storage"
)

// Dependencies are the services the router wires into its handlers
type Dependencies struct {
	DB        *gorm.DB
	Auth      *auth.Service
	Objects   storage.ObjectStore
	Snapshots *services.SnapshotService
	Logger    *zap.SugaredLogger

	// CORSAllowedOrigins defaults to the local dev servers when empty
	CORSAllowedOrigins []string
}

func SetupRouter(deps Dependencies) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger), httpMetrics())
	router.MaxMultipartMemory = models.MaxImageUploadSize + 1<<20

	// CORS configuration - allow origins from config or use defaults
	config := cors.DefaultConfig()
	if len(deps.CORSAllowedOrigins) > 0 {
		config.AllowOrigins = deps.CORSAllowedOrigins
	} else {
		config.AllowOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	config.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	config.AllowCredentials = false // Explicitly set
	router.Use(cors.New(config))

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(deps.Auth, logger)
	cardHandler := handlers.NewCardHandler(deps.DB, logger)
	collectionHandler := handlers.NewCollectionHandler(deps.DB, deps.Snapshots)
	storageHandler := handlers.NewStorageHandler(deps.Objects, logger, models.CardImagesBucket)

	requireAuth := auth.RequireAuth(deps.Auth)

	// API routes
	api := router.Group("/api")
	{
		// Auth routes
		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/signup", authHandler.SignUp)
			authRoutes.POST("/signin", authHandler.SignIn)
			authRoutes.POST("/refresh", authHandler.Refresh)
			authRoutes.POST("/signout", authHandler.SignOut)
			authRoutes.GET("/user", requireAuth, authHandler.GetUser)
			authRoutes.POST("/password", requireAuth, authHandler.UpdatePassword)
		}

		// Card routes
		cards := api.Group("/cards", requireAuth)
		{
			cards.GET("", cardHandler.ListCards)
			cards.POST("", cardHandler.CreateCard)
			cards.DELETE("/:id", cardHandler.DeleteCard)
		}

		// Collection routes
		collection := api.Group("/collection", requireAuth)
		{
			collection.GET("/stats", collectionHandler.GetStats)
			collection.GET("/history", collectionHandler.GetValueHistory)
			collection.POST("/snapshot", collectionHandler.TakeSnapshot)
		}
	}

	// Object storage routes
	objects := router.Group("/storage/v1/object")
	{
		objects.POST("/:bucket/*path", requireAuth, storageHandler.UploadObject)
		objects.GET("/public/:bucket/*path", storageHandler.GetPublicObject)
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router
}
