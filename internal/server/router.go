// Package server assembles the HTTP routes of the API.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"fintrack/internal/handlers"
	"fintrack/internal/middleware"
)

// Handlers groups the request handlers mounted by NewRouter.
type Handlers struct {
	Auth         *handlers.AuthHandler
	Accounts     *handlers.AccountHandler
	Categories   *handlers.CategoryHandler
	Transactions *handlers.TransactionHandler
	Budgets      *handlers.BudgetHandler
	Goals        *handlers.GoalHandler
	ML           *handlers.MLHandler
}

// Options configures router-level behavior.
type Options struct {
	// PipelineAPIKey guards the service-to-service routes. Empty rejects every call.
	PipelineAPIKey string
	// Health reports extra fields on /api/health. May be nil.
	Health func() gin.H
	// Swagger mounts the interactive API docs.
	Swagger bool
}

// NewRouter builds the gin engine with middleware and every API route.
func NewRouter(h Handlers, opts Options) *gin.Engine {
	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())
	router.Use(cors())

	if opts.Swagger {
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	router.GET("/api/health", func(c *gin.Context) {
		body := gin.H{"status": "ok"}
		if opts.Health != nil {
			for k, v := range opts.Health() {
				body[k] = v
			}
		}
		c.JSON(http.StatusOK, body)
	})

	v1 := router.Group("/api/v1")

	// Public routes
	auth := v1.Group("/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)

	// Service-to-service routes
	pipeline := v1.Group("/pipeline", middleware.PipelineAuthMiddleware(opts.PipelineAPIKey))
	pipeline.POST("/users/:id/categories/sync", h.Categories.SyncUserCategories)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	protected.GET("/profile", h.Auth.GetProfile)
	protected.GET("/ml/status", h.ML.GetModelStatus)

	accounts := protected.Group("/accounts")
	accounts.POST("", h.Accounts.CreateAccount)
	accounts.GET("", h.Accounts.GetUserAccounts)
	accounts.GET("/:id", h.Accounts.GetAccountByID)
	accounts.PUT("/:id", h.Accounts.UpdateAccount)
	accounts.DELETE("/:id", h.Accounts.DeleteAccount)
	accounts.GET("/:id/transactions", h.Transactions.GetAccountTransactions)

	transactions := protected.Group("/transactions")
	transactions.POST("", h.Transactions.CreateTransaction)
	transactions.GET("", h.Transactions.GetUserTransactions)
	transactions.POST("/predict-category", h.Transactions.PredictCategory)
	transactions.POST("/predict-batch", h.Transactions.PredictBatch)
	transactions.GET("/:id", h.Transactions.GetTransactionByID)
	transactions.PUT("/:id", h.Transactions.UpdateTransaction)
	transactions.DELETE("/:id", h.Transactions.DeleteTransaction)

	categories := protected.Group("/categories")
	categories.POST("", h.Categories.CreateCategory)
	categories.GET("", h.Categories.GetUserCategories)
	categories.POST("/sync", h.Categories.SyncCategories)
	categories.GET("/:id", h.Categories.GetCategoryByID)
	categories.PUT("/:id", h.Categories.UpdateCategory)
	categories.DELETE("/:id", h.Categories.DeleteCategory)

	budgets := protected.Group("/budgets")
	budgets.POST("", h.Budgets.CreateBudget)
	budgets.GET("", h.Budgets.GetBudgets)
	budgets.POST("/reconcile", h.Budgets.ReconcileBudget)
	budgets.GET("/:id", h.Budgets.GetBudget)
	budgets.PUT("/:id", h.Budgets.UpdateBudget)
	budgets.DELETE("/:id", h.Budgets.DeleteBudget)
	budgets.GET("/:id/progress", h.Budgets.GetBudgetProgress)

	goals := protected.Group("/goals")
	goals.POST("", h.Goals.CreateGoal)
	goals.GET("", h.Goals.GetGoals)
	goals.GET("/:id", h.Goals.GetGoal)
	goals.PUT("/:id", h.Goals.UpdateGoal)
	goals.DELETE("/:id", h.Goals.DeleteGoal)

	return router
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
