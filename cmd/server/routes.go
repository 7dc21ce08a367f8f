package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"vaultswap.backend/internal/interfaces/http/handlers"
	"vaultswap.backend/internal/interfaces/http/middleware"
)

type routeDeps struct {
	quoteHandler       *handlers.QuoteHandler
	swapHandler        *handlers.SwapHandler
	walletHandler      *handlers.WalletHandler
	bridgeHandler      *handlers.BridgeHandler
	deploymentHandler  *handlers.DeploymentHandler
	transactionHandler *handlers.TransactionHandler
	healthHandler      *handlers.HealthHandler
	authMiddleware     gin.HandlerFunc
	rateLimit          gin.HandlerFunc
	metrics            http.Handler
}

func applyCORSMiddleware(r *gin.Engine, allowed []string) {
	origins := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		origins[o] = struct{}{}
	}

	r.Use(func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if _, ok := origins[origin]; ok {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, Idempotency-Key, X-Request-ID")
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})
}

func registerRoutes(r *gin.Engine, d routeDeps) {
	r.GET("/health", d.healthHandler.Health)
	if d.metrics != nil {
		r.GET("/metrics", gin.WrapH(d.metrics))
	}

	v1 := r.Group("/api/v1")
	{
		// Public
		v1.POST("/quotes/indicative", d.rateLimit, d.quoteHandler.CreateIndicativeQuote)

		authed := v1.Group("")
		authed.Use(d.authMiddleware)

		quotes := authed.Group("/quotes")
		{
			quotes.POST("", d.rateLimit, d.quoteHandler.CreateQuote)
			quotes.GET("/:id", d.quoteHandler.GetQuote)
		}

		authed.POST("/swaps", middleware.IdempotencyMiddleware(), d.swapHandler.ExecuteSwap)

		transactions := authed.Group("/transactions")
		{
			transactions.GET("", d.transactionHandler.ListTransactions)
			transactions.GET("/:id", d.transactionHandler.GetTransaction)
		}

		wallets := authed.Group("/wallets")
		{
			wallets.POST("", d.walletHandler.GenerateWallet)
			wallets.GET("", d.walletHandler.ListWallets)
			wallets.POST("/import", d.walletHandler.ImportWallet)
			wallets.POST("/archive", d.walletHandler.ArchiveWallet)
			wallets.POST("/reveal", d.rateLimit, d.walletHandler.RevealPrivateKey)
			wallets.POST("/sign-typed-data", d.walletHandler.SignTypedData)
		}

		bridges := authed.Group("/bridge")
		{
			bridges.POST("/quote", d.bridgeHandler.Quote)
			bridges.POST("/deposit", d.bridgeHandler.SubmitDeposit)
			bridges.GET("/status/:depositAddress", d.bridgeHandler.Status)
		}

		admin := authed.Group("/admin")
		admin.Use(middleware.RequireAdmin())
		{
			admin.GET("/deployments", d.deploymentHandler.List)
			admin.POST("/deployments", d.deploymentHandler.Deploy)
			admin.POST("/deployments/verify", d.deploymentHandler.Verify)
		}
	}
}
