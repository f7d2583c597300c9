package handler

import (
	"net/http"

	"debitcard_back/pkg/middleware"
	"debitcard_back/pkg/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	service      *service.Service
	allowOrigins []string
}

func NewHandler(service *service.Service, allowOrigins []string) *Handler {
	return &Handler{
		service:      service,
		allowOrigins: allowOrigins,
	}
}

func (h *Handler) InitRoute() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     h.allowOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", middleware.WalletHeader},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	auth := router.Group("/auth")
	{
		auth.GET("/message", h.SignInMessage)
		auth.POST("/session", h.CreateSession)
	}

	api := router.Group("/api")
	{
		api.GET("/config", h.GetConfig)
		api.GET("/price", h.GetPrice)
		api.POST("/price/refresh", h.RefreshPrice)

		account := api.Group("/account", middleware.AuthMiddleware(h.service.Session))
		{
			account.GET("", h.GetAccount)
			account.POST("/reload", h.ReloadBalance)
		}

		topUp := api.Group("/topup", middleware.AuthMiddleware(h.service.Session))
		{
			topUp.GET("", h.GetTopUp)
			topUp.POST("/quote", h.QuoteTopUp)
			topUp.POST("/submit", h.SubmitTopUp)
			topUp.POST("/reject", h.RejectTopUp)
			topUp.DELETE("", h.CancelTopUp)
		}
	}
	return router
}
