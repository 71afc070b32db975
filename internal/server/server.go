package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/avdeevdmitrykrsk/payment-service/internal/auth"
	"github.com/avdeevdmitrykrsk/payment-service/internal/config"
	"github.com/avdeevdmitrykrsk/payment-service/internal/payment"
	"github.com/avdeevdmitrykrsk/payment-service/internal/signature"
	"github.com/avdeevdmitrykrsk/payment-service/internal/user"
)

type Server struct {
	router *gin.Engine
	http   *http.Server
	db     *sqlx.DB
	config *config.Config
}

func New(db *sqlx.DB, cfg *config.Config) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(RequestLoggingMiddleware())
	router.Use(MetricsMiddleware())
	router.Use(corsMiddleware())
	router.Use(RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst))

	signer := signature.NewSigner(cfg.PaymentSecret)
	store := payment.NewStore(db, cfg.LockTimeout)
	paymentService := payment.NewService(store, signer)
	paymentHandler := payment.NewHandler(paymentService)

	userRepo := user.NewRepository(db)
	userHandler := user.NewHandler(userRepo, paymentService, cfg.JWTSecret)

	router.POST("/auth/login", userHandler.Login)

	authMiddleware := auth.AuthMiddleware(cfg.JWTSecret)

	api := router.Group("/api")
	{
		// The payment notification endpoint authenticates by signature,
		// not by bearer token.
		api.POST("/payment", paymentHandler.HandlePayment)

		api.GET("/payment", authMiddleware, paymentHandler.ListPayments)
		api.GET("/account", authMiddleware, paymentHandler.ListAccounts)

		admin := api.Group("/admin")
		admin.Use(authMiddleware, auth.RequireRole(user.RoleAdmin))
		{
			admin.POST("/users", userHandler.CreateUser)
			admin.GET("/users", userHandler.ListUsers)
			admin.GET("/users/:userID/accounts", userHandler.ListUserAccounts)
		}
	}

	registerSystemRoutes(router, db)

	return &Server{
		router: router,
		db:     db,
		config: cfg,
	}
}

func (s *Server) Start(port string) error {
	s.http = &http.Server{
		Addr:              ":" + port,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
