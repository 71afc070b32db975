package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/avdeevdmitrykrsk/payment-service/internal/api"
)

func registerSystemRoutes(router *gin.Engine, db *sqlx.DB) {
	router.GET("/health", Health)
	router.GET("/ready", Ready(db))
	router.GET("/metrics", Metrics())
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, api.HealthResponse{Status: "ok"})
}

// Ready reports whether the database is reachable.
func Ready(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, api.ErrorResponse{Error: "database unreachable"})
			return
		}
		c.JSON(http.StatusOK, api.HealthResponse{Status: "ready"})
	}
}

func Metrics() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
