package main

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AanchalYadav15/acciguard/broadcast"
	"github.com/AanchalYadav15/acciguard/config"
	"github.com/AanchalYadav15/acciguard/handlers"
	"github.com/AanchalYadav15/acciguard/metrics"
	"github.com/AanchalYadav15/acciguard/middleware"
	"github.com/AanchalYadav15/acciguard/models"
	"github.com/AanchalYadav15/acciguard/services"
)

func newRouter(
	cfg *config.Config,
	pinger handlers.Pinger,
	svc *services.PredictionService,
	events broadcast.Subscriber,
	authService *services.AuthService,
	authHandler *handlers.AuthHandler,
	m *metrics.Metrics,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(m))
	router.Use(middleware.SetupCORS(cfg.CORS))
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/ws", "/metrics"})))

	router.GET("/health", handlers.Health(pinger))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := router.Group("/auth")
	auth.POST("/login", authHandler.Login)
	if cfg.Auth.Enabled {
		auth.POST("/register", middleware.RequireAuth(authService), middleware.RequireRole(models.RoleAdmin), authHandler.Register)
	} else {
		auth.POST("/register", authHandler.Register)
	}

	predictions := handlers.NewPredictionHandler(svc, cfg.Server.MaxUploadBytes)

	writes := router.Group("/")
	if cfg.Auth.Enabled {
		writes.Use(middleware.RequireAuth(authService))
	}
	writes.POST("/predict", predictions.Predict)
	writes.POST("/upload-predict", middleware.RateLimit(cfg.Server.UploadsPerMin), predictions.UploadPredict)

	router.GET("/get-high-risk-areas", predictions.GetHighRiskAreas)
	router.GET("/high-risk-areas.geojson", predictions.GetHighRiskAreasGeoJSON)
	router.GET("/get-stats", predictions.GetStats)
	router.GET("/ws", handlers.LiveWebSocket(svc, events, m))

	return router
}
