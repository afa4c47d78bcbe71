package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"spin-miniapp-backend/internal/config"
	"spin-miniapp-backend/internal/handlers"
	"spin-miniapp-backend/internal/middleware"
	"spin-miniapp-backend/internal/services"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger := newLogger(cfg)
	defer logger.Sync()

	if envErr != nil {
		logger.Info("no .env file found, using environment variables")
	}

	redisService, err := services.NewRedisService(cfg)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisService.Close()

	jwtService := services.NewJWTService(cfg)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := services.NewMetrics(reg)

	players := services.NewPlayerRegistry(cfg, redisService, logger, metrics)
	defer players.CloseAll()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				players.CleanupIdle(30 * time.Minute)
			}
		}
	}()

	authHandler := handlers.NewAuthHandler(redisService, jwtService, logger)
	userHandler := handlers.NewUserHandler(players, redisService, logger)
	gameHandler := handlers.NewGameHandler(players, logger)
	frameHandler := handlers.NewFrameHandler(cfg.AppURL, redisService, redisService, logger, metrics)
	wsHandler := handlers.NewWebSocketHandler(players, logger)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"players": players.Len(),
			"pages":   wsHandler.Hub().Len(),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	router.GET("/.well-known/farcaster.json", frameHandler.Manifest)
	router.POST("/auth/frame", authHandler.Authenticate)

	frame := router.Group("/api")
	{
		frame.GET("/frame", frameHandler.Manifest)
		frame.POST("/frame", frameHandler.Action)
		frame.POST("/webhook", frameHandler.Webhook)
		frame.GET("/webhook/events", frameHandler.RecentEvents)
	}

	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(jwtService))
	protected.Use(middleware.RateLimitMiddleware(redisService, logger))
	{
		protected.GET("/me", userHandler.GetCurrentUser)
		protected.POST("/logout", userHandler.Logout)

		protected.GET("/ws", wsHandler.HandleWebSocket)

		protected.GET("/wallet", gameHandler.GetWallet)
		protected.POST("/wallet/connect", gameHandler.ConnectWallet)
		protected.POST("/wallet/disconnect", gameHandler.DisconnectWallet)
		protected.POST("/spin", gameHandler.Spin)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	reloaded := make(chan struct{})
	go func() {
		wsHandler.Hub().Broadcast(services.NotifyReload, nil)
		close(reloaded)
	}()
	select {
	case <-reloaded:
	case <-time.After(5 * time.Second):
		logger.Warn("reload broadcast did not finish before shutdown")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Env == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic("failed to build logger: " + err.Error())
	}
	return logger
}
