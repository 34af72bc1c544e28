package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"Lifeline/internal/emergency"
	handlers "Lifeline/internal/handler"
	"Lifeline/pkg/backup"
	"Lifeline/pkg/cache"
	"Lifeline/pkg/config"
	"Lifeline/pkg/logger"
	"Lifeline/pkg/metrics"
	"Lifeline/pkg/middleware"
	"Lifeline/pkg/storage"
	"Lifeline/pkg/util"
	"Lifeline/pkg/websocket"
)

func main() {
	config.Load()
	cfg := config.GlobalConfig

	logger.Init(cfg.Log)
	defer logger.Sync()

	db, err := util.NewDatabase(cfg.DBDriver, cfg.DSN, nil)
	if err != nil {
		logger.Error("failed to open database", zap.Error(err))
		os.Exit(1)
	}

	store, err := emergency.NewStore(db)
	if err != nil {
		logger.Error("failed to init emergency store", zap.Error(err))
		os.Exit(1)
	}

	wsConfig := websocket.LoadConfigFromEnv()
	if err := websocket.ValidateConfig(wsConfig); err != nil {
		logger.Error("invalid websocket config", zap.Error(err))
		os.Exit(1)
	}

	hub := websocket.NewHub(wsConfig, store)
	defer hub.Close()

	if cfg.AudioArchiveEnabled {
		hub.SetAudioArchiver(&storage.MinioArchive{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		logger.Info("voice clip archive enabled", zap.String("bucket", cfg.MinioBucket))
	}

	apiCache, err := cache.NewCache(cache.Config{
		Type: cfg.CacheType,
		Redis: cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		},
	})
	if err != nil {
		logger.Error("failed to init cache", zap.Error(err))
		os.Exit(1)
	}
	defer apiCache.Close()

	gin.SetMode(cfg.Mode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(metrics.HTTPMiddleware())

	limiterMw, err := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:       cfg.APIRate,
		SkipPaths:  []string{websocket.RouteWebSocket, "/metrics"},
		AddHeaders: true,
	}, nil)
	if err != nil {
		logger.Error("failed to init rate limiter", zap.Error(err))
		os.Exit(1)
	}
	engine.Use(limiterMw.WithObserver(middleware.NewPrometheusObserver()).Middleware())

	websocket.RegisterRoutes(engine, websocket.NewHandler(hub))
	handlers.NewHandlers(db, store, apiCache).Register(engine)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	defer stopMonitor()
	metrics.StartSystemMonitor(monitorCtx, 15*time.Second)

	if cfg.BackupEnabled {
		if _, err := backup.StartBackupScheduler(); err != nil {
			logger.Error("failed to start backup scheduler", zap.Error(err))
			os.Exit(1)
		}
	}

	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: engine,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server stopped", zap.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}
