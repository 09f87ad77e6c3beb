package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"ridehail/internal/config"
	handlers "ridehail/internal/handlers/shared"
	"ridehail/internal/middleware"
	"ridehail/internal/realtime"
	"ridehail/internal/repositories/interfaces"
	"ridehail/internal/repositories/memory"
	"ridehail/internal/repositories/mongodb"
	"ridehail/internal/services"
	"ridehail/pkg/cache"
	"ridehail/pkg/database"
	"ridehail/pkg/logger"
	"ridehail/pkg/maps"
	"ridehail/pkg/push"
	"ridehail/pkg/websocket"
	"ridehail/routes"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type repositories struct {
	rides  interfaces.RideRepository
	riders interfaces.RiderRepository
	users  interfaces.UserRepository
	ping   func(ctx context.Context) error
	close  func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := logger.NewLogger(&logger.Config{
		Level:      logger.LogLevel(cfg.App.LogLevel),
		Format:     cfg.App.LogFormat,
		Output:     cfg.App.LogOutput,
		TimeFormat: time.RFC3339,
		AppName:    cfg.App.Name,
		Version:    cfg.App.Version,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repos, err := setupRepositories(ctx, cfg, appLogger)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize storage")
	}
	defer repos.close()

	hub := websocket.NewHub(appLogger)
	registry := realtime.NewRegistry()
	router := realtime.NewRouter(registry, hub, repos.rides, repos.riders, appLogger)

	notifier := services.NewNotificationService(setupPush(ctx, cfg, appLogger), repos.users, appLogger)
	fares := services.NewFareService(setupRoutes(cfg, appLogger), appLogger)
	timeout := cfg.Realtime.OperationTimeout

	rideService := services.NewRideService(repos.rides, repos.riders, repos.users, router, notifier, fares, appLogger, timeout)
	realtimeService := services.NewRealtimeService(router, repos.rides, repos.riders, appLogger, timeout)

	socketHandler := handlers.NewSocketHandler(rideService, realtimeService, appLogger)
	wsHandler := websocket.NewHandler(hub, socketHandler, websocket.Options{
		ReadBufferSize:   cfg.WebSocket.ReadBufferSize,
		WriteBufferSize:  cfg.WebSocket.WriteBufferSize,
		SendBufferSize:   cfg.WebSocket.SendBufferSize,
		MaxMessageSize:   cfg.WebSocket.MaxMessageSize,
		HandshakeTimeout: cfg.WebSocket.HandshakeTimeout,
		WriteWait:        cfg.WebSocket.WriteWait,
		PongWait:         cfg.WebSocket.PongTimeout,
		AllowedOrigins:   cfg.WebSocket.AllowedOrigins,
	}, appLogger)
	rideHandler := handlers.NewRideHandler(rideService, realtimeService)

	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestIDMiddleware())
	engine.Use(middleware.LoggingMiddleware(appLogger))
	engine.Use(middleware.MetricsMiddleware())
	engine.Use(middleware.CORSMiddleware(cfg.Security.CORSAllowedOrigins))

	v1 := engine.Group("/api/v1")
	{
		routes.SetupRideRoutes(v1, rideHandler, cfg.Security.JWTSecret)
	}
	routes.SetupRealtimeRoutes(engine, cfg.WebSocket.Path, wsHandler, cfg.Security.JWTSecret)

	engine.GET("/health", func(c *gin.Context) {
		pingCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status, code := "healthy", http.StatusOK
		if err := repos.ping(pingCtx); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":   status,
			"version":  cfg.App.Version,
			"sessions": registry.SessionCount(),
		})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.App.Host, cfg.App.Port),
		Handler: engine,
	}

	go func() {
		appLogger.Infof("Server starting on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down")

	closed := realtimeService.Shutdown()
	appLogger.WithField("sessions", closed).Info("Realtime sessions closed")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server shutdown failed")
	}
}

func setupRepositories(ctx context.Context, cfg *config.Config, appLogger *logger.Logger) (*repositories, error) {
	if cfg.Database.Driver == config.DatabaseDriverMemory {
		appLogger.Warn("Using in-memory storage, data is lost on restart")
		return &repositories{
			rides:  memory.NewRideRepository(),
			riders: memory.NewRiderRepository(),
			users:  memory.NewUserRepository(),
			ping:   func(context.Context) error { return nil },
			close:  func() {},
		}, nil
	}

	db, err := database.NewMongoDB(&database.DatabaseConfig{
		URI:            cfg.Database.URI,
		Database:       cfg.Database.Database,
		MaxPoolSize:    cfg.Database.MaxPoolSize,
		MinPoolSize:    cfg.Database.MinPoolSize,
		ConnectTimeout: cfg.Database.ConnectTimeout,
		SocketTimeout:  cfg.Database.SocketTimeout,
	})
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db.Database, appLogger).Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	var readCache cache.Cache
	closeCache := func() {}
	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedisCache(&cache.RedisConfig{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			appLogger.WithError(err).Warn("Redis unavailable, continuing without read cache")
		} else {
			readCache = redisCache
			closeCache = func() { redisCache.Close() }
		}
	}

	return &repositories{
		rides:  mongodb.NewRideRepository(db.Database, readCache, cfg.Redis.RideCacheTTL),
		riders: mongodb.NewRiderRepository(db.Database, readCache, cfg.Redis.RideCacheTTL),
		users:  mongodb.NewUserRepository(db.Database),
		ping:   db.Ping,
		close: func() {
			closeCache()
			db.Close()
		},
	}, nil
}

func setupPush(ctx context.Context, cfg *config.Config, appLogger *logger.Logger) push.PushProvider {
	if !cfg.Push.Enabled {
		return nil
	}
	provider, err := push.NewFCMProvider(ctx, cfg.Push.FCM.ProjectID, cfg.Push.FCM.Credentials)
	if err != nil {
		appLogger.WithError(err).Warn("FCM unavailable, push notifications disabled")
		return nil
	}
	return provider
}

func setupRoutes(cfg *config.Config, appLogger *logger.Logger) maps.RouteProvider {
	if cfg.Maps.GoogleMaps.APIKey == "" {
		return nil
	}
	provider, err := maps.NewGoogleMapsProvider(cfg.Maps.GoogleMaps.APIKey)
	if err != nil {
		appLogger.WithError(err).Warn("Google Maps unavailable, using straight-line fare estimates")
		return nil
	}
	return provider
}
