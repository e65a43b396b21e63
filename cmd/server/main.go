package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"room-relay-backend/internal/config"
	"room-relay-backend/internal/database"
	"room-relay-backend/internal/handler"
	"room-relay-backend/internal/middleware"
	"room-relay-backend/internal/relay"
	"room-relay-backend/internal/repository"
	"room-relay-backend/internal/routes"
	"room-relay-backend/internal/service"
	"room-relay-backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type stores struct {
	rooms  service.RoomStore
	audit  service.AuditLogger
	master service.MasterStore
}

func main() {
	// 1. Load configuration
	cfg := config.LoadConfig()
	setupLogging(cfg)
	logrus.Info("Configuration loaded successfully")

	// 2. Storage
	st, err := openStores(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to open storage")
	}

	redisClient, err := database.ConnectRedis(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to Redis")
	}
	var limiter middleware.Counter
	if redisClient != nil {
		defer redisClient.Close()
		limiter = middleware.NewRedisCounter(redisClient, cfg.Redis.KeyPrefix)
	} else {
		logrus.Warn("REDIS_ADDR not set, rate limiting disabled")
	}

	// 3. Relay core and services
	tokens := utils.NewTokenManager(cfg.JWT.Secret, cfg.JWT.TokenExpiry)
	registry := relay.NewRegistry()
	enforcer := relay.NewEnforcer(st.rooms, registry, cfg.Relay.JoinTTL)
	rel := relay.NewRelay(st.rooms, registry, enforcer, tokens, relay.Options{
		PollInterval:     cfg.Relay.PollInterval,
		HandshakeTimeout: cfg.Relay.HandshakeTimeout,
	})

	authService := service.NewAuthService(st.master, tokens, st.audit)
	roomService := service.NewRoomService(st.rooms, registry, enforcer, st.audit, cfg.Relay.JoinTTL)
	guestService := service.NewGuestService(st.rooms, st.audit)
	workerService := service.NewWorkerService(enforcer, cfg.Relay.SweepInterval)

	if err := authService.Bootstrap(context.Background(), cfg.Auth.MasterPassword); err != nil {
		logrus.WithError(err).Fatal("Failed to initialize master credential")
	}

	// 4. Start background worker in goroutine
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go workerService.Start(ctx)

	// 5. Router
	gin.SetMode(cfg.Server.GinMode)
	r := routes.Setup(cfg, routes.Handlers{
		Auth:  handler.NewAuthHandler(authService),
		Room:  handler.NewRoomHandler(roomService),
		Guest: handler.NewGuestHandler(guestService),
		WS:    handler.NewWSHandler(roomService, rel, cfg.CORS.AllowedOrigins, cfg.Relay.WriteTimeout),
	}, tokens, limiter)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logrus.WithField("port", cfg.Server.Port).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Server forced to shutdown")
	}

	// hijacked websocket connections are not tracked by the server
	for _, roomID := range registry.ActiveRooms() {
		registry.Teardown(roomID, relay.ReasonServerShutdown)
	}
	logrus.Info("Server exited")
}

func setupLogging(cfg *config.Config) {
	if cfg.Server.GinMode == gin.ReleaseMode {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logrus.WithField("level", cfg.Log.Level).Warn("Invalid LOG_LEVEL, using info")
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

func openStores(cfg *config.Config) (*stores, error) {
	if cfg.Database.Driver == "memory" {
		logrus.Warn("Using in-memory storage; all rooms are lost on restart")
		return &stores{
			rooms:  repository.NewMemoryRoomRepo(),
			audit:  repository.NewMemoryAuditRepo(),
			master: repository.NewMemoryAuthRepo(),
		}, nil
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, err
	}
	return &stores{
		rooms:  repository.NewRoomRepo(db),
		audit:  repository.NewAuditRepo(db),
		master: repository.NewAuthRepo(db),
	}, nil
}
