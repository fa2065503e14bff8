package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"minesweeper_coop/internal/config"
	"minesweeper_coop/internal/logger"
	"minesweeper_coop/internal/repository"
	"minesweeper_coop/internal/service"
	"minesweeper_coop/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// Version устанавливается при сборке
var Version = "dev"

func main() {
	cfg := config.Load()

	logger.Init(cfg.LogLevel, cfg.LogFormat == "json")
	log := logger.Get()

	var store repository.Store
	switch cfg.StoreBackend {
	case "memory":
		log.Warn("using in-memory store, state will not survive restart")
		store = repository.NewMemoryStore()
	default:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := client.Ping(pingCtx).Err(); err != nil {
			cancel()
			logger.Fatal("redis unreachable", "addr", cfg.RedisAddr, "error", err)
		}
		cancel()
		defer client.Close()
		store = repository.NewRedisStore(client)
	}

	roomRepo := repository.NewRoomRepository(store)
	playerRepo := repository.NewPlayerRepository(store)
	guard := repository.NewGuard(store)

	hub := ws.NewHub()

	sessions := service.NewPlayerService(playerRepo, roomRepo, hub)
	registry := service.NewRoomService(roomRepo, playerRepo, sessions, hub)
	coop := service.NewCoopMode(roomRepo, sessions, guard, hub)
	pvp := service.NewPvpMode(roomRepo, playerRepo, sessions, guard, hub)
	hub.SetHandler(service.NewCoordinator(registry, sessions, coop, pvp, hub))

	r := gin.Default()

	// CORS: фронт и бэкенд живут на разных доменах
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		}
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": Version})
	})
	r.GET("/ws", ws.HandleWS(hub, cfg.AllowedOrigin))

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: r,
	}

	go func() {
		log.Info("server started", "port", cfg.AppPort, "version", Version, "store", cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", "error", err)
	}

	log.Info("server exited")
}
