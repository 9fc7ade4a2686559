package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"parley/internal/admin"
	"parley/internal/auth"
	"parley/internal/config"
	"parley/internal/database"
	"parley/internal/hub"
	"parley/internal/observability"
	"parley/internal/presence"
	"parley/internal/repository"
	"parley/internal/server"
	"parley/internal/service"

	"github.com/joho/godotenv"
)

const shutdownTimeout = 5 * time.Second

func main() {
	// .env is optional; real deployments use environment variables.
	_ = godotenv.Load()

	log := observability.GlobalLogger

	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Error("failed to load config", "error", err.Error())
		os.Exit(1)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err.Error())
		os.Exit(1)
	}

	userRepo := repository.NewUserRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	accounts := service.NewAccountService(userRepo, auth.NewBcryptHasher())
	messages := service.NewMessageService(msgRepo)

	rdb := presence.Connect(cfg.RedisURL)
	tracker := presence.NewTracker(rdb, presence.Config{})

	h := hub.NewHub(tracker)
	srv := server.NewServer(cfg, h, accounts, messages)

	if err := srv.Start(); err != nil {
		log.Error("failed to start server", "error", err.Error())
		os.Exit(1)
	}

	var api *admin.API
	if cfg.AdminPort != "" {
		api = admin.NewAPI(cfg, srv, accounts, messages)
		go func() {
			log.Info("admin API listening", "port", cfg.AdminPort)
			if err := api.Listen(); err != nil {
				log.Error("admin API stopped", "error", err.Error())
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	if api != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := api.Shutdown(ctx); err != nil {
			log.Error("admin API shutdown error", "error", err.Error())
		}
		cancel()
	}

	srv.Stop()
	tracker.Stop()

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	log.Info("shutdown complete")
}
