package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	appcfg "github.com/roomchess/roomchess/internal/config"
	"github.com/roomchess/roomchess/internal/httpapi"
	"github.com/roomchess/roomchess/internal/identity"
	"github.com/roomchess/roomchess/internal/obslog"
	"github.com/roomchess/roomchess/internal/registry"
	"github.com/roomchess/roomchess/internal/store"
	"github.com/roomchess/roomchess/internal/users"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer logger.Sync()

	rdb, err := store.Open(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis_connect_failed", zap.Error(err))
	}
	boards := store.New(rdb, logger)
	defer boards.Close()

	issuer, err := identity.NewIssuer(cfg.SecretKey)
	if err != nil {
		logger.Fatal("identity_init_failed", zap.Error(err))
	}

	var usersRepo *users.Repository
	if cfg.DatabaseURL != "" {
		usersRepo, err = users.NewRepository(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("users_repo_init_failed", zap.Error(err))
		}
		defer usersRepo.Close()
	} else {
		logger.Info("users_repo_disabled")
	}

	reg := registry.New(boards, logger)
	defer reg.Stop()

	api := httpapi.New(reg, boards, issuer, usersRepo, logger)
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server_listening", zap.String("addr", cfg.Addr()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server_failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("server_stopping")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("server_shutdown_incomplete", zap.Error(err))
	}
}
