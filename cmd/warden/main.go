package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"warden/internal/bot"
	"warden/internal/config"
	"warden/internal/modules/modlog"
	"warden/internal/storage"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	logger, err := config.BuildLogger(cfg.LogLevel)
	if err != nil {
		zap.NewExample().Fatal("logger build failed", zap.Error(err))
	}
	defer func() { _ = logger.Sync() }()

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("storage open failed", zap.Error(err))
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	modLogger := modlog.New(store, logger)

	warden, err := bot.New(cfg, logger, store, modLogger)
	if err != nil {
		logger.Fatal("bot init failed", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := warden.Start(ctx); err != nil {
		logger.Fatal("bot start failed", zap.Error(err))
	}
	logger.Info("warden running", zap.String("db", cfg.DatabasePath))

	if cfg.Health.Enabled {
		go serveHealth(cfg.Health.Addr, logger)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	warden.Close(shutdownCtx)
}

func serveHealth(addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	logger.Info("health endpoint listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("health endpoint stopped", zap.Error(err))
	}
}
