// cmd/server/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Corphon/BookFlow/internal/app"
	"github.com/Corphon/BookFlow/internal/config"
	"github.com/Corphon/BookFlow/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ failed to load config: %v", err)
	}

	if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
		log.Fatalf("❌ failed to create log directory %s: %v", cfg.LogDir, err)
	}
	logger, err := utils.NewLogger(cfg.LogMode, cfg.LogFile())
	if err != nil {
		log.Fatalf("❌ failed to initialise logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("🚀 starting BookFlow server", "port", cfg.Port, "backend", cfg.StoreBackend, "debug", cfg.DebugMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("❌ failed to initialise application", "error", err)
	}
	defer application.Close()

	logger.Info("🔗 listening", "url", "http://localhost:"+cfg.Port)
	if err := application.Run(ctx); err != nil {
		logger.Error("❌ server stopped with error", "error", err)
		return
	}
	logger.Info("✅ server shut down gracefully")
}
