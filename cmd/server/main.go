package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"query-visualizer/internal/config"
	"query-visualizer/internal/logging"
	"query-visualizer/internal/server"
	"syscall"
)

func main() {
	path := os.Getenv("VISUALIZER_CONFIG")
	if path == "" {
		path = "visualizer.yaml"
	}

	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: os.Stderr})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, cfg); err != nil {
		log.Fatal(err)
	}
}
