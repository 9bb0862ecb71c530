package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/go-zoox/logger"

	"github.com/go-zoox/gztunnel/core"
)

func main() {
	s, err := core.NewServer(&core.ServerConfig{
		Listen: "127.0.0.1:8080",
		Token:  os.Getenv("GZTUNNEL_TOKEN"),
		Key:    os.Getenv("GZTUNNEL_KEY"),
	})
	if err != nil {
		logger.Fatal("failed to create server: %s", err)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := s.Run(ctx); err != nil {
		logger.Fatal("failed to start server: %s", err)
	}
}
