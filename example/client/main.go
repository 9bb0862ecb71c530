package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/go-zoox/logger"

	"github.com/go-zoox/gztunnel/core"
)

func main() {
	c, err := core.NewClient(&core.ClientConfig{
		Listen:    "127.0.0.1:1080",
		Server:    "tcp://127.0.0.1:8080",
		Token:     os.Getenv("GZTUNNEL_TOKEN"),
		Key:       os.Getenv("GZTUNNEL_KEY"),
		Multiplex: true,
	})
	if err != nil {
		logger.Fatal("failed to create client: %s", err)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := c.Run(ctx); err != nil {
		logger.Fatal("failed to start client: %s", err)
	}
}
