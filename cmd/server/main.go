package main

import (
	"context"
	"log"

	"github.com/tastediary/syncserver/internal/server"
	"github.com/tastediary/syncserver/internal/server/config"
)

func main() {
	ctx := context.Background()
	cfg := config.LoadConfig()

	app, err := server.NewApp(cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)
}
