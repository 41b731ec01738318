package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"github.com/dkurganov/voicediary/internal/server"
	"github.com/dkurganov/voicediary/internal/server/config"
)

func main() {

	// Optional .env for local development; absence is fine.
	_ = godotenv.Load()

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := server.NewApp(ctx, cfg)

	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)

}
