package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"roomhub/internal/app"
	"roomhub/internal/config"
)

func main() {
	configPath := flag.String("config", "", "path to JSON config file")
	mintToken := flag.String("mint-token", "", "print a signed token for the given identity and exit")
	flag.Parse()

	cfg := config.Load(*configPath)

	application, err := app.NewApplication(cfg)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}

	if *mintToken != "" {
		token, err := application.Gate().Mint(*mintToken)
		if err != nil {
			log.Fatalf("token minting failed: %v", err)
		}
		fmt.Println(token)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
