package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"weaponcam/internal/app"
	"weaponcam/internal/auth"
	"weaponcam/internal/config"
	"weaponcam/internal/logger"
)

func main() {
	hashPassword := flag.String("hash-password", "", "print the bcrypt hash of a password for PASSWORD and exit")
	flag.Parse()

	if *hashPassword != "" {
		hash, err := auth.HashPassword(*hashPassword)
		if err != nil {
			log.Fatalf("Failed to hash password: %v", err)
		}
		fmt.Println(hash)
		return
	}

	cfg := config.Load()
	logger := logger.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.NewApp(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}

	if err := application.Run(ctx); err != nil {
		log.Fatalf("Server stopped with error: %v", err)
	}
}
