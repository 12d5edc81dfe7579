package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"buyerportal/cmd"
	"buyerportal/internal/config"
	"buyerportal/internal/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Commands load and validate their own configuration; this only sets up logging.
	cfg, err := config.Load()
	if err != nil {
		if err := logger.Setup(logger.DefaultConfig()); err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
	} else {
		if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
	}

	log := logger.WithComponent("main")
	log.Debug().Msg("Starting buyerportal")

	cmd.Execute()

	log.Debug().Msg("buyerportal shutdown")
	os.Exit(0)
}
