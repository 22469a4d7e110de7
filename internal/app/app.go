package app

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"flock/internal/aggregator"
	"flock/internal/app/server"
	"flock/internal/config"
	"flock/internal/database"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

const defaultPort = 5000

// Run boots the aggregator: settings, registry store, hub, API routes.
func Run() error {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found. Falling back to system environment variables.")
	}

	log.SetLevel(log.DebugLevel)

	portFlag := flag.Int("port", defaultPort, "Port for the aggregator API")
	flag.Parse()

	config.ReadSettings()

	port := resolvePort(*portFlag)

	if _, err := database.SetupDB(
		database.WithMigrations(database.RegistryMigrations()...),
	); err != nil {
		return fmt.Errorf("failed to set up registry store: %w", err)
	}

	registry := aggregator.NewRegistry(aggregator.NewHub())

	return server.OpenRoutes(port, registry)
}

func resolvePort(fallback int) int {
	if raw := os.Getenv("PORT"); raw != "" {
		if port, err := strconv.Atoi(raw); err == nil && port != 0 {
			return port
		}
		log.Warn("invalid port override", "env", "PORT", "value", raw)
	}
	if cfgPort := config.GetConfig().Server.Port; cfgPort != 0 && fallback == defaultPort {
		return cfgPort
	}
	return fallback
}
