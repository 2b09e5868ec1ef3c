// offer-service
//
// Issues job offers to candidates and records their single decision.
// HR creates offers behind a session login; each offer gets an unguessable
// single-use token that the candidate uses to accept or reject it exactly
// once. Offer letters are rendered to PDF and mailed by a Redis-backed
// worker; state changes are published to Redis for live dashboards.
//
// Commands:
//
//	serve          HTTP API + gRPC health + letter worker + scheduler
//	dispatch       letter worker only
//	migrate        apply database migrations
//	redrive        move dead-lettered letters back onto the queue
//	hash-password  produce HR_PASSWORD_HASH
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:           "offer-service",
	Short:         "Offer lifecycle service",
	Long:          "offer-service issues single-use offer links and applies each candidate's decision exactly once.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "[offer-service] Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).
		With("service", "offer-service")
}
