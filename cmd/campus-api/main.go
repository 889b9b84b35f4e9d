// campus-api is the Smart Campus backend: data API, auth, realtime feed
// and chatbot proxy in one binary.
//
// RUNNING THE SERVER:
//
//	go run ./cmd/campus-api serve --config=config/local.yaml
//
// or (with the environment variable):
//
//	CONFIG_PATH=config/local.yaml go run ./cmd/campus-api serve
package main

import (
	"fmt"
	"os"

	"github.com/smartcampus/campus-api/internal/config"
	"github.com/smartcampus/campus-api/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "campus-api",
	Short: "Smart Campus API server",
	Long: `campus-api serves the Smart Campus platform: lost and found, events,
clubs, feedback, a realtime change feed and the campus chatbot.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Migrate the database and start the HTTP server",
	RunE:  serve,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema and exit",
	RunE:  migrate,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the YAML config (or set CONFIG_PATH)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the config and builds the logger shared by every command.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	log := logger.NewLogger(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	return cfg, log, nil
}
