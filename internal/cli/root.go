// Package cli implements the parasim command line.
package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/thebtf/parasim/internal/config"
)

// version is reported by the version command and the worker.
var version = "dev"

// cfg is the configuration loaded before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "parasim",
	Short: "Find and remove similar paragraphs in documents",
	Long: `parasim splits documents into paragraphs, scores every pair for lexical
similarity and groups the pairs above a threshold. It runs as an HTTP
service (serve) or directly on local files (analyze, remove).`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the root command with the given build version.
func Execute(v string) error {
	version = v
	return rootCmd.Execute()
}

// setup loads .env, configures logging and reads settings.
func setup(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	loaded, err := config.Load()
	if err != nil {
		return err
	}
	cfg = loaded

	configureLogging(cfg.LogLevel)
	return nil
}

// configureLogging installs the console logger at the configured level.
func configureLogging(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
