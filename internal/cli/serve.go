package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/thebtf/parasim/internal/config"
	"github.com/thebtf/parasim/internal/worker"
)

// shutdownTimeout bounds graceful shutdown of the HTTP service.
const shutdownTimeout = 30 * time.Second

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service",
	Long: `Serves POST /process and POST /remove along with the upload page, health,
version and Prometheus metrics endpoints. Edits to the settings file are
picked up without a restart.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Listen port (overrides worker_port)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if err := config.EnsureAll(); err != nil {
		log.Warn().Err(err).Msg("Could not create settings file, hot reload disabled")
	}
	var opts []worker.Option
	if servePort > 0 {
		opts = append(opts, worker.WithPort(servePort))
	}

	log.Info().Str("version", version).Msg("Starting parasim worker")

	svc, err := worker.NewService(version, cfg, opts...)
	if err != nil {
		return err
	}
	if err := svc.Start(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info().Msg("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return svc.Shutdown(shutdownCtx)
}
