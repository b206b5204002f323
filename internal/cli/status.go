package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thebtf/parasim/pkg/client"
)

var statusServer string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check whether a worker is running",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusServer, "server", "", "Worker URL (default http://127.0.0.1:<worker_port>)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	server := statusServer
	if server == "" {
		server = fmt.Sprintf("http://127.0.0.1:%d", cfg.WorkerPort)
	}
	c := client.New(server)

	if !c.IsRunning(cmd.Context()) {
		return fmt.Errorf("no worker responding at %s", c.BaseURL())
	}

	workerVersion, err := c.Version(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "worker at %s is running, version %s\n", c.BaseURL(), workerVersion)
	if !client.VersionsCompatible(version, workerVersion) {
		fmt.Fprintf(out, "warning: worker version %s differs from parasim %s\n", workerVersion, version)
	}
	return nil
}
