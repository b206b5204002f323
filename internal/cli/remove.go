package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/thebtf/parasim/internal/engine"
	"github.com/thebtf/parasim/internal/extract"
	"github.com/thebtf/parasim/pkg/client"
)

var (
	removeParagraphs []int
	removeOutput     string
	removeType       string
	removeServer     string
)

var removeCmd = &cobra.Command{
	Use:   "remove FILE",
	Short: "Drop paragraphs from a document",
	Long: `Extracts FILE, removes the paragraphs given by --paragraphs (1-based, as
printed by analyze) and writes the remaining text, paragraphs separated by
a blank line. Unknown paragraph numbers are ignored. With --server, the
file is sent to a running worker instead.`,
	Example: `  parasim remove report.docx --paragraphs 2,5 -o report.txt`,
	Args:    cobra.ExactArgs(1),
	RunE:    runRemove,
}

func init() {
	removeCmd.Flags().IntSliceVarP(&removeParagraphs, "paragraphs", "n", nil, "Paragraph numbers to remove, comma separated")
	removeCmd.Flags().StringVarP(&removeOutput, "output", "o", "", "Output file (default stdout)")
	removeCmd.Flags().StringVar(&removeType, "type", "", "MIME type of the input, skipping detection")
	removeCmd.Flags().StringVar(&removeServer, "server", "", "Worker URL to remove on, e.g. http://127.0.0.1:3000")
	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	remove := localRemove
	if removeServer != "" {
		remove = remoteRemove(client.New(removeServer))
	}

	rebuilt, err := remove(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	if removeOutput == "" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), rebuilt)
		return err
	}
	if err := os.WriteFile(removeOutput, []byte(rebuilt), 0600); err != nil {
		return fmt.Errorf("write %s: %w", removeOutput, err)
	}
	log.Info().
		Str("output", removeOutput).
		Ints("removed", removeParagraphs).
		Msg("Document written")
	return nil
}

// localRemove extracts path and drops paragraphs in process.
func localRemove(ctx context.Context, path string) (string, error) {
	text, _, err := readDocument(ctx, extract.DefaultRegistry(), path, removeType)
	if err != nil {
		return "", err
	}
	return engine.NewAnalyzer(nil).Remove(text, removeParagraphs), nil
}

// remoteRemove uploads path to a running worker.
func remoteRemove(c *client.Client) func(context.Context, string) (string, error) {
	return func(ctx context.Context, path string) (string, error) {
		payload, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		mimeType := removeType
		if mimeType == "" {
			mimeType = extract.Detect(payload)
		}
		return c.Remove(ctx, payload, mimeType, removeParagraphs)
	}
}
