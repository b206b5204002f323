package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/thebtf/parasim/internal/engine"
	"github.com/thebtf/parasim/internal/extract"
	"github.com/thebtf/parasim/pkg/client"
	"github.com/thebtf/parasim/pkg/models"
)

// maxConcurrentFiles bounds how many files are analyzed at once.
const maxConcurrentFiles = 4

var (
	analyzeThreshold float64
	analyzeBackend   string
	analyzeWorkers   int
	analyzeType      string
	analyzeServer    string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze FILE...",
	Short: "Print similarity groups for local documents",
	Long: `Extracts each file, scores all paragraph pairs and prints the similarity
groups as JSON. The document type is detected from content unless --type
is given. With several files, one entry is printed per file in argument
order; a file that fails does not stop the others. With --server, files are
sent to a running worker instead of being analyzed in process.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().Float64VarP(&analyzeThreshold, "threshold", "t", -1, "Minimum similarity in [0,1] (default from settings)")
	analyzeCmd.Flags().StringVarP(&analyzeBackend, "backend", "b", "", "Similarity backend: cosine or hashed (default from settings)")
	analyzeCmd.Flags().IntVarP(&analyzeWorkers, "workers", "w", -1, "Pair scoring goroutines, 0 for sequential (default from settings)")
	analyzeCmd.Flags().StringVar(&analyzeType, "type", "", "MIME type of the input, skipping detection")
	analyzeCmd.Flags().StringVar(&analyzeServer, "server", "", "Worker URL to analyze on, e.g. http://127.0.0.1:3000")
	rootCmd.AddCommand(analyzeCmd)
}

// FileResult is the analysis outcome for one input file.
type FileResult struct {
	File    string                   `json:"file"`
	Type    string                   `json:"type,omitempty"`
	Results []models.SimilarityGroup `json:"results"`
	Error   string                   `json:"error,omitempty"`
}

// analysisSettings merges command flags over the loaded configuration.
func analysisSettings(cmd *cobra.Command) (engine.Settings, error) {
	settings := cfg.Analysis()
	if cmd.Flags().Changed("threshold") {
		settings.Threshold = analyzeThreshold
	}
	if cmd.Flags().Changed("backend") {
		settings.Backend = analyzeBackend
	}
	if cmd.Flags().Changed("workers") {
		settings.Workers = analyzeWorkers
	}
	if err := settings.Validate(); err != nil {
		return settings, err
	}
	return settings, nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	settings, err := analysisSettings(cmd)
	if err != nil {
		return err
	}

	analyze := localAnalysis(settings)
	if analyzeServer != "" {
		analyze = remoteAnalysis(client.New(analyzeServer))
	}
	results := make([]FileResult, len(args))

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(maxConcurrentFiles)
	for i, path := range args {
		g.Go(func() error {
			results[i] = analyzeFile(ctx, analyze, path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var out interface{} = results
	if len(results) == 1 {
		if results[0].Error != "" {
			return fmt.Errorf("%s: %s", results[0].File, results[0].Error)
		}
		out = models.AnalysisResult{Results: results[0].Results}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))

	if failed := countFailed(results); failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(results))
	}
	return nil
}

// analysisFunc turns file contents into similarity groups.
type analysisFunc func(ctx context.Context, payload []byte, mimeType string) (models.AnalysisResult, error)

// localAnalysis extracts and analyzes in process.
func localAnalysis(settings engine.Settings) analysisFunc {
	analyzer := engine.NewAnalyzer(nil)
	registry := extract.DefaultRegistry()
	return func(ctx context.Context, payload []byte, mimeType string) (models.AnalysisResult, error) {
		text, err := registry.Extract(ctx, mimeType, payload)
		if err != nil {
			return models.AnalysisResult{}, err
		}
		return analyzer.Analyze(ctx, text, settings)
	}
}

// remoteAnalysis delegates to a running worker, which applies its own settings.
func remoteAnalysis(c *client.Client) analysisFunc {
	return c.Process
}

// analyzeFile reads and analyzes a single file.
func analyzeFile(ctx context.Context, analyze analysisFunc, path string) FileResult {
	res := FileResult{File: filepath.Base(path), Results: []models.SimilarityGroup{}}

	payload, err := os.ReadFile(path)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Type = analyzeType
	if res.Type == "" {
		res.Type = extract.Detect(payload)
	}

	result, err := analyze(ctx, payload, res.Type)
	if err != nil {
		res.Error = err.Error()
		log.Warn().Err(err).Str("file", path).Msg("Analysis failed")
		return res
	}
	if result.Results != nil {
		res.Results = result.Results
	}
	return res
}

// readDocument loads path and extracts its text. An empty mimeType is
// detected from content.
func readDocument(ctx context.Context, registry *extract.Registry, path, mimeType string) (string, string, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}

	if mimeType == "" {
		mimeType = extract.Detect(payload)
	}
	text, err := registry.Extract(ctx, mimeType, payload)
	return text, mimeType, err
}

func countFailed(results []FileResult) int {
	n := 0
	for _, r := range results {
		if r.Error != "" {
			n++
		}
	}
	return n
}
