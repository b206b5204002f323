package cli

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/parasim/internal/config"
	"github.com/thebtf/parasim/internal/worker"
	"github.com/thebtf/parasim/pkg/models"
)

const catMatText = "the cat sat on the mat\n\nthe cat sat on a mat\n\ncompletely different text"

// run executes the root command with args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv(config.EnvDataDir, t.TempDir())
	t.Chdir(t.TempDir())

	for _, c := range rootCmd.Commands() {
		resetFlags(c)
	}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(new(bytes.Buffer))
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}

// resetFlags restores flag defaults between executions of the shared commands.
func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	})
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestVersionCmd(t *testing.T) {
	original := version
	version = "test-version-1.0.0"
	defer func() { version = original }()

	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "parasim version test-version-1.0.0")
}

func TestAnalyzeCmd_SingleFile(t *testing.T) {
	path := writeFile(t, "doc.txt", catMatText)

	out, err := run(t, "analyze", path)
	require.NoError(t, err)

	var result models.AnalysisResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Len(t, result.Results, 1)

	group := result.Results[0]
	assert.Equal(t, 91, group.Similarity)
	assert.Equal(t, 1, group.Main.Index)
	assert.Equal(t, []models.Paragraph{{Index: 2, Text: "the cat sat on a mat"}}, group.Members)
}

func TestAnalyzeCmd_ThresholdFlag(t *testing.T) {
	path := writeFile(t, "doc.txt", catMatText)

	out, err := run(t, "analyze", "--threshold", "0.95", path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"results":[]}`, out)
}

func TestAnalyzeCmd_HashedBackend(t *testing.T) {
	path := writeFile(t, "doc.txt", "a b\n\na c")

	out, err := run(t, "analyze", "--backend", "hashed", "--threshold", "0.3", "--workers", "2", path)
	require.NoError(t, err)

	var result models.AnalysisResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Len(t, result.Results, 1)
	assert.Equal(t, 33, result.Results[0].Similarity)
}

func TestAnalyzeCmd_InvalidFlags(t *testing.T) {
	path := writeFile(t, "doc.txt", catMatText)

	_, err := run(t, "analyze", "--backend", "neural", path)
	assert.Error(t, err)

	_, err = run(t, "analyze", "--threshold", "1.5", path)
	assert.Error(t, err)
}

func TestAnalyzeCmd_MultipleFiles(t *testing.T) {
	first := writeFile(t, "first.txt", catMatText)
	second := writeFile(t, "second.txt", "nothing alike\n\nat all here")
	missing := filepath.Join(t.TempDir(), "missing.txt")

	out, err := run(t, "analyze", first, second, missing)
	require.Error(t, err, "a failed file is reported")
	assert.Contains(t, err.Error(), "1 of 3 files failed")

	var results []FileResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 3)

	assert.Equal(t, "first.txt", results[0].File)
	assert.Equal(t, "text/plain", results[0].Type)
	assert.Len(t, results[0].Results, 1)

	assert.Equal(t, "second.txt", results[1].File)
	assert.Empty(t, results[1].Results)
	assert.Empty(t, results[1].Error)

	assert.Equal(t, "missing.txt", results[2].File)
	assert.NotEmpty(t, results[2].Error)
}

func TestAnalyzeCmd_RequiresFile(t *testing.T) {
	_, err := run(t, "analyze")
	assert.Error(t, err)
}

func TestRemoveCmd_Stdout(t *testing.T) {
	path := writeFile(t, "doc.txt", catMatText)

	out, err := run(t, "remove", path, "--paragraphs", "2")
	require.NoError(t, err)
	assert.Equal(t, "the cat sat on the mat\n\ncompletely different text", out)
}

func TestRemoveCmd_OutputFile(t *testing.T) {
	path := writeFile(t, "doc.txt", catMatText)
	dest := filepath.Join(t.TempDir(), "out.txt")

	_, err := run(t, "remove", path, "--paragraphs", "1,3", "-o", dest)
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "the cat sat on a mat", string(data))
}

func TestRemoveCmd_NoParagraphs(t *testing.T) {
	path := writeFile(t, "doc.txt", catMatText)

	out, err := run(t, "remove", path)
	require.NoError(t, err)
	assert.Equal(t, catMatText, out)
}

func TestRemoveCmd_UnsupportedType(t *testing.T) {
	path := writeFile(t, "doc.txt", catMatText)

	_, err := run(t, "remove", path, "--type", "image/png")
	assert.Error(t, err)
}

func TestSetup_InvalidSettings(t *testing.T) {
	t.Setenv(config.EnvThreshold, "not-a-number")
	path := writeFile(t, "doc.txt", catMatText)

	_, err := run(t, "analyze", path)
	assert.Error(t, err)
}

// startWorker runs a worker on a random local port and returns its URL.
func startWorker(t *testing.T, workerCfg *config.Config) string {
	t.Helper()
	t.Setenv(config.EnvDataDir, t.TempDir())

	svc, err := worker.NewService("dev", workerCfg)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, svc.Serve(ln))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})
	return "http://" + ln.Addr().String()
}

func TestAnalyzeCmd_Server(t *testing.T) {
	// The worker's own threshold applies, not the local flags.
	workerCfg := config.Default()
	workerCfg.Threshold = 0.95
	url := startWorker(t, workerCfg)

	path := writeFile(t, "doc.txt", catMatText)

	out, err := run(t, "analyze", "--server", url, path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"results":[]}`, out)
}

func TestAnalyzeCmd_ServerUnsupported(t *testing.T) {
	url := startWorker(t, config.Default())
	path := writeFile(t, "doc.txt", catMatText)

	_, err := run(t, "analyze", "--server", url, "--type", "image/png", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unsupported file type")
}

func TestRemoveCmd_Server(t *testing.T) {
	url := startWorker(t, config.Default())
	path := writeFile(t, "doc.txt", catMatText)

	out, err := run(t, "remove", "--server", url, path, "--paragraphs", "2")
	require.NoError(t, err)
	assert.Equal(t, "the cat sat on the mat\n\ncompletely different text", out)
}

func TestRemoveCmd_ServerUnsupported(t *testing.T) {
	url := startWorker(t, config.Default())
	path := writeFile(t, "doc.txt", catMatText)

	_, err := run(t, "remove", "--server", url, "--type", "image/png", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unsupported file type")
}

func TestStatusCmd(t *testing.T) {
	url := startWorker(t, config.Default())

	out, err := run(t, "status", "--server", url)
	require.NoError(t, err)
	assert.Contains(t, out, "is running, version dev")
}

func TestStatusCmd_NotRunning(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = run(t, "status", "--server", "http://"+addr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no worker responding")
}
