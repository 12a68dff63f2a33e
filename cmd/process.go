package cmd

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/modelforge/fbxbatch/internal/config"
	"github.com/modelforge/fbxbatch/internal/fetch"
	"github.com/modelforge/fbxbatch/internal/host/bridge"
	"github.com/modelforge/fbxbatch/internal/pipeline"
	"github.com/spf13/cobra"
)

func newProcessCmd() *cobra.Command {
	var outputDir string
	var configPath string
	var tempDir string
	var hostCmd string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "process <input-file>",
		Short: "Process a list of asset package URLs",
		Long: `Reads URLs from the input file (one per line, blank lines and # comments
ignored), then for each URL: downloads the package archive, extracts it,
assigns textures to the model's materials by filename pattern, bakes object
transforms, and exports the cleaned asset under the output directory.

A failed item is recorded and skipped; it never aborts the batch. The
process exits non-zero only when the input file itself cannot be read.`,
		Example: `  # Process a URL list into ./processed
  fbxbatch process assets.txt -o ./processed

  # Custom texture patterns and a persistent temp dir
  fbxbatch process assets.txt -o ./processed -c patterns.json -t /var/tmp/fbx -v`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

			urls, err := readURLs(args[0])
			if err != nil {
				return fmt.Errorf("failed to read input file: %w", err)
			}
			if len(urls) == 0 {
				slog.Warn("No URLs to process", "input", args[0])
				return nil
			}

			if hostCmd == "" {
				hostCmd = os.Getenv("FBXBATCH_HOST_CMD")
			}
			if hostCmd == "" {
				return fmt.Errorf("no host runtime command: pass --host-cmd or set FBXBATCH_HOST_CMD")
			}

			if tempDir == "" {
				tempDir, err = os.MkdirTemp("", "fbx_batch_")
				if err != nil {
					return fmt.Errorf("failed to create temp directory: %w", err)
				}
			} else if err := os.MkdirAll(tempDir, 0755); err != nil {
				return fmt.Errorf("failed to create temp directory: %w", err)
			}

			parts := strings.Fields(hostCmd)
			engine, err := bridge.Start(cmd.Context(), parts[0], parts[1:]...)
			if err != nil {
				return fmt.Errorf("failed to start host runtime: %w", err)
			}
			defer func() {
				if err := engine.Close(); err != nil {
					slog.Warn("Host runtime did not shut down cleanly", "error", err)
				}
			}()

			cfg := config.Load(configPath)
			orch := pipeline.New(fetch.New(), engine, cfg, tempDir, outputDir)

			summary := orch.Run(cmd.Context(), urls)
			if err := summary.Err(); err != nil {
				// Per-item failures are reported but do not change the exit code.
				slog.Warn("Batch finished with failures", "failed", summary.Failed, "error", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory for processed files (required)")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file (JSON or YAML)")
	cmd.Flags().StringVarP(&tempDir, "temp-dir", "t", "", "Temporary directory for downloads (default: a fresh system temp dir)")
	cmd.Flags().StringVar(&hostCmd, "host-cmd", "", "Host runtime shim command line (default: $FBXBATCH_HOST_CMD)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	_ = cmd.MarkFlagRequired("output")
	return cmd
}

// readURLs loads the input file: one URL per line, blank lines and
// #-comments skipped.
func readURLs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var urls []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, sc.Err()
}
