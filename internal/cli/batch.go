package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/chanuka/mjadala/internal/pipeline"
	"github.com/chanuka/mjadala/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
	// noCache, noFooter, noStore, llmEnabled, llmModel are shared with analyze.go
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <bills-file>",
	Short: "Analyze multiple bills from a file in parallel",
	Long: `Batch analyzes several bills concurrently:
- Read bill references from the input file, one per line, either
  "bill-id=comments.jsonl" or a bare path whose base name is the bill id
- Lines starting with # are skipped
- Bills run in parallel with a configurable worker count
- Each bill gets its own JSON and Markdown brief in the output directory

Example:
  mjadala batch bills.txt
  mjadala batch bills.txt --concurrency 4 --output-dir ./briefs
  mjadala batch bills.txt --timeout 30m`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	// Concurrency flags
	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of bills analyzed in parallel")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./mjadala-briefs", "output directory for briefs")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for the batch")

	// Shared run flags
	batchCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the embedding and fact-check cache")
	batchCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown briefs")
	batchCmd.Flags().BoolVar(&noStore, "no-store", false, "do not persist runs to the generation store")

	// LLM flags
	batchCmd.Flags().BoolVar(&llmEnabled, "llm", false, "enable the LLM narrative section")
	batchCmd.Flags().StringVar(&llmModel, "llm-model", "gpt-4o-mini", "LLM model name")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Mjadala Batch Analysis\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", concurrency)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	// Build configuration
	cfg := loadConfig()
	cfg.Cache.Enabled = !noCache
	cfg.Store.Enabled = !noStore
	cfg.Output.IncludeFooter = !noFooter

	// Configure LLM if enabled; the key itself stays in the environment
	if llmEnabled {
		if os.Getenv("OPENAI_API_KEY") == "" {
			return fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
		cfg.LLM.Enabled = true
		cfg.LLM.Model = llmModel
		fmt.Fprintf(os.Stderr, "  LLM:          %s\n", llmModel)
	}

	resolveDataPaths(&cfg)

	// Create output directory
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	// Create pipeline
	p, err := pipeline.NewPipeline(&cfg, nil)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	// Create batch processor
	processor := worker.NewBatchProcessor(p, concurrency)

	// Process bills
	fmt.Fprintf(os.Stderr, "⚙️  Reading bill references...\n")
	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	fmt.Fprintf(os.Stderr, "✓ Loaded %d bills\n", len(results))
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "⚙️  Analyzing with %d workers...\n", concurrency)
	fmt.Fprintf(os.Stderr, "\n")

	// Process results
	successCount := 0
	failureCount := 0

	for _, result := range results {
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Ref.BillID, result.Error)
			continue
		}

		successCount++

		// Generate output file names
		slug := sanitizeFilename(result.Ref.BillID)
		jsonPath := filepath.Join(outputDir, slug+"-brief.json")
		mdPath := filepath.Join(outputDir, slug+"-brief.md")

		if err := writeBrief(result.Brief, jsonPath, mdPath, cfg.Output.IncludeFooter); err != nil {
			failureCount++
			successCount--
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Ref.BillID, err)
			continue
		}

		fmt.Fprintf(os.Stderr, "✓ %s (%d clusters, confidence %s)\n",
			result.Ref.BillID, len(result.Brief.ClusterSummaries), result.Brief.Confidence)
	}

	// Summary
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d bills\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}

// sanitizeFilename makes a bill ID safe to use as a file name
func sanitizeFilename(s string) string {
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
		"\"", "_", "<", "_", ">", "_", "|", "_", " ", "-",
	)
	s = replacer.Replace(s)

	// Limit length
	if len(s) > 100 {
		s = s[:100]
	}

	return s
}
