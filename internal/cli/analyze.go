package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/chanuka/mjadala/internal/brief"
	"github.com/chanuka/mjadala/internal/model"
	"github.com/chanuka/mjadala/internal/pipeline"
)

var (
	outJSON       string
	outMD         string
	timeout       time.Duration
	seed          int64
	method        string
	embedProvider string
	noCache       bool
	noFooter      bool
	noStore       bool
	llmEnabled    bool
	llmModel      string
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze <bill-id> <comments.jsonl>",
	Short: "Analyze one bill's comments and generate a legislative brief",
	Long: `Analyze runs the full pipeline over a bill's public comments:
- Extract structured arguments (claims, evidence, stance)
- Embed and cluster arguments into viewpoints
- Validate evidence credibility
- Detect cross-cluster coalitions
- Generate a ranked, minority-preserving legislative brief

Each run becomes a new generation in the store; earlier generations
stay readable for auditing how sentiment shifted.

Example:
  mjadala analyze finance-2026 comments/finance-2026.jsonl
  mjadala analyze finance-2026 comments.jsonl --json brief.json --md brief.md
  mjadala analyze finance-2026 comments.jsonl --llm --llm-model gpt-4o-mini`,
	Args: cobra.ExactArgs(2),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	// Output flags
	analyzeCmd.Flags().StringVar(&outJSON, "json", "brief.json", "output JSON path")
	analyzeCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")

	// Run flags
	analyzeCmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "overall analysis timeout")
	analyzeCmd.Flags().Int64Var(&seed, "seed", 0, "clustering seed override")
	analyzeCmd.Flags().StringVar(&method, "method", "", "clustering method (kmeans, hierarchical)")
	analyzeCmd.Flags().StringVar(&embedProvider, "embedder", "", "embedding provider (hashing, openai)")
	analyzeCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the embedding and fact-check cache")
	analyzeCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown briefs")
	analyzeCmd.Flags().BoolVar(&noStore, "no-store", false, "do not persist the run to the generation store")

	// LLM flags
	analyzeCmd.Flags().BoolVar(&llmEnabled, "llm", false, "enable the LLM narrative section")
	analyzeCmd.Flags().StringVar(&llmModel, "llm-model", "gpt-4o-mini", "LLM model name")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	billID, path := args[0], args[1]
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if verbose {
		fmt.Fprintf(os.Stderr, "Analyzing: %s\n", billID)
		fmt.Fprintf(os.Stderr, "Comments: %s\n", path)
		fmt.Fprintf(os.Stderr, "Timeout: %v\n", timeout)
		fmt.Fprintln(os.Stderr)
	}

	// Build configuration from flags
	cfg := loadConfig()
	if seed > 0 {
		cfg.Clustering.Seed = seed
	}
	if method != "" {
		cfg.Clustering.Method = method
	}
	if embedProvider != "" {
		cfg.Embedding.Provider = embedProvider
	}
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
	}

	resolveDataPaths(&cfg)

	// Create pipeline
	p, err := pipeline.NewPipeline(&cfg, nil)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	// Analyze the bill
	b, err := p.AnalyzeBill(ctx, billID, path)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "✓ Structured %d comments into %d arguments\n",
			b.RunMeta.CommentCount, b.RunMeta.ArgumentCount)
		fmt.Fprintf(os.Stderr, "✓ Found %d viewpoint clusters, %d coalitions\n",
			len(b.ClusterSummaries), len(b.Coalitions))
		fmt.Fprintf(os.Stderr, "✓ Ranked %d evidence items\n", len(b.TopEvidence))
		fmt.Fprintf(os.Stderr, "✓ Confidence: %s (generation %d)\n", b.Confidence, b.Generation)
		if b.Narrative != nil {
			fmt.Fprintf(os.Stderr, "✓ Generated narrative using %s\n", b.Narrative.Model)
		}
		fmt.Fprintln(os.Stderr)
	}

	// Render outputs
	if err := writeBrief(b, outJSON, outMD, cfg.Output.IncludeFooter); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	return nil
}

// writeBrief renders a brief to the requested output files
func writeBrief(b *model.LegislativeBrief, jsonPath, mdPath string, footer bool) error {
	data, err := brief.RenderJSON(b)
	if err != nil {
		return err
	}
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", jsonPath, err)
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", jsonPath)
	}

	if mdPath != "" {
		md := brief.RenderMarkdown(b, footer)
		if err := os.WriteFile(mdPath, []byte(md), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", mdPath, err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", mdPath)
		}
	}

	return nil
}
