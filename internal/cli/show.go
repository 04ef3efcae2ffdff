package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/chanuka/mjadala/internal/brief"
	"github.com/chanuka/mjadala/internal/store"
)

var (
	showGeneration int64
	showMarkdown   bool
)

// briefCmd represents the brief command
var briefCmd = &cobra.Command{
	Use:   "brief <bill-id>",
	Short: "Print a stored brief without re-running the analysis",
	Long: `Brief prints a previously generated legislative brief from the
generation store. By default the bill's latest generation is printed
as JSON.

Example:
  mjadala brief finance-2026
  mjadala brief finance-2026 --generation 2
  mjadala brief finance-2026 --markdown`,
	Args: cobra.ExactArgs(1),
	RunE: runBrief,
}

// generationsCmd represents the generations command
var generationsCmd = &cobra.Command{
	Use:   "generations <bill-id>",
	Short: "List a bill's stored analysis generations",
	Long: `Generations lists every stored analysis run for a bill, newest
first, with its creation time and argument and cluster counts.`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerations,
}

func init() {
	rootCmd.AddCommand(briefCmd)
	rootCmd.AddCommand(generationsCmd)

	briefCmd.Flags().Int64Var(&showGeneration, "generation", 0, "generation to print (0 means latest)")
	briefCmd.Flags().BoolVar(&showMarkdown, "markdown", false, "print Markdown instead of JSON")
}

// openStore opens the generation store at the configured path
func openStore() (*store.Store, error) {
	cfg := loadConfig()
	cfg.Store.Enabled = true
	resolveDataPaths(&cfg)
	return store.Open(cfg.Store.Path)
}

func runBrief(cmd *cobra.Command, args []string) error {
	billID := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = s.Close() }()

	b, err := s.Brief(ctx, billID, showGeneration)
	if err != nil {
		return err
	}

	if showMarkdown {
		fmt.Print(brief.RenderMarkdown(b, true))
		return nil
	}

	data, err := brief.RenderJSON(b)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func runGenerations(cmd *cobra.Command, args []string) error {
	billID := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = s.Close() }()

	gens, err := s.Generations(ctx, billID)
	if err != nil {
		return err
	}
	if len(gens) == 0 {
		fmt.Fprintf(os.Stderr, "No stored generations for %s\n", billID)
		return nil
	}

	data, err := json.MarshalIndent(gens, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
