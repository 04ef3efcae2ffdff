package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/chanuka/mjadala/internal/logging"
	"github.com/chanuka/mjadala/internal/model"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "mjadala",
	Short: "Mjadala - Argument structuring & clustering for public participation",
	Long: `Mjadala turns raw public comments on a bill into a structured,
clustered, evidence-ranked legislative brief.

It does not decide who is right. It structures what was said: the
arguments citizens made, how those arguments group into viewpoints,
how well the cited evidence holds up, and which minority positions
are too coherent to ignore.

Rankings are deterministic and explainable. The optional LLM narrative
is generated after scoring and never changes a result.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number and build information for Mjadala.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("mjadala v0.1.0")
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.mjadala/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	logging.Init(verbose)

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		// Search for config in home directory
		viper.AddConfigPath(filepath.Join(home, ".mjadala"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match MJADALA_*
	viper.SetEnvPrefix("MJADALA")
	viper.AutomaticEnv()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig builds the effective configuration: defaults overlaid with
// config file and environment values. Command flags apply on top.
func loadConfig() model.Config {
	cfg := model.DefaultConfig()

	if v := viper.GetString("embedding.provider"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := viper.GetInt("embedding.dimensions"); v > 0 {
		cfg.Embedding.Dimensions = v
	}
	if v := viper.GetString("clustering.method"); v != "" {
		cfg.Clustering.Method = v
	}
	if v := viper.GetInt64("clustering.seed"); v > 0 {
		cfg.Clustering.Seed = v
	}
	if v := viper.GetString("cache.dir"); v != "" {
		cfg.Cache.Dir = v
	}
	if v := viper.GetString("store.path"); v != "" {
		cfg.Store.Path = v
	}
	cfg.Output.Verbose = verbose
	return cfg
}

// resolveDataPaths fills in home-relative defaults for the cache
// directory and the generation store
func resolveDataPaths(cfg *model.Config) {
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	if cfg.Cache.Enabled && cfg.Cache.Dir == "" {
		cfg.Cache.Dir = filepath.Join(home, ".mjadala", "cache")
	}
	if cfg.Store.Enabled && cfg.Store.Path == "" {
		cfg.Store.Path = filepath.Join(home, ".mjadala", "mjadala.db")
	}
}
