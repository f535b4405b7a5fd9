package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/dealcore/internal/logging"
	"github.com/ppiankov/dealcore/internal/model"
	"github.com/ppiankov/dealcore/internal/pipeline"
)

// Version is set at build time
var Version = "v0.1.0"

var (
	cfgFile string
	verbose bool
	noColor bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "dealcore",
	Short: "DealCore - freshness-aware, source-grounded deal search",
	Long: `DealCore finds product deals for a query and answers follow-up
questions about them.

Every search runs search → verify → rerank → synthesize and returns a
numbered list. Follow-ups refer to that list by number, name or
description, and every fact in an answer is marked verified, inferred or
not specified against the listing it came from.

Sessions live in the configured store. Use the redis store to ask
follow-ups from a separate invocation.`,
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
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("dealcore %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: $HOME/.dealcore/config.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	flags.BoolVar(&noColor, "no-color", false, "disable colored output")
	flags.String("store", "memory", "key-value store (memory, redis)")
	flags.String("redis-addr", "localhost:6379", "redis address")
	flags.String("search-endpoint", "", "search provider endpoint")
	flags.String("llm-provider", "", "language model provider (openai, anthropic, ollama); empty disables")
	flags.String("llm-model", "", "language model name")
	flags.String("strictness", "moderate", "verification strictness (strict, moderate, lenient)")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")
	flags.String("log-format", "console", "log format (console, json)")

	// Bind flags to viper keys
	for key, flag := range map[string]string{
		"verbose":                 "verbose",
		"store.driver":            "store",
		"store.redis.addr":        "redis-addr",
		"search.endpoint":         "search-endpoint",
		"llm.provider":            "llm-provider",
		"llm.model":               "llm-model",
		"verification.strictness": "strictness",
		"logging.level":           "log-level",
		"logging.format":          "log-format",
	} {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads .env, the defaults, the config file and ENV variables
func initConfig() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env: %v\n", err)
	}

	// Defaults first so every key is known to viper
	defaults, err := yaml.Marshal(model.DefaultConfig())
	if err == nil {
		viper.SetConfigType("yaml")
		_ = viper.ReadConfig(bytes.NewReader(defaults))
	}

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(filepath.Join(home, ".dealcore"))
		viper.SetConfigName("config")
	}

	// Read in environment variables that match DEALCORE_*
	viper.SetEnvPrefix("DEALCORE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, merge it over the defaults
	if err := viper.MergeInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig decodes the merged configuration
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// Provider keys may come from their conventional variables
	if cfg.LLM.APIKey == "" {
		switch strings.ToLower(cfg.LLM.Provider) {
		case "openai":
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		case "anthropic", "claude":
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}
	if cfg.LLM.BaseURL == "" && strings.EqualFold(cfg.LLM.Provider, "ollama") {
		cfg.LLM.BaseURL = os.Getenv("OLLAMA_BASE_URL")
	}
	if cfg.Search.APIKey == "" {
		cfg.Search.APIKey = os.Getenv("SEARCH_API_KEY")
	}
	return cfg, nil
}

// newLogger builds the command logger; --verbose forces debug
func newLogger(cfg *model.Config) zerolog.Logger {
	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	return logging.New(logging.Config{
		Level:       level,
		Format:      cfg.Logging.Format,
		Output:      os.Stderr,
		ServiceName: "dealcore",
	})
}

// openPipeline loads configuration and builds the pipeline
func openPipeline() (*pipeline.Pipeline, *model.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	p, err := pipeline.Open(cfg, newLogger(cfg))
	if err != nil {
		return nil, nil, err
	}
	return p, cfg, nil
}
