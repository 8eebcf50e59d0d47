package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/glaucoscan/internal/cli"
	"github.com/aretw0/glaucoscan/internal/config"
	"github.com/aretw0/glaucoscan/internal/runtime"
)

var rootCmd = &cobra.Command{
	Use:   "glaucoscan",
	Short: "GlaucoScan is a glaucoma screening wizard",
	Long: `GlaucoScan walks a retinal fundus image through upload, review,
analysis and results. Sessions can live in memory, on disk or in Redis.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// flagKeys maps persistent flags to config keys.
var flagKeys = map[string]string{
	"log-level":      "log_level",
	"delay":          "analysis_delay",
	"store":          "store.driver",
	"store-path":     "store.path",
	"redis-addr":     "store.redis_addr",
	"max-upload":     "max_upload_bytes",
	"strict-content": "strict_content_type",
	"port":           "port",
}

func init() {
	// Persistent flags (available to all commands)
	pf := rootCmd.PersistentFlags()
	pf.String("config", "glaucoscan.yaml", "YAML config file (optional)")
	pf.String("env-file", ".env", "dotenv file (optional)")
	pf.String("log-level", "info", "Log level: debug, info, warn, error")
	pf.Bool("log-json", false, "Log as JSON")
	pf.Duration("delay", runtime.DefaultAnalysisDelay, "Simulated analysis duration")
	pf.String("store", config.DriverMemory, "Session store: memory, file or redis")
	pf.String("store-path", ".glaucoscan/sessions", "Directory for the file store")
	pf.String("redis-addr", "", "Redis address for the redis store")
	pf.Int64("max-upload", 10<<20, "Upload limit in bytes")
	pf.Bool("strict-content", false, "Reject files whose content is not an image")
}

// loadConfig resolves the configuration, with flags the user set winning.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	file, _ := cmd.Flags().GetString("config")
	envFile, _ := cmd.Flags().GetString("env-file")

	overrides := map[string]any{}
	for flag, key := range flagKeys {
		f := cmd.Flags().Lookup(flag)
		if f != nil && f.Changed {
			overrides[key] = f.Value.String()
		}
	}

	return config.Load(config.Options{
		File:      file,
		Required:  cmd.Flags().Changed("config"),
		EnvFiles:  []string{envFile},
		Overrides: overrides,
	})
}

func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	asJSON, _ := cmd.Flags().GetBool("log-json")
	return cli.NewLogger(cfg.Level(), asJSON)
}
