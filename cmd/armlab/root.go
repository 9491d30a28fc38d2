package main

import (
	"fmt"
	"os"

	"github.com/armtemiy/armlab/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "armlab",
	Short: "Armtemiy Lab diagnostic wizard backend",
	Long: `armlab walks users through an arm-wrestling injury diagnostic tree,
stores their results and sells access to the premium branch with Telegram Stars.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", os.Getenv(config.EnvPrefix+"CONFIG"), "Path to a YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "Override log.level (debug, info, warn, error)")
}

// loadConfig reads the config file and environment, then applies command line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level, _ = cmd.Flags().GetString("log-level")
	}
	if f := cmd.Flags().Lookup("addr"); f != nil && f.Changed {
		cfg.HTTP.Addr = f.Value.String()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
