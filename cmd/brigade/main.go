package main

import (
	"fmt"
	"os"

	"github.com/cuemby/brigade/pkg/config"
	"github.com/cuemby/brigade/pkg/log"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// cfg is loaded before any subcommand runs
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "brigade",
	Short: "Brigade - restaurant order coordination",
	Long: `Brigade moves orders through the kitchen, consumes inventory as
dishes are completed and routes alerts to the staff who need them.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("log-level") {
			loaded.Log.Level, _ = cmd.Flags().GetString("log-level")
		}
		if cmd.Flags().Changed("log-json") {
			loaded.Log.JSON, _ = cmd.Flags().GetBool("log-json")
		}
		log.Init(log.Config{
			Level:      log.ParseLevel(loaded.Log.Level),
			JSONOutput: loaded.Log.JSON,
			Output:     os.Stderr,
		})

		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Brigade version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("config", os.Getenv("BRIGADE_CONFIG"), "Path to brigade.yaml")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(healthcheckCmd)
}
