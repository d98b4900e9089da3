// Package main is the entry point for the cachebuster CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"cachebuster/pkg/bus"
	"cachebuster/pkg/channels"
	"cachebuster/pkg/cloudflare"
	"cachebuster/pkg/commands"
	"cachebuster/pkg/config"
	"cachebuster/pkg/gateway"
	"cachebuster/pkg/logger"
	"cachebuster/pkg/purge"
	"cachebuster/pkg/report"
	"cachebuster/pkg/version"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   version.AppName,
	Short: "cachebuster - Discord commands for Cloudflare cache purges",
	Long: `cachebuster connects to Discord and lets members of approved roles, in
approved servers, clear the Cloudflare cache for individual files.

Without a subcommand it runs the bot in the foreground.`,
	Run: runForegroundCmd,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bot in the foreground",
	Run:   runForegroundCmd,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.GetFullVersion())
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serviceCmd)
	rootCmd.AddCommand(purgeCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// appOptions composes the bot from its modules.
func appOptions(path string) []fx.Option {
	return []fx.Option{
		fx.Supply(config.Path(path)),

		// Core modules
		config.Module,
		logger.Module,
		commands.Module,
		cloudflare.Module,
		purge.Module,
		report.Module,

		// Gateway modules
		bus.Module,
		channels.Module,
		gateway.Module,
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
