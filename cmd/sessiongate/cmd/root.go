// Package cmd provides the CLI commands for sessiongate.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sentinel-Gate/sessiongate/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "sessiongate",
	Short: "sessiongate - MCP session gateway for Browserbase",
	Long: `sessiongate serves the Model Context Protocol over server-sent events and
gives every connected client its own isolated session, backed by a
Browserbase remote browser opened with the client's own credentials.

Quick start:
  1. Run: sessiongate start
  2. Connect an MCP client to
     http://localhost:3001/sse?browserbase_api_key=...&browserbase_project_id=...&openai_api_key=...

Configuration:
  Config is loaded from sessiongate.yaml in the current directory,
  $HOME/.sessiongate/, or /etc/sessiongate/.

  Environment variables can override config values with the SESSIONGATE_ prefix.
  Example: SESSIONGATE_SERVER_HTTP_ADDR=:9090
  PORT replaces the port of the listen address.

Commands:
  start       Start the gateway
  stop        Stop the running gateway
  config      Print the effective configuration
  version     Print version information`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./sessiongate.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
