// Command three is the host-agnostic orchestration server: it resolves
// configured roles against the adapter catalog, spawns the external agent
// CLIs, and exposes info/call/batch/roundtable as MCP tools over stdio.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:               "three",
		Short:             "Host-agnostic orchestration server for external agent CLIs",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
	}

	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "json", "log format (json, console)")
	root.PersistentFlags().String("config-dir", "", "project directory to search for config (default: current directory)")
	root.PersistentFlags().String("state-file", defaultStatePath(), "path to the durable session store file")

	root.AddCommand(newServeCmd())
	root.AddCommand(newValidateConfigCmd())
	return root
}

func defaultStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".three/sessions.json"
	}
	return home + "/.config/three/sessions.json"
}
