package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sun-rs/three/catalog"
	"github.com/sun-rs/three/config"
)

func newValidateConfigCmd() *cobra.Command {
	var client string

	cmd := &cobra.Command{
		Use:   "validate-config",
		Short: "Load the layered config and resolve every configured role, reporting each role's result",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runValidateConfig(cmd, client)
		},
	}
	cmd.Flags().StringVar(&client, "client", "", "client hint for config file selection (overrides THREE_CLIENT)")
	return cmd
}

func runValidateConfig(cmd *cobra.Command, client string) error {
	configDir, _ := cmd.Flags().GetString("config-dir")

	if client == "" {
		client = config.ClientFromEnv()
	}
	projectDir := configDir
	if projectDir == "" {
		var err error
		projectDir, err = os.Getwd()
		if err != nil {
			return err
		}
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = ""
	}

	doc, path, err := config.Load(projectDir, homeDir, client)
	if err != nil {
		return err
	}
	if path == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "no config file found; nothing to validate")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "loaded %s\n", path)

	resolver := config.NewResolver(doc, catalog.Default())
	failed := 0
	for _, roleID := range resolver.RoleIDs() {
		if _, err := resolver.ResolveProfile(roleID, 0, nil); err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "role %q: %v\n", roleID, err)
			failed++
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "role %q: ok\n", roleID)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d roles failed to resolve", failed, len(resolver.RoleIDs()))
	}
	return nil
}
