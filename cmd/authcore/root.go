package main

import (
	"github.com/spf13/cobra"
)

var configFile string

// NewRootCmd creates the root command for the authcore CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authcore",
		Short: "Token-based authentication service",
		Long: `authcore issues and verifies access, refresh and email verification
tokens, backed by PostgreSQL for users and Redis for revocation and throttling.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default ./authcore.yaml)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}
