package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-recall/internal/config"
)

// NewRootCmd creates the root sercha-recall command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sercha-recall",
		Short:         "Sercha Recall, grounded answers over a profile",
		Long:          "Sercha Recall answers questions about a STAR profile with retrieval-augmented generation and a semantic answer cache.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file (default $RECALL_CONFIG)")

	root.AddCommand(
		newServeCmd(),
		newAskCmd(),
		newIndexCmd(),
		newVersionCmd(),
	)

	return root
}

// loadConfig reads the file named by --config, falling back to RECALL_CONFIG
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv("RECALL_CONFIG")
	}
	return config.Load(path)
}
