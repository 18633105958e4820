package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func NewRootCmd(version string, stores storeFunc) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "mem",
		Short:         "Semantic memory for agents",
		Long:          `Store, search, list and delete agent memories in a local embedding index or the Supermemory service.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	addPersistentFlags(rootCmd)

	if stores != nil {
		rootCmd.AddCommand(
			NewAddCmd(stores),
			NewSearchCmd(stores),
			NewListCmd(stores),
			NewDelCmd(stores),
			NewRecallCmd(stores),
		)
	}

	return rootCmd
}

func addPersistentFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	cmd.PersistentFlags().String("remote", "", "gRPC address of a running memoryd")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
}

func outputJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
