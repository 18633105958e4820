package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/becomeliminal/nim-memory/api"
)

func NewDelCmd(stores storeFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "del <id>",
		Aliases: []string{"delete", "rm"},
		Short:   "Delete a memory",
		Long:    `Delete a memory by id.`,
		Args:    cobra.ExactArgs(1),
		RunE:    makeDelRunner(stores),
	}

	return cmd
}

func makeDelRunner(stores storeFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		id := args[0]
		asJSON, _ := cmd.Flags().GetBool("json")

		store, err := stores(cmd)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}

		resp := api.Delete(cmd.Context(), store, api.DeleteRequest{ID: id})
		if asJSON {
			return outputJSON(cmd, resp)
		}
		if !resp.Deleted {
			return fmt.Errorf("memory %s not found or could not be deleted", id)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
		return nil
	}
}
