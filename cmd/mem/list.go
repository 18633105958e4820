package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/becomeliminal/nim-memory/api"
	"github.com/becomeliminal/nim-memory/memory"
)

func NewListCmd(stores storeFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List memories",
		Long:    `List stored memories, optionally restricted to a tag.`,
		Args:    cobra.NoArgs,
		RunE:    makeListRunner(stores),
	}

	cmd.Flags().StringArrayP("tag", "t", nil, "Namespace tag; only the first one filters")
	cmd.Flags().IntP("number", "n", memory.DefaultListLimit, "Maximum memories")
	return cmd
}

func makeListRunner(stores storeFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		tags, _ := cmd.Flags().GetStringArray("tag")
		limit, _ := cmd.Flags().GetInt("number")
		asJSON, _ := cmd.Flags().GetBool("json")

		store, err := stores(cmd)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}

		resp, err := api.List(cmd.Context(), store, api.ListRequest{Tags: tags, Limit: &limit})
		if err != nil {
			return fmt.Errorf("list memories: %w", err)
		}

		if asJSON {
			return outputJSON(cmd, resp)
		}

		for _, m := range resp.Results {
			line := m.ID + "  " + memory.Preview(m.Content)
			if len(m.Tags) > 0 {
				line += "  [" + strings.Join(m.Tags, ",") + "]"
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		return nil
	}
}
