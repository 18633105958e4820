package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/becomeliminal/nim-memory/api"
	"github.com/becomeliminal/nim-memory/memory"
)

func NewSearchCmd(stores storeFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search memories",
		Long:  `Search memories by semantic similarity, most relevant first.`,
		Args:  cobra.MinimumNArgs(1),
		RunE:  makeSearchRunner(stores),
	}

	cmd.Flags().StringArrayP("tag", "t", nil, "Namespace tag; only the first one filters")
	cmd.Flags().IntP("number", "n", memory.DefaultSearchLimit, "Maximum results")
	return cmd
}

func makeSearchRunner(stores storeFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		tags, _ := cmd.Flags().GetStringArray("tag")
		limit, _ := cmd.Flags().GetInt("number")
		asJSON, _ := cmd.Flags().GetBool("json")

		store, err := stores(cmd)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}

		resp, err := api.Search(cmd.Context(), store, api.SearchRequest{
			Query: strings.Join(args, " "),
			Tags:  tags,
			Limit: &limit,
		})
		if err != nil {
			return fmt.Errorf("search memories: %w", err)
		}

		if asJSON {
			return outputJSON(cmd, resp)
		}

		for _, r := range resp.Results {
			score := "-     "
			if r.Score != nil {
				score = fmt.Sprintf("%.4f", *r.Score)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s\n", score, r.ID, r.Content)
		}
		return nil
	}
}
