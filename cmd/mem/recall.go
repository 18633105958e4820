package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/becomeliminal/nim-memory/memory"
)

func NewRecallCmd(stores storeFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recall <message>",
		Short: "Print the memory block an agent would see",
		Long:  `Search for memories relevant to a message and print them formatted for prompt injection.`,
		Args:  cobra.MinimumNArgs(1),
		RunE:  makeRecallRunner(stores),
	}

	cmd.Flags().StringArrayP("tag", "t", nil, "Namespace tag; only the first one filters")
	cmd.Flags().Float64("min-score", memory.DefaultRecallConfig.MinScore, "Drop results scored below this")
	cmd.Flags().IntP("number", "n", memory.DefaultRecallConfig.Limit, "Maximum memories searched")
	return cmd
}

func makeRecallRunner(stores storeFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		tags, _ := cmd.Flags().GetStringArray("tag")
		minScore, _ := cmd.Flags().GetFloat64("min-score")
		limit, _ := cmd.Flags().GetInt("number")

		store, err := stores(cmd)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}

		cfg := *memory.DefaultRecallConfig
		cfg.MinScore = minScore
		cfg.Limit = limit

		block, err := memory.NewRecaller(store, &cfg, nil).Retrieve(cmd.Context(), strings.Join(args, " "), tags...)
		if err != nil {
			return err
		}
		if block == "" {
			fmt.Fprintln(cmd.ErrOrStderr(), "No relevant memories.")
			return nil
		}

		fmt.Fprint(cmd.OutOrStdout(), block)
		return nil
	}
}
