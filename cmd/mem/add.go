package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/becomeliminal/nim-memory/api"
)

func NewAddCmd(stores storeFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <content>",
		Short: "Store a memory",
		Long:  `Store a memory. All arguments are joined with spaces to form the content.`,
		Args:  cobra.MinimumNArgs(1),
		RunE:  makeAddRunner(stores),
	}

	cmd.Flags().StringArrayP("tag", "t", nil, "Namespace tag (repeatable)")
	cmd.Flags().StringArray("meta", nil, "Metadata entry as key=value (repeatable)")
	return cmd
}

func makeAddRunner(stores storeFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		tags, _ := cmd.Flags().GetStringArray("tag")
		entries, _ := cmd.Flags().GetStringArray("meta")
		asJSON, _ := cmd.Flags().GetBool("json")

		metadata, err := parseMeta(entries)
		if err != nil {
			return err
		}

		store, err := stores(cmd)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}

		resp, err := api.Add(cmd.Context(), store, api.AddRequest{
			Content:  strings.Join(args, " "),
			Tags:     tags,
			Metadata: metadata,
		})
		if err != nil {
			return fmt.Errorf("add memory: %w", err)
		}

		if asJSON {
			return outputJSON(cmd, resp)
		}
		fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
		return nil
	}
}

func parseMeta(entries []string) (map[string]any, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(entries))
	for _, e := range entries {
		k, v, ok := strings.Cut(e, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid --meta %q: want key=value", e)
		}
		out[k] = v
	}
	return out, nil
}
