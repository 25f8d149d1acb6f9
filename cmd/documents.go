package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search [text]",
		Short: "Lists catalog records whose title contains text",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			docs := appInstance.Documents()
			results := docs.Search(strings.Join(args, " "))

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tFILENAME")
			for _, rec := range results {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", rec.ID, rec.Title, rec.Filename)
			}
			if err := tw.Flush(); err != nil {
				return fmt.Errorf("write results: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "showing %d of %d documents\n", len(results), docs.Count())
			return nil
		},
	}
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Prints one catalog record as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			id, err := parseDocID(args[0])
			if err != nil {
				return err
			}
			rec, ok := appInstance.Documents().Get(id)
			if !ok {
				return fmt.Errorf("document %d not found", id)
			}
			return printJSON(cmd, rec)
		},
	}
}

func newLookupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <id>",
		Short: "Fetches one document ID now and records it if found",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			id, err := parseDocID(args[0])
			if err != nil {
				return err
			}
			res, err := appInstance.Crawler().Lookup(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("lookup %d: %w", id, err)
			}
			return printJSON(cmd, res)
		},
	}
}

func parseDocID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("document id must be a positive integer, got %q", raw)
	}
	return id, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
