package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ricesearch/rice-eval/internal/ranking"
)

func rankCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank queries through Qdrant and write a results file",
		Long: `Search the database collection with the stored embedding of every
query image and write the ranked lists as a results file that
"rice-eval evaluate --results" can score.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup(cmd)
			if err != nil {
				return err
			}

			output, _ := cmd.Flags().GetString("output")
			if output == "" {
				return fmt.Errorf("--output is required")
			}
			if v, _ := cmd.Flags().GetInt("top-k"); v > 0 {
				cfg.Qdrant.TopK = v
			}
			if v, _ := cmd.Flags().GetInt("workers"); v > 0 {
				cfg.Evaluation.Workers = v
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			src, closeSrc, err := openSource(ctx, cfg, "qdrant", log)
			if err != nil {
				return err
			}
			defer closeSrc()

			ids, _ := cmd.Flags().GetStringSlice("queries")
			if len(ids) > 0 {
				lists, missing, err := ranking.Collect(ctx, src, ids, cfg.Evaluation.Workers)
				if err != nil {
					return err
				}
				if err := ranking.WriteFile(output, lists); err != nil {
					return err
				}
				reportMissing(missing)
				fmt.Printf("Wrote %d ranked lists to %s\n", len(lists), output)
				return nil
			}

			written, missing, err := ranking.Export(ctx, src, output, cfg.Evaluation.Workers)
			if err != nil {
				return err
			}
			reportMissing(missing)
			fmt.Printf("Wrote %d ranked lists to %s\n", written, output)
			return nil
		},
	}

	cmd.Flags().StringP("output", "o", "", "results file to write")
	cmd.Flags().StringSlice("queries", nil, "rank only these query ids")
	cmd.Flags().IntP("workers", "w", 0, "concurrent searches")
	cmd.Flags().Int("top-k", 0, "ranked list length (default from config)")
	return cmd
}

func reportMissing(missing []string) {
	for _, id := range missing {
		fmt.Fprintf(os.Stderr, "warning: query %s not found in the query collection\n", id)
	}
}
