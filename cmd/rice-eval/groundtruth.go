package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ricesearch/rice-eval/internal/groundtruth"
)

func gtCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "gt",
		Aliases: []string{"groundtruth"},
		Short:   "Manage ground truth in Redis",
	}
	cmd.AddCommand(gtLoadCmd(), gtListCmd())
	return cmd
}

func gtLoadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load <dir>",
		Short: "Import a directory of ground truth files into Redis",
		Long: `Import every <group>_query.txt group in dir together with its
<group>_ok.txt, <group>_good.txt and <group>_junk.txt lists.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(cmd)
			if err != nil {
				return err
			}
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			records, err := groundtruth.LoadDir(args[0], log)
			if err != nil {
				return err
			}
			if dryRun {
				return printRecords(records)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := openRedisStore(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := groundtruth.Import(ctx, store, records); err != nil {
				return err
			}
			fmt.Printf("Imported %d queries\n", len(records))
			return nil
		},
	}
	cmd.Flags().Bool("dry-run", false, "parse and print the records without writing")
	return cmd
}

func gtListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List query ids with ground truth in Redis",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := setup(cmd)
			if err != nil {
				return err
			}

			store, err := openRedisStore(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			ids, err := store.QueryIDs(ctx)
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		},
	}
}

func printRecords(records []groundtruth.Record) error {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GROUP\tQUERY\tJUDGED")
	for _, rec := range records {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", rec.Group, rec.QueryID, len(rec.Relevance))
	}
	return tw.Flush()
}
