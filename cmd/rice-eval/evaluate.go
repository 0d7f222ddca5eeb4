package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cheggaaa/pb/v3"
	"github.com/spf13/cobra"

	"github.com/ricesearch/rice-eval/internal/bus"
	"github.com/ricesearch/rice-eval/internal/config"
	"github.com/ricesearch/rice-eval/internal/evaluation"
	"github.com/ricesearch/rice-eval/internal/groundtruth"
	"github.com/ricesearch/rice-eval/internal/pkg/logger"
	"github.com/ricesearch/rice-eval/internal/ranking"
)

func evaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score ranked lists against ground truth and report mAP",
		Long: `Score every query that has a ranked list and report per-query AP and
the batch mAP. Queries without ground truth are reported as errors and
excluded from the mean.

Ranked lists come from a results file (--source file) or are produced
on the fly by Qdrant similarity search (--source qdrant). Ground truth is
read from Redis (--gt redis) or from a directory of list files (--gt dir).`,
		RunE: runEvaluate,
	}

	cmd.Flags().String("source", "file", "ranked list source (file, qdrant)")
	cmd.Flags().String("results", "", "results file for --source file (default from config)")
	cmd.Flags().String("gt", "redis", "ground truth source (redis, dir)")
	cmd.Flags().String("gt-dir", "", "ground truth directory for --gt dir")
	cmd.Flags().StringSlice("queries", nil, "evaluate only these query ids")
	cmd.Flags().StringP("format", "f", "", "report format (text, json, yaml)")
	cmd.Flags().StringP("output", "o", "", "write the report to this file instead of stdout")
	cmd.Flags().IntP("workers", "w", 0, "concurrent query evaluations")
	cmd.Flags().Int("cutoff", -1, "rank cutoff for precision/recall/nDCG diagnostics, 0 disables")
	cmd.Flags().Bool("no-progress", false, "disable the progress bar")

	return cmd
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	applyEvaluateFlags(cmd, cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gtKind, _ := cmd.Flags().GetString("gt")
	gtDir, _ := cmd.Flags().GetString("gt-dir")
	annotations, closeGT, err := openAnnotations(ctx, cfg, gtKind, gtDir, log)
	if err != nil {
		return err
	}
	defer closeGT()

	sourceKind, _ := cmd.Flags().GetString("source")
	src, closeSrc, err := openSource(ctx, cfg, sourceKind, log)
	if err != nil {
		return err
	}
	defer closeSrc()

	ids, _ := cmd.Flags().GetStringSlice("queries")
	queries, missing, err := ranking.BuildQueries(ctx, src, ids, cfg.Evaluation.Workers)
	if err != nil {
		return fmt.Errorf("collecting ranked lists: %w", err)
	}
	for _, id := range missing {
		log.Warn("No ranked list for query", "query_id", id)
	}

	eventBus, err := bus.NewBus(cfg.Bus, log)
	if err != nil {
		return err
	}
	defer func() { _ = eventBus.Close() }()

	evalCfg := evaluation.Config{
		Annotations: annotations,
		Workers:     cfg.Evaluation.Workers,
		Publisher:   bus.NewPublisher(eventBus, log),
		CutoffK:     cfg.Evaluation.CutoffK,
		Logger:      log,
	}

	noProgress, _ := cmd.Flags().GetBool("no-progress")
	var bar *pb.ProgressBar
	if !noProgress && len(queries) > 0 {
		bar = pb.StartNew(len(queries))
		evalCfg.OnProgress = func(_, _ int) { bar.Increment() }
	}

	evaluator, err := evaluation.NewEvaluator(evalCfg)
	if err != nil {
		return err
	}

	report, evalErr := evaluator.Evaluate(ctx, queries)
	if bar != nil {
		bar.Finish()
	}
	if report != nil {
		output, _ := cmd.Flags().GetString("output")
		if err := writeReport(output, report, cfg.Evaluation.Format); err != nil {
			return err
		}
	}
	return evalErr
}

func applyEvaluateFlags(cmd *cobra.Command, cfg *config.Config) {
	if v, _ := cmd.Flags().GetString("results"); v != "" {
		cfg.Evaluation.ResultsFile = v
	}
	if v, _ := cmd.Flags().GetString("format"); v != "" {
		cfg.Evaluation.Format = v
	}
	if v, _ := cmd.Flags().GetInt("workers"); v > 0 {
		cfg.Evaluation.Workers = v
	}
	if v, _ := cmd.Flags().GetInt("cutoff"); v >= 0 {
		cfg.Evaluation.CutoffK = v
	}
}

// openAnnotations returns the ground-truth store named by kind and a
// function releasing it.
func openAnnotations(ctx context.Context, cfg *config.Config, kind, dir string, log *logger.Logger) (evaluation.AnnotationStore, func(), error) {
	switch kind {
	case "redis", "":
		store, err := openRedisStore(cfg)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil

	case "dir":
		if dir == "" {
			return nil, nil, fmt.Errorf("--gt-dir is required with --gt dir")
		}
		records, err := groundtruth.LoadDir(dir, log)
		if err != nil {
			return nil, nil, err
		}
		store := groundtruth.NewMemoryStore()
		if err := groundtruth.Import(ctx, store, records); err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown ground truth source: %s (must be redis or dir)", kind)
	}
}

// openSource returns the ranked-list source named by kind and a function
// releasing it.
func openSource(ctx context.Context, cfg *config.Config, kind string, log *logger.Logger) (ranking.Source, func(), error) {
	switch kind {
	case "file", "":
		src, err := ranking.LoadFile(cfg.Evaluation.ResultsFile)
		if err != nil {
			return nil, nil, err
		}
		log.Info("Loaded results file", "path", src.Path())
		return src, func() {}, nil

	case "qdrant":
		client, err := openQdrant(cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := checkQdrant(ctx, client, cfg, log); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		src, err := ranking.NewQdrantSource(client, ranking.QdrantConfig{
			QueryCollection:    cfg.Qdrant.QueryCollection,
			DatabaseCollection: cfg.Qdrant.DatabaseCollection,
			VectorName:         cfg.Qdrant.VectorName,
			TopK:               cfg.Qdrant.TopK,
		}, log)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return src, func() { _ = client.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown ranked list source: %s (must be file or qdrant)", kind)
	}
}

func writeReport(path string, report *evaluation.Report, format string) (err error) {
	if path == "" {
		return evaluation.WriteReport(os.Stdout, report, format)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing report file: %w", cerr)
		}
	}()
	return evaluation.WriteReport(f, report, format)
}
