// Package main provides the rice-eval binary: batch mAP evaluation of image
// retrieval results against graded ground truth.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ricesearch/rice-eval/internal/config"
	"github.com/ricesearch/rice-eval/internal/groundtruth"
	"github.com/ricesearch/rice-eval/internal/pkg/logger"
	"github.com/ricesearch/rice-eval/internal/qdrant"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rice-eval",
		Short: "rice-eval - mean average precision for image retrieval",
		Long: `rice-eval scores ranked retrieval results against graded ground truth
(1 = ok, 2 = good, 3 = junk) and reports per-query AP and batch mAP.

Examples:
  rice-eval gt load ./gt_files               # import ground truth into Redis
  rice-eval rank -o results.json             # rank every query through Qdrant
  rice-eval evaluate --results results.json  # score a results file
  rice-eval serve                            # HTTP evaluation API`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose logging")

	rootCmd.AddCommand(
		evaluateCmd(),
		gtCmd(),
		rankCmd(),
		serveCmd(),
		eventsCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("rice-eval %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}
}

// setup loads the configuration named by --config and builds the logger.
func setup(cmd *cobra.Command) (*config.Config, *logger.Logger, error) {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	return cfg, logger.New(level, cfg.Log.Format), nil
}

func openRedisStore(cfg *config.Config) (*groundtruth.RedisStore, error) {
	return groundtruth.NewRedisStore(groundtruth.RedisOptions{
		URL:        cfg.Redis.URL,
		Prefix:     cfg.Redis.KeyPrefix,
		MirrorSets: cfg.Redis.MirrorSets,
	})
}

func openQdrant(cfg *config.Config) (*qdrant.Client, error) {
	qc := qdrant.DefaultClientConfig()
	qc.Host = cfg.Qdrant.Host
	qc.Port = cfg.Qdrant.Port
	qc.APIKey = cfg.Qdrant.APIKey
	qc.UseTLS = cfg.Qdrant.UseTLS
	if cfg.Qdrant.Timeout > 0 {
		qc.Timeout = cfg.Qdrant.Timeout
	}
	if cfg.Qdrant.NameField != "" {
		qc.NameField = cfg.Qdrant.NameField
	}

	client, err := qdrant.NewClient(qc)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
	}
	return client, nil
}

// checkQdrant verifies the server is reachable and both collections exist.
func checkQdrant(ctx context.Context, client *qdrant.Client, cfg *config.Config, log *logger.Logger) error {
	serverVersion, err := client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("qdrant health check: %w", err)
	}
	log.Debug("Connected to Qdrant", "version", serverVersion)

	for _, name := range []string{cfg.Qdrant.QueryCollection, cfg.Qdrant.DatabaseCollection} {
		exists, err := client.CollectionExists(ctx, name)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("qdrant collection %q does not exist", name)
		}

		info, err := client.GetCollectionInfo(ctx, name)
		if err != nil {
			return err
		}
		log.Info("Using Qdrant collection",
			"collection", info.Name,
			"points", info.PointsCount,
			"status", info.Status,
		)
	}
	return nil
}
