package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/databricks/databricks-sdk-go/service/ml"
	"github.com/spf13/cobra"

	"github.com/imishinist/wmg-cli/internal/metrics"
	"github.com/imishinist/wmg-cli/internal/mlflow"
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish a run directory to MLflow",
	Long: `Create an MLflow run tagged with the benchmark agent, env and track,
log the run config as params, the run metrics and per-episode returns as
metrics, and upload metrics.json, trace.jsonl and config.yaml as artifacts.`,
	RunE: publish,
}

func init() {
	rootCmd.AddCommand(publishCmd)

	publishCmd.Flags().String("dir", "", "Run output directory (required)")
	publishCmd.Flags().String("run-name", "", "MLflow run name (default: timestamp-based)")
	publishCmd.Flags().String("description", "", "Run description")
	publishCmd.Flags().String("id", "", "Benchmark run ID (default: run_id from config.yaml)")
	publishCmd.Flags().String("env", "", "Environment ID (default: from config.yaml)")
	publishCmd.Flags().String("agent", "", "Agent name (default: from config.yaml)")
	publishCmd.Flags().String("track", "", "Track (default: from config.yaml, else test)")
	publishCmd.MarkFlagRequired("dir")
}

func publish(cmd *cobra.Command, args []string) error {
	cfg, ctx, cancel := loadConfig(cmd)
	defer cancel()

	dir, _ := cmd.Flags().GetString("dir")
	rd, err := openRunDir(dir)
	if err != nil {
		return err
	}

	runConfig, err := rd.config()
	if err != nil {
		return err
	}
	req, err := runCreateFromConfig(cmd, runConfig)
	if err != nil {
		return err
	}
	runConfig.RunID, runConfig.Env, runConfig.Agent, runConfig.Track = req.ID, req.Env, req.Agent, req.Track

	episodes, err := rd.episodes()
	if err != nil {
		return err
	}
	runMetrics, err := rd.metrics(episodes, req.Track)
	if err != nil {
		return err
	}

	client, err := newMLflowClient(cfg)
	if err != nil {
		return err
	}

	runName, _ := cmd.Flags().GetString("run-name")
	description, _ := cmd.Flags().GetString("description")
	runID, err := client.CreateRun(ctx, mlflow.PublishRun{
		RunName:     runName,
		Agent:       req.Agent,
		Env:         req.Env,
		Track:       req.Track,
		Description: description,
	})
	if err != nil {
		return err
	}
	slog.Info("mlflow run created", "mlflow_run_id", runID, "agent", req.Agent, "env", req.Env, "track", req.Track)

	publishErr := func() error {
		if err := client.LogParamsFromMap(ctx, runID, mlflow.ConfigParams(*runConfig)); err != nil {
			return err
		}
		if err := client.LogRunMetrics(ctx, runID, runMetrics, metrics.EpisodeReturns(episodes)); err != nil {
			return err
		}
		for _, path := range []string{rd.MetricsPath, rd.TracePath, rd.ConfigPath} {
			if path == "" {
				continue
			}
			if err := client.UploadArtifact(ctx, runID, path, ""); err != nil {
				return fmt.Errorf("failed to upload %s: %w", path, err)
			}
		}
		return nil
	}()

	status := ml.UpdateRunStatusFinished
	if publishErr != nil {
		status = ml.UpdateRunStatusFailed
	}
	// The run is closed even when the request context has expired.
	if err := client.UpdateRun(context.WithoutCancel(ctx), runID, status); err != nil {
		slog.Warn("failed to close mlflow run", "mlflow_run_id", runID, "error", err)
	}
	if publishErr != nil {
		return fmt.Errorf("failed to publish run %s: %w", runID, publishErr)
	}

	// Output only run ID for shell scripting
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n", runID)
	return nil
}
