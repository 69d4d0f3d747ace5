package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/imishinist/wmg-cli/internal/backend"
	"github.com/imishinist/wmg-cli/internal/models"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Inspect and manage benchmark runs",
	Long:  "Show, create, and upload benchmark runs",
}

var runShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a run with its trace",
	Long: `Show run metadata, stored and recomputed metrics, the episode timeline,
the first planner snapshot, and the trace events of a run.`,
	RunE: runShow,
}

var runConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the harness config of a run",
	RunE:  runConfig,
}

var runMetricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show the metrics.json uploaded for a run",
	RunE:  runMetrics,
}

var runCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a new run with the benchmark API",
	RunE:  runCreate,
}

var runUploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload run artifacts to the benchmark API",
	Long: `Upload metrics.json, trace.jsonl and config.yaml to an existing run.
The trace is decoded locally first and a malformed trace is refused.`,
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.AddCommand(runShowCmd)
	runCmd.AddCommand(runConfigCmd)
	runCmd.AddCommand(runMetricsCmd)
	runCmd.AddCommand(runCreateCmd)
	runCmd.AddCommand(runUploadCmd)

	// Show command flags
	runShowCmd.Flags().String("run-id", "", "Run ID to show (required)")
	runShowCmd.Flags().Int("events", -1, "Maximum events to display (default: WMG_EVENT_LIMIT, 0 shows all)")
	runShowCmd.MarkFlagRequired("run-id")
	addOutputFlag(runShowCmd)

	// Config command flags
	runConfigCmd.Flags().String("run-id", "", "Run ID (required)")
	runConfigCmd.MarkFlagRequired("run-id")
	runConfigCmd.Flags().StringP("output", "o", formatYAML, "Output format (json/yaml)")

	// Metrics command flags
	runMetricsCmd.Flags().String("run-id", "", "Run ID (required)")
	runMetricsCmd.MarkFlagRequired("run-id")
	addOutputFlag(runMetricsCmd)

	// Create command flags
	runCreateCmd.Flags().String("id", "", "Run ID (default: assigned by the API)")
	runCreateCmd.Flags().String("env", "", "Environment ID (required)")
	runCreateCmd.Flags().String("agent", "", "Agent name (required)")
	runCreateCmd.Flags().String("track", "test", "Track")
	runCreateCmd.MarkFlagRequired("env")
	runCreateCmd.MarkFlagRequired("agent")

	// Upload command flags
	runUploadCmd.Flags().String("run-id", "", "Run ID to upload to (required)")
	runUploadCmd.Flags().String("dir", "", "Run output directory (required)")
	runUploadCmd.MarkFlagRequired("run-id")
	runUploadCmd.MarkFlagRequired("dir")
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, ctx, cancel := loadConfig(cmd)
	defer cancel()

	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}

	runID, _ := cmd.Flags().GetString("run-id")
	limit, _ := cmd.Flags().GetInt("events")
	if limit < 0 {
		limit = cfg.EventLimit
	}

	source, err := newSource(cfg)
	if err != nil {
		return err
	}

	view, err := newService(cfg, source).RunView(ctx, runID)
	if err != nil {
		return err
	}

	if ok, err := writeStructured(cmd.OutOrStdout(), format, newRunViewOutput(view, limit)); ok {
		return err
	}
	return writeRunView(cmd.OutOrStdout(), view, limit)
}

// configGetter is implemented by every remote source.
type configGetter interface {
	GetConfig(ctx context.Context, runID string) (*models.RunConfig, error)
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, ctx, cancel := loadConfig(cmd)
	defer cancel()

	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	if format == formatTable {
		format = formatYAML
	}

	runID, _ := cmd.Flags().GetString("run-id")

	source, err := newSource(cfg)
	if err != nil {
		return err
	}
	getter, ok := source.(configGetter)
	if !ok {
		return fmt.Errorf("source %s does not serve run configs", cfg.Source)
	}

	rc, err := getter.GetConfig(ctx, runID)
	if err != nil {
		return artifactError(err, "config", runID)
	}

	_, err = writeStructured(cmd.OutOrStdout(), format, rc)
	return err
}

// metricsGetter is implemented by every remote source.
type metricsGetter interface {
	GetMetrics(ctx context.Context, runID string) (*models.Metrics, error)
}

func runMetrics(cmd *cobra.Command, args []string) error {
	cfg, ctx, cancel := loadConfig(cmd)
	defer cancel()

	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}

	runID, _ := cmd.Flags().GetString("run-id")

	source, err := newSource(cfg)
	if err != nil {
		return err
	}
	getter, ok := source.(metricsGetter)
	if !ok {
		return fmt.Errorf("source %s does not serve run metrics", cfg.Source)
	}

	m, err := getter.GetMetrics(ctx, runID)
	if err != nil {
		return artifactError(err, "metrics", runID)
	}

	if ok, err := writeStructured(cmd.OutOrStdout(), format, m); ok {
		return err
	}
	return writeMetrics(cmd.OutOrStdout(), *m)
}

func runCreate(cmd *cobra.Command, args []string) error {
	cfg, ctx, cancel := loadConfig(cmd)
	defer cancel()

	client, err := newBackendClient(cfg)
	if err != nil {
		return err
	}

	// Parse flags
	id, _ := cmd.Flags().GetString("id")
	env, _ := cmd.Flags().GetString("env")
	agent, _ := cmd.Flags().GetString("agent")
	track, _ := cmd.Flags().GetString("track")

	run, err := client.CreateRun(ctx, models.RunCreate{ID: id, Env: env, Agent: agent, Track: track})
	if err != nil {
		if backend.IsConflict(err) {
			return fmt.Errorf("run %s already exists: %w", id, err)
		}
		return fmt.Errorf("failed to create run: %w", err)
	}

	// Output only run ID for shell scripting
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n", run.ID)

	return nil
}

func runUpload(cmd *cobra.Command, args []string) error {
	cfg, ctx, cancel := loadConfig(cmd)
	defer cancel()

	client, err := newBackendClient(cfg)
	if err != nil {
		return err
	}

	runID, _ := cmd.Flags().GetString("run-id")
	dir, _ := cmd.Flags().GetString("dir")

	rd, err := openRunDir(dir)
	if err != nil {
		return err
	}

	run, err := uploadRunDir(ctx, client, runID, rd)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s to run %s (status: %s)\n", filepath.Clean(dir), run.ID, run.Status)
	return nil
}

func uploadRunDir(ctx context.Context, client *backend.Client, runID string, rd *runDir) (*models.Run, error) {
	run, err := client.Upload(ctx, runID, backend.UploadFiles{
		Metrics: rd.MetricsPath,
		Trace:   rd.TracePath,
		Config:  rd.ConfigPath,
	})
	if err != nil {
		switch {
		case backend.IsUnauthorized(err):
			return nil, fmt.Errorf("upload token rejected (set WMG_UPLOAD_TOKEN): %w", err)
		case backend.IsNotFound(err):
			return nil, fmt.Errorf("run %s does not exist: %w", runID, err)
		}
		return nil, fmt.Errorf("failed to upload run %s: %w", runID, err)
	}
	return run, nil
}
