package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/imishinist/wmg-cli/internal/analysis"
	"github.com/imishinist/wmg-cli/internal/models"
	"github.com/imishinist/wmg-cli/internal/parser"
	"github.com/imishinist/wmg-cli/internal/trace"
)

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Decode and inspect episode traces",
	Long: `Decode a trace.jsonl from a local file (--file) or from a run (--run-id)
and show its events, first planner snapshot, or recomputed metrics.`,
}

var traceEventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List trace events in order",
	RunE:  traceEvents,
}

var tracePlannerCmd = &cobra.Command{
	Use:   "planner",
	Short: "Show the first planner snapshot",
	RunE:  tracePlanner,
}

var traceMetricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Recompute metrics from a trace",
	RunE:  traceMetrics,
}

var traceExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Re-encode a trace as normalized JSONL",
	RunE:  traceExport,
}

func init() {
	rootCmd.AddCommand(traceCmd)
	for _, c := range []*cobra.Command{traceEventsCmd, tracePlannerCmd, traceMetricsCmd, traceExportCmd} {
		traceCmd.AddCommand(c)
		c.Flags().String("file", "", "Local trace.jsonl")
		c.Flags().String("run-id", "", "Run whose trace to fetch")
		c.MarkFlagsOneRequired("file", "run-id")
		c.MarkFlagsMutuallyExclusive("file", "run-id")
	}

	traceEventsCmd.Flags().Int("limit", 0, "Maximum events to display (0 shows all)")
	addOutputFlag(traceEventsCmd)
	addOutputFlag(tracePlannerCmd)
	traceMetricsCmd.Flags().String("track", "", "Track of the run (continual adds transfer metrics)")
	addOutputFlag(traceMetricsCmd)
	traceExportCmd.Flags().String("out", "", "Output file (default: stdout)")
}

// loadTrace decodes the trace named by --file or --run-id. For a run, the
// run's track is returned too.
func loadTrace(cmd *cobra.Command) ([]models.Episode, string, error) {
	file, _ := cmd.Flags().GetString("file")
	if file != "" {
		episodes, err := readTraceFile(file)
		return episodes, "", err
	}

	cfg, ctx, cancel := loadConfig(cmd)
	defer cancel()

	runID, _ := cmd.Flags().GetString("run-id")
	source, err := newSource(cfg)
	if err != nil {
		return nil, "", err
	}

	raw, err := source.GetTrace(ctx, runID)
	if err != nil {
		return nil, "", artifactError(err, "trace", runID)
	}
	episodes, err := parser.ParseTrace(raw)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode trace for run %s: %w", runID, err)
	}

	run, err := source.GetRun(ctx, runID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get run %s: %w", runID, err)
	}
	return episodes, run.Track, nil
}

func traceEvents(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")

	episodes, _, err := loadTrace(cmd)
	if err != nil {
		return err
	}

	events := trace.ExtractEvents(episodes)
	if ok, err := writeStructured(cmd.OutOrStdout(), format, limitEvents(events, limit)); ok {
		return err
	}
	return writeEvents(cmd.OutOrStdout(), events, limit)
}

func tracePlanner(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}

	episodes, _, err := loadTrace(cmd)
	if err != nil {
		return err
	}

	planner, ok := trace.FirstPlanner(episodes)
	if format != formatTable {
		if !ok {
			planner = models.Planner{}
		}
		_, err := writeStructured(cmd.OutOrStdout(), format, planner)
		return err
	}
	return writePlanner(cmd.OutOrStdout(), planner, ok)
}

func traceMetrics(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}

	episodes, track, err := loadTrace(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("track") {
		track, _ = cmd.Flags().GetString("track")
	}

	m := analysis.Recompute(episodes, track)
	if ok, err := writeStructured(cmd.OutOrStdout(), format, m); ok {
		return err
	}
	return writeMetrics(cmd.OutOrStdout(), m)
}

func traceExport(cmd *cobra.Command, args []string) error {
	episodes, _, err := loadTrace(cmd)
	if err != nil {
		return err
	}

	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		return parser.EncodeTrace(cmd.OutOrStdout(), episodes)
	}

	file, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}
	if err := parser.EncodeTrace(file, episodes); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
