package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/imishinist/wmg-cli/internal/analysis"
	"github.com/imishinist/wmg-cli/internal/models"
	timeutils "github.com/imishinist/wmg-cli/internal/time"
)

// Output formats
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

const (
	emptyLeaderboardMessage = "No uploaded runs for this track yet."
	emptyEventsMessage      = "No events in trace."
	emptyPlannerMessage     = "No planner data in trace."
	emptyTasksMessage       = "No tasks registered."
)

func addOutputFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", formatTable, "Output format (table/json/yaml)")
}

func outputFormat(cmd *cobra.Command) (string, error) {
	format, _ := cmd.Flags().GetString("output")
	format = strings.ToLower(format)
	switch format {
	case formatTable, formatJSON, formatYAML:
		return format, nil
	default:
		return "", fmt.Errorf("invalid output format: %s (valid: table, json, yaml)", format)
	}
}

// writeStructured encodes v as JSON or YAML. It returns false for table output.
func writeStructured(w io.Writer, format string, v any) (bool, error) {
	switch format {
	case formatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return true, encoder.Encode(v)
	case formatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(v); err != nil {
			return true, err
		}
		return true, encoder.Close()
	default:
		return false, nil
	}
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func formatFloat(v float64) string {
	return fmt.Sprintf("%.3f", v)
}

func writeLeaderboard(w io.Writer, rows []models.LeaderboardRow) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, emptyLeaderboardMessage)
		return err
	}

	tw := newTable(w)
	fmt.Fprintln(tw, "RANK\tRUN_ID\tAGENT\tENV\tSUCCESS_RATE\tMEAN_RETURN\tMS/STEP\tCREATED_AT")
	for i, row := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			i+1, row.RunID, row.Agent, row.Env,
			formatFloat(row.SuccessRate), formatFloat(row.MeanReturn), formatFloat(row.PlanningCostMsPerStep),
			timeutils.FormatTimestamp(row.CreatedAt.Time))
	}
	return tw.Flush()
}

func writeEvents(w io.Writer, events []models.Event, limit int) error {
	if len(events) == 0 {
		_, err := fmt.Fprintln(w, emptyEventsMessage)
		return err
	}

	shown := limitEvents(events, limit)
	tw := newTable(w)
	fmt.Fprintln(tw, "T\tEVENT")
	for _, event := range shown {
		fmt.Fprintf(tw, "%d\t%s\n", event.T, event.Name)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if hidden := len(events) - len(shown); hidden > 0 {
		_, err := fmt.Fprintf(w, "... %d more events\n", hidden)
		return err
	}
	return nil
}

// limitEvents truncates events for display. A limit of zero shows everything.
func limitEvents(events []models.Event, limit int) []models.Event {
	if limit <= 0 || len(events) <= limit {
		return events
	}
	return events[:limit]
}

func writePlanner(w io.Writer, planner models.Planner, ok bool) error {
	if !ok {
		_, err := fmt.Fprintln(w, emptyPlannerMessage)
		return err
	}

	keys := make([]string, 0, len(planner))
	for key := range planner {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	tw := newTable(w)
	fmt.Fprintln(tw, "KEY\tVALUE")
	for _, key := range keys {
		value, err := json.Marshal(planner[key])
		if err != nil {
			return fmt.Errorf("failed to format planner value %s: %w", key, err)
		}
		fmt.Fprintf(tw, "%s\t%s\n", key, value)
	}
	return tw.Flush()
}

func writeMetrics(w io.Writer, m models.Metrics) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "METRIC\tVALUE")
	fmt.Fprintf(tw, "success_rate\t%s\n", formatFloat(m.SuccessRate))
	fmt.Fprintf(tw, "mean_return\t%s\n", formatFloat(m.MeanReturn))
	if m.MedianStepsToSuccess != nil {
		fmt.Fprintf(tw, "median_steps_to_success\t%s\n", formatFloat(*m.MedianStepsToSuccess))
	}
	fmt.Fprintf(tw, "planning_cost.wall_clock_ms_per_step\t%s\n", formatFloat(m.PlanningCost.WallClockMsPerStep))
	fmt.Fprintf(tw, "planning_cost.imagined_transitions\t%s\n", formatFloat(m.PlanningCost.ImaginedTransitions))
	fmt.Fprintf(tw, "planning_cost.peak_memory_mb\t%s\n", formatFloat(m.PlanningCost.PeakMemoryMB))
	fmt.Fprintf(tw, "generalization_gap\t%s\n", formatFloat(m.GeneralizationGap))
	writeMetricGroup(tw, "model_fidelity.", m.ModelFidelity)
	writeMetricGroup(tw, "achievement.", m.AchievementCompletion)
	writeMetricGroup(tw, "continual.", m.ContinualMetrics)
	return tw.Flush()
}

func writeMetricGroup(w io.Writer, prefix string, values map[string]float64) {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(w, "%s%s\t%s\n", prefix, key, formatFloat(values[key]))
	}
}

// runViewOutput adds the trace error to the structured run view.
type runViewOutput struct {
	analysis.RunView `yaml:",inline"`
	TraceError       string `json:"trace_error,omitempty" yaml:"trace_error,omitempty"`
}

func newRunViewOutput(view *analysis.RunView, eventLimit int) runViewOutput {
	out := runViewOutput{RunView: *view}
	out.Events = limitEvents(view.Events, eventLimit)
	if view.TraceErr != nil {
		out.TraceError = view.TraceErr.Error()
	}
	return out
}

func writeRunView(w io.Writer, view *analysis.RunView, eventLimit int) error {
	run := view.Run

	tw := newTable(w)
	fmt.Fprintf(tw, "Run ID:\t%s\n", run.ID)
	fmt.Fprintf(tw, "Agent:\t%s\n", run.Agent)
	fmt.Fprintf(tw, "Env:\t%s\n", run.Env)
	fmt.Fprintf(tw, "Track:\t%s\n", run.Track)
	if run.Status != "" {
		fmt.Fprintf(tw, "Status:\t%s\n", run.Status)
	}
	fmt.Fprintf(tw, "Created:\t%s\n", timeutils.FormatTimestamp(run.CreatedAt.Time))
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w, "\nStored metrics")
	if err := writeMetrics(w, run.Metrics); err != nil {
		return err
	}

	if view.TraceErr != nil {
		_, err := fmt.Fprintf(w, "\nTrace unavailable: %v\n", view.TraceErr)
		return err
	}

	if view.Recomputed != nil {
		fmt.Fprintln(w, "\nRecomputed from trace")
		if err := writeMetrics(w, *view.Recomputed); err != nil {
			return err
		}
	}

	fmt.Fprintf(w, "\nEpisodes (%d)\n", view.Episodes)
	if len(view.Timeline) > 0 {
		tw = newTable(w)
		fmt.Fprintln(tw, "#\tEPISODE_ID\tSEED\tSTEPS\tEVENTS\tRETURN")
		for _, summary := range view.Timeline {
			fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%s\n",
				summary.Index, summary.EpisodeID, summary.Seed, summary.Steps, summary.Events, formatFloat(summary.Return))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintln(w, "\nPlanner (first step)")
	if err := writePlanner(w, view.Planner, view.Planner != nil); err != nil {
		return err
	}

	fmt.Fprintln(w, "\nEvents")
	return writeEvents(w, view.Events, eventLimit)
}

func writeTasks(w io.Writer, tasks []models.Task) error {
	if len(tasks) == 0 {
		_, err := fmt.Fprintln(w, emptyTasksMessage)
		return err
	}

	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tDESCRIPTION")
	for _, task := range tasks {
		fmt.Fprintf(tw, "%s\t%s\n", task.ID, task.Description)
	}
	return tw.Flush()
}
