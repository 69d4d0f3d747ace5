package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/imishinist/wmg-cli/internal/analysis"
	"github.com/imishinist/wmg-cli/internal/leaderboard"
	"github.com/imishinist/wmg-cli/internal/models"
)

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Show the leaderboard of a track",
	Long: `Rank the runs of one track by success rate, then mean return.
Stored run metrics are used unless --recompute is given, in which case
metrics are recomputed from each run's trace.`,
	RunE: showLeaderboard,
}

func init() {
	rootCmd.AddCommand(leaderboardCmd)

	leaderboardCmd.Flags().String("track", "test", "Track to rank (exact match)")
	leaderboardCmd.Flags().String("env", "", "Only runs on this environment")
	leaderboardCmd.Flags().String("agent", "", "Only runs of this agent")
	leaderboardCmd.Flags().String("order", string(leaderboard.OrderRanked), "Row order (ranked/newest)")
	leaderboardCmd.Flags().Bool("recompute", false, "Recompute metrics from run traces")
	leaderboardCmd.Flags().String("from-file", "", "Read runs from a JSON/YAML manifest instead of the source")
	addOutputFlag(leaderboardCmd)
}

func showLeaderboard(cmd *cobra.Command, args []string) error {
	cfg, ctx, cancel := loadConfig(cmd)
	defer cancel()

	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}

	// Parse flags
	track, _ := cmd.Flags().GetString("track")
	env, _ := cmd.Flags().GetString("env")
	agent, _ := cmd.Flags().GetString("agent")
	orderFlag, _ := cmd.Flags().GetString("order")
	recompute, _ := cmd.Flags().GetBool("recompute")
	fromFile, _ := cmd.Flags().GetString("from-file")

	order, err := leaderboard.ParseOrder(orderFlag)
	if err != nil {
		return err
	}

	var source analysis.Source
	if fromFile != "" {
		source, err = analysis.LoadManifest(fromFile)
	} else {
		source, err = newSource(cfg)
	}
	if err != nil {
		return err
	}

	query := models.LeaderboardQuery{Track: track, Env: env, Agent: agent}
	result, err := newService(cfg, source).Leaderboard(ctx, query, analysis.LeaderboardOptions{
		Order:     order,
		Recompute: recompute,
	})
	if err != nil {
		return fmt.Errorf("failed to build leaderboard: %w", err)
	}

	slog.Debug("leaderboard built", "track", track, "rows", len(result.Rows), "failures", len(result.Failures))

	if ok, err := writeStructured(cmd.OutOrStdout(), format, result.Rows); ok {
		return err
	}
	return writeLeaderboard(cmd.OutOrStdout(), result.Rows)
}
