package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/imishinist/wmg-cli/internal/models"
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Create a run on the benchmark API and upload its artifacts",
	Long: `Create a run from a harness output directory and upload metrics.json,
trace.jsonl and config.yaml to it. Agent, env, track and run ID default to
the values in config.yaml.`,
	RunE: submit,
}

func init() {
	rootCmd.AddCommand(submitCmd)

	submitCmd.Flags().String("dir", "", "Run output directory (required)")
	submitCmd.Flags().String("id", "", "Run ID (default: run_id from config.yaml)")
	submitCmd.Flags().String("env", "", "Environment ID (default: from config.yaml)")
	submitCmd.Flags().String("agent", "", "Agent name (default: from config.yaml)")
	submitCmd.Flags().String("track", "", "Track (default: from config.yaml, else test)")
	submitCmd.MarkFlagRequired("dir")
}

func submit(cmd *cobra.Command, args []string) error {
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

	// A bad trace is refused before the run exists on the server.
	if _, err := rd.episodes(); err != nil {
		return err
	}

	client, err := newBackendClient(cfg)
	if err != nil {
		return err
	}

	run, err := client.CreateRun(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	slog.Info("run created", "run_id", run.ID, "agent", run.Agent, "env", run.Env, "track", run.Track)

	run, err = uploadRunDir(ctx, client, run.ID, rd)
	if err != nil {
		return err
	}

	// Output only run ID for shell scripting
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n", run.ID)
	return nil
}

// runCreateFromConfig fills a run request from flags, falling back to the
// harness config.
func runCreateFromConfig(cmd *cobra.Command, runConfig *models.RunConfig) (models.RunCreate, error) {
	req := models.RunCreate{
		ID:    runConfig.RunID,
		Env:   runConfig.Env,
		Agent: runConfig.Agent,
		Track: runConfig.Track,
	}

	for flag, dest := range map[string]*string{
		"id":    &req.ID,
		"env":   &req.Env,
		"agent": &req.Agent,
		"track": &req.Track,
	} {
		if cmd.Flags().Changed(flag) {
			*dest, _ = cmd.Flags().GetString(flag)
		}
	}

	if req.Track == "" {
		req.Track = "test"
	}
	if req.Env == "" {
		return req, fmt.Errorf("env must be specified via --env or config.yaml")
	}
	if req.Agent == "" {
		return req, fmt.Errorf("agent must be specified via --agent or config.yaml")
	}
	return req, nil
}
