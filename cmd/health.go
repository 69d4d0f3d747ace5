package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the benchmark API is reachable",
	RunE:  health,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func health(cmd *cobra.Command, args []string) error {
	cfg, ctx, cancel := loadConfig(cmd)
	defer cancel()

	client, err := newBackendClient(cfg)
	if err != nil {
		return err
	}
	if err := client.Health(ctx); err != nil {
		return fmt.Errorf("benchmark API at %s is unavailable: %w", cfg.APIBase, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "ok\n")
	return nil
}
