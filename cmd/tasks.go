package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Benchmark tasks",
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the tasks registered with the benchmark API",
	RunE:  tasksList,
}

func init() {
	rootCmd.AddCommand(tasksCmd)
	tasksCmd.AddCommand(tasksListCmd)
	addOutputFlag(tasksListCmd)
}

func tasksList(cmd *cobra.Command, args []string) error {
	cfg, ctx, cancel := loadConfig(cmd)
	defer cancel()

	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}

	client, err := newBackendClient(cfg)
	if err != nil {
		return err
	}

	tasks, err := client.ListTasks(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}

	if ok, err := writeStructured(cmd.OutOrStdout(), format, tasks.Tasks); ok {
		return err
	}
	return writeTasks(cmd.OutOrStdout(), tasks.Tasks)
}
