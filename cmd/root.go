package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/imishinist/wmg-cli/internal/config"
	"github.com/imishinist/wmg-cli/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "wmg-cli",
	Short: "WorldModel Gym benchmark CLI",
	Long: `A command line tool for the WorldModel Gym benchmark platform.
Decodes episode traces, recomputes run metrics, builds leaderboards, and
publishes runs to the benchmark API or an MLflow tracking server.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupLogging,
}

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.String("source", "", "Run source (api/mlflow) (overrides WMG_SOURCE)")
	flags.String("api-base", "", "Benchmark API base URL (overrides WMG_API_BASE)")
	flags.String("tracking-uri", "", "MLflow tracking URI (overrides MLFLOW_TRACKING_URI)")
	flags.String("experiment-id", "", "Experiment ID (overrides MLFLOW_EXPERIMENT_ID)")
	flags.String("log-level", "", "Log level (debug/info/warn/error)")
	flags.String("log-format", "", "Log format (text/json)")
	flags.Duration("timeout", 0, "Timeout for remote calls (e.g. 30s)")
	flags.Int("concurrency", 0, "Maximum concurrent trace fetches")

	viper.BindPFlag("source", flags.Lookup("source"))
	viper.BindPFlag("api_base", flags.Lookup("api-base"))
	viper.BindPFlag("tracking_uri", flags.Lookup("tracking-uri"))
	viper.BindPFlag("experiment_id", flags.Lookup("experiment-id"))
	viper.BindPFlag("log_level", flags.Lookup("log-level"))
	viper.BindPFlag("log_format", flags.Lookup("log-format"))
	viper.BindPFlag("timeout", flags.Lookup("timeout"))
	viper.BindPFlag("concurrency", flags.Lookup("concurrency"))
}

func initConfig() {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env: %v\n", err)
	}

	// Environment variables
	viper.SetEnvPrefix("WMG")
	viper.AutomaticEnv()

	// MLflow and Databricks keep their own variable names
	viper.BindEnv("tracking_uri", "WMG_TRACKING_URI", "MLFLOW_TRACKING_URI")
	viper.BindEnv("experiment_id", "WMG_EXPERIMENT_ID", "MLFLOW_EXPERIMENT_ID")
	viper.BindEnv("databricks_host", "DATABRICKS_HOST")
	viper.BindEnv("databricks_token", "DATABRICKS_TOKEN")

	config.SetDefaults(viper.GetViper())
}

func setupLogging(cmd *cobra.Command, args []string) error {
	cfg := config.New()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	slog.SetDefault(logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat))
	return nil
}

// loadConfig returns the validated configuration and a context bounded by
// its timeout.
func loadConfig(cmd *cobra.Command) (*config.Config, context.Context, context.CancelFunc) {
	cfg := config.New()
	if cfg.Timeout > 0 {
		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout)
		return cfg, ctx, cancel
	}
	ctx, cancel := context.WithCancel(cmd.Context())
	return cfg, ctx, cancel
}
