package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/imishinist/wmg-cli/internal/analysis"
	"github.com/imishinist/wmg-cli/internal/backend"
	"github.com/imishinist/wmg-cli/internal/config"
	"github.com/imishinist/wmg-cli/internal/mlflow"
)

// newSource returns the run source selected by --source.
func newSource(cfg *config.Config) (analysis.Source, error) {
	switch cfg.Source {
	case config.SourceMLflow:
		client, err := newMLflowClient(cfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.SourceAPI:
		client, err := newBackendClient(cfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("invalid source: %s (valid: api, mlflow)", cfg.Source)
	}
}

func newBackendClient(cfg *config.Config) (*backend.Client, error) {
	client, err := backend.NewClient(cfg, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("failed to create benchmark API client: %w", err)
	}
	return client, nil
}

func newMLflowClient(cfg *config.Config) (*mlflow.Client, error) {
	client, err := mlflow.NewClient(cfg, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("failed to create MLflow client: %w", err)
	}
	return client, nil
}

func newService(cfg *config.Config, source analysis.Source) *analysis.Service {
	return analysis.NewService(source,
		analysis.WithLogger(slog.Default()),
		analysis.WithConcurrency(cfg.Concurrency),
	)
}

// isMissing reports whether err means the run or one of its artifacts was
// never uploaded, as opposed to a failed fetch.
func isMissing(err error) bool {
	return errors.Is(err, mlflow.ErrArtifactNotFound) || backend.IsNotFound(err)
}

func artifactError(err error, artifact, runID string) error {
	if isMissing(err) {
		return fmt.Errorf("%s unavailable for run %s: %w", artifact, runID, err)
	}
	return fmt.Errorf("failed to get %s for run %s: %w", artifact, runID, err)
}
