package mlflow

import (
	"context"
	"fmt"
	"time"

	"github.com/databricks/databricks-sdk-go/service/ml"

	"github.com/imishinist/wmg-cli/internal/models"
)

// PublishRun describes the MLflow run created for a benchmark run.
type PublishRun struct {
	ExperimentID string
	RunName      string
	Agent        string
	Env          string
	Track        string
	Description  string
}

func (c *Client) CreateRun(ctx context.Context, run PublishRun) (string, error) {
	experimentID := run.ExperimentID
	if experimentID == "" {
		experimentID = c.config.ExperimentID
	}
	if experimentID == "" {
		return "", fmt.Errorf("experiment ID must be provided")
	}

	// Generate run name if not provided
	runName := "run-" + time.Now().Format("2006-01-02-15-04-05")
	if run.RunName != "" {
		runName = run.RunName
	}

	resp, err := c.client.Experiments.CreateRun(ctx, ml.CreateRun{
		ExperimentId: experimentID,
		RunName:      runName,
		StartTime:    time.Now().UnixMilli(),
		Tags:         runTags(run, runName),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create run: %w", err)
	}

	return resp.Run.Info.RunId, nil
}

func (c *Client) UpdateRun(ctx context.Context, runID string, status ml.UpdateRunStatus) error {
	_, err := c.client.Experiments.UpdateRun(ctx, ml.UpdateRun{
		RunId:   runID,
		Status:  status,
		EndTime: time.Now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	return nil
}

// runTags identifies the run by agent, env and track. The benchmark run ID
// is logged as the run_id param; the MLflow run ID stays the run's key.
func runTags(run PublishRun, runName string) []ml.RunTag {
	tags := []ml.RunTag{
		{Key: TagAgent, Value: run.Agent},
		{Key: TagEnv, Value: run.Env},
		{Key: TagTrack, Value: run.Track},
		{Key: tagRunName, Value: runName},
	}
	if run.Description != "" {
		tags = append(tags, ml.RunTag{Key: tagNote, Value: run.Description})
	}
	return tags
}

// GetRun returns the benchmark view of an MLflow run.
func (c *Client) GetRun(ctx context.Context, runID string) (*models.Run, error) {
	resp, err := c.client.Experiments.GetRun(ctx, ml.GetRunRequest{
		RunId: runID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if resp.Run == nil {
		return nil, fmt.Errorf("run %s not found", runID)
	}

	run := runFromMLflow(*resp.Run)
	return &run, nil
}

// ListRuns returns the finished runs of the configured experiment that are
// tagged with the query's track. Env and agent filters are pushed down too.
func (c *Client) ListRuns(ctx context.Context, q models.LeaderboardQuery) ([]models.Run, error) {
	if c.config.ExperimentID == "" {
		return nil, fmt.Errorf("experiment ID must be specified via --experiment-id flag or MLFLOW_EXPERIMENT_ID environment variable")
	}

	found, err := c.client.Experiments.SearchRunsAll(ctx, ml.SearchRuns{
		ExperimentIds: []string{c.config.ExperimentID},
		Filter:        searchFilter(q),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search runs: %w", err)
	}

	runs := make([]models.Run, 0, len(found))
	for _, run := range found {
		runs = append(runs, runFromMLflow(run))
	}

	c.logger.Debug("mlflow runs listed", "experiment_id", c.config.ExperimentID, "track", q.Track, "runs", len(runs))
	return runs, nil
}

func searchFilter(q models.LeaderboardQuery) string {
	filter := "attributes.status = 'FINISHED' and tags.`" + TagTrack + "` = '" + quote(q.Track) + "'"
	if q.Env != "" {
		filter += " and tags.`" + TagEnv + "` = '" + quote(q.Env) + "'"
	}
	if q.Agent != "" {
		filter += " and tags.`" + TagAgent + "` = '" + quote(q.Agent) + "'"
	}
	return filter
}

func quote(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '\'' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
