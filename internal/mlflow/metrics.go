package mlflow

import (
	"context"
	"fmt"
	"time"

	"github.com/databricks/databricks-sdk-go/service/ml"

	"github.com/imishinist/wmg-cli/internal/models"
)

func (c *Client) LogMetric(ctx context.Context, runID string, key string, value float64, timestamp *time.Time, step *int64) error {
	logMetric := ml.LogMetric{
		RunId: runID,
		Key:   key,
		Value: value,
	}

	if timestamp != nil {
		logMetric.Timestamp = timestamp.UnixMilli()
	} else {
		logMetric.Timestamp = time.Now().UnixMilli()
	}

	if step != nil {
		logMetric.Step = *step
	}

	err := c.client.Experiments.LogMetric(ctx, logMetric)
	if err != nil {
		return fmt.Errorf("failed to log metric %s: %w", key, err)
	}

	return nil
}

func (c *Client) LogMetrics(ctx context.Context, runID string, points []models.MetricPoint) error {
	now := time.Now()
	for _, point := range points {
		step := point.Step
		if err := c.LogMetric(ctx, runID, point.Key, point.Value, &now, &step); err != nil {
			return err
		}
	}

	return nil
}

// LogRunMetrics logs the flattened run metrics plus one episode_return point
// per episode, stepped by episode index.
func (c *Client) LogRunMetrics(ctx context.Context, runID string, m models.Metrics, episodeReturns []float64) error {
	points := FlattenMetrics(m)
	for i, ret := range episodeReturns {
		points = append(points, models.MetricPoint{Key: keyEpisodeReturn, Value: ret, Step: int64(i)})
	}
	return c.LogMetrics(ctx, runID, points)
}
