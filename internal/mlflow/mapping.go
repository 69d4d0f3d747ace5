package mlflow

import (
	"sort"
	"strings"

	"github.com/databricks/databricks-sdk-go/service/ml"

	"github.com/imishinist/wmg-cli/internal/models"
	timeutils "github.com/imishinist/wmg-cli/internal/time"
)

// Tags identifying a benchmark run inside an MLflow experiment.
const (
	TagAgent = "wmg.agent"
	TagEnv   = "wmg.env"
	TagTrack = "wmg.track"

	tagRunName = "mlflow.runName"
	tagNote    = "mlflow.note.content"
)

// Metric keys and key prefixes used for the flattened Metrics shape.
const (
	keySuccessRate          = "success_rate"
	keyMeanReturn           = "mean_return"
	keyMedianStepsToSuccess = "median_steps_to_success"
	keyGeneralizationGap    = "generalization_gap"
	keyEpisodeReturn        = "episode_return"

	prefixPlanningCost  = "planning_cost."
	prefixModelFidelity = "model_fidelity."
	prefixAchievement   = "achievement."
	prefixContinual     = "continual."
)

// Artifact names
const (
	TraceArtifact   = "trace.jsonl"
	MetricsArtifact = "metrics.json"
	ConfigArtifact  = "config.yaml"
)

// FlattenMetrics converts metrics to MLflow scalar keys, sorted by key.
func FlattenMetrics(m models.Metrics) []models.MetricPoint {
	points := []models.MetricPoint{
		{Key: keySuccessRate, Value: m.SuccessRate},
		{Key: keyMeanReturn, Value: m.MeanReturn},
		{Key: keyGeneralizationGap, Value: m.GeneralizationGap},
		{Key: prefixPlanningCost + "wall_clock_ms_per_step", Value: m.PlanningCost.WallClockMsPerStep},
		{Key: prefixPlanningCost + "imagined_transitions", Value: m.PlanningCost.ImaginedTransitions},
		{Key: prefixPlanningCost + "peak_memory_mb", Value: m.PlanningCost.PeakMemoryMB},
	}
	if m.MedianStepsToSuccess != nil {
		points = append(points, models.MetricPoint{Key: keyMedianStepsToSuccess, Value: *m.MedianStepsToSuccess})
	}
	for k, v := range m.ModelFidelity {
		points = append(points, models.MetricPoint{Key: prefixModelFidelity + k, Value: v})
	}
	for k, v := range m.AchievementCompletion {
		points = append(points, models.MetricPoint{Key: prefixAchievement + k, Value: v})
	}
	for k, v := range m.ContinualMetrics {
		points = append(points, models.MetricPoint{Key: prefixContinual + k, Value: v})
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Key < points[j].Key })
	return points
}

// metricsFromMLflow rebuilds Metrics from the latest values of a run's metrics.
func metricsFromMLflow(metrics []ml.Metric) models.Metrics {
	result := models.Metrics{ModelFidelity: map[string]float64{}}

	for _, metric := range metrics {
		key, value := metric.Key, metric.Value
		switch {
		case key == keySuccessRate:
			result.SuccessRate = value
		case key == keyMeanReturn:
			result.MeanReturn = value
		case key == keyGeneralizationGap:
			result.GeneralizationGap = value
		case key == keyMedianStepsToSuccess:
			v := value
			result.MedianStepsToSuccess = &v
		case key == prefixPlanningCost+"wall_clock_ms_per_step":
			result.PlanningCost.WallClockMsPerStep = value
		case key == prefixPlanningCost+"imagined_transitions":
			result.PlanningCost.ImaginedTransitions = value
		case key == prefixPlanningCost+"peak_memory_mb":
			result.PlanningCost.PeakMemoryMB = value
		case strings.HasPrefix(key, prefixModelFidelity):
			result.ModelFidelity[strings.TrimPrefix(key, prefixModelFidelity)] = value
		case strings.HasPrefix(key, prefixAchievement):
			if result.AchievementCompletion == nil {
				result.AchievementCompletion = map[string]float64{}
			}
			result.AchievementCompletion[strings.TrimPrefix(key, prefixAchievement)] = value
		case strings.HasPrefix(key, prefixContinual):
			if result.ContinualMetrics == nil {
				result.ContinualMetrics = map[string]float64{}
			}
			result.ContinualMetrics[strings.TrimPrefix(key, prefixContinual)] = value
		}
	}

	return result
}

// runFromMLflow maps an MLflow run carrying wmg.* tags onto a benchmark run.
func runFromMLflow(run ml.Run) models.Run {
	tags := make(map[string]string)
	var metrics []ml.Metric
	if run.Data != nil {
		for _, tag := range run.Data.Tags {
			tags[tag.Key] = tag.Value
		}
		metrics = run.Data.Metrics
	}

	result := models.Run{
		Agent:   tags[TagAgent],
		Env:     tags[TagEnv],
		Track:   tags[TagTrack],
		Metrics: metricsFromMLflow(metrics),
	}

	if run.Info != nil {
		result.ID = run.Info.RunId
		result.Status = string(run.Info.Status)
		result.CreatedAt = models.NewTimestamp(timeutils.FromUnixMilli(run.Info.StartTime))
		result.UpdatedAt = models.NewTimestamp(timeutils.FromUnixMilli(run.Info.EndTime))
	}

	return result
}
