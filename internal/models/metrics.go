package models

type PlanningCost struct {
	WallClockMsPerStep  float64 `json:"wall_clock_ms_per_step" yaml:"wall_clock_ms_per_step"`
	ImaginedTransitions float64 `json:"imagined_transitions" yaml:"imagined_transitions"`
	PeakMemoryMB        float64 `json:"peak_memory_mb" yaml:"peak_memory_mb"`
}

// Metrics summarises a run. The shape matches the metrics.json written by the
// evaluation harness; fields the harness omits decode as zero values.
type Metrics struct {
	SuccessRate           float64            `json:"success_rate" yaml:"success_rate"`
	MeanReturn            float64            `json:"mean_return" yaml:"mean_return"`
	MedianStepsToSuccess  *float64           `json:"median_steps_to_success,omitempty" yaml:"median_steps_to_success,omitempty"`
	AchievementCompletion map[string]float64 `json:"achievement_completion,omitempty" yaml:"achievement_completion,omitempty"`
	PlanningCost          PlanningCost       `json:"planning_cost" yaml:"planning_cost"`
	ModelFidelity         map[string]float64 `json:"model_fidelity" yaml:"model_fidelity"`
	GeneralizationGap     float64            `json:"generalization_gap" yaml:"generalization_gap"`
	ContinualMetrics      map[string]float64 `json:"continual_metrics,omitempty" yaml:"continual_metrics,omitempty"`
}

func (m Metrics) PlanningCostMsPerStep() float64 {
	return m.PlanningCost.WallClockMsPerStep
}

// MetricPoint is a single scalar logged to a tracking server.
type MetricPoint struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
	Step  int64   `json:"step"`
}
