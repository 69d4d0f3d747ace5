package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSONMetrics(t *testing.T) {
	input := `{
		"run_id": "abc123",
		"success_rate": 0.5,
		"mean_return": 0.3,
		"median_steps_to_success": 120.0,
		"achievement_completion": {"collect_wood": 0.1},
		"planning_cost": {"wall_clock_ms_per_step": 1.2, "imagined_transitions": 14.0, "peak_memory_mb": 5.0},
		"model_fidelity": {"k1": 0.2, "k5": 0.3, "k10": 0.4},
		"generalization_gap": 0.15,
		"continual_metrics": {"forgetting": 0.02}
	}`

	metrics, err := ParseJSONMetrics(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 0.5, metrics.SuccessRate)
	assert.Equal(t, 1.2, metrics.PlanningCostMsPerStep())
	assert.Equal(t, 5.0, metrics.PlanningCost.PeakMemoryMB)
	require.NotNil(t, metrics.MedianStepsToSuccess)
	assert.Equal(t, 120.0, *metrics.MedianStepsToSuccess)
	assert.Equal(t, 0.4, metrics.ModelFidelity["k10"])
	assert.Equal(t, 0.02, metrics.ContinualMetrics["forgetting"])
}

func TestParseJSONRun(t *testing.T) {
	input := `{"id":"r1","env":"memory_maze","agent":"random","track":"test","status":"uploaded",
		"created_at":"2024-05-01T12:00:00.500000","updated_at":"2024-05-01T12:05:00",
		"metrics":{"success_rate":1,"model_fidelity":{"k1":0.25}},"trace_url":"/api/runs/r1/trace"}`

	run, err := ParseJSONRun(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, "r1", run.ID)
	assert.Equal(t, 2024, run.CreatedAt.Year())
	assert.Equal(t, 500000000, run.CreatedAt.Nanosecond())
	assert.Equal(t, 0.25, run.Metrics.ModelFidelity["k1"])
}

func TestParseJSONRunsAcceptsBothShapes(t *testing.T) {
	bare := `[{"id":"a","track":"test"},{"id":"b","track":"train"}]`
	runs, err := ParseJSONRuns(strings.NewReader(bare))
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	wrapped := `{"runs":[{"id":"a","track":"test"}]}`
	runs, err = ParseJSONRuns(strings.NewReader(wrapped))
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "a", runs[0].ID)

	_, err = ParseJSONRuns(strings.NewReader(`"nope"`))
	assert.Error(t, err)
}

func TestParseJSONLeaderboardEmpty(t *testing.T) {
	rows, err := ParseJSONLeaderboard(strings.NewReader(`[]`))
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestParseYAMLRunConfig(t *testing.T) {
	input := `run_id: 4f2a9c0d1e2b
agent: mpc_cem
env: craft_lite
track: continual
seeds:
- 123
- 456
budget:
  max_steps: 300
  planning_ms: 12.5
`
	cfg, err := ParseYAMLRunConfig(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, "mpc_cem", cfg.Agent)
	assert.Equal(t, []int64{123, 456}, cfg.Seeds)
	assert.Equal(t, 300.0, cfg.Budget["max_steps"])
	assert.Equal(t, 12.5, cfg.Budget["planning_ms"])

	empty, err := ParseYAMLRunConfig(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, "", empty.RunID)
}

func TestParseYAMLRuns(t *testing.T) {
	input := `runs:
  - id: r1
    agent: oracle
    env: memory_maze
    track: test
    created_at: "2024-05-01T12:00:00"
    metrics:
      success_rate: 0.75
      mean_return: 1.5
      planning_cost:
        wall_clock_ms_per_step: 2.5
`
	runs, err := ParseYAMLRuns(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 0.75, runs[0].Metrics.SuccessRate)
	assert.Equal(t, 2.5, runs[0].Metrics.PlanningCostMsPerStep())
	assert.Equal(t, 12, runs[0].CreatedAt.Hour())
}

func TestParseJSONTasks(t *testing.T) {
	tasks, err := ParseJSONTasks(strings.NewReader(`{"tasks": [{"id": "craft_lite", "description": "Crafting", "defaults": {"max_steps": 500}}]}`))
	require.NoError(t, err)
	require.Len(t, tasks.Tasks, 1)
	assert.Equal(t, "craft_lite", tasks.Tasks[0].ID)
	assert.Equal(t, 500.0, tasks.Tasks[0].Defaults["max_steps"])

	for _, input := range []string{"", `{}`, `{"tasks": null}`} {
		tasks, err = ParseJSONTasks(strings.NewReader(input))
		require.NoError(t, err, input)
		assert.NotNil(t, tasks.Tasks, input)
		assert.Empty(t, tasks.Tasks, input)
	}

	_, err = ParseJSONTasks(strings.NewReader(`{"tasks": [`))
	assert.Error(t, err)
}
