package models

type LeaderboardRow struct {
	RunID                 string    `json:"run_id" yaml:"run_id"`
	Env                   string    `json:"env" yaml:"env"`
	Agent                 string    `json:"agent" yaml:"agent"`
	Track                 string    `json:"track" yaml:"track"`
	SuccessRate           float64   `json:"success_rate" yaml:"success_rate"`
	MeanReturn            float64   `json:"mean_return" yaml:"mean_return"`
	PlanningCostMsPerStep float64   `json:"planning_cost_ms_per_step" yaml:"planning_cost_ms_per_step"`
	CreatedAt             Timestamp `json:"created_at" yaml:"created_at"`
}

// LeaderboardQuery selects the runs of one track. Env and Agent are optional
// exact-match filters.
type LeaderboardQuery struct {
	Track string
	Env   string
	Agent string
}

type Task struct {
	ID          string         `json:"id" yaml:"id"`
	Description string         `json:"description" yaml:"description"`
	Defaults    map[string]any `json:"defaults,omitempty" yaml:"defaults,omitempty"`
}

type TaskList struct {
	Tasks []Task `json:"tasks" yaml:"tasks"`
}
