package models

// Planner is an opaque snapshot of a planner's internal state at one step.
type Planner map[string]any

type Step struct {
	T          int64          `json:"t" yaml:"t"`
	Action     int            `json:"action" yaml:"action"`
	Reward     float64        `json:"reward" yaml:"reward"`
	Terminated bool           `json:"terminated" yaml:"terminated"`
	Truncated  bool           `json:"truncated" yaml:"truncated"`
	Events     []string       `json:"events" yaml:"events"`
	Planner    Planner        `json:"planner" yaml:"planner"`
	EnvState   map[string]any `json:"env_state" yaml:"env_state"`
}

// Episode is one rollout within a run. Steps are in temporal order.
type Episode struct {
	EnvID     string `json:"env_id,omitempty" yaml:"env_id,omitempty"`
	EpisodeID int64  `json:"episode_id" yaml:"episode_id"`
	Seed      int64  `json:"seed" yaml:"seed"`
	Steps     []Step `json:"steps" yaml:"steps"`
}

// Event is a semantic event name stamped with the timestep it occurred at.
type Event struct {
	T    int64  `json:"t" yaml:"t"`
	Name string `json:"name" yaml:"name"`
}
