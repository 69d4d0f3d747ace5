package models

// RunCreate is the request body for registering a new run.
type RunCreate struct {
	ID    string `json:"id,omitempty" yaml:"id,omitempty"`
	Env   string `json:"env" yaml:"env"`
	Agent string `json:"agent" yaml:"agent"`
	Track string `json:"track" yaml:"track"`
}

type Run struct {
	ID        string    `json:"id" yaml:"id"`
	Env       string    `json:"env" yaml:"env"`
	Agent     string    `json:"agent" yaml:"agent"`
	Track     string    `json:"track" yaml:"track"`
	Status    string    `json:"status,omitempty" yaml:"status,omitempty"`
	Metrics   Metrics   `json:"metrics" yaml:"metrics"`
	CreatedAt Timestamp `json:"created_at" yaml:"created_at"`
	UpdatedAt Timestamp `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
	TraceURL  string    `json:"trace_url,omitempty" yaml:"trace_url,omitempty"`
	ConfigURL string    `json:"config_url,omitempty" yaml:"config_url,omitempty"`
}

// RunsFile is an offline manifest of runs, as accepted by --from-file.
type RunsFile struct {
	Runs []Run `json:"runs" yaml:"runs"`
}

// RunConfig mirrors the config.yaml the evaluation harness writes per run.
type RunConfig struct {
	RunID  string             `json:"run_id" yaml:"run_id"`
	Agent  string             `json:"agent" yaml:"agent"`
	Env    string             `json:"env" yaml:"env"`
	Track  string             `json:"track" yaml:"track"`
	Seeds  []int64            `json:"seeds,omitempty" yaml:"seeds,omitempty"`
	Budget map[string]float64 `json:"budget,omitempty" yaml:"budget,omitempty"`
}
