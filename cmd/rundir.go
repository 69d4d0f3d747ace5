package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/imishinist/wmg-cli/internal/analysis"
	"github.com/imishinist/wmg-cli/internal/mlflow"
	"github.com/imishinist/wmg-cli/internal/models"
	"github.com/imishinist/wmg-cli/internal/parser"
)

// runDir is a harness output directory holding metrics.json, trace.jsonl
// and config.yaml. Missing files are left empty.
type runDir struct {
	MetricsPath string
	TracePath   string
	ConfigPath  string
}

func openRunDir(dir string) (*runDir, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open run directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	rd := &runDir{}
	for name, dest := range map[string]*string{
		mlflow.MetricsArtifact: &rd.MetricsPath,
		mlflow.TraceArtifact:   &rd.TracePath,
		mlflow.ConfigArtifact:  &rd.ConfigPath,
	} {
		path := filepath.Join(dir, name)
		_, err := os.Stat(path)
		switch {
		case err == nil:
			*dest = path
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}
	}

	if rd.MetricsPath == "" && rd.TracePath == "" && rd.ConfigPath == "" {
		return nil, fmt.Errorf("no run artifacts (%s, %s, %s) found in %s",
			mlflow.MetricsArtifact, mlflow.TraceArtifact, mlflow.ConfigArtifact, dir)
	}
	return rd, nil
}

func (d *runDir) config() (*models.RunConfig, error) {
	if d.ConfigPath == "" {
		return &models.RunConfig{}, nil
	}

	file, err := os.Open(d.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	return parser.ParseYAMLRunConfig(file)
}

func (d *runDir) episodes() ([]models.Episode, error) {
	if d.TracePath == "" {
		return []models.Episode{}, nil
	}
	return readTraceFile(d.TracePath)
}

// metrics prefers the harness metrics.json and falls back to recomputing
// from the trace.
func (d *runDir) metrics(episodes []models.Episode, track string) (models.Metrics, error) {
	if d.MetricsPath == "" {
		return analysis.Recompute(episodes, track), nil
	}

	file, err := os.Open(d.MetricsPath)
	if err != nil {
		return models.Metrics{}, fmt.Errorf("failed to open metrics: %w", err)
	}
	defer file.Close()

	m, err := parser.ParseJSONMetrics(file)
	if err != nil {
		return models.Metrics{}, err
	}
	return *m, nil
}

func readTraceFile(path string) ([]models.Episode, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace: %w", err)
	}
	defer file.Close()

	episodes, err := parser.DecodeTrace(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return episodes, nil
}
