package analysis

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/imishinist/wmg-cli/internal/models"
	"github.com/imishinist/wmg-cli/internal/parser"
)

// ManifestSource serves runs from an offline manifest. Traces are read from
// each run's trace_url when it names a local file; relative paths resolve
// against Dir.
type ManifestSource struct {
	Runs []models.Run
	Dir  string
}

// LoadManifest reads a JSON or YAML runs manifest, picked by file extension.
func LoadManifest(path string) (*ManifestSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer file.Close()

	var runs []models.Run
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		runs, err = parser.ParseJSONRuns(file)
	case ".yaml", ".yml":
		runs, err = parser.ParseYAMLRuns(file)
	default:
		return nil, fmt.Errorf("unsupported manifest format: %s (expected .json, .yaml or .yml)", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}

	return &ManifestSource{Runs: runs, Dir: filepath.Dir(path)}, nil
}

func (m *ManifestSource) GetRun(ctx context.Context, runID string) (*models.Run, error) {
	for i := range m.Runs {
		if m.Runs[i].ID == runID {
			run := m.Runs[i]
			return &run, nil
		}
	}
	return nil, fmt.Errorf("run %s not found in manifest", runID)
}

func (m *ManifestSource) GetTrace(ctx context.Context, runID string) ([]byte, error) {
	run, err := m.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	path, ok := localPath(run.TraceURL)
	if !ok {
		return nil, fmt.Errorf("run %s has no local trace", runID)
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(m.Dir, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}
	return data, nil
}

// ListRuns returns every manifest run; filtering is left to the leaderboard.
func (m *ManifestSource) ListRuns(ctx context.Context, q models.LeaderboardQuery) ([]models.Run, error) {
	runs := make([]models.Run, len(m.Runs))
	copy(runs, m.Runs)
	return runs, nil
}

func localPath(traceURL string) (string, bool) {
	switch {
	case traceURL == "":
		return "", false
	case strings.HasPrefix(traceURL, "file://"):
		return filepath.FromSlash(strings.TrimPrefix(traceURL, "file://")), true
	case strings.Contains(traceURL, "://"):
		return "", false
	default:
		return filepath.FromSlash(traceURL), true
	}
}
