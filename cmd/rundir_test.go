package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imishinist/wmg-cli/internal/models"
)

const sampleTrace = `{"episode_id":0,"seed":1,"steps":[{"t":0,"reward":0,"events":["spawn"],"planner":{"depth":3}},{"t":1,"reward":1,"events":["pickup","unlock"]}]}
`

func writeRunDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func TestOpenRunDir(t *testing.T) {
	dir := writeRunDir(t, map[string]string{
		"trace.jsonl": sampleTrace,
		"config.yaml": "agent: dreamer\nenv: craftax\ntrack: test\nseeds: [1, 2]\n",
	})

	rd, err := openRunDir(dir)
	require.NoError(t, err)
	assert.Empty(t, rd.MetricsPath)
	assert.Equal(t, filepath.Join(dir, "trace.jsonl"), rd.TracePath)

	rc, err := rd.config()
	require.NoError(t, err)
	assert.Equal(t, "dreamer", rc.Agent)
	assert.Equal(t, []int64{1, 2}, rc.Seeds)

	episodes, err := rd.episodes()
	require.NoError(t, err)
	require.Len(t, episodes, 1)

	m, err := rd.metrics(episodes, "test")
	require.NoError(t, err)
	assert.Equal(t, 1.0, m.SuccessRate)
}

func TestOpenRunDirPrefersMetricsFile(t *testing.T) {
	dir := writeRunDir(t, map[string]string{
		"trace.jsonl":  sampleTrace,
		"metrics.json": `{"success_rate": 0.25, "mean_return": 2}`,
	})

	rd, err := openRunDir(dir)
	require.NoError(t, err)

	m, err := rd.metrics(nil, "test")
	require.NoError(t, err)
	assert.Equal(t, 0.25, m.SuccessRate)
	assert.Equal(t, 2.0, m.MeanReturn)
}

func TestOpenRunDirEmpty(t *testing.T) {
	_, err := openRunDir(t.TempDir())
	assert.Error(t, err)

	_, err = openRunDir(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func newRunFlagsCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	for _, name := range []string{"id", "env", "agent", "track"} {
		cmd.Flags().String(name, "", "")
	}
	return cmd
}

func TestRunCreateFromConfig(t *testing.T) {
	cmd := newRunFlagsCommand()
	require.NoError(t, cmd.Flags().Set("agent", "muzero"))

	req, err := runCreateFromConfig(cmd, &models.RunConfig{RunID: "r1", Agent: "dreamer", Env: "craftax"})
	require.NoError(t, err)
	assert.Equal(t, models.RunCreate{ID: "r1", Env: "craftax", Agent: "muzero", Track: "test"}, req)
}

func TestRunCreateFromConfigRequiresEnv(t *testing.T) {
	_, err := runCreateFromConfig(newRunFlagsCommand(), &models.RunConfig{Agent: "dreamer"})
	assert.Error(t, err)
}
