package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imishinist/wmg-cli/internal/analysis"
	"github.com/imishinist/wmg-cli/internal/models"
)

func TestWriteLeaderboardEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeLeaderboard(&buf, []models.LeaderboardRow{}))
	assert.Equal(t, emptyLeaderboardMessage+"\n", buf.String())
}

func TestWriteLeaderboardRows(t *testing.T) {
	var buf bytes.Buffer
	rows := []models.LeaderboardRow{
		{RunID: "r1", Agent: "dreamer", Env: "craftax", Track: "test", SuccessRate: 0.5, MeanReturn: 1.25,
			CreatedAt: models.NewTimestamp(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))},
	}
	require.NoError(t, writeLeaderboard(&buf, rows))

	out := buf.String()
	assert.Contains(t, out, "RANK")
	assert.Contains(t, out, "dreamer")
	assert.Contains(t, out, "0.500")
	assert.Contains(t, out, "2024-05-01T00:00:00Z")
}

func TestWriteStructuredEmptyLeaderboard(t *testing.T) {
	var buf bytes.Buffer
	ok, err := writeStructured(&buf, formatJSON, []models.LeaderboardRow{})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "[]\n", buf.String())

	buf.Reset()
	ok, err = writeStructured(&buf, formatTable, nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, buf.String())
}

func TestLimitEvents(t *testing.T) {
	events := []models.Event{{T: 0, Name: "a"}, {T: 1, Name: "b"}, {T: 2, Name: "c"}}

	assert.Len(t, limitEvents(events, 0), 3)
	assert.Len(t, limitEvents(events, 5), 3)
	assert.Equal(t, events[:2], limitEvents(events, 2))
}

func TestWriteEventsTruncates(t *testing.T) {
	events := []models.Event{{T: 0, Name: "spawn"}, {T: 1, Name: "pickup"}, {T: 1, Name: "unlock"}}

	var buf bytes.Buffer
	require.NoError(t, writeEvents(&buf, events, 2))
	assert.Contains(t, buf.String(), "pickup")
	assert.NotContains(t, buf.String(), "unlock")
	assert.Contains(t, buf.String(), "... 1 more events")

	buf.Reset()
	require.NoError(t, writeEvents(&buf, nil, 2))
	assert.Equal(t, emptyEventsMessage+"\n", buf.String())
}

func TestWritePlannerMissing(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writePlanner(&buf, nil, false))
	assert.Equal(t, emptyPlannerMessage+"\n", buf.String())

	buf.Reset()
	require.NoError(t, writePlanner(&buf, models.Planner{"depth": 3.0, "algo": "mcts"}, true))
	assert.Contains(t, buf.String(), "depth")
	assert.Contains(t, buf.String(), `"mcts"`)
}

func TestRunViewOutputJSON(t *testing.T) {
	view := &analysis.RunView{
		Run:      models.Run{ID: "r1", Track: "test"},
		Timeline: nil,
		Events:   []models.Event{{T: 0, Name: "a"}, {T: 1, Name: "b"}},
		TraceErr: errors.New("trace missing"),
	}

	var buf bytes.Buffer
	_, err := writeStructured(&buf, formatJSON, newRunViewOutput(view, 1))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "trace missing", decoded["trace_error"])
	assert.Len(t, decoded["events"], 1)
	assert.Contains(t, decoded, "run")
	assert.Len(t, view.Events, 2, "display truncation leaves the view intact")
}

func TestWriteRunViewTraceError(t *testing.T) {
	view := &analysis.RunView{
		Run:      models.Run{ID: "r1", Agent: "dreamer", Track: "test"},
		TraceErr: errors.New("malformed trace at line 1"),
	}

	var buf bytes.Buffer
	require.NoError(t, writeRunView(&buf, view, 10))
	assert.Contains(t, buf.String(), "dreamer")
	assert.Contains(t, buf.String(), "Trace unavailable: malformed trace at line 1")
}

func TestWriteMetrics(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeMetrics(&buf, models.Metrics{
		SuccessRate:      1,
		ContinualMetrics: map[string]float64{"forgetting": 0.25},
	}))
	assert.Contains(t, buf.String(), "success_rate")
	assert.Contains(t, buf.String(), "continual.forgetting")
	assert.NotContains(t, buf.String(), "median_steps_to_success")
}
