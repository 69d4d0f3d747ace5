package analysis

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imishinist/wmg-cli/internal/leaderboard"
	"github.com/imishinist/wmg-cli/internal/logging"
	"github.com/imishinist/wmg-cli/internal/models"
)

type fakeSource struct {
	mu        sync.Mutex
	runs      map[string]models.Run
	traces    map[string]string
	runErr    error
	traceErrs map[string]error
	listErr   error

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		runs:      map[string]models.Run{},
		traces:    map[string]string{},
		traceErrs: map[string]error{},
	}
}

func (f *fakeSource) add(run models.Run, trace string) {
	f.runs[run.ID] = run
	f.traces[run.ID] = trace
}

func (f *fakeSource) GetRun(ctx context.Context, runID string) (*models.Run, error) {
	if f.runErr != nil {
		return nil, f.runErr
	}
	run, ok := f.runs[runID]
	if !ok {
		return nil, errors.New("not found")
	}
	return &run, nil
}

func (f *fakeSource) GetTrace(ctx context.Context, runID string) ([]byte, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxInFlight.Load()
		if n <= cur || f.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)

	if err := f.traceErrs[runID]; err != nil {
		return nil, err
	}
	return []byte(f.traces[runID]), nil
}

func (f *fakeSource) ListRuns(ctx context.Context, q models.LeaderboardQuery) ([]models.Run, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	runs := make([]models.Run, 0, len(f.runs))
	for _, run := range f.runs {
		runs = append(runs, run)
	}
	return runs, nil
}

func newTestService(src Source) *Service {
	return NewService(src, WithLogger(logging.Discard()), WithConcurrency(2))
}

const viewerTrace = `{"episode_id":0,"steps":[{"t":0,"reward":0,"events":["spawn"],"planner":{}},{"t":1,"reward":1,"events":["pickup","unlock"],"planner":{"depth":3,"wall_clock_ms":4}}]}
{"episode_id":1,"steps":[{"t":0,"reward":-1,"planner":{"depth":9}}]}
`

func TestRunView(t *testing.T) {
	src := newFakeSource()
	src.add(models.Run{ID: "r1", Agent: "mcts", Env: "memory_maze", Track: "test",
		Metrics: models.Metrics{SuccessRate: 0.9}}, viewerTrace)

	view, err := newTestService(src).RunView(context.Background(), "r1")
	require.NoError(t, err)
	require.NoError(t, view.TraceErr)

	assert.Equal(t, "mcts", view.Run.Agent)
	assert.Equal(t, 0.9, view.Run.Metrics.SuccessRate, "stored metrics are not mutated")
	assert.Equal(t, 2, view.Episodes)
	assert.Equal(t, []models.Event{{T: 0, Name: "spawn"}, {T: 1, Name: "pickup"}, {T: 1, Name: "unlock"}}, view.Events)
	assert.Equal(t, models.Planner{"depth": 3.0, "wall_clock_ms": 4.0}, view.Planner)
	require.Len(t, view.Timeline, 2)
	assert.Equal(t, 2, view.Timeline[0].Steps)

	require.NotNil(t, view.Recomputed)
	assert.Equal(t, 0.5, view.Recomputed.SuccessRate)
	assert.Equal(t, 0.0, view.Recomputed.MeanReturn)
	assert.InDelta(t, 4.0/3, view.Recomputed.PlanningCostMsPerStep(), 1e-12)
	assert.Nil(t, view.Recomputed.ContinualMetrics)
}

func TestRunViewMalformedTrace(t *testing.T) {
	src := newFakeSource()
	src.add(models.Run{ID: "r1", Track: "test"}, `{"steps": [}`)

	view, err := newTestService(src).RunView(context.Background(), "r1")
	require.NoError(t, err)
	require.Error(t, view.TraceErr)
	assert.True(t, IsTraceMalformed(view.TraceErr))
	assert.Equal(t, "r1", view.Run.ID)
	assert.Empty(t, view.Events)
	assert.Nil(t, view.Recomputed)
}

func TestRunViewTraceFetchFailure(t *testing.T) {
	src := newFakeSource()
	src.add(models.Run{ID: "r1", Track: "test"}, "")
	src.traceErrs["r1"] = errors.New("status 404")

	view, err := newTestService(src).RunView(context.Background(), "r1")
	require.NoError(t, err)
	require.Error(t, view.TraceErr)
	assert.False(t, IsTraceMalformed(view.TraceErr))
}

func TestRunViewEmptyTrace(t *testing.T) {
	src := newFakeSource()
	src.add(models.Run{ID: "r1", Track: "test"}, "")

	view, err := newTestService(src).RunView(context.Background(), "r1")
	require.NoError(t, err)
	require.NoError(t, view.TraceErr)
	assert.Equal(t, 0, view.Episodes)
	assert.Nil(t, view.Planner)
	require.NotNil(t, view.Recomputed)
	assert.Equal(t, 0.0, view.Recomputed.SuccessRate)
}

func TestRunViewRunFailure(t *testing.T) {
	src := newFakeSource()
	src.runErr = errors.New("connection refused")

	_, err := newTestService(src).RunView(context.Background(), "r1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestRecomputeContinual(t *testing.T) {
	episodes := []models.Episode{
		{Steps: []models.Step{{Reward: 1}}},
		{Steps: []models.Step{{Reward: 3}}},
	}
	m := Recompute(episodes, "continual")
	assert.Equal(t, 2.0, m.ContinualMetrics["forward_transfer"])

	assert.Nil(t, Recompute(episodes, "test").ContinualMetrics)
}

func TestLeaderboardStoredMetrics(t *testing.T) {
	src := newFakeSource()
	src.add(models.Run{ID: "a", Track: "test", Metrics: models.Metrics{SuccessRate: 0.2}}, "")
	src.add(models.Run{ID: "b", Track: "test", Metrics: models.Metrics{SuccessRate: 0.8}}, "")
	src.add(models.Run{ID: "c", Track: "Test", Metrics: models.Metrics{SuccessRate: 1}}, "")

	result, err := newTestService(src).Leaderboard(context.Background(), models.LeaderboardQuery{Track: "test"}, LeaderboardOptions{})
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, "b", result.Rows[0].RunID)
	assert.Equal(t, "a", result.Rows[1].RunID)
	assert.Empty(t, result.Failures)
}

func TestLeaderboardRecomputeIsolatesFailures(t *testing.T) {
	src := newFakeSource()
	src.add(models.Run{ID: "good", Track: "test"}, `{"steps":[{"t":0,"reward":1}]}`)
	src.add(models.Run{ID: "bad", Track: "test", Metrics: models.Metrics{SuccessRate: 0.4}}, "{\"steps\": [}\n")
	src.add(models.Run{ID: "gone", Track: "test", Metrics: models.Metrics{SuccessRate: 0.1}}, "")
	src.traceErrs["gone"] = errors.New("status 404")
	for _, id := range []string{"x1", "x2", "x3"} {
		src.add(models.Run{ID: id, Track: "test"}, `{"steps":[{"t":0,"reward":-1}]}`)
	}

	result, err := newTestService(src).Leaderboard(context.Background(), models.LeaderboardQuery{Track: "test"},
		LeaderboardOptions{Recompute: true, Order: leaderboard.OrderRanked})
	require.NoError(t, err)
	require.Len(t, result.Rows, 6)
	assert.Equal(t, "good", result.Rows[0].RunID)
	assert.Equal(t, 1.0, result.Rows[0].SuccessRate)
	assert.Equal(t, "bad", result.Rows[1].RunID)
	assert.Equal(t, 0.4, result.Rows[1].SuccessRate)
	assert.Equal(t, "gone", result.Rows[2].RunID)

	require.Len(t, result.Failures, 2)
	failed := map[string]error{}
	for _, f := range result.Failures {
		failed[f.RunID] = f.Err
	}
	assert.True(t, IsTraceMalformed(failed["bad"]))
	assert.Error(t, failed["gone"])
	assert.False(t, IsTraceMalformed(failed["gone"]))

	assert.LessOrEqual(t, src.maxInFlight.Load(), int32(2))
}

func TestLeaderboardRecomputeKeepsStoredPlannerMetrics(t *testing.T) {
	stored := models.Metrics{
		SuccessRate: 0.2,
		PlanningCost: models.PlanningCost{
			WallClockMsPerStep:  12.5,
			ImaginedTransitions: 300,
			PeakMemoryMB:        640,
		},
		ModelFidelity:     map[string]float64{"k1": 0.2, "k5": 0.4},
		GeneralizationGap: 0.3,
	}

	src := newFakeSource()
	// search-state snapshots as written by the MCTS and trajectory-sampling planners
	src.add(models.Run{ID: "mcts", Track: "test", Metrics: stored},
		`{"steps":[{"t":0,"reward":1,"planner":{"tree":{"visits":10,"depth":3}}}]}`)
	src.add(models.Run{ID: "timed", Track: "test", Metrics: stored},
		`{"steps":[{"t":0,"reward":1,"planner":{"wall_clock_ms":6,"model_fidelity":{"k1":0.9}}}]}`)

	svc := newTestService(src)
	result, err := svc.Leaderboard(context.Background(), models.LeaderboardQuery{Track: "test"},
		LeaderboardOptions{Recompute: true, Order: leaderboard.OrderRanked})
	require.NoError(t, err)
	require.Empty(t, result.Failures)

	rows := map[string]models.LeaderboardRow{}
	for _, row := range result.Rows {
		rows[row.RunID] = row
	}
	assert.Equal(t, 1.0, rows["mcts"].SuccessRate)
	assert.Equal(t, 12.5, rows["mcts"].PlanningCostMsPerStep)
	assert.Equal(t, 6.0, rows["timed"].PlanningCostMsPerStep)

	m, err := svc.recomputeRun(context.Background(), src.runs["mcts"])
	require.NoError(t, err)
	assert.Equal(t, stored.PlanningCost, m.PlanningCost)
	assert.Equal(t, stored.ModelFidelity, m.ModelFidelity)
	assert.Equal(t, 0.3, m.GeneralizationGap)

	m, err = svc.recomputeRun(context.Background(), src.runs["timed"])
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"k1": 0.9}, m.ModelFidelity)
	assert.Equal(t, 300.0, m.PlanningCost.ImaginedTransitions)
}

func TestLeaderboardRecomputeSkipsOtherTracks(t *testing.T) {
	src := newFakeSource()
	src.add(models.Run{ID: "a", Track: "test"}, `{"steps":[]}`)
	src.add(models.Run{ID: "b", Track: "train"}, "")
	src.traceErrs["b"] = errors.New("should not be fetched")

	result, err := newTestService(src).Leaderboard(context.Background(), models.LeaderboardQuery{Track: "test"},
		LeaderboardOptions{Recompute: true})
	require.NoError(t, err)
	assert.Len(t, result.Rows, 1)
	assert.Empty(t, result.Failures)
}

func TestLeaderboardEmptyVersusListFailure(t *testing.T) {
	src := newFakeSource()
	result, err := newTestService(src).Leaderboard(context.Background(), models.LeaderboardQuery{Track: "continual"}, LeaderboardOptions{})
	require.NoError(t, err)
	assert.NotNil(t, result.Rows)
	assert.Empty(t, result.Rows)

	src.listErr = errors.New("status 500")
	_, err = newTestService(src).Leaderboard(context.Background(), models.LeaderboardQuery{Track: "continual"}, LeaderboardOptions{})
	assert.Error(t, err)
}

func TestLeaderboardCancelled(t *testing.T) {
	src := newFakeSource()
	src.add(models.Run{ID: "a", Track: "test"}, `{"steps":[]}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestService(src).Leaderboard(ctx, models.LeaderboardQuery{Track: "test"}, LeaderboardOptions{Recompute: true})
	assert.ErrorIs(t, err, context.Canceled)
}
