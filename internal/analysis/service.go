// Package analysis joins run metadata with decoded traces at the I/O
// boundary and hands already-resident data to the pure trace, metrics and
// leaderboard packages.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/imishinist/wmg-cli/internal/leaderboard"
	"github.com/imishinist/wmg-cli/internal/metrics"
	"github.com/imishinist/wmg-cli/internal/models"
	"github.com/imishinist/wmg-cli/internal/parser"
	"github.com/imishinist/wmg-cli/internal/trace"
)

const continualTrack = "continual"

// Source is where runs and their traces come from.
type Source interface {
	GetRun(ctx context.Context, runID string) (*models.Run, error)
	GetTrace(ctx context.Context, runID string) ([]byte, error)
	ListRuns(ctx context.Context, q models.LeaderboardQuery) ([]models.Run, error)
}

type Service struct {
	source      Source
	logger      *slog.Logger
	concurrency int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithConcurrency bounds how many traces are fetched at once.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func NewService(source Source, opts ...Option) *Service {
	s := &Service{
		source:      source,
		logger:      slog.Default(),
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunView is everything the run viewer shows for one run.
type RunView struct {
	Run        models.Run             `json:"run" yaml:"run"`
	Episodes   int                    `json:"episodes" yaml:"episodes"`
	Timeline   []trace.EpisodeSummary `json:"timeline" yaml:"timeline"`
	Events     []models.Event         `json:"events" yaml:"events"`
	Planner    models.Planner         `json:"planner" yaml:"planner"`
	Recomputed *models.Metrics        `json:"recomputed,omitempty" yaml:"recomputed,omitempty"`
	// TraceErr is set when the trace could not be fetched or decoded; the
	// run metadata is still valid.
	TraceErr error `json:"-" yaml:"-"`
}

// RunView fetches a run's metadata and trace concurrently and derives the
// viewer data once both have arrived. Only a metadata failure is returned
// as an error.
func (s *Service) RunView(ctx context.Context, runID string) (*RunView, error) {
	var (
		run      *models.Run
		raw      []byte
		traceErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		run, err = s.source.GetRun(gctx, runID)
		if err != nil {
			return fmt.Errorf("failed to get run %s: %w", runID, err)
		}
		return nil
	})
	g.Go(func() error {
		raw, traceErr = s.source.GetTrace(gctx, runID)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	view := &RunView{
		Run:      *run,
		Timeline: []trace.EpisodeSummary{},
		Events:   []models.Event{},
	}

	if traceErr != nil {
		view.TraceErr = traceErr
		s.logger.Warn("trace unavailable", "run_id", runID, "error", traceErr)
		return view, nil
	}

	episodes, err := parser.ParseTrace(raw)
	if err != nil {
		view.TraceErr = err
		s.logger.Warn("trace unavailable", "run_id", runID, "error", err)
		return view, nil
	}

	view.Episodes = len(episodes)
	view.Timeline = trace.Timeline(episodes)
	view.Events = trace.ExtractEvents(episodes)
	if planner, ok := trace.FirstPlanner(episodes); ok {
		view.Planner = planner
	}
	recomputed := Recompute(episodes, run.Track)
	view.Recomputed = &recomputed

	return view, nil
}

// Recompute aggregates episode metrics, adding continual-transfer metrics
// for continual-track runs.
func Recompute(episodes []models.Episode, track string) models.Metrics {
	m := metrics.Aggregate(episodes)
	if track == continualTrack {
		m.ContinualMetrics = metrics.ContinualTransfer(metrics.EpisodeReturns(episodes))
	}
	return m
}

// RunFailure records a run whose trace could not be used.
type RunFailure struct {
	RunID string `json:"run_id" yaml:"run_id"`
	Err   error  `json:"-" yaml:"-"`
}

func (f RunFailure) Error() string {
	return fmt.Sprintf("run %s: %v", f.RunID, f.Err)
}

type LeaderboardOptions struct {
	Order leaderboard.Order
	// Recompute replaces each run's stored metrics with metrics aggregated
	// from its trace.
	Recompute bool
}

type LeaderboardResult struct {
	Rows     []models.LeaderboardRow `json:"rows" yaml:"rows"`
	Failures []RunFailure            `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// Leaderboard lists the runs of q's track and ranks them. With Recompute,
// a run whose trace fails keeps its stored metrics and is reported in
// Failures; it never stops the other runs from being ranked.
func (s *Service) Leaderboard(ctx context.Context, q models.LeaderboardQuery, opts LeaderboardOptions) (*LeaderboardResult, error) {
	runs, err := s.source.ListRuns(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs for track %s: %w", q.Track, err)
	}

	result := &LeaderboardResult{}
	if opts.Recompute {
		runs, result.Failures, err = s.recomputeAll(ctx, runs, q)
		if err != nil {
			return nil, err
		}
	}

	result.Rows = leaderboard.Build(runs, q, opts.Order)
	return result, nil
}

func (s *Service) recomputeAll(ctx context.Context, runs []models.Run, q models.LeaderboardQuery) ([]models.Run, []RunFailure, error) {
	updated := make([]models.Run, len(runs))
	copy(updated, runs)
	failed := make([]error, len(runs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range updated {
		if !leaderboard.Matches(updated[i], q) {
			continue
		}
		g.Go(func() error {
			m, err := s.recomputeRun(gctx, updated[i])
			if err != nil {
				failed[i] = err
				return nil
			}
			updated[i].Metrics = m
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var failures []RunFailure
	for i, err := range failed {
		if err == nil {
			continue
		}
		failures = append(failures, RunFailure{RunID: updated[i].ID, Err: err})
		s.logger.Warn("using stored metrics", "run_id", updated[i].ID, "error", err)
	}
	return updated, failures, nil
}

func (s *Service) recomputeRun(ctx context.Context, run models.Run) (models.Metrics, error) {
	raw, err := s.source.GetTrace(ctx, run.ID)
	if err != nil {
		return models.Metrics{}, err
	}
	episodes, err := parser.ParseTrace(raw)
	if err != nil {
		return models.Metrics{}, err
	}

	return mergeStored(Recompute(episodes, run.Track), run.Metrics), nil
}

// mergeStored keeps the stored values of fields the trace did not carry.
// Harness planners snapshot their search state, not timings or fidelity, so
// those usually come from metrics.json only.
func mergeStored(m, stored models.Metrics) models.Metrics {
	m.GeneralizationGap = stored.GeneralizationGap
	if m.PlanningCost.WallClockMsPerStep == 0 {
		m.PlanningCost.WallClockMsPerStep = stored.PlanningCost.WallClockMsPerStep
	}
	if m.PlanningCost.ImaginedTransitions == 0 {
		m.PlanningCost.ImaginedTransitions = stored.PlanningCost.ImaginedTransitions
	}
	if m.PlanningCost.PeakMemoryMB == 0 {
		m.PlanningCost.PeakMemoryMB = stored.PlanningCost.PeakMemoryMB
	}
	if len(m.ModelFidelity) == 0 && len(stored.ModelFidelity) > 0 {
		m.ModelFidelity = stored.ModelFidelity
	}
	return m
}

// IsTraceMalformed reports whether err came from decoding a bad trace rather
// than from fetching it.
func IsTraceMalformed(err error) bool {
	var malformed *parser.MalformedTraceError
	return errors.As(err, &malformed)
}
