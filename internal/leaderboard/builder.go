// Package leaderboard projects runs into ranked leaderboard rows.
//
// Rows are rebuilt on every call and never stored; RunID ties a row back to
// its run.
package leaderboard

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/imishinist/wmg-cli/internal/models"
)

// Order selects how rows are sorted. Every order is total, so identical
// input always yields identical output.
type Order string

const (
	// OrderRanked sorts by success rate (desc), mean return (desc),
	// created_at (asc, earliest first) and finally run ID (asc).
	OrderRanked Order = "ranked"
	// OrderNewest sorts by created_at (desc) then run ID (asc), the order
	// the benchmark API lists uploads in.
	OrderNewest Order = "newest"
)

func ParseOrder(s string) (Order, error) {
	switch Order(strings.ToLower(s)) {
	case "", OrderRanked:
		return OrderRanked, nil
	case OrderNewest:
		return OrderNewest, nil
	default:
		return "", fmt.Errorf("invalid order: %s (valid: ranked, newest)", s)
	}
}

// Build returns one row per run whose track equals q.Track exactly. Env and
// Agent narrow the selection further when set. No matches yields an empty,
// non-nil slice.
func Build(runs []models.Run, q models.LeaderboardQuery, order Order) []models.LeaderboardRow {
	rows := make([]models.LeaderboardRow, 0)
	for _, run := range runs {
		if !Matches(run, q) {
			continue
		}
		rows = append(rows, NewRow(run))
	}

	Sort(rows, order)
	return rows
}

// Matches reports whether run belongs to the leaderboard selected by q.
// Comparisons are exact and case-sensitive.
func Matches(run models.Run, q models.LeaderboardQuery) bool {
	if run.Track != q.Track {
		return false
	}
	if q.Env != "" && run.Env != q.Env {
		return false
	}
	if q.Agent != "" && run.Agent != q.Agent {
		return false
	}
	return true
}

func NewRow(run models.Run) models.LeaderboardRow {
	return models.LeaderboardRow{
		RunID:                 run.ID,
		Env:                   run.Env,
		Agent:                 run.Agent,
		Track:                 run.Track,
		SuccessRate:           run.Metrics.SuccessRate,
		MeanReturn:            run.Metrics.MeanReturn,
		PlanningCostMsPerStep: run.Metrics.PlanningCostMsPerStep(),
		CreatedAt:             run.CreatedAt,
	}
}

// Sort orders rows in place.
func Sort(rows []models.LeaderboardRow, order Order) {
	switch order {
	case OrderNewest:
		slices.SortFunc(rows, compareNewest)
	default:
		slices.SortFunc(rows, compareRanked)
	}
}

func compareRanked(a, b models.LeaderboardRow) int {
	if c := cmp.Compare(b.SuccessRate, a.SuccessRate); c != 0 {
		return c
	}
	if c := cmp.Compare(b.MeanReturn, a.MeanReturn); c != 0 {
		return c
	}
	if c := a.CreatedAt.Compare(b.CreatedAt.Time); c != 0 {
		return c
	}
	return strings.Compare(a.RunID, b.RunID)
}

func compareNewest(a, b models.LeaderboardRow) int {
	if c := b.CreatedAt.Compare(a.CreatedAt.Time); c != 0 {
		return c
	}
	return strings.Compare(a.RunID, b.RunID)
}

// RunsFromRows turns rows served by the benchmark API back into runs so
// they can be re-ranked locally.
func RunsFromRows(rows []models.LeaderboardRow) []models.Run {
	runs := make([]models.Run, 0, len(rows))
	for _, row := range rows {
		runs = append(runs, models.Run{
			ID:    row.RunID,
			Env:   row.Env,
			Agent: row.Agent,
			Track: row.Track,
			Metrics: models.Metrics{
				SuccessRate:  row.SuccessRate,
				MeanReturn:   row.MeanReturn,
				PlanningCost: models.PlanningCost{WallClockMsPerStep: row.PlanningCostMsPerStep},
			},
			CreatedAt: row.CreatedAt,
		})
	}
	return runs
}
