// Package metrics computes run-level summary metrics from episode traces.
package metrics

import (
	"encoding/json"
	"slices"

	"github.com/imishinist/wmg-cli/internal/models"
	"github.com/imishinist/wmg-cli/internal/trace"
)

// Planner snapshot keys read by the aggregator.
const (
	plannerWallClockKey = "wall_clock_ms"
	plannerImaginedKey  = "imagined_transitions"
	plannerPeakMemKey   = "peak_memory_mb"
	plannerFidelityKey  = "model_fidelity"
)

// EpisodeReturn is the sum of the episode's step rewards.
func EpisodeReturn(episode models.Episode) float64 {
	var total float64
	for _, step := range episode.Steps {
		total += step.Reward
	}
	return total
}

// EpisodeSucceeded reports whether the episode collected positive return.
func EpisodeSucceeded(episode models.Episode) bool {
	return EpisodeReturn(episode) > 0
}

func EpisodeReturns(episodes []models.Episode) []float64 {
	returns := make([]float64, len(episodes))
	for i, episode := range episodes {
		returns[i] = EpisodeReturn(episode)
	}
	return returns
}

// Aggregate computes run metrics from its episodes. Zero episodes yield zero
// rates; missing planner data yields zero cost and an empty fidelity map.
func Aggregate(episodes []models.Episode) models.Metrics {
	result := models.Metrics{
		ModelFidelity: map[string]float64{},
	}
	if len(episodes) == 0 {
		return result
	}

	n := float64(len(episodes))
	var (
		successes    int
		returnSum    float64
		successSteps []float64
		totalSteps   int
		achievements = make(map[string]int)
	)

	for _, episode := range episodes {
		ret := EpisodeReturn(episode)
		returnSum += ret
		if ret > 0 {
			successes++
			successSteps = append(successSteps, float64(len(episode.Steps)))
		}
		totalSteps += len(episode.Steps)
		for name, count := range trace.Achievements(episode) {
			achievements[name] += count
		}
	}

	result.SuccessRate = float64(successes) / n
	result.MeanReturn = returnSum / n
	if len(successSteps) > 0 {
		median := Median(successSteps)
		result.MedianStepsToSuccess = &median
	}
	if len(achievements) > 0 {
		result.AchievementCompletion = make(map[string]float64, len(achievements))
		for name, count := range achievements {
			result.AchievementCompletion[name] = float64(count) / n
		}
	}

	result.PlanningCost = planningCost(episodes, totalSteps)
	result.ModelFidelity = modelFidelity(episodes)

	return result
}

func planningCost(episodes []models.Episode, totalSteps int) models.PlanningCost {
	var cost models.PlanningCost
	var wallClock, imagined float64

	for _, episode := range episodes {
		for _, step := range episode.Steps {
			if len(step.Planner) == 0 {
				continue
			}
			if v, ok := Numeric(step.Planner[plannerWallClockKey]); ok {
				wallClock += v
			}
			if v, ok := Numeric(step.Planner[plannerImaginedKey]); ok {
				imagined += v
			}
			if v, ok := Numeric(step.Planner[plannerPeakMemKey]); ok && v > cost.PeakMemoryMB {
				cost.PeakMemoryMB = v
			}
		}
	}

	denominator := float64(max(1, totalSteps))
	cost.WallClockMsPerStep = wallClock / denominator
	cost.ImaginedTransitions = imagined / denominator
	return cost
}

func modelFidelity(episodes []models.Episode) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)

	for _, episode := range episodes {
		for _, step := range episode.Steps {
			scores := asMap(step.Planner[plannerFidelityKey])
			for horizon, raw := range scores {
				if v, ok := Numeric(raw); ok {
					sums[horizon] += v
					counts[horizon]++
				}
			}
		}
	}

	fidelity := make(map[string]float64, len(sums))
	for horizon, sum := range sums {
		fidelity[horizon] = sum / float64(counts[horizon])
	}
	return fidelity
}

func asMap(v any) map[string]any {
	switch m := v.(type) {
	case map[string]any:
		return m
	case models.Planner:
		return m
	default:
		return nil
	}
}

// Median returns the median of values, or 0 for an empty slice.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// Numeric reads a planner value as a float. Planner snapshots are opaque, so
// anything that is not a number is ignored.
func Numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
