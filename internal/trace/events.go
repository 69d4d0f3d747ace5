// Package trace derives semantic views from decoded episode traces.
package trace

import (
	"strings"

	"github.com/imishinist/wmg-cli/internal/models"
)

// ExtractEvents flattens every step event in traversal order: episodes, then
// steps, then each step's event list. Each event carries its step's t.
func ExtractEvents(episodes []models.Episode) []models.Event {
	events := make([]models.Event, 0)
	for _, episode := range episodes {
		for _, step := range episode.Steps {
			for _, name := range step.Events {
				events = append(events, models.Event{T: step.T, Name: name})
			}
		}
	}
	return events
}

// FirstPlanner returns the first planner snapshot with at least one key, in
// the same traversal order as ExtractEvents. ok is false when no step
// carries planner data.
func FirstPlanner(episodes []models.Episode) (planner models.Planner, ok bool) {
	for _, episode := range episodes {
		for _, step := range episode.Steps {
			if len(step.Planner) > 0 {
				return step.Planner, true
			}
		}
	}
	return nil, false
}

// EpisodeSummary is one line of a run's episode timeline.
type EpisodeSummary struct {
	Index     int     `json:"index" yaml:"index"`
	EnvID     string  `json:"env_id,omitempty" yaml:"env_id,omitempty"`
	EpisodeID int64   `json:"episode_id" yaml:"episode_id"`
	Seed      int64   `json:"seed" yaml:"seed"`
	Steps     int     `json:"steps" yaml:"steps"`
	Events    int     `json:"events" yaml:"events"`
	Return    float64 `json:"return" yaml:"return"`
}

func Timeline(episodes []models.Episode) []EpisodeSummary {
	summaries := make([]EpisodeSummary, 0, len(episodes))
	for i, episode := range episodes {
		summary := EpisodeSummary{
			Index:     i + 1,
			EnvID:     episode.EnvID,
			EpisodeID: episode.EpisodeID,
			Seed:      episode.Seed,
			Steps:     len(episode.Steps),
		}
		for _, step := range episode.Steps {
			summary.Events += len(step.Events)
			summary.Return += step.Reward
		}
		summaries = append(summaries, summary)
	}
	return summaries
}

var achievementMarkers = []string{"craft", "collect", "break"}

// Achievements counts the crafting/collection events of one episode.
func Achievements(episode models.Episode) map[string]int {
	counts := make(map[string]int)
	for _, step := range episode.Steps {
		for _, name := range step.Events {
			if isAchievement(name) {
				counts[name]++
			}
		}
	}
	return counts
}

func isAchievement(name string) bool {
	for _, marker := range achievementMarkers {
		if strings.Contains(name, marker) {
			return true
		}
	}
	return false
}
