package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/imishinist/wmg-cli/internal/models"
)

func ParseJSONMetrics(reader io.Reader) (*models.Metrics, error) {
	var data models.Metrics
	decoder := json.NewDecoder(reader)

	if err := decoder.Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to parse JSON metrics: %w", err)
	}

	return &data, nil
}

func ParseJSONRun(reader io.Reader) (*models.Run, error) {
	var data models.Run
	decoder := json.NewDecoder(reader)

	if err := decoder.Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to parse JSON run: %w", err)
	}

	return &data, nil
}

// ParseJSONRuns accepts either {"runs": [...]} or a bare array of runs.
func ParseJSONRuns(reader io.Reader) ([]models.Run, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(reader).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse JSON runs: %w", err)
	}

	var runs []models.Run
	if err := json.Unmarshal(raw, &runs); err == nil {
		return runs, nil
	}

	var data models.RunsFile
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse JSON runs: %w", err)
	}

	return data.Runs, nil
}

func ParseJSONLeaderboard(reader io.Reader) ([]models.LeaderboardRow, error) {
	rows := make([]models.LeaderboardRow, 0)
	decoder := json.NewDecoder(reader)

	if err := decoder.Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to parse JSON leaderboard: %w", err)
	}

	return rows, nil
}

func ParseJSONTasks(reader io.Reader) (*models.TaskList, error) {
	var data models.TaskList
	decoder := json.NewDecoder(reader)

	if err := decoder.Decode(&data); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse JSON tasks: %w", err)
	}
	if data.Tasks == nil {
		data.Tasks = []models.Task{}
	}

	return &data, nil
}
