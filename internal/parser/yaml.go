package parser

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/imishinist/wmg-cli/internal/models"
)

func ParseYAMLRunConfig(reader io.Reader) (*models.RunConfig, error) {
	var data models.RunConfig
	decoder := yaml.NewDecoder(reader)

	if err := decoder.Decode(&data); err != nil {
		if errors.Is(err, io.EOF) {
			return &data, nil
		}
		return nil, fmt.Errorf("failed to parse YAML run config: %w", err)
	}

	return &data, nil
}

func ParseYAMLRuns(reader io.Reader) ([]models.Run, error) {
	var data models.RunsFile
	decoder := yaml.NewDecoder(reader)

	if err := decoder.Decode(&data); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse YAML runs: %w", err)
	}

	return data.Runs, nil
}
