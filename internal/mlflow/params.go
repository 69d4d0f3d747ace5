package mlflow

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/databricks/databricks-sdk-go/service/ml"

	"github.com/imishinist/wmg-cli/internal/models"
)

func (c *Client) LogParam(ctx context.Context, runID string, key string, value string) error {
	err := c.client.Experiments.LogParam(ctx, ml.LogParam{
		RunId: runID,
		Key:   key,
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("failed to log parameter %s: %w", key, err)
	}

	return nil
}

func (c *Client) LogParamsFromMap(ctx context.Context, runID string, params map[string]string) error {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if err := c.LogParam(ctx, runID, key, params[key]); err != nil {
			return err
		}
	}

	return nil
}

// ConfigParams flattens a harness run config into MLflow params.
func ConfigParams(cfg models.RunConfig) map[string]string {
	params := map[string]string{
		"agent": cfg.Agent,
		"env":   cfg.Env,
		"track": cfg.Track,
	}
	if cfg.RunID != "" {
		params["run_id"] = cfg.RunID
	}
	if len(cfg.Seeds) > 0 {
		seeds := make([]string, 0, len(cfg.Seeds))
		for _, seed := range cfg.Seeds {
			seeds = append(seeds, strconv.FormatInt(seed, 10))
		}
		params["seeds"] = strings.Join(seeds, ",")
	}
	for key, value := range cfg.Budget {
		params["budget."+key] = strconv.FormatFloat(value, 'f', -1, 64)
	}
	return params
}
