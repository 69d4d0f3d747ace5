// Package backend is a client for the WorldModel Gym benchmark API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/imishinist/wmg-cli/internal/config"
	"github.com/imishinist/wmg-cli/internal/leaderboard"
	"github.com/imishinist/wmg-cli/internal/models"
	"github.com/imishinist/wmg-cli/internal/parser"
)

const uploadTokenHeader = "X-Upload-Token"

// Client talks to the benchmark API. All methods are safe for concurrent use.
type Client struct {
	baseURL     string
	uploadToken string
	client      *http.Client
	logger      *slog.Logger
}

func NewClient(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIBase == "" {
		return nil, fmt.Errorf("API base URL is required")
	}
	if _, err := url.ParseRequestURI(cfg.APIBase); err != nil {
		return nil, fmt.Errorf("invalid API base URL %s: %w", cfg.APIBase, err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.APIBase, "/"),
		uploadToken: cfg.UploadToken,
		client:      &http.Client{Timeout: timeout},
		logger:      logger,
	}, nil
}

// GetRun fetches run metadata and its stored metrics.
func (c *Client) GetRun(ctx context.Context, runID string) (*models.Run, error) {
	var run models.Run
	if err := c.getJSON(ctx, "run", "/api/runs/"+url.PathEscape(runID), &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// GetTrace fetches the raw newline-delimited JSON trace of a run.
func (c *Client) GetTrace(ctx context.Context, runID string) ([]byte, error) {
	return c.getRaw(ctx, "trace", "/api/runs/"+url.PathEscape(runID)+"/trace")
}

// GetMetrics fetches the metrics.json uploaded for a run.
func (c *Client) GetMetrics(ctx context.Context, runID string) (*models.Metrics, error) {
	data, err := c.getRaw(ctx, "metrics", "/api/runs/"+url.PathEscape(runID)+"/metrics")
	if err != nil {
		return nil, err
	}
	return parser.ParseJSONMetrics(bytes.NewReader(data))
}

// GetConfig fetches the config.yaml uploaded for a run.
func (c *Client) GetConfig(ctx context.Context, runID string) (*models.RunConfig, error) {
	data, err := c.getRaw(ctx, "config", "/api/runs/"+url.PathEscape(runID)+"/config")
	if err != nil {
		return nil, err
	}
	return parser.ParseYAMLRunConfig(bytes.NewReader(data))
}

func (c *Client) ListTasks(ctx context.Context) (*models.TaskList, error) {
	data, err := c.getRaw(ctx, "tasks", "/api/tasks")
	if err != nil {
		return nil, err
	}
	return parser.ParseJSONTasks(bytes.NewReader(data))
}

// Leaderboard fetches the rows the API serves for a track, in server order.
func (c *Client) Leaderboard(ctx context.Context, q models.LeaderboardQuery) ([]models.LeaderboardRow, error) {
	params := url.Values{}
	params.Set("track", q.Track)
	if q.Env != "" {
		params.Set("env", q.Env)
	}
	if q.Agent != "" {
		params.Set("agent", q.Agent)
	}

	data, err := c.getRaw(ctx, "leaderboard", "/api/leaderboard?"+params.Encode())
	if err != nil {
		return nil, err
	}
	return parser.ParseJSONLeaderboard(bytes.NewReader(data))
}

// ListRuns returns the uploaded runs of a track, built from leaderboard rows.
func (c *Client) ListRuns(ctx context.Context, q models.LeaderboardQuery) ([]models.Run, error) {
	rows, err := c.Leaderboard(ctx, q)
	if err != nil {
		return nil, err
	}
	return leaderboard.RunsFromRows(rows), nil
}

func (c *Client) CreateRun(ctx context.Context, req models.RunCreate) (*models.Run, error) {
	encoded, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/runs", bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	data, err := c.do(httpReq, "run")
	if err != nil {
		return nil, err
	}
	return parser.ParseJSONRun(bytes.NewReader(data))
}

// UploadFiles names the local artifacts to attach to a run. Empty paths are skipped.
type UploadFiles struct {
	Metrics string
	Trace   string
	Config  string
}

// Upload attaches run artifacts. The trace is decoded first so a malformed
// trace is rejected locally instead of being stored.
func (c *Client) Upload(ctx context.Context, runID string, files UploadFiles) (*models.Run, error) {
	if files.Metrics == "" && files.Trace == "" && files.Config == "" {
		return nil, fmt.Errorf("at least one artifact must be specified")
	}

	if files.Trace != "" {
		if err := validateTraceFile(files.Trace); err != nil {
			return nil, err
		}
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	parts := []struct {
		field string
		path  string
	}{
		{field: "metrics_file", path: files.Metrics},
		{field: "trace_file", path: files.Trace},
		{field: "config_file", path: files.Config},
	}
	for _, part := range parts {
		if part.path == "" {
			continue
		}
		if err := addFilePart(writer, part.field, part.path); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalise upload body: %w", err)
	}

	endpoint := c.baseURL + "/api/runs/" + url.PathEscape(runID) + "/upload"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set(uploadTokenHeader, c.uploadToken)

	data, err := c.do(req, "upload")
	if err != nil {
		return nil, err
	}
	return parser.ParseJSONRun(bytes.NewReader(data))
}

// Health reports whether the API answers its health check.
func (c *Client) Health(ctx context.Context) error {
	var resp struct {
		OK bool `json:"ok"`
	}
	if err := c.getJSON(ctx, "health", "/healthz", &resp); err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("benchmark API at %s reports unhealthy", c.baseURL)
	}
	return nil
}

func validateTraceFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open trace %s: %w", path, err)
	}
	defer file.Close()

	if _, err := parser.DecodeTrace(file); err != nil {
		return fmt.Errorf("refusing to upload %s: %w", path, err)
	}
	return nil
}

func addFilePart(writer *multipart.Writer, field, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	part, err := writer.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("failed to create form part %s: %w", field, err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("failed to copy %s: %w", path, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// HTTP transport
// ---------------------------------------------------------------------------

// apiErrorBody is the error body the API returns for HTTP exceptions.
type apiErrorBody struct {
	Detail any `json:"detail"`
}

func (c *Client) getJSON(ctx context.Context, resource, path string, dest any) error {
	data, err := c.getRaw(ctx, resource, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to decode %s: %w", resource, err)
	}
	return nil
}

func (c *Client) getRaw(ctx context.Context, resource, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, resource)
}

func (c *Client) do(req *http.Request, resource string) ([]byte, error) {
	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &FetchError{Resource: resource, URL: req.URL.String(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Resource: resource, URL: req.URL.String(), StatusCode: resp.StatusCode, Err: err}
	}

	c.logger.Debug("benchmark api request",
		"method", req.Method,
		"url", req.URL.String(),
		"status", resp.StatusCode,
		"bytes", len(body),
		"elapsed", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{
			Resource:   resource,
			URL:        req.URL.String(),
			StatusCode: resp.StatusCode,
			Message:    errorMessage(body),
		}
	}

	return body, nil
}

func errorMessage(body []byte) string {
	var parsed apiErrorBody
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Detail != nil {
		if s, ok := parsed.Detail.(string); ok {
			return s
		}
		encoded, _ := json.Marshal(parsed.Detail)
		return string(encoded)
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
