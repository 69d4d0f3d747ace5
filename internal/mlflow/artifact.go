package mlflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/databricks/databricks-sdk-go/service/ml"

	"github.com/imishinist/wmg-cli/internal/models"
	"github.com/imishinist/wmg-cli/internal/parser"
)

// ErrArtifactNotFound is returned when a run has no artifact at the requested path.
var ErrArtifactNotFound = errors.New("artifact not found")

// UploadArtifact uploads a file as an artifact to the specified run
func (c *Client) UploadArtifact(ctx context.Context, runID, filePath, artifactPath string) error {
	// Get the artifact URI from the run info
	artifactURI, err := c.getArtifactURI(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to get artifact URI: %w", err)
	}

	// Use filename if artifact path is not specified
	if artifactPath == "" {
		artifactPath = filepath.Base(filePath)
	}

	c.logger.Debug("uploading artifact", "run_id", runID, "file", filePath, "artifact_path", artifactPath)

	switch artifactScheme(artifactURI) {
	case "mlflow-artifacts":
		return c.uploadToMLflowArtifacts(ctx, artifactURI, filePath, artifactPath)
	case "file":
		return uploadToLocalFS(artifactURI, filePath, artifactPath)
	default:
		return fmt.Errorf("unsupported artifact URI scheme: %s", artifactURI)
	}
}

// DownloadArtifact reads the artifact at artifactPath from the specified run.
func (c *Client) DownloadArtifact(ctx context.Context, runID, artifactPath string) ([]byte, error) {
	artifactURI, err := c.getArtifactURI(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get artifact URI: %w", err)
	}

	switch artifactScheme(artifactURI) {
	case "mlflow-artifacts":
		return c.downloadFromMLflowArtifacts(ctx, artifactURI, artifactPath)
	case "file":
		return readLocalArtifact(artifactURI, artifactPath)
	default:
		return nil, fmt.Errorf("unsupported artifact URI scheme: %s", artifactURI)
	}
}

// GetTrace returns the raw trace.jsonl artifact of a run.
func (c *Client) GetTrace(ctx context.Context, runID string) ([]byte, error) {
	return c.DownloadArtifact(ctx, runID, TraceArtifact)
}

// GetConfig returns the parsed config.yaml artifact of a run.
func (c *Client) GetConfig(ctx context.Context, runID string) (*models.RunConfig, error) {
	data, err := c.DownloadArtifact(ctx, runID, ConfigArtifact)
	if err != nil {
		return nil, err
	}
	return parser.ParseYAMLRunConfig(bytes.NewReader(data))
}

// GetMetrics returns the parsed metrics.json artifact of a run.
func (c *Client) GetMetrics(ctx context.Context, runID string) (*models.Metrics, error) {
	data, err := c.DownloadArtifact(ctx, runID, MetricsArtifact)
	if err != nil {
		return nil, err
	}
	return parser.ParseJSONMetrics(bytes.NewReader(data))
}

// getArtifactURI retrieves the artifact URI for a given run
func (c *Client) getArtifactURI(ctx context.Context, runID string) (string, error) {
	resp, err := c.client.Experiments.GetRun(ctx, ml.GetRunRequest{
		RunId: runID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to get run: %w", err)
	}

	if resp.Run == nil || resp.Run.Info == nil || resp.Run.Info.ArtifactUri == "" {
		return "", fmt.Errorf("artifact URI not found for run %s", runID)
	}

	return resp.Run.Info.ArtifactUri, nil
}

func artifactScheme(artifactURI string) string {
	switch {
	case strings.HasPrefix(artifactURI, "mlflow-artifacts:/"):
		return "mlflow-artifacts"
	case strings.HasPrefix(artifactURI, "file://"), strings.HasPrefix(artifactURI, "/"):
		return "file"
	default:
		return ""
	}
}

// uploadToMLflowArtifacts uploads using MLflow Artifacts Service
func (c *Client) uploadToMLflowArtifacts(ctx context.Context, artifactURI, filePath, artifactPath string) error {
	target, err := c.artifactURL(artifactURI, artifactPath)
	if err != nil {
		return err
	}

	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	fileInfo, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to get file info: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, file)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.ContentLength = fileInfo.Size()
	req.Header.Set("Content-Type", "application/octet-stream")
	c.addAuthHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upload to MLflow Artifacts Service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("MLflow Artifacts Service upload failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	return nil
}

func (c *Client) downloadFromMLflowArtifacts(ctx context.Context, artifactURI, artifactPath string) ([]byte, error) {
	target, err := c.artifactURL(artifactURI, artifactPath)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.addAuthHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download from MLflow Artifacts Service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", artifactPath, ErrArtifactNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("MLflow Artifacts Service download failed with status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// artifactURL builds /api/2.0/mlflow-artifacts/artifacts/{experiment_id}/{run_id}/artifacts/{artifact_path}
func (c *Client) artifactURL(artifactURI, artifactPath string) (string, error) {
	experimentID, runID, err := extractIDsFromArtifactURI(artifactURI)
	if err != nil {
		return "", fmt.Errorf("failed to extract IDs from artifact URI: %w", err)
	}

	baseURL := strings.TrimSuffix(c.config.TrackingURI, "/")
	return fmt.Sprintf("%s/api/2.0/mlflow-artifacts/artifacts/%s/%s/artifacts/%s",
		baseURL, url.PathEscape(experimentID), url.PathEscape(runID), strings.TrimPrefix(artifactPath, "/")), nil
}

func localArtifactPath(artifactURI, artifactPath string) string {
	return filepath.Join(strings.TrimPrefix(artifactURI, "file://"), filepath.FromSlash(artifactPath))
}

func readLocalArtifact(artifactURI, artifactPath string) ([]byte, error) {
	data, err := os.ReadFile(localArtifactPath(artifactURI, artifactPath))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", artifactPath, ErrArtifactNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	return data, nil
}

// uploadToLocalFS copies the file into a local artifact root.
func uploadToLocalFS(artifactURI, filePath, artifactPath string) error {
	localPath := localArtifactPath(artifactURI, artifactPath)

	dir := filepath.Dir(localPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	sourceFile, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer sourceFile.Close()

	destFile, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		destFile.Close()
		return fmt.Errorf("failed to copy file content: %w", err)
	}
	if err := destFile.Close(); err != nil {
		return fmt.Errorf("failed to close destination file: %w", err)
	}

	return nil
}

// extractIDsFromArtifactURI extracts experiment ID and run ID from mlflow-artifacts URI
func extractIDsFromArtifactURI(artifactURI string) (string, string, error) {
	// mlflow-artifacts:/0/47485d6a0b734e37aaddc60be04b7371/artifacts
	parts := strings.Split(strings.TrimPrefix(artifactURI, "mlflow-artifacts:"), "/")

	// Remove empty first element if URI starts with /
	if len(parts) > 0 && parts[0] == "" {
		parts = parts[1:]
	}

	if len(parts) < 3 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid mlflow-artifacts URI format: %s", artifactURI)
	}

	return parts[0], parts[1], nil
}

// addAuthHeaders adds appropriate authentication headers to the request
func (c *Client) addAuthHeaders(req *http.Request) {
	if !c.config.IsDatabricks() {
		return
	}
	if c.client != nil && c.client.Config != nil && c.client.Config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.client.Config.Token)
	} else if c.config.DatabricksToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.DatabricksToken)
	}
}
