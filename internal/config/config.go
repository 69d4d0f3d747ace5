package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Databricks domain suffixes for URL detection
var databricksDomains = []string{
	".cloud.databricks.com",
	".azuredatabricks.net",
	".gcp.databricks.com",
}

// Run sources
const (
	SourceAPI    = "api"
	SourceMLflow = "mlflow"
)

// Valid configuration values
var (
	validSources = map[string]bool{
		SourceAPI: true, SourceMLflow: true,
	}
	validLogLevels = map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	validLogFormats = map[string]bool{
		"text": true, "json": true,
	}
)

type Config struct {
	Source          string
	APIBase         string
	UploadToken     string
	Timeout         time.Duration
	EventLimit      int
	Concurrency     int
	LogLevel        string
	LogFormat       string
	TrackingURI     string
	ExperimentID    string
	DatabricksHost  string
	DatabricksToken string
}

func New() *Config {
	return &Config{
		Source:          strings.ToLower(viper.GetString("source")),
		APIBase:         viper.GetString("api_base"),
		UploadToken:     viper.GetString("upload_token"),
		Timeout:         viper.GetDuration("timeout"),
		EventLimit:      viper.GetInt("event_limit"),
		Concurrency:     viper.GetInt("concurrency"),
		LogLevel:        strings.ToLower(viper.GetString("log_level")),
		LogFormat:       strings.ToLower(viper.GetString("log_format")),
		TrackingURI:     viper.GetString("tracking_uri"),
		ExperimentID:    viper.GetString("experiment_id"),
		DatabricksHost:  viper.GetString("databricks_host"),
		DatabricksToken: viper.GetString("databricks_token"),
	}
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("source", SourceAPI)
	v.SetDefault("api_base", "http://localhost:8000")
	v.SetDefault("upload_token", "dev-token")
	v.SetDefault("timeout", "30s")
	v.SetDefault("event_limit", 60)
	v.SetDefault("concurrency", 4)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("tracking_uri", "http://localhost:5000")
}

func (c *Config) Validate() error {
	if !validSources[c.Source] {
		return fmt.Errorf("invalid source: %s (valid: api, mlflow)", c.Source)
	}

	switch c.Source {
	case SourceAPI:
		if c.APIBase == "" {
			return fmt.Errorf("API base URL is required")
		}
	case SourceMLflow:
		if err := c.ValidateMLflow(); err != nil {
			return err
		}
	}

	if c.Timeout < 0 {
		return fmt.Errorf("invalid timeout: %s (must not be negative)", c.Timeout)
	}

	if c.EventLimit < 0 {
		return fmt.Errorf("invalid event limit: %d (must not be negative)", c.EventLimit)
	}

	if c.Concurrency < 1 {
		return fmt.Errorf("invalid concurrency: %d (must be at least 1)", c.Concurrency)
	}

	// Validate log level
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.LogLevel)
	}

	// Validate log format
	if !validLogFormats[c.LogFormat] {
		return fmt.Errorf("invalid log format: %s (valid: text, json)", c.LogFormat)
	}

	return nil
}

// ValidateMLflow checks the settings the MLflow client needs.
func (c *Config) ValidateMLflow() error {
	if c.TrackingURI == "" {
		return fmt.Errorf("tracking URI is required")
	}
	return nil
}

// IsDatabricks checks if the tracking URI points to Databricks
func (c *Config) IsDatabricks() bool {
	if c.TrackingURI == "databricks" {
		return true
	}

	// Check for databricks:// protocol
	if strings.HasPrefix(c.TrackingURI, "databricks://") {
		return true
	}

	// Check for Databricks URLs
	if strings.HasPrefix(c.TrackingURI, "https://") {
		host := c.extractHostFromURL(c.TrackingURI)
		return c.isDatabricksHost(host)
	}

	return false
}

// extractHostFromURL extracts the hostname from a URL
func (c *Config) extractHostFromURL(url string) string {
	host := strings.TrimPrefix(url, "https://")
	// Remove any path components
	if idx := strings.Index(host, "/"); idx != -1 {
		host = host[:idx]
	}
	return host
}

// isDatabricksHost checks if a hostname belongs to Databricks
func (c *Config) isDatabricksHost(host string) bool {
	for _, domain := range databricksDomains {
		if strings.HasSuffix(host, domain) {
			return true
		}
	}
	return false
}

// GetDatabricksProfile extracts the profile name from databricks://{profile} URI
func (c *Config) GetDatabricksProfile() string {
	if !strings.HasPrefix(c.TrackingURI, "databricks://") {
		return ""
	}

	profile := strings.TrimPrefix(c.TrackingURI, "databricks://")
	// Remove any trailing slashes or paths
	if idx := strings.Index(profile, "/"); idx != -1 {
		profile = profile[:idx]
	}
	return profile
}
