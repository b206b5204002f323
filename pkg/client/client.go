// Package client is an HTTP client for the parasim worker.
package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/thebtf/parasim/pkg/models"
)

const (
	// DefaultWorkerPort is the default worker port.
	DefaultWorkerPort = 3000

	// HealthCheckTimeout is the timeout for health and version checks.
	HealthCheckTimeout = 1 * time.Second

	// RequestTimeout is the default timeout for document requests.
	RequestTimeout = 60 * time.Second
)

// GetWorkerPort returns the worker port from environment or default.
func GetWorkerPort() int {
	if port := os.Getenv("PARASIM_WORKER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil && p > 0 {
			return p
		}
	}
	return DefaultWorkerPort
}

// DefaultBaseURL returns the local worker URL.
func DefaultBaseURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", GetWorkerPort())
}

// APIError is a non-2xx reply from the worker.
type APIError struct {
	StatusCode int
	Message    string `json:"error"`
	Details    string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("worker returned %d: %s: %s", e.StatusCode, e.Message, e.Details)
	}
	return fmt.Sprintf("worker returned %d: %s", e.StatusCode, e.Message)
}

// Client talks to a running worker.
type Client struct {
	http    *http.Client
	baseURL string
}

// New creates a client for the worker at baseURL. An empty baseURL means
// the local worker.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL()
	}
	return &Client{
		http:    &http.Client{Timeout: RequestTimeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// BaseURL returns the worker URL this client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type documentRequest struct {
	File   string `json:"file"`
	Type   string `json:"type"`
	Remove []int  `json:"remove,omitempty"`
}

// Process uploads a document and returns its similarity groups.
func (c *Client) Process(ctx context.Context, payload []byte, mimeType string) (models.AnalysisResult, error) {
	var result models.AnalysisResult

	resp, err := c.post(ctx, "/process", documentRequest{
		File: base64.StdEncoding.EncodeToString(payload),
		Type: mimeType,
	})
	if err != nil {
		return result, err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return result, fmt.Errorf("decode response: %w", err)
	}
	return result, nil
}

// Remove uploads a document and returns its text without the given
// 1-based paragraphs.
func (c *Client) Remove(ctx context.Context, payload []byte, mimeType string, paragraphs []int) (string, error) {
	resp, err := c.post(ctx, "/remove", documentRequest{
		File:   base64.StdEncoding.EncodeToString(payload),
		Type:   mimeType,
		Remove: paragraphs,
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	return string(text), nil
}

// IsRunning checks if the worker is running and healthy.
func (c *Client) IsRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, HealthCheckTimeout)
	defer cancel()

	resp, err := c.get(ctx, "/health")
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return true
}

// Version gets the version of the running worker.
func (c *Client) Version(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, HealthCheckTimeout)
	defer cancel()

	resp, err := c.get(ctx, "/api/version")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode version: %w", err)
	}
	return result["version"], nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

// do sends req and converts error replies into *APIError.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 400 {
		return resp, nil
	}
	defer resp.Body.Close()

	apiErr := &APIError{StatusCode: resp.StatusCode}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
		if apiErr.Message == "" {
			apiErr.Message = resp.Status
		}
	}
	return nil, apiErr
}

// VersionsCompatible checks if two versions are compatible.
// Returns true if both versions share the same base version (ignoring -dirty, -dev, commit suffixes).
func VersionsCompatible(v1, v2 string) bool {
	// A plain "dev" version is compatible with anything
	if v1 == "dev" || v2 == "dev" {
		return true
	}
	return extractBaseVersion(v1) == extractBaseVersion(v2)
}

// extractBaseVersion extracts the semver base from a version string.
// e.g., "v0.3.5-2-gca711a8-dirty" -> "0.3.5"
func extractBaseVersion(version string) string {
	v := strings.TrimPrefix(version, "v")
	if idx := strings.Index(v, "-"); idx > 0 {
		v = v[:idx]
	}
	return v
}
