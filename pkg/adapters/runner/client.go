// Package runner provides a client for the workflow execution backend,
// which runs workflow steps and streams logs. The engine only issues
// estimate/run requests and consumes their results.
package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout is the maximum time to wait for backend responses. Runs
// can legitimately take a while, so this is generous.
const DefaultTimeout = 2 * time.Minute

// StepEstimate is the token estimate for one workflow step.
type StepEstimate struct {
	Step   string `json:"step"`
	Tokens int    `json:"tokens"`
}

// EstimateResponse is the backend's token estimate for one column.
type EstimateResponse struct {
	Column       string         `json:"column"`
	SemanticType string         `json:"semantic_type"`
	TotalTokens  int            `json:"total_tokens"`
	Estimates    []StepEstimate `json:"estimates"`
}

// ToolCall is one tool invocation recorded by a workflow run.
type ToolCall struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// RunResponse is the backend's result for one column run.
type RunResponse struct {
	WorkflowID        string     `json:"workflow_id"`
	Status            string     `json:"status"`
	WorkflowLogs      []string   `json:"workflow_logs,omitempty"`
	WorkflowToolCalls []ToolCall `json:"workflow_tool_calls,omitempty"`
}

// RunOptions carries the optional parameters of a run request.
type RunOptions struct {
	Focus string `json:"focus,omitempty"`
}

// Backend is the interface the engine consumes. Implemented by Client;
// faked in tests.
type Backend interface {
	Estimate(ctx context.Context, tableID, columnName string) (*EstimateResponse, error)
	Run(ctx context.Context, tableID, columnName string, opts RunOptions) (*RunResponse, error)
	RunSelected(ctx context.Context, tableID, columnName string, toolCalls []ToolCall, opts RunOptions) (*RunResponse, error)
}

// Client provides access to the execution backend API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new execution backend client. A zero timeout uses
// DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.Named("runner"),
	}
}

// Estimate asks the backend for the token cost of running a column's workflow.
func (c *Client) Estimate(ctx context.Context, tableID, columnName string) (*EstimateResponse, error) {
	endpoint, err := buildURL(c.baseURL, "api", "tables", tableID, "columns", columnName, "estimate")
	if err != nil {
		return nil, fmt.Errorf("failed to build URL: %w", err)
	}

	var estimate EstimateResponse
	if err := c.doJSON(ctx, endpoint, nil, &estimate); err != nil {
		return nil, err
	}
	return &estimate, nil
}

// Run executes a column's workflow.
func (c *Client) Run(ctx context.Context, tableID, columnName string, opts RunOptions) (*RunResponse, error) {
	endpoint, err := buildURL(c.baseURL, "api", "tables", tableID, "columns", columnName, "run")
	if err != nil {
		return nil, fmt.Errorf("failed to build URL: %w", err)
	}

	c.logger.Info("Running column workflow",
		zap.String("table_id", tableID),
		zap.String("column", columnName))

	var run RunResponse
	if err := c.doJSON(ctx, endpoint, opts, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// RunSelected re-executes a subset of a column workflow's recorded tool calls.
func (c *Client) RunSelected(ctx context.Context, tableID, columnName string, toolCalls []ToolCall, opts RunOptions) (*RunResponse, error) {
	endpoint, err := buildURL(c.baseURL, "api", "tables", tableID, "columns", columnName, "run-selected")
	if err != nil {
		return nil, fmt.Errorf("failed to build URL: %w", err)
	}

	payload := struct {
		ToolCalls []ToolCall `json:"tool_calls"`
		Focus     string     `json:"focus,omitempty"`
	}{ToolCalls: toolCalls, Focus: opts.Focus}

	var run RunResponse
	if err := c.doJSON(ctx, endpoint, payload, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// doJSON posts an optional JSON body and decodes a JSON response.
func (c *Client) doJSON(ctx context.Context, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call execution backend: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("execution backend returned error",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(respBody)))
		return fmt.Errorf("execution backend returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// buildURL constructs a URL by parsing the base and joining path segments.
func buildURL(baseURL string, pathSegments ...string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	segments := append([]string{u.Path}, pathSegments...)
	u.Path = path.Join(segments...)
	return u.String(), nil
}
