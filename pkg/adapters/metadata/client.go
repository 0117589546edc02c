// Package metadata provides a client for the Column Record Store, the
// external service that owns durable column records and table overrides.
package metadata

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

	"github.com/ekaya-inc/canvas-engine/pkg/models"
)

// DefaultTimeout is the maximum time to wait for store responses.
const DefaultTimeout = 30 * time.Second

// TableMetadata is the store's response shape for a table: one record per
// column plus the open table-level override map.
type TableMetadata struct {
	Columns []models.ColumnRecord `json:"columns"`
	Table   TableInfo             `json:"table"`
}

// TableInfo carries the table-level fields the engine consumes.
type TableInfo struct {
	ID        string                `json:"id"`
	Name      string                `json:"name"`
	Overrides models.TableOverrides `json:"overrides"`
}

// Store is the interface the engine consumes. Implemented by Client;
// faked in tests.
type Store interface {
	Get(ctx context.Context, tableID string) (*TableMetadata, error)
	Initialize(ctx context.Context, tableID string) (*TableMetadata, error)
	Override(ctx context.Context, tableID, columnName string, overrides map[string]any) error
	OverrideTable(ctx context.Context, tableID string, overrides map[string]any) error
}

// Client provides access to the Column Record Store API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new Column Record Store client. A zero timeout uses
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
		logger: logger.Named("metadata"),
	}
}

// Get fetches the column records and table overrides for a table.
func (c *Client) Get(ctx context.Context, tableID string) (*TableMetadata, error) {
	endpoint, err := buildURL(c.baseURL, "api", "tables", tableID, "metadata")
	if err != nil {
		return nil, fmt.Errorf("failed to build URL: %w", err)
	}
	return c.doMetadataRequest(ctx, http.MethodGet, endpoint, nil)
}

// Initialize asks the store to build column records for a table that has
// none yet, returning the same shape as Get.
func (c *Client) Initialize(ctx context.Context, tableID string) (*TableMetadata, error) {
	endpoint, err := buildURL(c.baseURL, "api", "tables", tableID, "metadata", "initialize")
	if err != nil {
		return nil, fmt.Errorf("failed to build URL: %w", err)
	}
	c.logger.Info("Initializing table metadata", zap.String("table_id", tableID))
	return c.doMetadataRequest(ctx, http.MethodPost, endpoint, nil)
}

// Override applies a partial override to one column. The engine uses it for
// the workflow_graph field only; other override fields belong to other
// surfaces.
func (c *Client) Override(ctx context.Context, tableID, columnName string, overrides map[string]any) error {
	endpoint, err := buildURL(c.baseURL, "api", "tables", tableID, "columns", columnName, "overrides")
	if err != nil {
		return fmt.Errorf("failed to build URL: %w", err)
	}
	return c.doOverrideRequest(ctx, endpoint, overrides)
}

// OverrideTable applies a partial override at table level. Used for
// workflow_boards, workflow_board_extras, and workflow_active_board_id.
func (c *Client) OverrideTable(ctx context.Context, tableID string, overrides map[string]any) error {
	endpoint, err := buildURL(c.baseURL, "api", "tables", tableID, "overrides")
	if err != nil {
		return fmt.Errorf("failed to build URL: %w", err)
	}
	return c.doOverrideRequest(ctx, endpoint, overrides)
}

// doMetadataRequest executes a request and parses the table metadata response.
func (c *Client) doMetadataRequest(ctx context.Context, method, endpoint string, body io.Reader) (*TableMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call metadata store: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("metadata store returned error",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(respBody)))
		return nil, fmt.Errorf("metadata store returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var metadata TableMetadata
	if err := json.Unmarshal(respBody, &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &metadata, nil
}

// doOverrideRequest posts a partial-override payload.
func (c *Client) doOverrideRequest(ctx context.Context, endpoint string, overrides map[string]any) error {
	payload, err := json.Marshal(overrides)
	if err != nil {
		return fmt.Errorf("failed to encode overrides: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call metadata store: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("metadata store returned status %d: %s", resp.StatusCode, string(body))
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
