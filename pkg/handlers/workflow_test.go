package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/canvas-engine/pkg/adapters/metadata"
	"github.com/ekaya-inc/canvas-engine/pkg/adapters/runner"
	"github.com/ekaya-inc/canvas-engine/pkg/models"
	"github.com/ekaya-inc/canvas-engine/pkg/services"
)

// stubStore is a minimal in-memory Column Record Store.
type stubStore struct {
	mu       sync.Mutex
	metadata *metadata.TableMetadata
	getErr   error
}

func newStubStore() *stubStore {
	return &stubStore{
		metadata: &metadata.TableMetadata{
			Columns: []models.ColumnRecord{
				{ColumnName: "price", SemanticType: models.SemanticTypeNumeric, Confidence: 0.9},
				{ColumnName: "notes", SemanticType: models.SemanticTypeText, Confidence: 0.4},
			},
			Table: metadata.TableInfo{ID: "tbl-1", Name: "orders"},
		},
	}
}

func (s *stubStore) Get(ctx context.Context, tableID string) (*metadata.TableMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.metadata, nil
}

func (s *stubStore) Initialize(ctx context.Context, tableID string) (*metadata.TableMetadata, error) {
	return s.Get(ctx, tableID)
}

func (s *stubStore) Override(ctx context.Context, tableID, columnName string, overrides map[string]any) error {
	return nil
}

func (s *stubStore) OverrideTable(ctx context.Context, tableID string, overrides map[string]any) error {
	return nil
}

// stubBackend is a minimal execution backend.
type stubBackend struct {
	failColumns map[string]bool
}

func (b *stubBackend) Estimate(ctx context.Context, tableID, columnName string) (*runner.EstimateResponse, error) {
	if b.failColumns[columnName] {
		return nil, fmt.Errorf("estimate failed for %s", columnName)
	}
	return &runner.EstimateResponse{Column: columnName, TotalTokens: 500}, nil
}

func (b *stubBackend) Run(ctx context.Context, tableID, columnName string, opts runner.RunOptions) (*runner.RunResponse, error) {
	if b.failColumns[columnName] {
		return nil, fmt.Errorf("run failed for %s", columnName)
	}
	return &runner.RunResponse{WorkflowID: "wf-" + columnName, Status: "completed"}, nil
}

func (b *stubBackend) RunSelected(ctx context.Context, tableID, columnName string, toolCalls []runner.ToolCall, opts runner.RunOptions) (*runner.RunResponse, error) {
	return b.Run(ctx, tableID, columnName, opts)
}

func newTestMux(t *testing.T, store metadata.Store, backend runner.Backend) *http.ServeMux {
	t.Helper()
	logger := zaptest.NewLogger(t)
	opts := services.PanelOptions{
		EchoWindow:        50 * time.Millisecond,
		BoardSaveDebounce: 10 * time.Millisecond,
		GraphSaveDebounce: 10 * time.Millisecond,
	}
	panels := services.NewPanelManager(store, backend, opts, logger)
	t.Cleanup(panels.Close)

	mux := http.NewServeMux()
	NewWorkflowHandler(panels, logger).RegisterRoutes(mux)
	return mux
}

func doRequest(mux *http.ServeMux, method, target string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeSnapshot(t *testing.T, rec *httptest.ResponseRecorder) services.PanelSnapshot {
	t.Helper()
	var snap services.PanelSnapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))
	return snap
}

func TestGetSnapshot(t *testing.T) {
	mux := newTestMux(t, newStubStore(), &stubBackend{})

	rec := doRequest(mux, http.MethodGet, "/api/tables/tbl-1/workflow", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	snap := decodeSnapshot(t, rec)
	assert.Equal(t, "tbl-1", snap.TableID)
	assert.Equal(t, "orders", snap.TableName)
	require.Len(t, snap.Boards, 1)
	assert.NotEmpty(t, snap.Checklist)
	assert.NotEmpty(t, snap.Graph.Nodes)
}

func TestGetSnapshot_LoadFailure(t *testing.T) {
	store := newStubStore()
	store.getErr = errors.New("store down")
	mux := newTestMux(t, store, &stubBackend{})

	rec := doRequest(mux, http.MethodGet, "/api/tables/tbl-1/workflow", nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "load_failed")
}

func TestToggleColumn(t *testing.T) {
	mux := newTestMux(t, newStubStore(), &stubBackend{})

	rec := doRequest(mux, http.MethodPost, "/api/tables/tbl-1/workflow/columns/notes/toggle", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	snap := decodeSnapshot(t, rec)
	require.Len(t, snap.Boards, 1)
	assert.Equal(t, []string{"price"}, snap.Boards[0].SelectedColumns)
}

func TestToggleColumn_Unknown(t *testing.T) {
	mux := newTestMux(t, newStubStore(), &stubBackend{})

	rec := doRequest(mux, http.MethodPost, "/api/tables/tbl-1/workflow/columns/ghost/toggle", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "column_not_found")
}

func TestActivateBoard_Unknown(t *testing.T) {
	mux := newTestMux(t, newStubStore(), &stubBackend{})

	rec := doRequest(mux, http.MethodPost, "/api/tables/tbl-1/workflow/boards/nope/activate", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "board_not_found")
}

func TestSplitBoard(t *testing.T) {
	mux := newTestMux(t, newStubStore(), &stubBackend{})

	rec := doRequest(mux, http.MethodPost, "/api/tables/tbl-1/workflow/columns/notes/toggle", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(mux, http.MethodPost, "/api/tables/tbl-1/workflow/boards/split",
		map[string]string{"name": "Later"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		NewBoardID string                 `json:"new_board_id"`
		Snapshot   services.PanelSnapshot `json:"snapshot"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp.NewBoardID)
	require.Len(t, resp.Snapshot.Boards, 2)
	assert.Equal(t, resp.NewBoardID, resp.Snapshot.ActiveBoardID)
}

func TestSplitBoard_MissingName(t *testing.T) {
	mux := newTestMux(t, newStubStore(), &stubBackend{})

	rec := doRequest(mux, http.MethodPost, "/api/tables/tbl-1/workflow/boards/split",
		map[string]string{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_request")
}

func TestCanvasChange(t *testing.T) {
	mux := newTestMux(t, newStubStore(), &stubBackend{})

	rec := doRequest(mux, http.MethodGet, "/api/tables/tbl-1/workflow", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decodeSnapshot(t, rec)

	rec = doRequest(mux, http.MethodPost, "/api/tables/tbl-1/workflow/canvas", snap.Graph)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCanvasChange_InvalidBody(t *testing.T) {
	mux := newTestMux(t, newStubStore(), &stubBackend{})

	req := httptest.NewRequest(http.MethodPost, "/api/tables/tbl-1/workflow/canvas",
		strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCanvasSelection(t *testing.T) {
	mux := newTestMux(t, newStubStore(), &stubBackend{})

	rec := doRequest(mux, http.MethodGet, "/api/tables/tbl-1/workflow", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decodeSnapshot(t, rec)

	var notesNode string
	for _, node := range snap.Graph.Nodes {
		if node.Data.ColumnName == "notes" {
			notesNode = node.ID
			break
		}
	}
	require.NotEmpty(t, notesNode)

	rec = doRequest(mux, http.MethodPost, "/api/tables/tbl-1/workflow/canvas/selection",
		map[string][]string{"node_ids": {notesNode}})
	require.Equal(t, http.StatusOK, rec.Code)

	snap = decodeSnapshot(t, rec)
	require.Len(t, snap.Boards, 1)
	assert.Equal(t, []string{"notes"}, snap.Boards[0].SelectedColumns)
}

func TestEstimate_DefaultsToSelection(t *testing.T) {
	mux := newTestMux(t, newStubStore(), &stubBackend{})

	rec := doRequest(mux, http.MethodPost, "/api/tables/tbl-1/workflow/estimate",
		map[string]any{})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Estimates []services.ColumnEstimate `json:"estimates"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Estimates, 2)
}

func TestRun_PartialFailure(t *testing.T) {
	backend := &stubBackend{failColumns: map[string]bool{"notes": true}}
	mux := newTestMux(t, newStubStore(), backend)

	rec := doRequest(mux, http.MethodPost, "/api/tables/tbl-1/workflow/run",
		map[string]any{"columns": []string{"price", "notes"}})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Results []services.ColumnRunResult `json:"results"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Results, 2)
	assert.NotNil(t, resp.Results[0].Run)
	assert.Empty(t, resp.Results[0].Error)
	assert.Nil(t, resp.Results[1].Run)
	assert.NotEmpty(t, resp.Results[1].Error)
}
