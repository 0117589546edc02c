package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/canvas-engine/pkg/adapters/metadata"
	"github.com/ekaya-inc/canvas-engine/pkg/adapters/runner"
	"github.com/ekaya-inc/canvas-engine/pkg/models"
)

// fakeStore is an in-memory Column Record Store for tests. It records every
// write and can be told to fail specific columns or all table overrides.
type fakeStore struct {
	mu sync.Mutex

	metadata    *metadata.TableMetadata
	getErr      error
	initialized bool

	// initColumns, when set, is what Initialize discovers.
	initColumns []models.ColumnRecord

	failColumns  map[string]bool
	failTable    bool
	columnWrites []columnWrite
	tableWrites  []map[string]any
}

type columnWrite struct {
	column    string
	overrides map[string]any
}

func newFakeStore(columns []models.ColumnRecord) *fakeStore {
	return &fakeStore{
		metadata: &metadata.TableMetadata{
			Columns: columns,
			Table:   metadata.TableInfo{ID: "tbl-1", Name: "orders"},
		},
		failColumns: make(map[string]bool),
	}
}

func (s *fakeStore) Get(ctx context.Context, tableID string) (*metadata.TableMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.metadata, nil
}

func (s *fakeStore) Initialize(ctx context.Context, tableID string) (*metadata.TableMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = true
	if s.initColumns != nil {
		s.metadata.Columns = s.initColumns
	}
	return s.metadata, nil
}

func (s *fakeStore) Override(ctx context.Context, tableID, columnName string, overrides map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failColumns[columnName] {
		return fmt.Errorf("store rejected column %s", columnName)
	}
	s.columnWrites = append(s.columnWrites, columnWrite{column: columnName, overrides: overrides})
	return nil
}

func (s *fakeStore) OverrideTable(ctx context.Context, tableID string, overrides map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failTable {
		return fmt.Errorf("store rejected table override")
	}
	s.tableWrites = append(s.tableWrites, overrides)
	return nil
}

func (s *fakeStore) columnWriteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.columnWrites)
}

func (s *fakeStore) tableWriteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tableWrites)
}

func (s *fakeStore) lastTableWrite() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tableWrites) == 0 {
		return nil
	}
	return s.tableWrites[len(s.tableWrites)-1]
}

func (s *fakeStore) writtenColumns() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int)
	for _, w := range s.columnWrites {
		out[w.column]++
	}
	return out
}

// setStoredGraph persists a workflow_graph override on one column of the
// fake's metadata, as if a previous session saved it.
func (s *fakeStore) setStoredGraph(columnName string, doc models.GraphDocument) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, _ := json.Marshal(doc)
	for i := range s.metadata.Columns {
		if s.metadata.Columns[i].ColumnName == columnName {
			s.metadata.Columns[i].Overrides.WorkflowGraph = raw
		}
	}
}

// setTableOverrides persists table-level workflow overrides on the fake.
func (s *fakeStore) setTableOverrides(boards []models.BoardState, extras map[string]models.GraphDocument, activeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if boards != nil {
		s.metadata.Table.Overrides.WorkflowBoards, _ = json.Marshal(boards)
	}
	if extras != nil {
		s.metadata.Table.Overrides.WorkflowBoardExtras, _ = json.Marshal(extras)
	}
	s.metadata.Table.Overrides.WorkflowActiveBoardID = activeID
}

// fakeBackend is an in-memory execution backend for tests.
type fakeBackend struct {
	mu sync.Mutex

	failColumns map[string]bool
	estimates   int
	runs        int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{failColumns: make(map[string]bool)}
}

func (b *fakeBackend) Estimate(ctx context.Context, tableID, columnName string) (*runner.EstimateResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.estimates++
	if b.failColumns[columnName] {
		return nil, fmt.Errorf("estimate failed for %s", columnName)
	}
	return &runner.EstimateResponse{
		Column:      columnName,
		TotalTokens: 1200,
		Estimates:   []runner.StepEstimate{{Step: "generate_insights", Tokens: 1200}},
	}, nil
}

func (b *fakeBackend) Run(ctx context.Context, tableID, columnName string, opts runner.RunOptions) (*runner.RunResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.runs++
	if b.failColumns[columnName] {
		return nil, fmt.Errorf("run failed for %s", columnName)
	}
	return &runner.RunResponse{
		WorkflowID: "wf-" + columnName,
		Status:     "completed",
	}, nil
}

func (b *fakeBackend) RunSelected(ctx context.Context, tableID, columnName string, toolCalls []runner.ToolCall, opts runner.RunOptions) (*runner.RunResponse, error) {
	return b.Run(ctx, tableID, columnName, opts)
}

// testColumns is the standard three-column table used across panel tests.
func testColumns() []models.ColumnRecord {
	return []models.ColumnRecord{
		{ColumnName: "price", SemanticType: models.SemanticTypeNumeric, Confidence: 0.9},
		{ColumnName: "notes", SemanticType: models.SemanticTypeText, Confidence: 0.4},
		{ColumnName: "photo", SemanticType: models.SemanticTypeImage, Confidence: 0.7},
	}
}

// fastOptions keeps debounce windows tiny so tests settle quickly.
func fastOptions() PanelOptions {
	return PanelOptions{
		EchoWindow:        50 * time.Millisecond,
		BoardSaveDebounce: 10 * time.Millisecond,
		GraphSaveDebounce: 10 * time.Millisecond,
	}
}

// loadedPanel builds and loads a panel over the fake store.
func loadedPanel(t *testing.T, store *fakeStore) *Panel {
	t.Helper()
	panel := NewPanel(store, "tbl-1", fastOptions(), zaptest.NewLogger(t))
	if err := panel.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	t.Cleanup(panel.Close)
	return panel
}
