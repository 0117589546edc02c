package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/canvas-engine/pkg/adapters/metadata"
	"github.com/ekaya-inc/canvas-engine/pkg/apperrors"
	"github.com/ekaya-inc/canvas-engine/pkg/boards"
	"github.com/ekaya-inc/canvas-engine/pkg/graph"
	"github.com/ekaya-inc/canvas-engine/pkg/jsonutil"
	"github.com/ekaya-inc/canvas-engine/pkg/models"
)

// Panel is the synchronization engine for one table: column records, boards
// and extras, the hydrated per-column graph cache, the selection-echo guard,
// and the persistence coalescer. All mutation goes through the panel's
// mutex; state handed out leaves as copies, so no caller can corrupt the
// in-memory graphs.
type Panel struct {
	mu        sync.Mutex
	logger    *zap.Logger
	store     metadata.Store
	coalescer *Coalescer

	tableID string
	table   models.TableRef
	loaded  bool

	columns     []models.ColumnRecord
	columnIndex map[string]int

	boards        []models.BoardState
	extras        map[string]models.GraphDocument
	activeBoardID string

	// graphs holds the hydrated graph per column, the single source the
	// canvas renders from.
	graphs map[string]models.GraphDocument

	guard *boards.SelectionGuard
}

// PanelOptions configures a Panel.
type PanelOptions struct {
	EchoWindow        time.Duration
	BoardSaveDebounce time.Duration
	GraphSaveDebounce time.Duration
}

// NewPanel creates the panel for one table. Zero option values use the
// package defaults.
func NewPanel(store metadata.Store, tableID string, opts PanelOptions, logger *zap.Logger) *Panel {
	logger = logger.Named("panel").With(zap.String("table_id", tableID))
	return &Panel{
		logger:      logger,
		store:       store,
		coalescer:   NewCoalescer(store, tableID, opts.BoardSaveDebounce, opts.GraphSaveDebounce, logger),
		tableID:     tableID,
		columnIndex: make(map[string]int),
		extras:      make(map[string]models.GraphDocument),
		graphs:      make(map[string]models.GraphDocument),
		guard:       boards.NewSelectionGuard(opts.EchoWindow),
	}
}

// Load fetches column records and table overrides, reconciles persisted
// boards against the current column universe, and hydrates every column's
// graph. A fetch failure is a blocking error for the whole panel; a
// malformed persisted override is treated as absent and never fails the
// load.
func (p *Panel) Load(ctx context.Context) error {
	md, err := p.store.Get(ctx, p.tableID)
	if err != nil {
		return fmt.Errorf("load table metadata: %w", err)
	}
	if len(md.Columns) == 0 {
		md, err = p.store.Initialize(ctx, p.tableID)
		if err != nil {
			return fmt.Errorf("initialize table metadata: %w", err)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.table = models.TableRef{ID: md.Table.ID, Name: md.Table.Name}
	if p.table.ID == "" {
		p.table.ID = p.tableID
	}

	p.columns = md.Columns
	p.columnIndex = make(map[string]int, len(md.Columns))
	columnNames := make([]string, len(md.Columns))
	for i, col := range md.Columns {
		p.columnIndex[col.ColumnName] = i
		columnNames[i] = col.ColumnName
	}

	persisted, _ := jsonutil.DecodeBoards(md.Table.Overrides.WorkflowBoards)
	p.boards = boards.ReconcileOnLoad(persisted, columnNames)

	p.extras = make(map[string]models.GraphDocument)
	for boardID, extras := range jsonutil.DecodeBoardExtras(md.Table.Overrides.WorkflowBoardExtras) {
		if p.boardByIDLocked(boardID) != nil {
			p.extras[boardID] = extras
		}
	}

	p.activeBoardID = md.Table.Overrides.WorkflowActiveBoardID
	if p.boardByIDLocked(p.activeBoardID) == nil {
		p.activeBoardID = ""
		if len(p.boards) > 0 {
			p.activeBoardID = p.boards[0].ID
		}
	}

	p.graphs = make(map[string]models.GraphDocument, len(md.Columns))
	for _, board := range p.boards {
		for layoutIndex, columnName := range board.ColumnNames {
			p.hydrateColumnLocked(columnName, layoutIndex)
		}
	}

	p.loaded = true
	p.logger.Info("Panel loaded",
		zap.Int("columns", len(p.columns)),
		zap.Int("boards", len(p.boards)))
	return nil
}

// hydrateColumnLocked derives and hydrates one column's graph into the cache.
func (p *Panel) hydrateColumnLocked(columnName string, layoutIndex int) {
	idx, ok := p.columnIndex[columnName]
	if !ok {
		return
	}
	col := p.columns[idx]
	base := graph.Derive(col, p.table, layoutIndex)
	stored, _ := jsonutil.DecodeGraphDocument(col.Overrides.WorkflowGraph)
	p.graphs[columnName] = graph.Hydrate(col, p.table, base, stored)
}

// ToggleColumn flips one column's selection on the active board. The
// selection guard is armed first, so the canvas's echo of the resulting
// selection change is suppressed.
func (p *Panel) ToggleColumn(columnName string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded {
		return apperrors.ErrPanelNotLoaded
	}

	board := p.boardByIDLocked(p.activeBoardID)
	if board == nil {
		return apperrors.ErrBoardNotFound
	}
	if !board.OwnsColumn(columnName) {
		return apperrors.ErrColumnNotFound
	}

	p.guard.ArmListToggle()

	if board.IsSelected(columnName) {
		kept := make([]string, 0, len(board.SelectedColumns))
		for _, c := range board.SelectedColumns {
			if c != columnName {
				kept = append(kept, c)
			}
		}
		board.SelectedColumns = kept
	} else {
		board.SelectedColumns = append(board.SelectedColumns, columnName)
	}

	p.scheduleBoardSaveLocked()
	return nil
}

// ApplyCanvasSelection handles a canvas-originated selection event. The
// echo of a just-applied checklist toggle is consumed and ignored; empty
// canvas selections are never propagated (canvases report empty selection
// transiently during internal operations). Otherwise node ids translate to
// their owning columns and become the active board's selection.
func (p *Panel) ApplyCanvasSelection(nodeIDs []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded {
		return apperrors.ErrPanelNotLoaded
	}

	if p.guard.ConsumeCanvasEvent() {
		return nil
	}
	if len(nodeIDs) == 0 {
		return nil
	}

	board := p.boardByIDLocked(p.activeBoardID)
	if board == nil {
		return apperrors.ErrBoardNotFound
	}

	owner := p.nodeOwnersLocked(board)
	selected := boards.ColumnsForNodes(nodeIDs, board.ColumnNames, func(nodeID string) string {
		return owner[nodeID]
	})
	if len(selected) == 0 {
		return nil
	}

	board.SelectedColumns = selected
	p.scheduleBoardSaveLocked()
	return nil
}

// SetActiveBoard switches the active board.
func (p *Panel) SetActiveBoard(boardID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded {
		return apperrors.ErrPanelNotLoaded
	}
	if p.boardByIDLocked(boardID) == nil {
		return apperrors.ErrBoardNotFound
	}
	p.activeBoardID = boardID
	p.scheduleBoardSaveLocked()
	return nil
}

// SplitActiveBoard moves every unselected column of the active board to a
// new board, which becomes active with all of its columns selected. When
// every column is selected there is nothing to move and the split is a
// no-op that returns an empty board id.
func (p *Panel) SplitActiveBoard(newName string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded {
		return "", apperrors.ErrPanelNotLoaded
	}

	board := p.boardByIDLocked(p.activeBoardID)
	if board == nil {
		return "", apperrors.ErrBoardNotFound
	}

	updated, newID, err := boards.Split(p.boards, board.ID, board.UnselectedColumns(), newName)
	if err != nil {
		return "", fmt.Errorf("split board: %w", err)
	}
	if newID == "" {
		return "", nil
	}

	p.boards = updated
	p.activeBoardID = newID
	p.scheduleBoardSaveLocked()
	return newID, nil
}

// ApplyCanvasChange handles the canvas's full node/edge list after a
// content edit. The list is split into per-column graphs and extras;
// changed columns are handed to the coalescer's per-column save path, and
// changed extras ride the board save path.
func (p *Panel) ApplyCanvasChange(doc models.GraphDocument) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded {
		return apperrors.ErrPanelNotLoaded
	}

	board := p.boardByIDLocked(p.activeBoardID)
	if board == nil {
		return apperrors.ErrBoardNotFound
	}

	split := SplitCanvasGraph(doc)

	for _, columnName := range board.ColumnNames {
		updated, ok := split.Columns[columnName]
		if !ok {
			continue
		}
		if graphKey(p.graphs[columnName]) == graphKey(updated) {
			continue
		}
		p.graphs[columnName] = updated
		p.coalescer.ScheduleGraphSave(columnName, updated.Clone())
	}

	current := p.extras[board.ID]
	if !(current.IsEmpty() && split.Extras.IsEmpty()) && graphKey(current) != graphKey(split.Extras) {
		p.extras[board.ID] = split.Extras
		p.scheduleBoardSaveLocked()
	}

	return nil
}

// SetColumnStatus stamps a run status on every node of a column's graph and
// schedules the graph for saving, so statuses survive a reload.
func (p *Panel) SetColumnStatus(columnName string, status models.NodeStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	g, ok := p.graphs[columnName]
	if !ok {
		return
	}
	updated := g.Clone()
	for i := range updated.Nodes {
		updated.Nodes[i].Data.Status = status
	}
	p.graphs[columnName] = updated
	p.coalescer.ScheduleGraphSave(columnName, updated.Clone())
}

// SelectedColumns returns the active board's selected columns.
func (p *Panel) SelectedColumns() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	board := p.boardByIDLocked(p.activeBoardID)
	if board == nil {
		return nil
	}
	return append([]string(nil), board.SelectedColumns...)
}

// TableID returns the table this panel is attached to.
func (p *Panel) TableID() string {
	return p.tableID
}

// Close stops the coalescer's timers. In-flight saves finish unobserved.
func (p *Panel) Close() {
	p.coalescer.Close()
}

// boardByIDLocked returns a pointer into p.boards, or nil.
func (p *Panel) boardByIDLocked(boardID string) *models.BoardState {
	for i := range p.boards {
		if p.boards[i].ID == boardID {
			return &p.boards[i]
		}
	}
	return nil
}

// nodeOwnersLocked maps node id to owning column for the given board's
// hydrated graphs. Extras nodes map to "".
func (p *Panel) nodeOwnersLocked(board *models.BoardState) map[string]string {
	owner := make(map[string]string)
	for _, columnName := range board.ColumnNames {
		for _, node := range p.graphs[columnName].Nodes {
			owner[node.ID] = columnName
		}
	}
	for _, node := range p.extras[board.ID].Nodes {
		owner[node.ID] = ""
	}
	return owner
}

// scheduleBoardSaveLocked hands the current board state to the coalescer.
func (p *Panel) scheduleBoardSaveLocked() {
	snapshot := BoardSnapshot{
		Boards:        make([]models.BoardState, len(p.boards)),
		Extras:        make(map[string]models.GraphDocument, len(p.extras)),
		ActiveBoardID: p.activeBoardID,
	}
	for i, b := range p.boards {
		snapshot.Boards[i] = b.Clone()
	}
	for boardID, extras := range p.extras {
		snapshot.Extras[boardID] = extras.Clone()
	}
	p.coalescer.ScheduleBoardSave(snapshot)
}

// graphKey serializes a graph for change detection.
func graphKey(doc models.GraphDocument) string {
	payload, err := json.Marshal(doc)
	if err != nil {
		return ""
	}
	return string(payload)
}
