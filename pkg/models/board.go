package models

import "encoding/json"

// BoardState is a named partition of the table's columns with its own
// selection subset. Every column of the table belongs to exactly one board.
type BoardState struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	ColumnNames     []string `json:"columnNames"`
	SelectedColumns []string `json:"selectedColumns"`
}

// OwnsColumn reports whether the board owns the given column.
func (b *BoardState) OwnsColumn(name string) bool {
	for _, c := range b.ColumnNames {
		if c == name {
			return true
		}
	}
	return false
}

// IsSelected reports whether the given column is selected on this board.
func (b *BoardState) IsSelected(name string) bool {
	for _, c := range b.SelectedColumns {
		if c == name {
			return true
		}
	}
	return false
}

// UnselectedColumns returns the board's columns that are not selected, in
// board order. This is the column set the split operation moves.
func (b *BoardState) UnselectedColumns() []string {
	out := make([]string, 0, len(b.ColumnNames))
	for _, c := range b.ColumnNames {
		if !b.IsSelected(c) {
			out = append(out, c)
		}
	}
	return out
}

// Clone returns a deep copy of the board.
func (b BoardState) Clone() BoardState {
	out := b
	out.ColumnNames = append([]string(nil), b.ColumnNames...)
	out.SelectedColumns = append([]string(nil), b.SelectedColumns...)
	return out
}

// TableWorkflowOverrides is the table-level override payload the engine
// persists: serialized boards, board extras by board id, and the active
// board id. The Column Record Store stores it opaquely.
type TableWorkflowOverrides struct {
	Boards        []BoardState             `json:"workflow_boards,omitempty"`
	BoardExtras   map[string]GraphDocument `json:"workflow_board_extras,omitempty"`
	ActiveBoardID string                   `json:"workflow_active_board_id,omitempty"`
}

// TableOverridePayload converts the overrides to the partial-override map
// shape accepted by the store's table override endpoint.
func (t *TableWorkflowOverrides) TableOverridePayload() map[string]any {
	return map[string]any{
		"workflow_boards":          t.Boards,
		"workflow_board_extras":    t.BoardExtras,
		"workflow_active_board_id": t.ActiveBoardID,
	}
}

// TableOverrides is the open table-level override map as served by the
// store. Workflow fields stay raw so a malformed persisted board list is
// treated as absent instead of failing the load.
type TableOverrides struct {
	WorkflowBoards        json.RawMessage `json:"workflow_boards,omitempty"`
	WorkflowBoardExtras   json.RawMessage `json:"workflow_board_extras,omitempty"`
	WorkflowActiveBoardID string          `json:"workflow_active_board_id,omitempty"`
}
