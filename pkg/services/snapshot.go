package services

import (
	"github.com/ekaya-inc/canvas-engine/pkg/apperrors"
	"github.com/ekaya-inc/canvas-engine/pkg/models"
)

// PanelSnapshot is the immutable view the UI subscribes to: the board list,
// the grouped checklist for the active board, and the combined node/edge
// list the canvas renders.
type PanelSnapshot struct {
	TableID       string               `json:"table_id"`
	TableName     string               `json:"table_name"`
	Boards        []models.BoardState  `json:"boards"`
	ActiveBoardID string               `json:"active_board_id"`
	Checklist     []ChecklistGroup     `json:"checklist"`
	Graph         models.GraphDocument `json:"graph"`
}

// ChecklistGroup is one semantic-type section of the checklist.
type ChecklistGroup struct {
	Type    models.SemanticType `json:"type"`
	Label   string              `json:"label"`
	Columns []ChecklistColumn   `json:"columns"`
}

// ChecklistColumn is one toggleable row of the checklist.
type ChecklistColumn struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Selected   bool    `json:"selected"`
}

// Snapshot returns the current immutable view of the panel.
func (p *Panel) Snapshot() (*PanelSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded {
		return nil, apperrors.ErrPanelNotLoaded
	}

	snapshot := &PanelSnapshot{
		TableID:   p.tableID,
		TableName: p.table.Name,
		Boards:    make([]models.BoardState, len(p.boards)),
	}
	for i, b := range p.boards {
		snapshot.Boards[i] = b.Clone()
	}
	snapshot.ActiveBoardID = p.activeBoardID

	board := p.boardByIDLocked(p.activeBoardID)
	if board != nil {
		snapshot.Checklist = p.checklistLocked(board)
		snapshot.Graph = CombineGraphs(board.ColumnNames, p.graphs, p.extras[board.ID]).Clone()
	}

	return snapshot, nil
}

// checklistLocked groups the active board's columns by semantic type, in
// the order types first appear on the board.
func (p *Panel) checklistLocked(board *models.BoardState) []ChecklistGroup {
	groups := make([]ChecklistGroup, 0)
	groupIndex := make(map[models.SemanticType]int)

	for _, columnName := range board.ColumnNames {
		idx, ok := p.columnIndex[columnName]
		if !ok {
			continue
		}
		col := p.columns[idx]
		typ := col.SemanticType.Normalize()

		gi, ok := groupIndex[typ]
		if !ok {
			gi = len(groups)
			groupIndex[typ] = gi
			groups = append(groups, ChecklistGroup{
				Type:  typ,
				Label: typ.GroupLabel(),
			})
		}
		groups[gi].Columns = append(groups[gi].Columns, ChecklistColumn{
			Name:       col.ColumnName,
			Confidence: col.Confidence,
			Selected:   board.IsSelected(col.ColumnName),
		})
	}

	return groups
}
