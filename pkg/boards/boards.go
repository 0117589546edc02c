// Package boards partitions a table's columns into named boards and keeps
// checklist/canvas selection consistent. Board operations are pure over
// copies; the partition invariant (every column on exactly one board) is
// checked after every mutation.
package boards

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/ekaya-inc/canvas-engine/pkg/apperrors"
	"github.com/ekaya-inc/canvas-engine/pkg/models"
)

// DefaultBoardName is the name of the board created when no persisted board
// survives reconciliation.
const DefaultBoardName = "Board 1"

// Create builds a new board. Selection defaults to all supplied columns when
// none are given. A board is never created with an empty column set.
func Create(name string, columnNames, selected []string) (models.BoardState, error) {
	if len(columnNames) == 0 {
		return models.BoardState{}, apperrors.ErrNoColumns
	}
	if len(selected) == 0 {
		selected = columnNames
	}
	return models.BoardState{
		ID:              uuid.NewString(),
		Name:            name,
		ColumnNames:     append([]string(nil), columnNames...),
		SelectedColumns: append([]string(nil), selected...),
	}, nil
}

// ReconcileOnLoad merges persisted boards with the current column universe.
// Persisted column and selection lists are filtered to columns that still
// exist, boards left with zero columns are dropped, and columns not assigned
// to any surviving board (new columns added upstream) are appended to the
// first board. When no board survives, a single default board carries
// everything. A board whose filtered selection would be empty falls back to
// selecting all of its columns.
func ReconcileOnLoad(persisted []models.BoardState, currentColumns []string) []models.BoardState {
	current := make(map[string]bool, len(currentColumns))
	for _, c := range currentColumns {
		current[c] = true
	}

	out := make([]models.BoardState, 0, len(persisted))
	assigned := make(map[string]bool, len(currentColumns))
	for _, b := range persisted {
		board := b.Clone()
		board.ColumnNames = filterKnown(board.ColumnNames, current, assigned)
		if len(board.ColumnNames) == 0 {
			continue
		}
		board.SelectedColumns = intersect(board.SelectedColumns, board.ColumnNames)
		if len(board.SelectedColumns) == 0 {
			board.SelectedColumns = append([]string(nil), board.ColumnNames...)
		}
		if board.ID == "" {
			board.ID = uuid.NewString()
		}
		out = append(out, board)
	}

	orphans := make([]string, 0)
	for _, c := range currentColumns {
		if !assigned[c] {
			orphans = append(orphans, c)
		}
	}

	if len(out) == 0 {
		if len(orphans) == 0 {
			return out
		}
		board, _ := Create(DefaultBoardName, orphans, nil)
		return []models.BoardState{board}
	}

	if len(orphans) > 0 {
		out[0].ColumnNames = append(out[0].ColumnNames, orphans...)
		out[0].SelectedColumns = append(out[0].SelectedColumns, orphans...)
	}

	return out
}

// Split moves the given columns off the source board onto a new board that
// owns them fully selected. The columns must be a subset of the source
// board's columns and must not be selected there (the UI verb is "move
// everything I haven't selected to a new board"). An empty columnsToMove is
// a no-op: the input boards are returned unchanged with an empty new id.
func Split(all []models.BoardState, sourceID string, columnsToMove []string, newName string) ([]models.BoardState, string, error) {
	if len(columnsToMove) == 0 {
		return all, "", nil
	}

	sourceIdx := -1
	for i := range all {
		if all[i].ID == sourceID {
			sourceIdx = i
			break
		}
	}
	if sourceIdx == -1 {
		return nil, "", apperrors.ErrBoardNotFound
	}
	source := all[sourceIdx]

	moving := make(map[string]bool, len(columnsToMove))
	for _, c := range columnsToMove {
		if !source.OwnsColumn(c) {
			return nil, "", fmt.Errorf("column %q is not on the source board: %w", c, apperrors.ErrColumnNotFound)
		}
		if source.IsSelected(c) {
			return nil, "", fmt.Errorf("column %q is selected and cannot be split off", c)
		}
		moving[c] = true
	}

	newBoard, err := Create(newName, columnsToMove, nil)
	if err != nil {
		return nil, "", err
	}

	out := make([]models.BoardState, 0, len(all)+1)
	for i := range all {
		board := all[i].Clone()
		if board.ID == sourceID {
			board.ColumnNames = reject(board.ColumnNames, moving)
			board.SelectedColumns = reject(board.SelectedColumns, moving)
		}
		out = append(out, board)
	}
	out = append(out, newBoard)

	allColumns := make([]string, 0)
	for _, b := range all {
		allColumns = append(allColumns, b.ColumnNames...)
	}
	if err := CheckPartition(out, allColumns); err != nil {
		return nil, "", err
	}

	return out, newBoard.ID, nil
}

// CheckPartition verifies that every column appears in exactly one board.
func CheckPartition(all []models.BoardState, columns []string) error {
	seen := make(map[string]int, len(columns))
	for _, b := range all {
		for _, c := range b.ColumnNames {
			seen[c]++
		}
	}
	for _, c := range columns {
		switch seen[c] {
		case 0:
			return fmt.Errorf("column %q is not assigned to any board", c)
		case 1:
			// ok
		default:
			return fmt.Errorf("column %q appears on %d boards", c, seen[c])
		}
	}
	if len(seen) != len(columns) {
		for c := range seen {
			if !contains(columns, c) {
				return fmt.Errorf("board references unknown column %q", c)
			}
		}
	}
	return nil
}

// filterKnown keeps columns that exist in the current universe and are not
// already assigned to an earlier board, marking them assigned.
func filterKnown(names []string, current, assigned map[string]bool) []string {
	out := make([]string, 0, len(names))
	for _, c := range names {
		if current[c] && !assigned[c] {
			assigned[c] = true
			out = append(out, c)
		}
	}
	return out
}

func intersect(names, allowed []string) []string {
	allowedSet := make(map[string]bool, len(allowed))
	for _, c := range allowed {
		allowedSet[c] = true
	}
	out := make([]string, 0, len(names))
	for _, c := range names {
		if allowedSet[c] {
			out = append(out, c)
		}
	}
	return out
}

func reject(names []string, drop map[string]bool) []string {
	out := make([]string, 0, len(names))
	for _, c := range names {
		if !drop[c] {
			out = append(out, c)
		}
	}
	return out
}

func contains(names []string, name string) bool {
	for _, c := range names {
		if c == name {
			return true
		}
	}
	return false
}
