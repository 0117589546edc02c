package boards

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/canvas-engine/pkg/apperrors"
	"github.com/ekaya-inc/canvas-engine/pkg/models"
)

func TestCreate_SelectionDefaultsToAllColumns(t *testing.T) {
	board, err := Create("Board 1", []string{"a", "b"}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, board.ID)
	assert.Equal(t, []string{"a", "b"}, board.ColumnNames)
	assert.Equal(t, []string{"a", "b"}, board.SelectedColumns)
}

func TestCreate_EmptyColumnSetRejected(t *testing.T) {
	_, err := Create("Board 1", nil, nil)
	assert.ErrorIs(t, err, apperrors.ErrNoColumns)
}

func TestReconcileOnLoad_NoPersistedBoards(t *testing.T) {
	got := ReconcileOnLoad(nil, []string{"a", "b", "c"})
	require.Len(t, got, 1)
	assert.Equal(t, DefaultBoardName, got[0].Name)
	assert.Equal(t, []string{"a", "b", "c"}, got[0].ColumnNames)
	assert.Equal(t, []string{"a", "b", "c"}, got[0].SelectedColumns)
}

func TestReconcileOnLoad_FiltersDeletedColumns(t *testing.T) {
	persisted := []models.BoardState{
		{ID: "b1", Name: "Board 1", ColumnNames: []string{"a", "gone"}, SelectedColumns: []string{"gone"}},
	}

	got := ReconcileOnLoad(persisted, []string{"a"})
	require.Len(t, got, 1)
	assert.Equal(t, []string{"a"}, got[0].ColumnNames)
	// The filtered selection would be empty, so it falls back to all columns.
	assert.Equal(t, []string{"a"}, got[0].SelectedColumns)
}

func TestReconcileOnLoad_DropsEmptyBoards(t *testing.T) {
	persisted := []models.BoardState{
		{ID: "b1", Name: "Board 1", ColumnNames: []string{"gone1", "gone2"}},
		{ID: "b2", Name: "Board 2", ColumnNames: []string{"a"}, SelectedColumns: []string{"a"}},
	}

	got := ReconcileOnLoad(persisted, []string{"a"})
	require.Len(t, got, 1)
	assert.Equal(t, "b2", got[0].ID)
}

func TestReconcileOnLoad_NewColumnsJoinFirstBoard(t *testing.T) {
	persisted := []models.BoardState{
		{ID: "b1", Name: "Board 1", ColumnNames: []string{"a"}, SelectedColumns: []string{"a"}},
		{ID: "b2", Name: "Board 2", ColumnNames: []string{"b"}, SelectedColumns: []string{"b"}},
	}

	got := ReconcileOnLoad(persisted, []string{"a", "b", "fresh"})
	require.Len(t, got, 2)
	assert.Equal(t, []string{"a", "fresh"}, got[0].ColumnNames)
	assert.Contains(t, got[0].SelectedColumns, "fresh")
	assert.NoError(t, CheckPartition(got, []string{"a", "b", "fresh"}))
}

func TestReconcileOnLoad_DuplicateAssignmentResolvedToFirstBoard(t *testing.T) {
	persisted := []models.BoardState{
		{ID: "b1", Name: "Board 1", ColumnNames: []string{"a", "b"}, SelectedColumns: []string{"a"}},
		{ID: "b2", Name: "Board 2", ColumnNames: []string{"b", "c"}, SelectedColumns: []string{"b", "c"}},
	}

	got := ReconcileOnLoad(persisted, []string{"a", "b", "c"})
	assert.NoError(t, CheckPartition(got, []string{"a", "b", "c"}))
	assert.Equal(t, []string{"a", "b"}, got[0].ColumnNames)
	assert.Equal(t, []string{"c"}, got[1].ColumnNames)
}

func TestSplit_MovesUnselectedColumns(t *testing.T) {
	// Columns a, b, c all on Board 1; the user selected a and splits.
	source := models.BoardState{
		ID:              "b1",
		Name:            "Board 1",
		ColumnNames:     []string{"a", "b", "c"},
		SelectedColumns: []string{"a"},
	}

	got, newID, err := Split([]models.BoardState{source}, "b1", source.UnselectedColumns(), "Board 2")
	require.NoError(t, err)
	require.NotEmpty(t, newID)
	require.Len(t, got, 2)

	assert.Equal(t, []string{"a"}, got[0].ColumnNames)
	assert.Equal(t, []string{"a"}, got[0].SelectedColumns)

	assert.Equal(t, newID, got[1].ID)
	assert.Equal(t, "Board 2", got[1].Name)
	assert.Equal(t, []string{"b", "c"}, got[1].ColumnNames)
	assert.Equal(t, []string{"b", "c"}, got[1].SelectedColumns)

	assert.NoError(t, CheckPartition(got, []string{"a", "b", "c"}))
}

func TestSplit_AllSelectedIsNoOp(t *testing.T) {
	source := models.BoardState{
		ID:              "b1",
		Name:            "Board 1",
		ColumnNames:     []string{"a", "b"},
		SelectedColumns: []string{"a", "b"},
	}
	all := []models.BoardState{source}

	got, newID, err := Split(all, "b1", source.UnselectedColumns(), "Board 2")
	require.NoError(t, err)
	assert.Empty(t, newID)
	assert.Equal(t, all, got)
}

func TestSplit_RejectsSelectedColumns(t *testing.T) {
	source := models.BoardState{
		ID:              "b1",
		ColumnNames:     []string{"a", "b"},
		SelectedColumns: []string{"a"},
	}

	_, _, err := Split([]models.BoardState{source}, "b1", []string{"a"}, "Board 2")
	assert.Error(t, err)
}

func TestSplit_RejectsForeignColumns(t *testing.T) {
	source := models.BoardState{
		ID:              "b1",
		ColumnNames:     []string{"a"},
		SelectedColumns: []string{"a"},
	}

	_, _, err := Split([]models.BoardState{source}, "b1", []string{"z"}, "Board 2")
	assert.ErrorIs(t, err, apperrors.ErrColumnNotFound)
}

func TestSplit_UnknownSourceBoard(t *testing.T) {
	_, _, err := Split(nil, "missing", []string{"a"}, "Board 2")
	assert.ErrorIs(t, err, apperrors.ErrBoardNotFound)
}

func TestPartitionInvariant_AcrossOperations(t *testing.T) {
	columns := []string{"a", "b", "c", "d", "e"}

	all := ReconcileOnLoad(nil, columns)
	require.NoError(t, CheckPartition(all, columns))

	// Deselect d and e on the only board, then split them off.
	all[0].SelectedColumns = []string{"a", "b", "c"}
	all, newID, err := Split(all, all[0].ID, []string{"d", "e"}, "Board 2")
	require.NoError(t, err)
	require.NoError(t, CheckPartition(all, columns))

	// Reconcile again after a column disappears upstream.
	all = ReconcileOnLoad(all, []string{"a", "b", "d", "e", "f"})
	require.NoError(t, CheckPartition(all, []string{"a", "b", "d", "e", "f"}))

	// The split board survived with its columns.
	var found bool
	for _, b := range all {
		if b.ID == newID {
			found = true
			assert.Equal(t, []string{"d", "e"}, b.ColumnNames)
		}
	}
	assert.True(t, found)
}

func TestCheckPartition_Violations(t *testing.T) {
	tests := []struct {
		name    string
		boards  []models.BoardState
		columns []string
	}{
		{
			name:    "unassigned column",
			boards:  []models.BoardState{{ID: "b1", ColumnNames: []string{"a"}}},
			columns: []string{"a", "b"},
		},
		{
			name: "column on two boards",
			boards: []models.BoardState{
				{ID: "b1", ColumnNames: []string{"a"}},
				{ID: "b2", ColumnNames: []string{"a"}},
			},
			columns: []string{"a"},
		},
		{
			name:    "unknown column on a board",
			boards:  []models.BoardState{{ID: "b1", ColumnNames: []string{"a", "ghost"}}},
			columns: []string{"a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := CheckPartition(tt.boards, tt.columns); err == nil {
				t.Error("expected partition violation, got nil")
			}
		})
	}
}
