package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/canvas-engine/pkg/adapters/runner"
	"github.com/ekaya-inc/canvas-engine/pkg/apperrors"
	"github.com/ekaya-inc/canvas-engine/pkg/models"
	"github.com/ekaya-inc/canvas-engine/pkg/services"
)

// WorkflowHandler exposes the panel engine to the checklist and canvas UI.
type WorkflowHandler struct {
	panels *services.PanelManager
	logger *zap.Logger
}

// NewWorkflowHandler creates a new WorkflowHandler.
func NewWorkflowHandler(panels *services.PanelManager, logger *zap.Logger) *WorkflowHandler {
	return &WorkflowHandler{panels: panels, logger: logger.Named("workflow_handler")}
}

// RegisterRoutes registers the workflow routes on the given mux.
func (h *WorkflowHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/tables/{tid}/workflow", h.GetSnapshot)
	mux.HandleFunc("POST /api/tables/{tid}/workflow/columns/{col}/toggle", h.ToggleColumn)
	mux.HandleFunc("POST /api/tables/{tid}/workflow/boards/{bid}/activate", h.ActivateBoard)
	mux.HandleFunc("POST /api/tables/{tid}/workflow/boards/split", h.SplitBoard)
	mux.HandleFunc("POST /api/tables/{tid}/workflow/canvas", h.CanvasChange)
	mux.HandleFunc("POST /api/tables/{tid}/workflow/canvas/selection", h.CanvasSelection)
	mux.HandleFunc("POST /api/tables/{tid}/workflow/estimate", h.Estimate)
	mux.HandleFunc("POST /api/tables/{tid}/workflow/run", h.Run)
}

// GetSnapshot handles GET /api/tables/{tid}/workflow.
// Loads the panel on first access and returns the current snapshot.
func (h *WorkflowHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	panel, ok := h.panel(w, r)
	if !ok {
		return
	}
	snapshot, err := panel.Snapshot()
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, snapshot)
}

// ToggleColumn handles POST /api/tables/{tid}/workflow/columns/{col}/toggle.
func (h *WorkflowHandler) ToggleColumn(w http.ResponseWriter, r *http.Request) {
	panel, ok := h.panel(w, r)
	if !ok {
		return
	}
	if err := panel.ToggleColumn(r.PathValue("col")); err != nil {
		h.writeError(w, err)
		return
	}
	h.respondSnapshot(w, panel)
}

// ActivateBoard handles POST /api/tables/{tid}/workflow/boards/{bid}/activate.
func (h *WorkflowHandler) ActivateBoard(w http.ResponseWriter, r *http.Request) {
	panel, ok := h.panel(w, r)
	if !ok {
		return
	}
	if err := panel.SetActiveBoard(r.PathValue("bid")); err != nil {
		h.writeError(w, err)
		return
	}
	h.respondSnapshot(w, panel)
}

// SplitBoard handles POST /api/tables/{tid}/workflow/boards/split.
// Moves the active board's unselected columns to a new board.
func (h *WorkflowHandler) SplitBoard(w http.ResponseWriter, r *http.Request) {
	panel, ok := h.panel(w, r)
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if req.Name == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Board name is required")
		return
	}

	newBoardID, err := panel.SplitActiveBoard(req.Name)
	if err != nil {
		h.writeError(w, err)
		return
	}

	snapshot, err := panel.Snapshot()
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, struct {
		NewBoardID string                  `json:"new_board_id"`
		Snapshot   *services.PanelSnapshot `json:"snapshot"`
	}{newBoardID, snapshot})
}

// CanvasChange handles POST /api/tables/{tid}/workflow/canvas.
// The canvas reports its full node/edge list on every content change.
func (h *WorkflowHandler) CanvasChange(w http.ResponseWriter, r *http.Request) {
	panel, ok := h.panel(w, r)
	if !ok {
		return
	}

	var doc models.GraphDocument
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid graph document")
		return
	}

	if err := panel.ApplyCanvasChange(doc); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CanvasSelection handles POST /api/tables/{tid}/workflow/canvas/selection.
func (h *WorkflowHandler) CanvasSelection(w http.ResponseWriter, r *http.Request) {
	panel, ok := h.panel(w, r)
	if !ok {
		return
	}

	var req struct {
		NodeIDs []string `json:"node_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	if err := panel.ApplyCanvasSelection(req.NodeIDs); err != nil {
		h.writeError(w, err)
		return
	}
	h.respondSnapshot(w, panel)
}

// Estimate handles POST /api/tables/{tid}/workflow/estimate.
// Defaults to the active board's selected columns when none are given.
func (h *WorkflowHandler) Estimate(w http.ResponseWriter, r *http.Request) {
	panel, runs, ok := h.panelAndRuns(w, r)
	if !ok {
		return
	}

	var req struct {
		Columns []string `json:"columns"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	columns := req.Columns
	if len(columns) == 0 {
		columns = panel.SelectedColumns()
	}

	h.respond(w, struct {
		Estimates []services.ColumnEstimate `json:"estimates"`
	}{runs.EstimateColumns(r.Context(), columns)})
}

// Run handles POST /api/tables/{tid}/workflow/run.
// Defaults to the active board's selected columns when none are given.
func (h *WorkflowHandler) Run(w http.ResponseWriter, r *http.Request) {
	panel, runs, ok := h.panelAndRuns(w, r)
	if !ok {
		return
	}

	var req struct {
		Columns []string `json:"columns"`
		Focus   string   `json:"focus"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	columns := req.Columns
	if len(columns) == 0 {
		columns = panel.SelectedColumns()
	}

	h.respond(w, struct {
		Results []services.ColumnRunResult `json:"results"`
	}{runs.RunColumns(r.Context(), columns, runner.RunOptions{Focus: req.Focus})})
}

// panel resolves the panel for the request's table, writing the error
// response on failure.
func (h *WorkflowHandler) panel(w http.ResponseWriter, r *http.Request) (*services.Panel, bool) {
	tableID := r.PathValue("tid")
	if tableID == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_table_id", "Table ID is required")
		return nil, false
	}
	panel, err := h.panels.Panel(r.Context(), tableID)
	if err != nil {
		h.logger.Error("Failed to load panel",
			zap.String("table_id", tableID),
			zap.Error(err))
		_ = ErrorResponse(w, http.StatusBadGateway, "load_failed", "Failed to load table metadata")
		return nil, false
	}
	return panel, true
}

func (h *WorkflowHandler) panelAndRuns(w http.ResponseWriter, r *http.Request) (*services.Panel, *services.RunService, bool) {
	panel, ok := h.panel(w, r)
	if !ok {
		return nil, nil, false
	}
	runs, err := h.panels.Runs(r.Context(), r.PathValue("tid"))
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadGateway, "load_failed", "Failed to load table metadata")
		return nil, nil, false
	}
	return panel, runs, true
}

func (h *WorkflowHandler) respondSnapshot(w http.ResponseWriter, panel *services.Panel) {
	snapshot, err := panel.Snapshot()
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, snapshot)
}

func (h *WorkflowHandler) respond(w http.ResponseWriter, data any) {
	if err := WriteJSON(w, http.StatusOK, data); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// writeError maps engine sentinels to HTTP status codes.
func (h *WorkflowHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperrors.ErrBoardNotFound):
		_ = ErrorResponse(w, http.StatusNotFound, "board_not_found", "Board not found")
	case errors.Is(err, apperrors.ErrColumnNotFound):
		_ = ErrorResponse(w, http.StatusNotFound, "column_not_found", "Column not found on the active board")
	case errors.Is(err, apperrors.ErrNoColumns):
		_ = ErrorResponse(w, http.StatusBadRequest, "no_columns", "A board requires at least one column")
	case errors.Is(err, apperrors.ErrPanelNotLoaded):
		_ = ErrorResponse(w, http.StatusConflict, "not_loaded", "Panel metadata is not loaded")
	default:
		h.logger.Error("Workflow operation failed", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Internal error")
	}
}
