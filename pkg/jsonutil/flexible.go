package jsonutil

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ekaya-inc/canvas-engine/pkg/models"
)

// DecodeGraphDocument decodes a persisted workflow_graph override. A stored
// graph is valid only when nodes and edges are both present as JSON arrays;
// anything else (missing, null, wrong shape, truncated) is treated as absent
// so a corrupt override falls back to freshly derived data instead of
// failing the load.
func DecodeGraphDocument(raw json.RawMessage) (*models.GraphDocument, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, false
	}

	var shape struct {
		Nodes json.RawMessage `json:"nodes"`
		Edges json.RawMessage `json:"edges"`
	}
	if err := json.Unmarshal(raw, &shape); err != nil {
		return nil, false
	}
	if !isArray(shape.Nodes) || !isArray(shape.Edges) {
		return nil, false
	}

	var doc models.GraphDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, false
	}
	return &doc, true
}

// DecodeBoards decodes the persisted workflow_boards override. Returns nil
// and false unless the value is a JSON array of boards.
func DecodeBoards(raw json.RawMessage) ([]models.BoardState, bool) {
	if !isArray(raw) {
		return nil, false
	}
	var boards []models.BoardState
	if err := json.Unmarshal(raw, &boards); err != nil {
		return nil, false
	}
	return boards, true
}

// DecodeBoardExtras decodes the persisted workflow_board_extras override,
// keyed by board id. Entries that are not valid graph documents are dropped
// rather than failing the whole map.
func DecodeBoardExtras(raw json.RawMessage) map[string]models.GraphDocument {
	extras := make(map[string]models.GraphDocument)
	if len(raw) == 0 || string(raw) == "null" {
		return extras
	}
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return extras
	}
	for boardID, entry := range entries {
		if doc, ok := DecodeGraphDocument(entry); ok {
			extras[boardID] = *doc
		}
	}
	return extras
}

// FlexibleStringValue converts a json.RawMessage to a string, handling
// override values written as numbers or booleans instead of strings.
// Returns empty string for null/empty.
func FlexibleStringValue(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		return strVal
	}

	var numVal float64
	if err := json.Unmarshal(raw, &numVal); err == nil {
		if numVal == float64(int64(numVal)) {
			return fmt.Sprintf("%d", int64(numVal))
		}
		return fmt.Sprintf("%g", numVal)
	}

	var boolVal bool
	if err := json.Unmarshal(raw, &boolVal); err == nil {
		return fmt.Sprintf("%t", boolVal)
	}

	return string(raw)
}

// isArray reports whether the raw value is a JSON array.
func isArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}
