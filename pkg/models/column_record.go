package models

import (
	"encoding/json"
	"strings"

	"github.com/jinzhu/inflection"
)

// SemanticType classifies a column for workflow derivation.
type SemanticType string

const (
	SemanticTypeNumeric     SemanticType = "numeric"
	SemanticTypeTemporal    SemanticType = "temporal"
	SemanticTypeCategorical SemanticType = "categorical"
	SemanticTypeText        SemanticType = "text"
	SemanticTypeImage       SemanticType = "image"
	SemanticTypeID          SemanticType = "id"
	SemanticTypeBinary      SemanticType = "binary"
	SemanticTypeSpatial     SemanticType = "spatial"
	SemanticTypeUnknown     SemanticType = "unknown"
)

// ValidSemanticTypes contains all valid semantic type values.
var ValidSemanticTypes = []SemanticType{
	SemanticTypeNumeric,
	SemanticTypeTemporal,
	SemanticTypeCategorical,
	SemanticTypeText,
	SemanticTypeImage,
	SemanticTypeID,
	SemanticTypeBinary,
	SemanticTypeSpatial,
	SemanticTypeUnknown,
}

// IsValidSemanticType checks if the given semantic type is valid.
func IsValidSemanticType(s SemanticType) bool {
	for _, v := range ValidSemanticTypes {
		if v == s {
			return true
		}
	}
	return false
}

// Normalize maps unrecognized semantic types to unknown so a newer upstream
// classifier cannot break derivation.
func (s SemanticType) Normalize() SemanticType {
	if IsValidSemanticType(s) {
		return s
	}
	return SemanticTypeUnknown
}

// GroupLabel returns the checklist group heading for this semantic type,
// e.g. "numerics" or "images".
func (s SemanticType) GroupLabel() string {
	return inflection.Plural(string(s.Normalize()))
}

// ColumnRecord is one column of the table as served by the Column Record
// Store. Read-only to this engine except for overrides.workflow_graph,
// which the engine writes back.
type ColumnRecord struct {
	ColumnName   string          `json:"column_name"`
	SemanticType SemanticType    `json:"semantic_type"`
	Confidence   float64         `json:"confidence"`
	Overrides    ColumnOverrides `json:"overrides,omitempty"`
}

// ColumnOverrides holds the per-column tunables an analyst can set.
// WorkflowGraph stays raw because a malformed persisted graph must be
// treated as absent rather than failing the whole metadata load.
type ColumnOverrides struct {
	Hint                string `json:"hint,omitempty"`
	ExtractInstruction  string `json:"extract_instruction,omitempty"`
	ExtractOutputColumn string `json:"extract_output_column,omitempty"`
	ExtractSchema       string `json:"extract_schema,omitempty"`
	ImageDetail         string `json:"image_detail,omitempty"`

	WorkflowGraph json.RawMessage `json:"workflow_graph,omitempty"`
}

// HasExtractInstruction reports whether a row-level extraction instruction
// override is present.
func (o *ColumnOverrides) HasExtractInstruction() bool {
	return strings.TrimSpace(o.ExtractInstruction) != ""
}

// TableRef identifies the table a panel is attached to. Node identity fields
// are stamped from it during derivation and hydration.
type TableRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
