// Package graph derives per-column workflow graphs from column semantics and
// merges them with persisted user edits. Everything in this package is pure:
// no I/O, no shared state, inputs are never mutated.
package graph

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/canvas-engine/pkg/models"
)

// Layout constants for the two-column grid boards start from. Each column's
// chain flows left to right inside its grid cell; derived-column steps
// (row_level_extract, describe_images) sit on a second lane below the chain.
const (
	gridColumns = 2

	originX = 40.0
	originY = 40.0

	cellWidth  = 1040.0
	cellHeight = 280.0

	nodeSpacingX = 240.0
	laneOffsetY  = 120.0
)

// hintThreshold is the confidence below which a column_hint node is inserted
// so low-confidence columns surface for user correction first.
const hintThreshold = 0.6

// Derive builds the canonical workflow graph for a column. Deterministic:
// the same column and layout index always yield the same nodes, ids, and
// positions, which is what lets Hydrate reconcile re-derivations with
// persisted edits.
func Derive(col models.ColumnRecord, table models.TableRef, layoutIndex int) models.GraphDocument {
	b := newChainBuilder(col, table, layoutIndex)

	b.append(models.NodeTypeDataSource, "Data source", models.NodeData{
		TableName: table.Name,
	})

	if col.Confidence < hintThreshold {
		b.append(models.NodeTypeColumnHint, "Column hint", models.NodeData{
			Hint: &models.HintParams{Hint: col.Overrides.Hint},
		})
	}

	switch col.SemanticType.Normalize() {
	case models.SemanticTypeNumeric, models.SemanticTypeTemporal, models.SemanticTypeCategorical:
		b.append(models.NodeTypeGenerateVisuals, "Generate visuals", models.NodeData{
			Visuals: &models.VisualsParams{Focus: "column"},
		})
		b.append(models.NodeTypeGenerateInsights, "Generate insights", models.NodeData{
			Insights: &models.InsightsParams{Focus: "column"},
		})

	case models.SemanticTypeText:
		b.append(models.NodeTypeSummarizeText, "Summarize text", models.NodeData{
			Summarize: &models.SummarizeParams{},
		})
		if col.Overrides.HasExtractInstruction() {
			b.appendLane(models.NodeTypeRowLevelExtract, "Row-level extract", models.NodeData{
				Extract: &models.ExtractParams{
					Instruction:  col.Overrides.ExtractInstruction,
					OutputColumn: col.Overrides.ExtractOutputColumn,
					Schema:       col.Overrides.ExtractSchema,
				},
			})
		}

	case models.SemanticTypeImage:
		b.appendLane(models.NodeTypeDescribeImages, "Describe images", models.NodeData{
			Images: &models.ImagesParams{Detail: col.Overrides.ImageDetail},
		})

	default: // id, binary, spatial, unknown
		b.append(models.NodeTypeBasicStats, "Basic stats", models.NodeData{})
	}

	return b.document()
}

// NodeID returns the deterministic node id for a step of the given column.
func NodeID(typ models.NodeType, columnName string) string {
	return fmt.Sprintf("%s-%s", typ, normalizeColumnName(columnName))
}

// EdgeID returns the deterministic edge id between two nodes.
func EdgeID(source, target string) string {
	return fmt.Sprintf("e-%s-%s", source, target)
}

// normalizeColumnName lowercases the column name and collapses anything
// outside [a-z0-9] to underscores so node ids stay URL- and DOM-safe.
func normalizeColumnName(name string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	return sb.String()
}

// chainBuilder accumulates a column's node chain, connecting consecutive
// nodes and tracking grid positions.
type chainBuilder struct {
	col   models.ColumnRecord
	table models.TableRef

	baseX float64
	baseY float64
	step  int

	doc models.GraphDocument
}

func newChainBuilder(col models.ColumnRecord, table models.TableRef, layoutIndex int) *chainBuilder {
	gridCol := layoutIndex % gridColumns
	gridRow := layoutIndex / gridColumns
	return &chainBuilder{
		col:   col,
		table: table,
		baseX: originX + float64(gridCol)*cellWidth,
		baseY: originY + float64(gridRow)*cellHeight,
	}
}

// append adds the next node on the main chain, edging it to its predecessor.
func (b *chainBuilder) append(typ models.NodeType, title string, data models.NodeData) {
	b.add(typ, title, data, models.Position{
		X: b.baseX + float64(b.step)*nodeSpacingX,
		Y: b.baseY,
	})
}

// appendLane adds the next node on the derived-column lane, offset vertically
// from the main chain. The lane is reserved for steps that create new derived
// columns.
func (b *chainBuilder) appendLane(typ models.NodeType, title string, data models.NodeData) {
	b.add(typ, title, data, models.Position{
		X: b.baseX + float64(b.step)*nodeSpacingX,
		Y: b.baseY + laneOffsetY,
	})
}

func (b *chainBuilder) add(typ models.NodeType, title string, data models.NodeData, pos models.Position) {
	data.Title = title
	data.Status = models.NodeStatusIdle
	data.ColumnName = b.col.ColumnName
	data.ColumnType = b.col.SemanticType.Normalize()
	data.ColumnConfidence = b.col.Confidence
	data.TableID = b.table.ID

	node := models.WorkflowNode{
		ID:       NodeID(typ, b.col.ColumnName),
		Type:     typ,
		Position: pos,
		Data:     data,
	}

	if n := len(b.doc.Nodes); n > 0 {
		prev := b.doc.Nodes[n-1].ID
		b.doc.Edges = append(b.doc.Edges, models.WorkflowEdge{
			ID:     EdgeID(prev, node.ID),
			Source: prev,
			Target: node.ID,
		})
	}

	b.doc.Nodes = append(b.doc.Nodes, node)
	b.step++
}

func (b *chainBuilder) document() models.GraphDocument {
	if b.doc.Edges == nil {
		b.doc.Edges = []models.WorkflowEdge{}
	}
	return b.doc
}
