// Package services composes the synchronization engine: the per-table panel
// state, the canvas adapter, the persistence coalescer, and the run batch
// service.
package services

import (
	"github.com/ekaya-inc/canvas-engine/pkg/models"
)

// CanvasSplit is the result of partitioning the canvas's full node/edge
// list back into per-column graphs and board extras.
type CanvasSplit struct {
	// Columns maps each owning column to its graph. Only columns that own
	// at least one node appear.
	Columns map[string]models.GraphDocument
	// Extras holds nodes with no owning column, and the edges routed to the
	// board rather than to a column.
	Extras models.GraphDocument
}

// SplitCanvasGraph partitions the canvas output by owning column. Nodes
// without a column_name go to extras. A per-column edge is kept only when
// both endpoints share that column. Cross-column edges between two derived
// nodes are dropped; edges with at least one extras endpoint are kept as
// extras, including cross-column connectors the user drew through an
// annotation.
func SplitCanvasGraph(doc models.GraphDocument) CanvasSplit {
	split := CanvasSplit{
		Columns: make(map[string]models.GraphDocument),
		Extras:  models.GraphDocument{Nodes: []models.WorkflowNode{}, Edges: []models.WorkflowEdge{}},
	}

	owner := make(map[string]string, len(doc.Nodes))
	for _, node := range doc.Nodes {
		col := node.OwningColumn()
		owner[node.ID] = col
		if col == "" {
			split.Extras.Nodes = append(split.Extras.Nodes, node)
			continue
		}
		g := split.Columns[col]
		g.Nodes = append(g.Nodes, node)
		split.Columns[col] = g
	}

	for _, edge := range doc.Edges {
		srcCol, srcKnown := owner[edge.Source]
		dstCol, dstKnown := owner[edge.Target]
		if !srcKnown || !dstKnown {
			continue // dangling edge from the canvas, drop it
		}

		switch {
		case srcCol == "" || dstCol == "":
			split.Extras.Edges = append(split.Extras.Edges, edge)
		case srcCol == dstCol:
			g := split.Columns[srcCol]
			g.Edges = append(g.Edges, edge)
			split.Columns[srcCol] = g
		default:
			// Cross-column edge between two derived nodes: not meaningful,
			// dropped.
		}
	}

	for col, g := range split.Columns {
		if g.Edges == nil {
			g.Edges = []models.WorkflowEdge{}
			split.Columns[col] = g
		}
	}

	return split
}

// CombineGraphs concatenates per-column graphs (in the given column order)
// with board extras into the single node/edge list the canvas renders.
func CombineGraphs(columnOrder []string, graphs map[string]models.GraphDocument, extras models.GraphDocument) models.GraphDocument {
	combined := models.GraphDocument{
		Nodes: []models.WorkflowNode{},
		Edges: []models.WorkflowEdge{},
	}
	for _, col := range columnOrder {
		g, ok := graphs[col]
		if !ok {
			continue
		}
		combined.Nodes = append(combined.Nodes, g.Nodes...)
		combined.Edges = append(combined.Edges, g.Edges...)
	}
	combined.Nodes = append(combined.Nodes, extras.Nodes...)
	combined.Edges = append(combined.Edges, extras.Edges...)
	return combined
}
