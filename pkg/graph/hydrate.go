package graph

import (
	"github.com/ekaya-inc/canvas-engine/pkg/models"
)

// Hydrate merges a freshly derived graph with the persisted user-edited
// graph for the same column, producing the graph actually shown.
//
// Rules:
//   - no stored override: the base graph is returned unchanged;
//   - base nodes keep their id/type/derived defaults with stored data fields
//     (title, status, step parameters) overlaid on top;
//   - identity fields are force-refreshed from the current column record so
//     they never go stale, even when the user edited other fields;
//   - a stored position wins over the freshly computed one, so a dragged
//     node stays where it was dragged;
//   - stored-only nodes (steps the user inserted) are kept verbatim, with
//     identity fields re-stamped;
//   - stored edges are filtered to endpoints that exist in the merged node
//     set; if that empties the list, the derived edges are used so a
//     column's chain is never left fully disconnected.
//
// Hydrate is idempotent: hydrating an already-hydrated graph with itself
// yields the same graph. It operates on copies and never mutates its inputs.
func Hydrate(col models.ColumnRecord, table models.TableRef, base models.GraphDocument, stored *models.GraphDocument) models.GraphDocument {
	if stored == nil {
		return base.Clone()
	}

	storedByID := make(map[string]*models.WorkflowNode, len(stored.Nodes))
	for i := range stored.Nodes {
		storedByID[stored.Nodes[i].ID] = &stored.Nodes[i]
	}

	merged := models.GraphDocument{
		Nodes: make([]models.WorkflowNode, 0, len(base.Nodes)),
		Edges: []models.WorkflowEdge{},
	}

	baseIDs := make(map[string]bool, len(base.Nodes))
	for _, baseNode := range base.Nodes {
		baseIDs[baseNode.ID] = true

		node := baseNode
		node.Data = baseNode.Data.Clone()
		if storedNode, ok := storedByID[baseNode.ID]; ok {
			node.Data = overlayData(baseNode.Data, storedNode.Data)
			node.Position = storedNode.Position
		}
		stampIdentity(&node, col, table)
		merged.Nodes = append(merged.Nodes, node)
	}

	// Nodes the user inserted that derivation does not produce.
	for _, storedNode := range stored.Nodes {
		if baseIDs[storedNode.ID] {
			continue
		}
		node := storedNode
		node.Data = storedNode.Data.Clone()
		stampIdentity(&node, col, table)
		merged.Nodes = append(merged.Nodes, node)
	}

	nodeIDs := make(map[string]bool, len(merged.Nodes))
	for _, n := range merged.Nodes {
		nodeIDs[n.ID] = true
	}
	for _, e := range stored.Edges {
		if nodeIDs[e.Source] && nodeIDs[e.Target] {
			merged.Edges = append(merged.Edges, e)
		}
	}
	if len(merged.Edges) == 0 {
		merged.Edges = append(merged.Edges, base.Edges...)
	}

	return merged
}

// overlayData starts from the derived defaults and applies the stored
// presentation and step parameters on top. Zero values in the stored data
// mean "not customized" and keep the derived default.
func overlayData(base, stored models.NodeData) models.NodeData {
	out := base.Clone()
	if stored.Title != "" {
		out.Title = stored.Title
	}
	if stored.Status != "" {
		out.Status = stored.Status
	}
	if stored.Hint != nil {
		v := *stored.Hint
		out.Hint = &v
	}
	if stored.Visuals != nil {
		v := *stored.Visuals
		out.Visuals = &v
	}
	if stored.Insights != nil {
		v := *stored.Insights
		out.Insights = &v
	}
	if stored.Summarize != nil {
		v := *stored.Summarize
		out.Summarize = &v
	}
	if stored.Extract != nil {
		v := *stored.Extract
		out.Extract = &v
	}
	if stored.Images != nil {
		v := *stored.Images
		out.Images = &v
	}
	if stored.Comment != nil {
		v := *stored.Comment
		out.Comment = &v
	}
	return out
}

// stampIdentity force-refreshes the fields that must track the current
// column record. The table name is only carried by the source node.
func stampIdentity(node *models.WorkflowNode, col models.ColumnRecord, table models.TableRef) {
	node.Data.ColumnName = col.ColumnName
	node.Data.ColumnType = col.SemanticType.Normalize()
	node.Data.ColumnConfidence = col.Confidence
	node.Data.TableID = table.ID
	if node.Type == models.NodeTypeDataSource {
		node.Data.TableName = table.Name
	}
}
