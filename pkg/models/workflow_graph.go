package models

// ============================================================================
// Node Types
// ============================================================================

// NodeType identifies the kind of workflow step a node represents.
type NodeType string

const (
	NodeTypeDataSource      NodeType = "data_source"
	NodeTypeColumnHint      NodeType = "column_hint"
	NodeTypeGenerateVisuals NodeType = "generate_visuals"
	NodeTypeGenerateInsights NodeType = "generate_insights"
	NodeTypeSummarizeText   NodeType = "summarize_text"
	NodeTypeRowLevelExtract NodeType = "row_level_extract"
	NodeTypeDescribeImages  NodeType = "describe_images"
	NodeTypeBasicStats      NodeType = "basic_stats"
	NodeTypeComment         NodeType = "comment"
)

// ValidNodeTypes contains all valid node type values.
var ValidNodeTypes = []NodeType{
	NodeTypeDataSource,
	NodeTypeColumnHint,
	NodeTypeGenerateVisuals,
	NodeTypeGenerateInsights,
	NodeTypeSummarizeText,
	NodeTypeRowLevelExtract,
	NodeTypeDescribeImages,
	NodeTypeBasicStats,
	NodeTypeComment,
}

// IsValidNodeType checks if the given node type is valid.
func IsValidNodeType(t NodeType) bool {
	for _, v := range ValidNodeTypes {
		if v == t {
			return true
		}
	}
	return false
}

// ============================================================================
// Node Status
// ============================================================================

// NodeStatus represents the last known execution status of a workflow step.
type NodeStatus string

const (
	NodeStatusIdle    NodeStatus = "idle"
	NodeStatusRunning NodeStatus = "running"
	NodeStatusSuccess NodeStatus = "success"
	NodeStatusError   NodeStatus = "error"
	NodeStatusSkipped NodeStatus = "skipped"
)

// ValidNodeStatuses contains all valid node status values.
var ValidNodeStatuses = []NodeStatus{
	NodeStatusIdle,
	NodeStatusRunning,
	NodeStatusSuccess,
	NodeStatusError,
	NodeStatusSkipped,
}

// IsValidNodeStatus checks if the given status is valid.
func IsValidNodeStatus(s NodeStatus) bool {
	for _, v := range ValidNodeStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// IsTerminal returns true if the status is terminal (success, error, or skipped).
func (s NodeStatus) IsTerminal() bool {
	return s == NodeStatusSuccess || s == NodeStatusError || s == NodeStatusSkipped
}

// ============================================================================
// Node Data
// ============================================================================

// NodeData carries a node's presentation and step parameters. Identity
// fields (ColumnName through TableName) are force-refreshed from the current
// column record during hydration; everything else survives user edits.
// Step parameters live in one optional variant struct per node type.
type NodeData struct {
	Title            string       `json:"title,omitempty"`
	Status           NodeStatus   `json:"status,omitempty"`
	ColumnName       string       `json:"column_name,omitempty"`
	ColumnType       SemanticType `json:"column_type,omitempty"`
	ColumnConfidence float64      `json:"column_confidence,omitempty"`
	TableID          string       `json:"table_id,omitempty"`
	TableName        string       `json:"table_name,omitempty"` // data_source nodes only

	Hint      *HintParams      `json:"hint_params,omitempty"`
	Visuals   *VisualsParams   `json:"visuals_params,omitempty"`
	Insights  *InsightsParams  `json:"insights_params,omitempty"`
	Summarize *SummarizeParams `json:"summarize_params,omitempty"`
	Extract   *ExtractParams   `json:"extract_params,omitempty"`
	Images    *ImagesParams    `json:"images_params,omitempty"`
	Comment   *CommentParams   `json:"comment_params,omitempty"`
}

// HintParams seeds a column_hint node with the analyst's correction text.
type HintParams struct {
	Hint string `json:"hint,omitempty"`
}

// VisualsParams configures a generate_visuals step.
type VisualsParams struct {
	Focus string `json:"focus,omitempty"`
}

// InsightsParams configures a generate_insights step.
type InsightsParams struct {
	Focus string `json:"focus,omitempty"`
}

// SummarizeParams configures a summarize_text step.
type SummarizeParams struct {
	Instruction string `json:"instruction,omitempty"`
}

// ExtractParams configures a row_level_extract step. The step writes a new
// derived column, so it carries the output column and schema.
type ExtractParams struct {
	Instruction  string `json:"instruction,omitempty"`
	OutputColumn string `json:"output_column,omitempty"`
	Schema       string `json:"schema,omitempty"`
}

// ImagesParams configures a describe_images step.
type ImagesParams struct {
	Detail string `json:"detail,omitempty"`
}

// CommentParams holds the text of a free-floating comment node.
type CommentParams struct {
	Text string `json:"text,omitempty"`
}

// ============================================================================
// Nodes, Edges, Documents
// ============================================================================

// Position is a node's canvas position.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// WorkflowNode is one step in a column's workflow graph, or a free-floating
// comment. IDs are stable across derivation so re-derivation can reconcile.
type WorkflowNode struct {
	ID       string   `json:"id"`
	Type     NodeType `json:"type"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// OwningColumn returns the column this node belongs to, or "" for nodes that
// belong to a board rather than a column (comments, cross-column connectors).
func (n *WorkflowNode) OwningColumn() string {
	return n.Data.ColumnName
}

// WorkflowEdge is a directed connection between two nodes.
type WorkflowEdge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// GraphDocument is a node/edge list: a column's workflow graph, a board's
// extras, or the combined canvas content.
type GraphDocument struct {
	Nodes []WorkflowNode `json:"nodes"`
	Edges []WorkflowEdge `json:"edges"`
}

// IsEmpty reports whether the document has no nodes and no edges.
func (g *GraphDocument) IsEmpty() bool {
	return len(g.Nodes) == 0 && len(g.Edges) == 0
}

// Clone returns a deep copy. Merge operations work on copies so no failure
// can corrupt the in-memory graph.
func (g GraphDocument) Clone() GraphDocument {
	out := GraphDocument{
		Nodes: make([]WorkflowNode, len(g.Nodes)),
		Edges: make([]WorkflowEdge, len(g.Edges)),
	}
	for i, n := range g.Nodes {
		out.Nodes[i] = n
		out.Nodes[i].Data = n.Data.Clone()
	}
	copy(out.Edges, g.Edges)
	return out
}

// NodeByID returns the node with the given id, or nil.
func (g *GraphDocument) NodeByID(id string) *WorkflowNode {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the node data, including variant structs.
func (d NodeData) Clone() NodeData {
	out := d
	if d.Hint != nil {
		v := *d.Hint
		out.Hint = &v
	}
	if d.Visuals != nil {
		v := *d.Visuals
		out.Visuals = &v
	}
	if d.Insights != nil {
		v := *d.Insights
		out.Insights = &v
	}
	if d.Summarize != nil {
		v := *d.Summarize
		out.Summarize = &v
	}
	if d.Extract != nil {
		v := *d.Extract
		out.Extract = &v
	}
	if d.Images != nil {
		v := *d.Images
		out.Images = &v
	}
	if d.Comment != nil {
		v := *d.Comment
		out.Comment = &v
	}
	return out
}
