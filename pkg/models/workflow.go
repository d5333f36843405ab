package models

import "time"

// SnapshotSchemaVersion tags every serialized workflow. Snapshots with any other
// version are rejected on import.
const SnapshotSchemaVersion = "callflow.workflow/v1"

// Workflow is the in-memory aggregate of one call flow: its nodes, its edges and
// the variables produced and consumed while a call runs through it.
// Node and edge order is declaration order.
type Workflow struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"                validate:"required"`
	Nodes     []*Node        `json:"nodes"               validate:"dive"`
	Edges     []*Edge        `json:"edges"               validate:"dive"`
	Variables map[string]any `json:"variables,omitempty"`
}

// NodeByID returns the node with the given id, or nil.
func (w *Workflow) NodeByID(id string) *Node {
	for _, node := range w.Nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}

// EdgeByID returns the edge with the given id, or nil.
func (w *Workflow) EdgeByID(id string) *Edge {
	for _, edge := range w.Edges {
		if edge.ID == id {
			return edge
		}
	}

	return nil
}

// OutgoingEdges returns the edges leaving nodeID in declaration order.
func (w *Workflow) OutgoingEdges(nodeID string) []*Edge {
	var outgoing []*Edge

	for _, edge := range w.Edges {
		if edge.Source == nodeID {
			outgoing = append(outgoing, edge)
		}
	}

	return outgoing
}

// Clone returns a deep copy of the workflow.
func (w *Workflow) Clone() *Workflow {
	clone := &Workflow{
		ID:        w.ID,
		Name:      w.Name,
		Nodes:     make([]*Node, len(w.Nodes)),
		Edges:     make([]*Edge, len(w.Edges)),
		Variables: CopyMap(w.Variables),
	}

	for i, node := range w.Nodes {
		clone.Nodes[i] = node.Clone()
	}

	for i, edge := range w.Edges {
		clone.Edges[i] = edge.Clone()
	}

	return clone
}

// Snapshot is the serialized, schema-versioned form of a workflow exchanged at the
// persistence boundary.
type Snapshot struct {
	SchemaVersion string    `json:"schema_version"       validate:"required"`
	SavedAt       time.Time `json:"saved_at,omitzero"`
	Workflow
}

// NewSnapshot wraps a copy of the workflow in a snapshot stamped with the current schema version.
func NewSnapshot(workflow *Workflow) *Snapshot {
	return &Snapshot{
		SchemaVersion: SnapshotSchemaVersion,
		Workflow:      *workflow.Clone(),
	}
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	return &Snapshot{
		SchemaVersion: s.SchemaVersion,
		SavedAt:       s.SavedAt,
		Workflow:      *s.Workflow.Clone(),
	}
}
