// Package store holds the authoritative in-memory graph of one workflow being edited.
package store

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/dukex/callflow/pkg/models"
	"github.com/google/uuid"
)

const DefaultWorkflowName = "Untitled workflow"

// NodeTypes is the part of the node type registry the store needs.
type NodeTypes interface {
	DefaultConfig(kind models.NodeKind) (models.NodeConfig, error)
	DisplayName(kind models.NodeKind) string
}

// ChangeType identifies the kind of mutation reported to observers.
type ChangeType string

const (
	ChangeNodeAdded   ChangeType = "node_added"
	ChangeNodeUpdated ChangeType = "node_updated"
	ChangeNodeDeleted ChangeType = "node_deleted"
	ChangeEdgeAdded   ChangeType = "edge_added"
	ChangeEdgeUpdated ChangeType = "edge_updated"
	ChangeEdgeDeleted ChangeType = "edge_deleted"
	ChangeWorkflow    ChangeType = "workflow_updated"
	ChangeReplaced    ChangeType = "workflow_replaced"
)

// Change describes one applied mutation.
type Change struct {
	Type   ChangeType
	NodeID string
	EdgeID string
}

// Observer is called after a mutation has been applied, outside the store lock.
type Observer func(Change)

// NodeUpdate is a partial node edit. Nil fields are left untouched.
type NodeUpdate struct {
	Title       *string
	Description *string
	Position    *models.Position
	Config      models.NodeConfig
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithIDGenerator replaces the uuid generator used for new node, edge and workflow ids.
func WithIDGenerator(generate func() string) Option {
	return func(s *Store) {
		s.newID = generate
	}
}

// WithWorkflowID sets the id of the fresh workflow.
func WithWorkflowID(id string) Option {
	return func(s *Store) {
		s.workflow.ID = id
	}
}

// WithName sets the name of the fresh workflow.
func WithName(name string) Option {
	return func(s *Store) {
		s.workflow.Name = name
	}
}

// Store owns the in-memory workflow of one editing context. All mutations are
// serialized; readers always get copies.
type Store struct {
	mu        sync.RWMutex
	types     NodeTypes
	workflow  *models.Workflow
	entryID   string
	dirty     bool
	revision  uint64
	observers []Observer
	newID     func() string
	logger    *slog.Logger
}

// New creates a store holding a fresh workflow with a single entry node. The new
// workflow is clean.
func New(types NodeTypes, opts ...Option) (*Store, error) {
	s := &Store{
		types:    types,
		workflow: &models.Workflow{Name: DefaultWorkflowName},
		newID:    uuid.NewString,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.workflow.ID == "" {
		s.workflow.ID = s.newID()
	}

	s.logger = s.logger.With("module", "store", "workflow_id", s.workflow.ID)

	if err := s.reset(); err != nil {
		return nil, err
	}

	s.dirty = false

	return s, nil
}

// Observe registers fn to be called after every applied mutation.
func (s *Store) Observe(fn Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.observers = append(s.observers, fn)
}

func (s *Store) notify(changes ...Change) {
	s.mu.RLock()
	observers := slices.Clone(s.observers)
	s.mu.RUnlock()

	for _, change := range changes {
		for _, observer := range observers {
			observer(change)
		}
	}
}

// ID returns the workflow id.
func (s *Store) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.workflow.ID
}

// Name returns the workflow name.
func (s *Store) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.workflow.Name
}

// SetName renames the workflow.
func (s *Store) SetName(name string) {
	s.mu.Lock()
	s.workflow.Name = name
	s.touch()
	s.mu.Unlock()

	s.notify(Change{Type: ChangeWorkflow})
}

// SetVariable declares or overwrites a workflow variable.
func (s *Store) SetVariable(name string, value any) {
	s.mu.Lock()
	if s.workflow.Variables == nil {
		s.workflow.Variables = make(map[string]any)
	}

	s.workflow.Variables[name] = value
	s.touch()
	s.mu.Unlock()

	s.notify(Change{Type: ChangeWorkflow})
}

// DeleteVariable removes a workflow variable. Missing names are ignored.
func (s *Store) DeleteVariable(name string) {
	s.mu.Lock()
	_, ok := s.workflow.Variables[name]
	if ok {
		delete(s.workflow.Variables, name)
		s.touch()
	}
	s.mu.Unlock()

	if ok {
		s.notify(Change{Type: ChangeWorkflow})
	}
}

// Variables returns a copy of the workflow variables.
func (s *Store) Variables() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return models.CopyMap(s.workflow.Variables)
}

// EntryNodeID returns the id of the protected entry node, or "" when the imported
// workflow has none.
func (s *Store) EntryNodeID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.entryID
}

// Node returns a copy of the node with the given id.
func (s *Store) Node(id string) (*models.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node := s.workflow.NodeByID(id)
	if node == nil {
		return nil, newAuthoringError("Node", id, ErrUnknownNode)
	}

	return node.Clone(), nil
}

// Nodes returns copies of all nodes in declaration order.
func (s *Store) Nodes() []*models.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := make([]*models.Node, len(s.workflow.Nodes))
	for i, node := range s.workflow.Nodes {
		nodes[i] = node.Clone()
	}

	return nodes
}

// Edge returns a copy of the edge with the given id.
func (s *Store) Edge(id string) (*models.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	edge := s.workflow.EdgeByID(id)
	if edge == nil {
		return nil, newAuthoringError("Edge", id, ErrUnknownEdge)
	}

	return edge.Clone(), nil
}

// Edges returns copies of all edges in declaration order.
func (s *Store) Edges() []*models.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()

	edges := make([]*models.Edge, len(s.workflow.Edges))
	for i, edge := range s.workflow.Edges {
		edges[i] = edge.Clone()
	}

	return edges
}

// Outgoing returns copies of the edges leaving nodeID in declaration order.
func (s *Store) Outgoing(nodeID string) []*models.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()

	outgoing := s.workflow.OutgoingEdges(nodeID)
	edges := make([]*models.Edge, len(outgoing))

	for i, edge := range outgoing {
		edges[i] = edge.Clone()
	}

	return edges
}

// AddNode appends a node of the given kind with the registry default config.
func (s *Store) AddNode(kind models.NodeKind, position models.Position) (*models.Node, error) {
	config, err := s.types.DefaultConfig(kind)
	if err != nil {
		return nil, newAuthoringError("AddNode", string(kind), err)
	}

	node := &models.Node{
		ID:       s.newID(),
		Kind:     kind,
		Title:    s.types.DisplayName(kind),
		Position: position,
		Config:   config,
	}

	s.mu.Lock()
	s.workflow.Nodes = append(s.workflow.Nodes, node)
	s.touch()
	clone := node.Clone()
	s.mu.Unlock()

	s.logger.Debug("Node added", "node_id", node.ID, "kind", kind)
	s.notify(Change{Type: ChangeNodeAdded, NodeID: node.ID})

	return clone, nil
}

// UpdateNode merges a partial edit into an existing node.
func (s *Store) UpdateNode(id string, update NodeUpdate) (*models.Node, error) {
	s.mu.Lock()

	node := s.workflow.NodeByID(id)
	if node == nil {
		s.mu.Unlock()

		return nil, newAuthoringError("UpdateNode", id, ErrUnknownNode)
	}

	if update.Config != nil && update.Config.Kind() != node.Kind {
		s.mu.Unlock()

		return nil, newAuthoringError("UpdateNode", id,
			fmt.Errorf("%w: %s config on %s node", ErrConfigKindMismatch, update.Config.Kind(), node.Kind))
	}

	if update.Title != nil {
		node.Title = *update.Title
	}

	if update.Description != nil {
		node.Description = *update.Description
	}

	if update.Position != nil {
		node.Position = *update.Position
	}

	if update.Config != nil {
		node.Config = models.CloneConfig(update.Config)
	}

	s.touch()
	clone := node.Clone()
	s.mu.Unlock()

	s.logger.Debug("Node updated", "node_id", id)
	s.notify(Change{Type: ChangeNodeUpdated, NodeID: id})

	return clone, nil
}

// ChangeKind re-kinds a node, replacing its config with the default of the new kind.
// Edges are kept. The entry node cannot be re-kinded.
func (s *Store) ChangeKind(id string, kind models.NodeKind) (*models.Node, error) {
	config, err := s.types.DefaultConfig(kind)
	if err != nil {
		return nil, newAuthoringError("ChangeKind", id, err)
	}

	s.mu.Lock()

	node := s.workflow.NodeByID(id)
	if node == nil {
		s.mu.Unlock()

		return nil, newAuthoringError("ChangeKind", id, ErrUnknownNode)
	}

	if id == s.entryID {
		s.mu.Unlock()

		return nil, newAuthoringError("ChangeKind", id, ErrProtectedNode)
	}

	previous := node.Kind
	if node.Title == s.types.DisplayName(previous) {
		node.Title = s.types.DisplayName(kind)
	}

	node.Kind = kind
	node.Config = config
	s.touch()
	clone := node.Clone()
	s.mu.Unlock()

	s.logger.Debug("Node kind changed", "node_id", id, "from", previous, "to", kind)
	s.notify(Change{Type: ChangeNodeUpdated, NodeID: id})

	return clone, nil
}

// DeleteNode removes a node and every edge incident to it.
func (s *Store) DeleteNode(id string) error {
	s.mu.Lock()

	index := slices.IndexFunc(s.workflow.Nodes, func(n *models.Node) bool { return n.ID == id })
	if index < 0 {
		s.mu.Unlock()

		return newAuthoringError("DeleteNode", id, ErrUnknownNode)
	}

	if id == s.entryID {
		s.mu.Unlock()

		return newAuthoringError("DeleteNode", id, ErrProtectedNode)
	}

	s.workflow.Nodes = slices.Delete(s.workflow.Nodes, index, index+1)

	var changes []Change

	s.workflow.Edges = slices.DeleteFunc(s.workflow.Edges, func(e *models.Edge) bool {
		if e.Source == id || e.Target == id {
			changes = append(changes, Change{Type: ChangeEdgeDeleted, EdgeID: e.ID})

			return true
		}

		return false
	})

	s.touch()
	s.mu.Unlock()

	s.logger.Debug("Node deleted", "node_id", id, "cascaded_edges", len(changes))
	s.notify(append(changes, Change{Type: ChangeNodeDeleted, NodeID: id})...)

	return nil
}

// Connect adds an edge between two existing nodes. A nil condition makes the edge
// the default transition of its source, replacing any previous default.
func (s *Store) Connect(source, target string, condition *models.Condition) (*models.Edge, error) {
	if condition != nil {
		if err := condition.Validate(); err != nil {
			return nil, newAuthoringError("Connect", source, fmt.Errorf("%w: %w", ErrInvalidCondition, err))
		}
	}

	s.mu.Lock()

	for _, endpoint := range []string{source, target} {
		if s.workflow.NodeByID(endpoint) == nil {
			s.mu.Unlock()

			return nil, newAuthoringError("Connect", endpoint, ErrUnknownNode)
		}
	}

	edge := &models.Edge{
		ID:        s.newID(),
		Source:    source,
		Target:    target,
		Condition: condition.Clone(),
	}

	var changes []Change
	if edge.IsDefault() {
		changes = s.removeDefaults(source, "")
	}

	s.workflow.Edges = append(s.workflow.Edges, edge)
	s.touch()
	clone := edge.Clone()
	s.mu.Unlock()

	s.logger.Debug("Edge added", "edge_id", edge.ID, "source", source, "target", target,
		"default", edge.IsDefault())
	s.notify(append(changes, Change{Type: ChangeEdgeAdded, EdgeID: edge.ID})...)

	return clone, nil
}

// UpdateEdgeCondition replaces the condition of an edge. A nil condition turns it
// into the default transition of its source, replacing any other default.
func (s *Store) UpdateEdgeCondition(id string, condition *models.Condition) (*models.Edge, error) {
	if condition != nil {
		if err := condition.Validate(); err != nil {
			return nil, newAuthoringError("UpdateEdgeCondition", id, fmt.Errorf("%w: %w", ErrInvalidCondition, err))
		}
	}

	s.mu.Lock()

	edge := s.workflow.EdgeByID(id)
	if edge == nil {
		s.mu.Unlock()

		return nil, newAuthoringError("UpdateEdgeCondition", id, ErrUnknownEdge)
	}

	var changes []Change
	if condition == nil {
		changes = s.removeDefaults(edge.Source, edge.ID)
	}

	edge.Condition = condition.Clone()
	s.touch()
	clone := edge.Clone()
	s.mu.Unlock()

	s.logger.Debug("Edge condition updated", "edge_id", id, "default", clone.IsDefault())
	s.notify(append(changes, Change{Type: ChangeEdgeUpdated, EdgeID: id})...)

	return clone, nil
}

// removeDefaults drops the unconditioned edges leaving source, except keep.
// Callers must hold the write lock.
func (s *Store) removeDefaults(source, keep string) []Change {
	var changes []Change

	s.workflow.Edges = slices.DeleteFunc(s.workflow.Edges, func(e *models.Edge) bool {
		if e.Source == source && e.IsDefault() && e.ID != keep {
			changes = append(changes, Change{Type: ChangeEdgeDeleted, EdgeID: e.ID})

			return true
		}

		return false
	})

	return changes
}

// Disconnect removes an edge. Nodes are untouched.
func (s *Store) Disconnect(id string) error {
	s.mu.Lock()

	index := slices.IndexFunc(s.workflow.Edges, func(e *models.Edge) bool { return e.ID == id })
	if index < 0 {
		s.mu.Unlock()

		return newAuthoringError("Disconnect", id, ErrUnknownEdge)
	}

	s.workflow.Edges = slices.Delete(s.workflow.Edges, index, index+1)
	s.touch()
	s.mu.Unlock()

	s.logger.Debug("Edge removed", "edge_id", id)
	s.notify(Change{Type: ChangeEdgeDeleted, EdgeID: id})

	return nil
}

// Export serializes the workflow into a schema-versioned snapshot. The snapshot is
// a deep copy.
func (s *Store) Export() *models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return models.NewSnapshot(s.workflow)
}

// Import replaces the whole workflow with the snapshot contents and marks the store
// clean. On error the store is unchanged.
func (s *Store) Import(snapshot *models.Snapshot) error {
	if snapshot == nil {
		return newAuthoringError("Import", "", fmt.Errorf("%w: nil snapshot", ErrInvalidSnapshot))
	}

	if snapshot.SchemaVersion != models.SnapshotSchemaVersion {
		return newAuthoringError("Import", snapshot.ID,
			fmt.Errorf("%w: %q", ErrUnsupportedSchemaVersion, snapshot.SchemaVersion))
	}

	workflow := snapshot.Workflow.Clone()

	for _, node := range workflow.Nodes {
		if node == nil {
			return newAuthoringError("Import", snapshot.ID, fmt.Errorf("%w: nil node", ErrInvalidSnapshot))
		}

		config, err := s.types.DefaultConfig(node.Kind)
		if err != nil {
			return newAuthoringError("Import", node.ID, err)
		}

		if node.Config == nil {
			node.Config = config
		} else if node.Config.Kind() != node.Kind {
			return newAuthoringError("Import", node.ID,
				fmt.Errorf("%w: %s config on %s node", ErrConfigKindMismatch, node.Config.Kind(), node.Kind))
		}
	}

	if slices.Contains(workflow.Edges, nil) {
		return newAuthoringError("Import", snapshot.ID, fmt.Errorf("%w: nil edge", ErrInvalidSnapshot))
	}

	if workflow.Variables == nil {
		workflow.Variables = make(map[string]any)
	}

	entryID := ""
	if index := slices.IndexFunc(workflow.Nodes, (*models.Node).IsEntry); index >= 0 {
		entryID = workflow.Nodes[index].ID
	}

	s.mu.Lock()
	if workflow.ID == "" {
		workflow.ID = s.workflow.ID
	}

	s.workflow = workflow
	s.entryID = entryID
	s.dirty = false
	s.revision++
	s.mu.Unlock()

	s.logger.Debug("Workflow imported", "nodes", len(workflow.Nodes), "edges", len(workflow.Edges))
	s.notify(Change{Type: ChangeReplaced})

	return nil
}

// Reset replaces the graph with a single entry node. The workflow id and name are kept.
func (s *Store) Reset() error {
	s.mu.Lock()
	err := s.reset()
	s.mu.Unlock()

	if err != nil {
		return err
	}

	s.notify(Change{Type: ChangeReplaced})

	return nil
}

// reset must be called with the write lock held.
func (s *Store) reset() error {
	config, err := s.types.DefaultConfig(models.NodeKindTrigger)
	if err != nil {
		return newAuthoringError("Reset", "", err)
	}

	entry := &models.Node{
		ID:     s.newID(),
		Kind:   models.NodeKindTrigger,
		Title:  s.types.DisplayName(models.NodeKindTrigger),
		Config: config,
	}

	s.workflow = &models.Workflow{
		ID:        s.workflow.ID,
		Name:      s.workflow.Name,
		Nodes:     []*models.Node{entry},
		Edges:     []*models.Edge{},
		Variables: make(map[string]any),
	}
	s.entryID = entry.ID
	s.touch()

	return nil
}

// touch records a mutation. Callers hold the write lock.
func (s *Store) touch() {
	s.dirty = true
	s.revision++
}

// Checkpoint exports the workflow together with the revision it was taken at.
func (s *Store) Checkpoint() (*models.Snapshot, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return models.NewSnapshot(s.workflow), s.revision
}

// Revision counts the changes applied to the store.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.revision
}

// Dirty reports whether the workflow changed since the last import or MarkClean.
func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.dirty
}

// MarkClean clears the dirty flag, typically after a successful save.
func (s *Store) MarkClean() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dirty = false
}

// MarkCleanAt clears the dirty flag only if the store is still at revision, so a
// change made after a checkpoint is not lost. It reports whether the flag was cleared.
func (s *Store) MarkCleanAt(revision uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.revision != revision {
		return false
	}

	s.dirty = false

	return true
}
