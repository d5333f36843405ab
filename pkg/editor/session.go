// Package editor tracks the per-session authoring state around a store: selection,
// the connection being drawn, and node layout.
package editor

import (
	"errors"
	"sync"

	"github.com/dukex/callflow/pkg/models"
	"github.com/dukex/callflow/pkg/store"
)

var (
	ErrNothingSelected     = errors.New("nothing selected")
	ErrNoPendingConnection = errors.New("no connection in progress")
)

// SelectionKind tells what the selection points at.
type SelectionKind string

const (
	SelectionNone SelectionKind = ""
	SelectionNode SelectionKind = "node"
	SelectionEdge SelectionKind = "edge"
)

// Selection is the current selection of the session.
type Selection struct {
	Kind SelectionKind `json:"kind,omitempty"`
	ID   string        `json:"id,omitempty"`
}

// Session wraps one store with the interaction state of an editor. Selection and
// pending connections never point at deleted nodes or edges.
type Session struct {
	store *store.Store

	mu        sync.Mutex
	selection Selection
	pending   string
}

// NewSession attaches a session to s.
func NewSession(s *store.Store) *Session {
	session := &Session{store: s}
	s.Observe(session.onChange)

	return session
}

// Store returns the underlying graph store.
func (e *Session) Store() *store.Store {
	return e.store
}

func (e *Session) onChange(change store.Change) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch change.Type {
	case store.ChangeNodeDeleted:
		if e.selection.Kind == SelectionNode && e.selection.ID == change.NodeID {
			e.selection = Selection{}
		}

		if e.pending == change.NodeID {
			e.pending = ""
		}
	case store.ChangeEdgeDeleted:
		if e.selection.Kind == SelectionEdge && e.selection.ID == change.EdgeID {
			e.selection = Selection{}
		}
	case store.ChangeReplaced:
		e.selection = Selection{}
		e.pending = ""
	}
}

// Select selects a node.
func (e *Session) Select(nodeID string) error {
	if _, err := e.store.Node(nodeID); err != nil {
		return err
	}

	e.mu.Lock()
	e.selection = Selection{Kind: SelectionNode, ID: nodeID}
	e.mu.Unlock()

	return nil
}

// SelectEdge selects an edge.
func (e *Session) SelectEdge(edgeID string) error {
	if _, err := e.store.Edge(edgeID); err != nil {
		return err
	}

	e.mu.Lock()
	e.selection = Selection{Kind: SelectionEdge, ID: edgeID}
	e.mu.Unlock()

	return nil
}

func (e *Session) ClearSelection() {
	e.mu.Lock()
	e.selection = Selection{}
	e.mu.Unlock()
}

func (e *Session) Selection() Selection {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.selection
}

// BeginConnection starts drawing an edge from source.
func (e *Session) BeginConnection(source string) error {
	if _, err := e.store.Node(source); err != nil {
		return err
	}

	e.mu.Lock()
	e.pending = source
	e.mu.Unlock()

	return nil
}

// PendingConnection returns the source of the edge being drawn.
func (e *Session) PendingConnection() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.pending, e.pending != ""
}

func (e *Session) CancelConnection() {
	e.mu.Lock()
	e.pending = ""
	e.mu.Unlock()
}

// CompleteConnection connects the pending source to target. The pending connection
// is kept when the store rejects the edge so the user can pick another target.
func (e *Session) CompleteConnection(target string, condition *models.Condition) (*models.Edge, error) {
	source, ok := e.PendingConnection()
	if !ok {
		return nil, ErrNoPendingConnection
	}

	edge, err := e.store.Connect(source, target, condition)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.pending = ""
	e.selection = Selection{Kind: SelectionEdge, ID: edge.ID}
	e.mu.Unlock()

	return edge, nil
}

// MoveNode updates only the layout position of a node.
func (e *Session) MoveNode(nodeID string, position models.Position) error {
	_, err := e.store.UpdateNode(nodeID, store.NodeUpdate{Position: &position})

	return err
}

// DeleteSelection deletes the selected node or edge.
func (e *Session) DeleteSelection() error {
	selection := e.Selection()

	switch selection.Kind {
	case SelectionNode:
		return e.store.DeleteNode(selection.ID)
	case SelectionEdge:
		return e.store.Disconnect(selection.ID)
	default:
		return ErrNothingSelected
	}
}
