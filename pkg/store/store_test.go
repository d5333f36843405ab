package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dukex/callflow/pkg/models"
	"github.com/dukex/callflow/pkg/registry"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequentialIDs() func() string {
	var counter atomic.Int64

	return func() string {
		return fmt.Sprintf("id-%d", counter.Add(1))
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(registry.NewDefaultRegistry(slog.Default()),
		WithIDGenerator(sequentialIDs()),
		WithWorkflowID("wf-1"),
		WithName("Support line"),
	)
	require.NoError(t, err)

	return s
}

func addNode(t *testing.T, s *Store, kind models.NodeKind) *models.Node {
	t.Helper()

	node, err := s.AddNode(kind, models.Position{})
	require.NoError(t, err)

	return node
}

func connect(t *testing.T, s *Store, source, target string, condition *models.Condition) *models.Edge {
	t.Helper()

	edge, err := s.Connect(source, target, condition)
	require.NoError(t, err)

	return edge
}

func TestNew_FreshWorkflowHasSingleEntry(t *testing.T) {
	s := newTestStore(t)

	nodes := s.Nodes()
	require.Len(t, nodes, 1)
	assert.Equal(t, models.NodeKindTrigger, nodes[0].Kind)
	assert.Equal(t, nodes[0].ID, s.EntryNodeID())
	assert.Empty(t, s.Edges())
	assert.Equal(t, "wf-1", s.ID())
	assert.Equal(t, "Support line", s.Name())
	assert.False(t, s.Dirty())
}

func TestAddNode(t *testing.T) {
	s := newTestStore(t)

	node, err := s.AddNode(models.NodeKindAPIRequest, models.Position{X: 10, Y: 20})
	require.NoError(t, err)

	assert.NotEmpty(t, node.ID)
	assert.Equal(t, "API Request", node.Title)
	assert.Equal(t, models.Position{X: 10, Y: 20}, node.Position)
	assert.Equal(t, "GET", node.Config.(*models.APIRequestConfig).Method)
	assert.True(t, s.Dirty())
	assert.Len(t, s.Nodes(), 2)
}

func TestAddNode_UnknownKind(t *testing.T) {
	s := newTestStore(t)

	_, err := s.AddNode("voicemail", models.Position{})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrUnknownNodeKind)
	assert.True(t, IsAuthoringError(err))
	assert.Len(t, s.Nodes(), 1)
	assert.False(t, s.Dirty())
}

func TestUpdateNode(t *testing.T) {
	s := newTestStore(t)
	node := addNode(t, s, models.NodeKindEndCall)
	s.MarkClean()

	title := "Goodbye"
	updated, err := s.UpdateNode(node.ID, NodeUpdate{
		Title:  &title,
		Config: &models.EndCallConfig{Message: "See you"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Goodbye", updated.Title)
	assert.Equal(t, "See you", updated.Config.(*models.EndCallConfig).Message)
	assert.Equal(t, node.Position, updated.Position)
	assert.True(t, s.Dirty())
}

func TestUpdateNode_UnknownNode(t *testing.T) {
	s := newTestStore(t)
	before := s.Export()

	title := "x"
	_, err := s.UpdateNode("missing", NodeUpdate{Title: &title})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownNode)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, before, s.Export())
	assert.False(t, s.Dirty())
}

func TestUpdateNode_ConfigKindMismatch(t *testing.T) {
	s := newTestStore(t)
	node := addNode(t, s, models.NodeKindEndCall)

	_, err := s.UpdateNode(node.ID, NodeUpdate{Config: &models.TransferCallConfig{Destination: "+1"}})
	require.ErrorIs(t, err, ErrConfigKindMismatch)

	current, err := s.Node(node.ID)
	require.NoError(t, err)
	assert.IsType(t, &models.EndCallConfig{}, current.Config)
}

func TestUpdateNode_ConfigIsCopied(t *testing.T) {
	s := newTestStore(t)
	node := addNode(t, s, models.NodeKindAPIRequest)

	config := &models.APIRequestConfig{Method: "POST", Headers: map[string]string{"A": "1"}, TimeoutSeconds: 5}
	_, err := s.UpdateNode(node.ID, NodeUpdate{Config: config})
	require.NoError(t, err)

	config.Headers["A"] = "2"

	current, err := s.Node(node.ID)
	require.NoError(t, err)
	assert.Equal(t, "1", current.Config.(*models.APIRequestConfig).Headers["A"])
}

func TestChangeKind(t *testing.T) {
	s := newTestStore(t)
	node := addNode(t, s, models.NodeKindTool)
	target := addNode(t, s, models.NodeKindEndCall)
	edge := connect(t, s, node.ID, target.ID, nil)

	changed, err := s.ChangeKind(node.ID, models.NodeKindEndCall)
	require.NoError(t, err)

	assert.Equal(t, models.NodeKindEndCall, changed.Kind)
	assert.Equal(t, "End Call", changed.Title)
	assert.IsType(t, &models.EndCallConfig{}, changed.Config)

	_, err = s.Edge(edge.ID)
	assert.NoError(t, err)
}

func TestChangeKind_EntryIsProtected(t *testing.T) {
	s := newTestStore(t)

	_, err := s.ChangeKind(s.EntryNodeID(), models.NodeKindConversation)
	assert.ErrorIs(t, err, ErrProtectedNode)
}

func TestDeleteNode_CascadesIncidentEdges(t *testing.T) {
	s := newTestStore(t)
	entry := s.EntryNodeID()
	conversation := addNode(t, s, models.NodeKindConversation)
	transfer := addNode(t, s, models.NodeKindTransferCall)
	end := addNode(t, s, models.NodeKindEndCall)

	connect(t, s, entry, conversation.ID, nil)
	connect(t, s, conversation.ID, transfer.ID, models.LogicalCondition(`intent == "billing"`))
	connect(t, s, conversation.ID, end.ID, nil)
	kept := connect(t, s, entry, end.ID, models.AICondition("caller hangs up"))

	require.NoError(t, s.DeleteNode(conversation.ID))

	for _, edge := range s.Edges() {
		assert.NotEqual(t, conversation.ID, edge.Source)
		assert.NotEqual(t, conversation.ID, edge.Target)
	}

	edges := s.Edges()
	require.Len(t, edges, 1)
	assert.Equal(t, kept.ID, edges[0].ID)

	_, err := s.Node(conversation.ID)
	assert.ErrorIs(t, err, ErrUnknownNode)
}

func TestDeleteNode_Errors(t *testing.T) {
	s := newTestStore(t)

	err := s.DeleteNode(s.EntryNodeID())
	assert.ErrorIs(t, err, ErrProtectedNode)
	assert.Len(t, s.Nodes(), 1)

	err = s.DeleteNode("missing")
	assert.ErrorIs(t, err, ErrUnknownNode)
}

func TestConnect_SecondDefaultReplacesFirst(t *testing.T) {
	s := newTestStore(t)
	a := addNode(t, s, models.NodeKindConversation)
	b := addNode(t, s, models.NodeKindEndCall)
	c := addNode(t, s, models.NodeKindTransferCall)

	connect(t, s, a.ID, b.ID, nil)
	second := connect(t, s, a.ID, c.ID, nil)

	var defaults []*models.Edge

	for _, edge := range s.Outgoing(a.ID) {
		if edge.IsDefault() {
			defaults = append(defaults, edge)
		}
	}

	require.Len(t, defaults, 1)
	assert.Equal(t, second.ID, defaults[0].ID)
	assert.Equal(t, c.ID, defaults[0].Target)
}

func TestConnect_ConditionedEdgesKeepDeclarationOrder(t *testing.T) {
	s := newTestStore(t)
	a := addNode(t, s, models.NodeKindConversation)
	b := addNode(t, s, models.NodeKindEndCall)
	c := addNode(t, s, models.NodeKindTransferCall)

	first := connect(t, s, a.ID, b.ID, models.AICondition("caller is done"))
	second := connect(t, s, a.ID, c.ID, models.AICondition("caller wants a human"))
	fallback := connect(t, s, a.ID, b.ID, nil)

	outgoing := s.Outgoing(a.ID)
	require.Len(t, outgoing, 3)
	assert.Equal(t, []string{first.ID, second.ID, fallback.ID},
		[]string{outgoing[0].ID, outgoing[1].ID, outgoing[2].ID})
}

func TestConnect_Errors(t *testing.T) {
	s := newTestStore(t)
	a := addNode(t, s, models.NodeKindConversation)

	_, err := s.Connect(a.ID, "missing", nil)
	assert.ErrorIs(t, err, ErrUnknownNode)

	_, err = s.Connect("missing", a.ID, nil)
	assert.ErrorIs(t, err, ErrUnknownNode)

	_, err = s.Connect(s.EntryNodeID(), a.ID, models.LogicalCondition(""))
	assert.ErrorIs(t, err, ErrInvalidCondition)
	assert.ErrorIs(t, err, models.ErrConditionExpressionMissing)

	assert.Empty(t, s.Edges())
}

func TestUpdateEdgeCondition(t *testing.T) {
	s := newTestStore(t)
	a := addNode(t, s, models.NodeKindConversation)
	b := addNode(t, s, models.NodeKindEndCall)

	oldDefault := connect(t, s, a.ID, b.ID, nil)
	edge := connect(t, s, a.ID, b.ID, models.AICondition("caller says goodbye"))

	updated, err := s.UpdateEdgeCondition(edge.ID, models.LogicalCondition(`intent == "bye"`))
	require.NoError(t, err)
	assert.Equal(t, models.ConditionTypeLogical, updated.Condition.Type)

	updated, err = s.UpdateEdgeCondition(edge.ID, nil)
	require.NoError(t, err)
	assert.True(t, updated.IsDefault())

	_, err = s.Edge(oldDefault.ID)
	assert.ErrorIs(t, err, ErrUnknownEdge)
	assert.Len(t, s.Outgoing(a.ID), 1)

	_, err = s.UpdateEdgeCondition("missing", nil)
	assert.ErrorIs(t, err, ErrUnknownEdge)

	_, err = s.UpdateEdgeCondition(edge.ID, models.AICondition(" "))
	assert.ErrorIs(t, err, ErrInvalidCondition)
}

func TestDisconnect(t *testing.T) {
	s := newTestStore(t)
	a := addNode(t, s, models.NodeKindEndCall)
	edge := connect(t, s, s.EntryNodeID(), a.ID, nil)

	require.NoError(t, s.Disconnect(edge.ID))
	assert.Empty(t, s.Edges())
	assert.Len(t, s.Nodes(), 2)

	assert.ErrorIs(t, s.Disconnect(edge.ID), ErrUnknownEdge)
}

func buildBillingGraph(t *testing.T, s *Store) {
	t.Helper()

	conversation := addNode(t, s, models.NodeKindConversation)
	transfer := addNode(t, s, models.NodeKindTransferCall)
	end := addNode(t, s, models.NodeKindEndCall)

	connect(t, s, s.EntryNodeID(), conversation.ID, nil)
	connect(t, s, conversation.ID, transfer.ID, models.LogicalCondition(`intent == "billing"`))
	connect(t, s, conversation.ID, end.ID, nil)
	s.SetVariable("tier", "gold")
}

func TestExportImport_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	buildBillingGraph(t, s)

	exported := s.Export()
	assert.Equal(t, models.SnapshotSchemaVersion, exported.SchemaVersion)

	data, err := json.Marshal(exported)
	require.NoError(t, err)

	var decoded models.Snapshot
	require.NoError(t, json.Unmarshal(data, &decoded))

	other := newTestStore(t)
	require.NoError(t, other.Import(&decoded))
	assert.False(t, other.Dirty())

	if diff := cmp.Diff(exported, other.Export()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, s.EntryNodeID(), other.EntryNodeID())
}

func TestExport_IsACopy(t *testing.T) {
	s := newTestStore(t)
	buildBillingGraph(t, s)

	exported := s.Export()
	exported.Nodes[0].Title = "mutated"
	exported.Variables["tier"] = "bronze"

	assert.NotEqual(t, "mutated", s.Nodes()[0].Title)
	assert.Equal(t, "gold", s.Variables()["tier"])
}

func TestImport_Rejections(t *testing.T) {
	valid := func() *models.Snapshot {
		return models.NewSnapshot(&models.Workflow{
			ID:    "wf-2",
			Name:  "Imported",
			Nodes: []*models.Node{{ID: "t", Kind: models.NodeKindTrigger, Config: &models.TriggerConfig{}}},
		})
	}

	tests := []struct {
		name    string
		mutate  func(*models.Snapshot) *models.Snapshot
		wantErr error
	}{
		{
			name:    "nil snapshot",
			mutate:  func(*models.Snapshot) *models.Snapshot { return nil },
			wantErr: ErrInvalidSnapshot,
		},
		{
			name: "unknown schema version",
			mutate: func(s *models.Snapshot) *models.Snapshot {
				s.SchemaVersion = "callflow.workflow/v0"

				return s
			},
			wantErr: ErrUnsupportedSchemaVersion,
		},
		{
			name: "unknown node kind",
			mutate: func(s *models.Snapshot) *models.Snapshot {
				s.Nodes = append(s.Nodes, &models.Node{ID: "v", Kind: "voicemail"})

				return s
			},
			wantErr: models.ErrUnknownNodeKind,
		},
		{
			name: "config of another kind",
			mutate: func(s *models.Snapshot) *models.Snapshot {
				s.Nodes = append(s.Nodes, &models.Node{ID: "e", Kind: models.NodeKindEndCall, Config: &models.ToolConfig{}})

				return s
			},
			wantErr: ErrConfigKindMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			buildBillingGraph(t, s)
			before := s.Export()

			err := s.Import(tt.mutate(valid()))
			require.ErrorIs(t, err, tt.wantErr)

			assert.Equal(t, before, s.Export())
			assert.True(t, s.Dirty())
		})
	}
}

func TestImport_FillsMissingConfigAndEntry(t *testing.T) {
	s := newTestStore(t)

	err := s.Import(models.NewSnapshot(&models.Workflow{
		ID:   "wf-2",
		Name: "Imported",
		Nodes: []*models.Node{
			{ID: "end", Kind: models.NodeKindEndCall},
			{ID: "start", Kind: models.NodeKindTrigger},
		},
	}))
	require.NoError(t, err)

	assert.Equal(t, "start", s.EntryNodeID())
	assert.Equal(t, "wf-2", s.ID())

	end, err := s.Node("end")
	require.NoError(t, err)
	assert.NotEmpty(t, end.Config.(*models.EndCallConfig).Message)
}

func TestReset(t *testing.T) {
	s := newTestStore(t)
	buildBillingGraph(t, s)
	s.MarkClean()

	require.NoError(t, s.Reset())

	assert.Len(t, s.Nodes(), 1)
	assert.Empty(t, s.Edges())
	assert.Empty(t, s.Variables())
	assert.Equal(t, "wf-1", s.ID())
	assert.Equal(t, "Support line", s.Name())
	assert.True(t, s.Dirty())
}

func TestVariablesAndName(t *testing.T) {
	s := newTestStore(t)

	s.SetName("Renamed")
	s.SetVariable("language", "en")
	assert.Equal(t, "Renamed", s.Name())
	assert.Equal(t, map[string]any{"language": "en"}, s.Variables())

	s.MarkClean()
	s.DeleteVariable("missing")
	assert.False(t, s.Dirty())

	s.DeleteVariable("language")
	assert.True(t, s.Dirty())
	assert.Empty(t, s.Variables())
}

func TestObserve(t *testing.T) {
	s := newTestStore(t)

	var changes []Change

	s.Observe(func(change Change) {
		changes = append(changes, change)
	})

	node := addNode(t, s, models.NodeKindEndCall)
	edge := connect(t, s, s.EntryNodeID(), node.ID, nil)
	require.NoError(t, s.DeleteNode(node.ID))

	assert.Equal(t, []Change{
		{Type: ChangeNodeAdded, NodeID: node.ID},
		{Type: ChangeEdgeAdded, EdgeID: edge.ID},
		{Type: ChangeEdgeDeleted, EdgeID: edge.ID},
		{Type: ChangeNodeDeleted, NodeID: node.ID},
	}, changes)
}

func TestObserve_CanReadStore(t *testing.T) {
	s := newTestStore(t)

	var seen int

	s.Observe(func(Change) {
		seen = len(s.Nodes())
	})

	addNode(t, s, models.NodeKindEndCall)
	assert.Equal(t, 2, seen)
}

func TestConcurrentMutations(t *testing.T) {
	s := newTestStore(t)

	var wg sync.WaitGroup

	for range 20 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			node, err := s.AddNode(models.NodeKindEndCall, models.Position{})
			if err != nil {
				return
			}

			_, _ = s.Connect(s.EntryNodeID(), node.ID, models.AICondition("any"))
		}()
	}

	wg.Wait()

	assert.Len(t, s.Nodes(), 21)
	assert.Len(t, s.Edges(), 20)
}

func TestMarkCleanAt(t *testing.T) {
	s := newTestStore(t)
	addNode(t, s, models.NodeKindEndCall)

	snapshot, revision := s.Checkpoint()
	assert.Len(t, snapshot.Nodes, 2)
	assert.Equal(t, revision, s.Revision())

	s.SetName("Changed after checkpoint")

	assert.False(t, s.MarkCleanAt(revision))
	assert.True(t, s.Dirty())

	_, revision = s.Checkpoint()

	assert.True(t, s.MarkCleanAt(revision))
	assert.False(t, s.Dirty())
}
