package canvas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleGraph() ([]Node, []Edge) {
	nodes := []Node{
		{ID: "group-1", Type: NodeTypeGroup, Position: Position{X: 100, Y: 200}},
		{ID: "text-1", Type: NodeTypeText, ParentID: "group-1", Position: Position{X: 10, Y: 20}},
		{ID: "img-1", Type: NodeTypeImageGen, ParentID: "group-1", Position: Position{X: 30, Y: 40}},
		{ID: "outside-1", Type: NodeTypeText, Position: Position{X: 500, Y: 500}},
	}
	edges := []Edge{
		{ID: "e1", Source: "text-1", Target: "img-1", SourceHandle: "text-out"},
		{ID: "e2", Source: "outside-1", Target: "img-1"},
		{ID: "e3", Source: "img-1", Target: "outside-1"},
	}
	return nodes, edges
}

func TestExtractGroupAsWorkflow(t *testing.T) {
	nodes, edges := sampleGraph()

	sub, err := ExtractGroupAsWorkflow("group-1", nodes, edges)
	require.NoError(t, err)

	// Group node first, then children in input order
	require.Len(t, sub.Nodes, 3)
	assert.Equal(t, "group-1", sub.Nodes[0].ID)
	assert.Equal(t, "text-1", sub.Nodes[1].ID)
	assert.Equal(t, "img-1", sub.Nodes[2].ID)

	// Only the internal edge survives; boundary-crossing edges are dropped
	require.Len(t, sub.Edges, 1)
	assert.Equal(t, "e1", sub.Edges[0].ID)
}

func TestExtractGroupAsWorkflowGroupNotFound(t *testing.T) {
	nodes, edges := sampleGraph()

	_, err := ExtractGroupAsWorkflow("missing", nodes, edges)
	assert.ErrorIs(t, err, ErrGroupNotFound)

	// A non-group node with the requested ID does not count
	_, err = ExtractGroupAsWorkflow("text-1", nodes, edges)
	assert.ErrorIs(t, err, ErrGroupNotFound)
}

func TestExtractGroupAsWorkflowEmptyGroup(t *testing.T) {
	nodes := []Node{
		{ID: "group-1", Type: NodeTypeGroup, Position: Position{X: 0, Y: 0}},
	}

	_, err := ExtractGroupAsWorkflow("group-1", nodes, nil)
	assert.ErrorIs(t, err, ErrEmptyGroup)
}

func TestExtractGroupAsWorkflowDoesNotMutateInputs(t *testing.T) {
	nodes, edges := sampleGraph()
	nodesCopy := make([]Node, len(nodes))
	copy(nodesCopy, nodes)
	edgesCopy := make([]Edge, len(edges))
	copy(edgesCopy, edges)

	_, err := ExtractGroupAsWorkflow("group-1", nodes, edges)
	require.NoError(t, err)

	assert.Equal(t, nodesCopy, nodes)
	assert.Equal(t, edgesCopy, edges)
}

func TestInstantiateWorkflow(t *testing.T) {
	saved := []Node{
		{ID: "group-1", Type: NodeTypeGroup, Position: Position{X: 100, Y: 200}, Selected: true},
		{ID: "text-1", Type: NodeTypeText, ParentID: "group-1", Position: Position{X: 10, Y: 20}},
		{ID: "img-1", Type: NodeTypeImageGen, ParentID: "group-1", Position: Position{X: 30, Y: 40}},
	}
	savedEdges := []Edge{
		{ID: "e1", Source: "text-1", Target: "img-1", SourceHandle: "text-out", Selected: true},
	}
	target := Position{X: 400, Y: 600}

	sub, err := InstantiateWorkflow(saved, savedEdges, target)
	require.NoError(t, err)
	require.Len(t, sub.Nodes, len(saved))
	require.Len(t, sub.Edges, len(savedEdges))

	// All cloned IDs are distinct from every saved ID
	oldIDs := map[string]bool{"group-1": true, "text-1": true, "img-1": true}
	newIDs := make(map[string]bool)
	for _, n := range sub.Nodes {
		assert.False(t, oldIDs[n.ID], "cloned node reused old ID %s", n.ID)
		assert.False(t, newIDs[n.ID], "duplicate cloned ID %s", n.ID)
		newIDs[n.ID] = true
		assert.False(t, n.Selected)
	}

	// Group node lands exactly at the target position
	group := sub.Nodes[0]
	assert.Equal(t, NodeTypeGroup, group.Type)
	assert.Equal(t, target, group.Position)

	// Children keep their parent-relative positions and point at the new group
	assert.Equal(t, Position{X: 10, Y: 20}, sub.Nodes[1].Position)
	assert.Equal(t, Position{X: 30, Y: 40}, sub.Nodes[2].Position)
	assert.Equal(t, group.ID, sub.Nodes[1].ParentID)
	assert.Equal(t, group.ID, sub.Nodes[2].ParentID)

	// Every edge endpoint resolves to a cloned node
	for _, e := range sub.Edges {
		assert.True(t, newIDs[e.Source])
		assert.True(t, newIDs[e.Target])
		assert.False(t, e.Selected)
	}
	assert.Equal(t, sub.Nodes[1].ID, sub.Edges[0].Source)
	assert.Equal(t, sub.Nodes[2].ID, sub.Edges[0].Target)
}

func TestInstantiateWorkflowRequiresGroup(t *testing.T) {
	saved := []Node{
		{ID: "text-1", Type: NodeTypeText, Position: Position{X: 0, Y: 0}},
	}

	_, err := InstantiateWorkflow(saved, nil, Position{})
	assert.ErrorIs(t, err, ErrInvalidWorkflow)
}

func TestInstantiateWorkflowTwiceIsIDDisjoint(t *testing.T) {
	saved := []Node{
		{ID: "group-1", Type: NodeTypeGroup, Position: Position{X: 0, Y: 0}},
		{ID: "text-1", Type: NodeTypeText, ParentID: "group-1", Position: Position{X: 5, Y: 5}},
	}
	savedEdges := []Edge{
		{ID: "e1", Source: "group-1", Target: "text-1"},
	}
	target := Position{X: 50, Y: 50}

	first, err := InstantiateWorkflow(saved, savedEdges, target)
	require.NoError(t, err)
	second, err := InstantiateWorkflow(saved, savedEdges, target)
	require.NoError(t, err)

	firstIDs := make(map[string]bool)
	for _, n := range first.Nodes {
		firstIDs[n.ID] = true
	}
	for _, n := range second.Nodes {
		assert.False(t, firstIDs[n.ID], "second instantiation reused ID %s", n.ID)
	}

	// Structurally isomorphic: same node count, same types, same positions
	require.Len(t, second.Nodes, len(first.Nodes))
	for i := range first.Nodes {
		assert.Equal(t, first.Nodes[i].Type, second.Nodes[i].Type)
		assert.Equal(t, first.Nodes[i].Position, second.Nodes[i].Position)
	}
	require.Len(t, second.Edges, len(first.Edges))
	assert.NotEqual(t, first.Edges[0].ID, second.Edges[0].ID)
}

func TestInstantiateWorkflowEdgeIDComposite(t *testing.T) {
	saved := []Node{
		{ID: "group-1", Type: NodeTypeGroup, Position: Position{X: 0, Y: 0}},
		{ID: "a", Type: NodeTypeText, ParentID: "group-1"},
		{ID: "b", Type: NodeTypeImageGen, ParentID: "group-1"},
	}
	savedEdges := []Edge{
		{ID: "e1", Source: "a", Target: "b", SourceHandle: "out", TargetHandle: "in"},
		{ID: "e2", Source: "a", Target: "b"},
	}

	sub, err := InstantiateWorkflow(saved, savedEdges, Position{})
	require.NoError(t, err)

	src := sub.Edges[0].Source
	dst := sub.Edges[0].Target
	assert.Equal(t, src+"-out-"+dst+"-in", sub.Edges[0].ID)
	assert.Equal(t, src+"-default-"+dst+"-default", sub.Edges[1].ID)
}
