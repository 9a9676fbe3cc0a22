package canvas

import (
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// Errors returned by workflow extraction and instantiation
var (
	ErrGroupNotFound    = errors.New("group node not found")
	ErrEmptyGroup       = errors.New("group has no children")
	ErrInvalidWorkflow  = errors.New("workflow must contain a group node")
	ErrDanglingEdgeNode = errors.New("edge references a node outside the workflow")
)

// Subgraph is the result of extracting or instantiating a workflow
type Subgraph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// ExtractGroupAsWorkflow collects a group node and all of its children from
// a canvas, together with the edges whose endpoints both lie inside the
// group. Edges crossing the group boundary are dropped. Inputs are not
// mutated; node and edge order follows the input order.
func ExtractGroupAsWorkflow(groupID string, allNodes []Node, allEdges []Edge) (Subgraph, error) {
	var groupNode *Node
	for i := range allNodes {
		if allNodes[i].ID == groupID && allNodes[i].Type == NodeTypeGroup {
			groupNode = &allNodes[i]
			break
		}
	}
	if groupNode == nil {
		return Subgraph{}, ErrGroupNotFound
	}

	var children []Node
	for _, n := range allNodes {
		if n.ParentID == groupID {
			children = append(children, n)
		}
	}
	if len(children) == 0 {
		return Subgraph{}, ErrEmptyGroup
	}

	nodeIDs := make(map[string]struct{}, len(children)+1)
	nodeIDs[groupID] = struct{}{}
	for _, n := range children {
		nodeIDs[n.ID] = struct{}{}
	}

	var internal []Edge
	for _, e := range allEdges {
		if _, ok := nodeIDs[e.Source]; !ok {
			continue
		}
		if _, ok := nodeIDs[e.Target]; !ok {
			continue
		}
		internal = append(internal, e)
	}

	nodes := make([]Node, 0, len(children)+1)
	nodes = append(nodes, *groupNode)
	nodes = append(nodes, children...)

	return Subgraph{Nodes: nodes, Edges: internal}, nil
}

// InstantiateWorkflow clones a saved workflow onto a canvas at the target
// position. Every node and edge receives a fresh ID so the same workflow
// can be instantiated repeatedly without collisions. The group node is
// moved to the target position; children keep their parent-relative
// positions and have ParentID remapped to the cloned group.
func InstantiateWorkflow(savedNodes []Node, savedEdges []Edge, target Position) (Subgraph, error) {
	var groupNode *Node
	for i := range savedNodes {
		if savedNodes[i].Type == NodeTypeGroup {
			groupNode = &savedNodes[i]
			break
		}
	}
	if groupNode == nil {
		return Subgraph{}, ErrInvalidWorkflow
	}

	idMap := make(map[string]string, len(savedNodes))
	for _, n := range savedNodes {
		idMap[n.ID] = freshNodeID(n.ID)
	}

	offset := target.Sub(groupNode.Position)

	newNodes := make([]Node, len(savedNodes))
	for i, n := range savedNodes {
		clone := n
		clone.ID = idMap[n.ID]
		clone.Selected = false
		if n.ParentID != "" {
			// Child positions are relative to the parent; only remap the
			// containing group reference.
			clone.ParentID = idMap[n.ParentID]
		} else {
			clone.Position = n.Position.Add(offset)
		}
		newNodes[i] = clone
	}

	newEdges := make([]Edge, len(savedEdges))
	for i, e := range savedEdges {
		source, ok := idMap[e.Source]
		if !ok {
			return Subgraph{}, fmt.Errorf("%w: %s", ErrDanglingEdgeNode, e.Source)
		}
		dest, ok := idMap[e.Target]
		if !ok {
			return Subgraph{}, fmt.Errorf("%w: %s", ErrDanglingEdgeNode, e.Target)
		}

		clone := e
		clone.ID = compositeEdgeID(source, e.SourceHandle, dest, e.TargetHandle)
		clone.Source = source
		clone.Target = dest
		clone.Selected = false
		newEdges[i] = clone
	}

	return Subgraph{Nodes: newNodes, Edges: newEdges}, nil
}

// freshNodeID derives a new unique ID from an existing one using a
// millisecond timestamp plus a random base36 suffix.
func freshNodeID(oldID string) string {
	return fmt.Sprintf("%s-%d-%s", oldID, time.Now().UnixMilli(), randomBase36(9))
}

// compositeEdgeID builds an edge ID from the cloned endpoint IDs and
// handles. The endpoint IDs already embed a random suffix, so edges from
// repeated instantiations never collide.
func compositeEdgeID(source, sourceHandle, target, targetHandle string) string {
	if sourceHandle == "" {
		sourceHandle = "default"
	}
	if targetHandle == "" {
		targetHandle = "default"
	}
	return fmt.Sprintf("%s-%s-%s-%s", source, sourceHandle, target, targetHandle)
}

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

func randomBase36(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = base36Alphabet[rand.Intn(len(base36Alphabet))]
	}
	return string(b)
}
