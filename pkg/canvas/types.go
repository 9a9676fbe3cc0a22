// Package canvas provides the node-graph domain model for loom canvases.
package canvas

import (
	"time"
)

// Node types supported on a canvas
const (
	NodeTypeText     = "text"
	NodeTypeImageGen = "image-gen"
	NodeTypeVideoGen = "video-gen"
	NodeTypeAudio    = "audio"
	NodeTypeUpload   = "upload"
	NodeTypeGroup    = "group"
)

// NodeTypes lists every valid node type
var NodeTypes = []string{
	NodeTypeText,
	NodeTypeImageGen,
	NodeTypeVideoGen,
	NodeTypeAudio,
	NodeTypeUpload,
	NodeTypeGroup,
}

// IsValidNodeType reports whether t is a known node type
func IsValidNodeType(t string) bool {
	for _, nt := range NodeTypes {
		if nt == t {
			return true
		}
	}
	return false
}

// Position is an absolute canvas coordinate. Children of a group node
// store their position relative to the group.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns the position shifted by the given offset
func (p Position) Add(offset Position) Position {
	return Position{X: p.X + offset.X, Y: p.Y + offset.Y}
}

// Sub returns the offset from other to p
func (p Position) Sub(other Position) Position {
	return Position{X: p.X - other.X, Y: p.Y - other.Y}
}

// Node represents a unit in the canvas graph. A node with a non-empty
// ParentID is contained in the group node with that ID.
type Node struct {
	// ID of the node, unique within a canvas
	ID string `json:"id"`

	// Type of the node (text, image-gen, video-gen, audio, upload, group)
	Type string `json:"type"`

	// Position on the canvas (relative to parent for child nodes)
	Position Position `json:"position"`

	// ParentID references the containing group node, if any
	ParentID string `json:"parentId,omitempty"`

	// Selected marks the node as selected in the editor
	Selected bool `json:"selected,omitempty"`

	// Data holds the type-specific payload (prompt, model, media URLs, ...)
	Data map[string]interface{} `json:"data,omitempty"`
}

// Edge connects two nodes within the same canvas
type Edge struct {
	// ID of the edge
	ID string `json:"id"`

	// Source node ID
	Source string `json:"source"`

	// Target node ID
	Target string `json:"target"`

	// SourceHandle identifies the output handle on the source node
	SourceHandle string `json:"sourceHandle,omitempty"`

	// TargetHandle identifies the input handle on the target node
	TargetHandle string `json:"targetHandle,omitempty"`

	// Type of the edge rendering
	Type string `json:"type,omitempty"`

	// Selected marks the edge as selected in the editor
	Selected bool `json:"selected,omitempty"`
}

// Canvas is an account's node-graph workspace document
type Canvas struct {
	// ID of the canvas
	ID string `json:"id"`

	// AccountID of the owner
	AccountID string `json:"account_id"`

	// Name of the canvas
	Name string `json:"name"`

	// Description of the canvas
	Description string `json:"description,omitempty"`

	// ThumbnailURL points at a rendered preview, if any
	ThumbnailURL string `json:"thumbnail_url,omitempty"`

	// Nodes in the canvas
	Nodes []Node `json:"nodes"`

	// Edges in the canvas
	Edges []Edge `json:"edges"`

	// IsFavorite marks the canvas as pinned by the owner
	IsFavorite bool `json:"is_favorite"`

	// LastOpenedAt is when the owner last loaded the canvas
	LastOpenedAt time.Time `json:"last_opened_at,omitempty"`

	// CreatedAt is when the canvas was created
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the canvas was last updated
	UpdatedAt time.Time `json:"updated_at"`
}

// Workflow is a persisted, reusable snapshot of a group subgraph
type Workflow struct {
	// ID of the workflow
	ID string `json:"id"`

	// AccountID of the owner
	AccountID string `json:"account_id"`

	// Name of the workflow
	Name string `json:"name"`

	// Description of the workflow
	Description string `json:"description,omitempty"`

	// ThumbnailURL points at a captured preview, if any
	ThumbnailURL string `json:"thumbnail_url,omitempty"`

	// Nodes of the snapshot (one group node plus its children)
	Nodes []Node `json:"nodes"`

	// Edges internal to the snapshot
	Edges []Edge `json:"edges"`

	// IsPublic exposes the workflow to other accounts
	IsPublic bool `json:"is_public"`

	// CreatedAt is when the workflow was saved
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the workflow was last updated
	UpdatedAt time.Time `json:"updated_at"`
}
