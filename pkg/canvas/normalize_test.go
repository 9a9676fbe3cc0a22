package canvas

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMapper struct{}

func (fakeMapper) PathFromURL(url string) string {
	return strings.TrimPrefix(url, "https://cdn.example.com/media/")
}

func (fakeMapper) URLFromPath(path string) string {
	if strings.HasPrefix(path, "http") {
		return path
	}
	return "https://cdn.example.com/media/" + path
}

func TestNormalizeNodesForStorage(t *testing.T) {
	nodes := []Node{
		{
			ID:   "img-1",
			Type: NodeTypeImageGen,
			Data: map[string]interface{}{
				"generatedImageUrl": "https://cdn.example.com/media/acct/img.png",
				"prompt":            "a red fox",
			},
		},
	}

	out := NormalizeNodesForStorage(nodes, fakeMapper{})

	require.Len(t, out, 1)
	assert.Equal(t, "acct/img.png", out[0].Data["generatedImageUrl"])
	assert.Equal(t, "a red fox", out[0].Data["prompt"])

	// Input untouched
	assert.Equal(t, "https://cdn.example.com/media/acct/img.png", nodes[0].Data["generatedImageUrl"])
}

func TestDenormalizeNodesFromStorage(t *testing.T) {
	nodes := []Node{
		{
			ID:   "up-1",
			Type: NodeTypeUpload,
			Data: map[string]interface{}{
				"fileUrl": "acct/clip.mp4",
			},
		},
	}

	out := DenormalizeNodesFromStorage(nodes, fakeMapper{})

	assert.Equal(t, "https://cdn.example.com/media/acct/clip.mp4", out[0].Data["fileUrl"])
}

func TestNormalizeEdgesForStorage(t *testing.T) {
	edges := []Edge{
		{ID: "e1", Source: "a", Target: "b", SourceHandle: "out", TargetHandle: "null"},
		{ID: "e2", Source: "b", Target: "c", Type: "custom", Selected: true},
	}

	out := NormalizeEdgesForStorage(edges)

	require.Len(t, out, 2)
	assert.Equal(t, "out", out[0].SourceHandle)
	assert.Empty(t, out[0].TargetHandle)
	assert.Equal(t, "node-to-node", out[0].Type)
	assert.Equal(t, "custom", out[1].Type)
	assert.False(t, out[1].Selected)
}
