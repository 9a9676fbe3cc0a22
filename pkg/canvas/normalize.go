package canvas

// URLMapper converts between public media URLs and bucket-relative storage
// paths. The blob store provides the concrete mapping.
type URLMapper interface {
	// PathFromURL returns the storage path for a public URL, or the input
	// unchanged when it is not a recognized storage URL.
	PathFromURL(url string) string

	// URLFromPath returns the public URL for a storage path, or the input
	// unchanged when it is already a full URL.
	URLFromPath(path string) string
}

// mediaURLFields are the node data keys that may hold media URLs. They are
// stored as bucket-relative paths and expanded back on load.
var mediaURLFields = []string{
	"generatedImageUrl",
	"generatedVideoUrl",
	"generatedAudioUrl",
	"fileUrl",
	"imageUrl",
	"videoUrl",
}

// NormalizeNodesForStorage rewrites media URLs in node data to storage
// paths. Inputs are not mutated.
func NormalizeNodesForStorage(nodes []Node, mapper URLMapper) []Node {
	return rewriteNodeURLs(nodes, mapper.PathFromURL)
}

// DenormalizeNodesFromStorage expands storage paths in node data back to
// public URLs. Inputs are not mutated.
func DenormalizeNodesFromStorage(nodes []Node, mapper URLMapper) []Node {
	return rewriteNodeURLs(nodes, mapper.URLFromPath)
}

func rewriteNodeURLs(nodes []Node, rewrite func(string) string) []Node {
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		clone := n
		if n.Data != nil {
			data := make(map[string]interface{}, len(n.Data))
			for k, v := range n.Data {
				data[k] = v
			}
			for _, field := range mediaURLFields {
				if s, ok := data[field].(string); ok && s != "" {
					data[field] = rewrite(s)
				}
			}
			clone.Data = data
		}
		out[i] = clone
	}
	return out
}

// NormalizeEdgesForStorage strips editor-only state and invalid handle
// values before persisting edges. Handles that are empty, whitespace, or
// the literal string "null" are dropped.
func NormalizeEdgesForStorage(edges []Edge) []Edge {
	out := make([]Edge, len(edges))
	for i, e := range edges {
		normalized := Edge{
			ID:     e.ID,
			Source: e.Source,
			Target: e.Target,
			Type:   e.Type,
		}
		if normalized.Type == "" {
			normalized.Type = "node-to-node"
		}
		if isValidHandle(e.SourceHandle) {
			normalized.SourceHandle = e.SourceHandle
		}
		if isValidHandle(e.TargetHandle) {
			normalized.TargetHandle = e.TargetHandle
		}
		out[i] = normalized
	}
	return out
}

func isValidHandle(handle string) bool {
	return handle != "" && handle != "null"
}
