// Package blob stores media files and maps between bucket-relative
// storage paths and public URLs.
package blob

import (
	"context"
	"errors"
	"strings"
)

// ErrObjectNotFound is returned when the requested object does not exist
var ErrObjectNotFound = errors.New("object not found")

// publicPrefix is the path segment that marks a public object URL. The
// storage path is everything after "<prefix><bucket>/".
const publicPrefix = "/storage/v1/object/public/"

// Store persists media blobs under bucket-relative paths
type Store interface {
	// Upload writes data under path and returns the public URL
	Upload(ctx context.Context, path, contentType string, data []byte) (string, error)

	// Download reads the object at path
	Download(ctx context.Context, path string) ([]byte, error)

	// Remove deletes the object at path
	Remove(ctx context.Context, path string) error

	// URLFromPath returns the public URL for a storage path, or the input
	// unchanged when it is already a full URL
	URLFromPath(path string) string

	// PathFromURL returns the storage path for a public URL, or the input
	// unchanged when it is not a recognized storage URL
	PathFromURL(url string) string
}

// urlMapping implements the path/URL conversion shared by every backend
type urlMapping struct {
	baseURL string
	bucket  string
}

func (m urlMapping) URLFromPath(path string) string {
	if path == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") || strings.HasPrefix(path, "data:") {
		return path
	}
	return m.baseURL + publicPrefix + m.bucket + "/" + strings.TrimPrefix(path, "/")
}

func (m urlMapping) PathFromURL(url string) string {
	marker := publicPrefix + m.bucket + "/"
	idx := strings.Index(url, marker)
	if idx < 0 {
		return url
	}
	path := url[idx+len(marker):]
	// Query strings are not part of the object key
	if q := strings.IndexByte(path, '?'); q >= 0 {
		path = path[:q]
	}
	if path == "" {
		return url
	}
	return path
}
