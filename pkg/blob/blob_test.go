package blob

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURLMappingRoundTrip(t *testing.T) {
	m := urlMapping{baseURL: "https://cdn.example.com", bucket: "media"}

	url := m.URLFromPath("results/acct-1/out.png")
	assert.Equal(t, "https://cdn.example.com/storage/v1/object/public/media/results/acct-1/out.png", url)
	assert.Equal(t, "results/acct-1/out.png", m.PathFromURL(url))
}

func TestURLFromPathPassesThroughFullURLs(t *testing.T) {
	m := urlMapping{baseURL: "https://cdn.example.com", bucket: "media"}

	assert.Equal(t, "https://elsewhere.example.com/x.png", m.URLFromPath("https://elsewhere.example.com/x.png"))
	assert.Equal(t, "data:image/png;base64,AAAA", m.URLFromPath("data:image/png;base64,AAAA"))
	assert.Equal(t, "", m.URLFromPath(""))
}

func TestPathFromURLIgnoresForeignURLs(t *testing.T) {
	m := urlMapping{baseURL: "https://cdn.example.com", bucket: "media"}

	foreign := "https://elsewhere.example.com/x.png"
	assert.Equal(t, foreign, m.PathFromURL(foreign))

	// A different bucket on the same origin is not ours
	other := "https://cdn.example.com/storage/v1/object/public/other/x.png"
	assert.Equal(t, other, m.PathFromURL(other))
}

func TestPathFromURLStripsQueryString(t *testing.T) {
	m := urlMapping{baseURL: "https://cdn.example.com", bucket: "media"}

	url := "https://cdn.example.com/storage/v1/object/public/media/a/b.mp4?token=abc"
	assert.Equal(t, "a/b.mp4", m.PathFromURL(url))
}

func TestMemoryStoreUploadDownloadRemove(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore("https://cdn.example.com", "media")

	url, err := store.Upload(ctx, "uploads/acct-1/file.png", "image/png", []byte("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/storage/v1/object/public/media/uploads/acct-1/file.png", url)

	data, err := store.Download(ctx, "uploads/acct-1/file.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)

	require.NoError(t, store.Remove(ctx, "uploads/acct-1/file.png"))
	_, err = store.Download(ctx, "uploads/acct-1/file.png")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	assert.ErrorIs(t, store.Remove(ctx, "uploads/acct-1/file.png"), ErrObjectNotFound)
}
