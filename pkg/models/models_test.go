package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCatalog(t *testing.T) {
	data := []byte(`
models:
  - id: m-1
    identifier: google/nano-banana
    name: Nano Banana
    type: image
    provider: replicate
    credits_cost: 2
    is_active: true
  - id: m-2
    identifier: kling/v2
    name: Kling
    type: video
    credits_cost: 10
    is_active: false
`)

	catalog, err := ParseCatalog(data)
	require.NoError(t, err)
	require.Len(t, catalog, 2)
	assert.Equal(t, "google/nano-banana", catalog[0].Identifier)
	assert.Equal(t, TypeImage, catalog[0].Type)
	assert.True(t, catalog[0].IsActive)
	assert.Equal(t, 10, catalog[1].CreditsCost)
}

func TestParseCatalogRejectsMissingIdentifier(t *testing.T) {
	_, err := ParseCatalog([]byte("models:\n  - name: broken\n    type: image\n"))
	assert.Error(t, err)
}

func TestParseCatalogRejectsBadType(t *testing.T) {
	_, err := ParseCatalog([]byte("models:\n  - identifier: x/y\n    type: hologram\n"))
	assert.Error(t, err)
}
