package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomstudio/loom/pkg/assets"
	"github.com/loomstudio/loom/pkg/auth"
	"github.com/loomstudio/loom/pkg/canvas"
	"github.com/loomstudio/loom/pkg/generation"
)

func newTestProvider(t *testing.T) *MemoryProvider {
	provider := NewMemoryProvider()
	require.NoError(t, provider.Initialize())
	t.Cleanup(func() { provider.Close() })
	return provider
}

func TestMemoryCanvasStoreCRUD(t *testing.T) {
	store := newTestProvider(t).GetCanvasStore()

	c := canvas.Canvas{
		ID:        "cv-1",
		AccountID: "acct-1",
		Name:      "Storyboard",
		Nodes:     []canvas.Node{{ID: "n1", Type: canvas.NodeTypeText}},
		Edges:     []canvas.Edge{},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, store.SaveCanvas(c))

	got, err := store.GetCanvas("acct-1", "cv-1")
	require.NoError(t, err)
	assert.Equal(t, "Storyboard", got.Name)

	// Other accounts cannot see the canvas
	_, err = store.GetCanvas("acct-2", "cv-1")
	assert.ErrorIs(t, err, ErrCanvasNotFound)

	name := "Renamed"
	fav := true
	updated, err := store.UpdateCanvas("acct-1", "cv-1", CanvasUpdate{Name: &name, IsFavorite: &fav})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.True(t, updated.IsFavorite)

	require.NoError(t, store.DeleteCanvas("acct-1", "cv-1"))
	_, err = store.GetCanvas("acct-1", "cv-1")
	assert.ErrorIs(t, err, ErrCanvasNotFound)
}

func TestMemoryCanvasStoreReplaceNodesWholesale(t *testing.T) {
	store := newTestProvider(t).GetCanvasStore()

	require.NoError(t, store.SaveCanvas(canvas.Canvas{
		ID:        "cv-1",
		AccountID: "acct-1",
		Name:      "Board",
		Nodes: []canvas.Node{
			{ID: "n1", Type: canvas.NodeTypeText},
			{ID: "n2", Type: canvas.NodeTypeImageGen},
		},
	}))

	replacement := []canvas.Node{{ID: "n3", Type: canvas.NodeTypeUpload}}
	updated, err := store.UpdateCanvas("acct-1", "cv-1", CanvasUpdate{Nodes: &replacement})
	require.NoError(t, err)
	require.Len(t, updated.Nodes, 1)
	assert.Equal(t, "n3", updated.Nodes[0].ID)
}

func TestMemoryWorkflowStoreVisibility(t *testing.T) {
	store := newTestProvider(t).GetWorkflowStore()

	require.NoError(t, store.SaveWorkflow(canvas.Workflow{ID: "wf-own", AccountID: "acct-1", Name: "mine"}))
	require.NoError(t, store.SaveWorkflow(canvas.Workflow{ID: "wf-pub", AccountID: "acct-2", Name: "shared", IsPublic: true}))
	require.NoError(t, store.SaveWorkflow(canvas.Workflow{ID: "wf-priv", AccountID: "acct-2", Name: "hidden"}))

	// Owner sees own plus public
	list, err := store.ListWorkflows("acct-1")
	require.NoError(t, err)
	ids := make([]string, 0, len(list))
	for _, w := range list {
		ids = append(ids, w.ID)
	}
	assert.ElementsMatch(t, []string{"wf-own", "wf-pub"}, ids)

	// Public workflows can be fetched by anyone
	_, err = store.GetWorkflow("acct-1", "wf-pub")
	assert.NoError(t, err)

	// Private workflows of other accounts cannot
	_, err = store.GetWorkflow("acct-1", "wf-priv")
	assert.ErrorIs(t, err, ErrWorkflowNotFound)

	// Only the owner may update, even when the workflow is public
	public := false
	_, err = store.UpdateWorkflow("acct-1", "wf-pub", WorkflowUpdate{IsPublic: &public})
	assert.ErrorIs(t, err, ErrWorkflowNotFound)
}

func TestMemoryAssetStoreListFiltering(t *testing.T) {
	store := newTestProvider(t).GetAssetStore()

	require.NoError(t, store.SaveAsset(assets.Asset{
		ID: "a-1", AccountID: "acct-1", Title: "Neon city", AssetType: assets.TypeImage,
		Category: assets.CategoryCharacter, Visibility: assets.VisibilityPrivate,
		Tags: []string{"city", "neon"}, CreatedAt: time.Now(),
	}))
	require.NoError(t, store.SaveAsset(assets.Asset{
		ID: "a-2", AccountID: "acct-2", Title: "Desert dunes", AssetType: assets.TypeImage,
		Category: assets.CategoryCharacter, Visibility: assets.VisibilityPublic,
		Tags: []string{"sand"}, CreatedAt: time.Now().Add(time.Second),
	}))
	require.NoError(t, store.SaveAsset(assets.Asset{
		ID: "a-3", AccountID: "acct-2", Title: "Secret", AssetType: assets.TypeVideo,
		Category: assets.CategoryMotion, Visibility: assets.VisibilityPrivate,
		CreatedAt: time.Now().Add(2 * time.Second),
	}))

	// Default scope is own plus public
	list, err := store.ListAssets("acct-1", AssetQuery{})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	// Private scope excludes other accounts' public assets
	list, err = store.ListAssets("acct-1", AssetQuery{Visibility: assets.VisibilityPrivate})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a-1", list[0].ID)

	// Search matches tags case-insensitively
	list, err = store.ListAssets("acct-1", AssetQuery{Search: "NEON"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a-1", list[0].ID)

	// Category filter
	list, err = store.ListAssets("acct-2", AssetQuery{Category: assets.CategoryMotion})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a-3", list[0].ID)
}

func TestMemoryGenerationStoreLifecycle(t *testing.T) {
	store := newTestProvider(t).GetGenerationStore()

	g := generation.Generation{
		ID:           "gen-1",
		AccountID:    "acct-1",
		PredictionID: "pred-1",
		Status:       generation.StatusPending,
		CreatedAt:    time.Now().Add(-10 * time.Minute),
		UpdatedAt:    time.Now().Add(-10 * time.Minute),
	}
	require.NoError(t, store.SaveGeneration(g))

	byPred, err := store.GetGenerationByPredictionID("acct-1", "pred-1")
	require.NoError(t, err)
	assert.Equal(t, "gen-1", byPred.ID)

	_, err = store.GetGenerationByPredictionID("acct-2", "pred-1")
	assert.ErrorIs(t, err, ErrGenerationNotFound)

	// The unscoped lookup resolves the owner from the prediction alone
	unscoped, err := store.LookupGenerationByPredictionID("pred-1")
	require.NoError(t, err)
	assert.Equal(t, "acct-1", unscoped.AccountID)

	_, err = store.LookupGenerationByPredictionID("pred-unknown")
	assert.ErrorIs(t, err, ErrGenerationNotFound)

	stale, err := store.ListStalePending(300)
	require.NoError(t, err)
	require.Len(t, stale, 1)

	require.NoError(t, store.UpdateGenerationStatus("gen-1", generation.StatusCompleted, "results/acct-1/out.png", ""))
	got, err := store.GetGeneration("acct-1", "gen-1")
	require.NoError(t, err)
	assert.Equal(t, generation.StatusCompleted, got.Status)
	assert.Equal(t, "results/acct-1/out.png", got.StoragePath)

	stale, err = store.ListStalePending(300)
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func TestMemoryAccountStoreAdjustCredits(t *testing.T) {
	store := newTestProvider(t).GetAccountStore()

	require.NoError(t, store.SaveAccount(auth.Account{
		ID: "acct-1", Username: "ada", APIToken: "tok-1", Credits: 10,
	}))

	balance, err := store.AdjustCredits("acct-1", -4)
	require.NoError(t, err)
	assert.Equal(t, 6, balance)

	balance, err = store.AdjustCredits("acct-1", 100)
	require.NoError(t, err)
	assert.Equal(t, 106, balance)

	// The balance never goes negative
	_, err = store.AdjustCredits("acct-1", -200)
	assert.ErrorIs(t, err, ErrInsufficientCredits)

	got, err := store.GetAccount("acct-1")
	require.NoError(t, err)
	assert.Equal(t, 106, got.Credits)

	_, err = store.AdjustCredits("missing", -1)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestMemoryCustomerStore(t *testing.T) {
	store := newTestProvider(t).GetCustomerStore()

	require.NoError(t, store.SaveCustomer(auth.Customer{
		AccountID: "acct-1", ProviderCustomerID: "cus_123", Email: "ada@example.com",
	}))

	c, err := store.GetCustomer("acct-1")
	require.NoError(t, err)
	assert.Equal(t, "cus_123", c.ProviderCustomerID)

	require.NoError(t, store.DeleteCustomer("acct-1"))
	_, err = store.GetCustomer("acct-1")
	assert.ErrorIs(t, err, ErrCustomerNotFound)
}
