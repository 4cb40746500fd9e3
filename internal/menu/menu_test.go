package menu

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"tableside/internal/docstore"
	"tableside/internal/money"
)

func testCatalog() *Catalog {
	return NewCatalog(nil, 0, nil)
}

func TestUpsertAndPrice(t *testing.T) {
	ctx := context.Background()
	c := testCatalog()

	require.NoError(t, c.Upsert(ctx, Item{Code: "SODA", Name: "Soda", Price: money.MustFromString("1.99")}))

	price, err := c.Price(ctx, "SODA")
	require.NoError(t, err)
	require.Equal(t, "1.99", price.String())

	_, err = c.Price(ctx, "NOPE")
	require.Error(t, err)
}

func TestUpsertRejectsBadItems(t *testing.T) {
	ctx := context.Background()
	c := testCatalog()

	require.Error(t, c.Upsert(ctx, Item{Name: "no code"}))
	require.Error(t, c.Upsert(ctx, Item{Code: "BAD", Price: money.MustFromString("-1")}))
}

func TestRemoveUnknownIsNoop(t *testing.T) {
	c := testCatalog()
	c.Remove(context.Background(), "GHOST")
	require.Empty(t, c.Items())
}

func TestItemsSortedByCode(t *testing.T) {
	ctx := context.Background()
	c := testCatalog()
	require.NoError(t, c.Upsert(ctx, Item{Code: "TEA", Price: money.MustFromString("1.50")}))
	require.NoError(t, c.Upsert(ctx, Item{Code: "COFFEE", Price: money.MustFromString("2.00")}))

	items := c.Items()
	require.Len(t, items, 2)
	require.Equal(t, "COFFEE", items[0].Code)
	require.Equal(t, "TEA", items[1].Code)
}

func TestLoadAndSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()

	seed := []Item{{Code: "SODA", Name: "Soda", Price: money.MustFromString("1.99")}}
	data, err := json.Marshal(seed)
	require.NoError(t, err)
	_, err = store.Put(ctx, Collection, DocID, data)
	require.NoError(t, err)

	c := testCatalog()
	require.NoError(t, c.Load(ctx, store))
	require.Equal(t, int64(1), c.Version())

	snap, version, err := c.Snapshot()
	require.NoError(t, err)
	require.Equal(t, int64(1), version)
	require.JSONEq(t, string(data), string(snap))
}

func TestLoadMissingDocumentLeavesCatalogEmpty(t *testing.T) {
	c := testCatalog()
	require.NoError(t, c.Load(context.Background(), docstore.NewMemory()))
	require.Empty(t, c.Items())
}

func TestApplyRemoteVersionGuard(t *testing.T) {
	ctx := context.Background()
	c := testCatalog()
	c.SetVersion(4)

	data, err := json.Marshal([]Item{{Code: "TEA", Price: money.MustFromString("1.50")}})
	require.NoError(t, err)

	require.False(t, c.ApplyRemote(ctx, data, 4))
	require.Empty(t, c.Items())

	require.True(t, c.ApplyRemote(ctx, data, 5))
	require.Len(t, c.Items(), 1)
	require.Equal(t, int64(5), c.Version())
}
