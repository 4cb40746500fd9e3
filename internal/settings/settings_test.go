package settings

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tableside/internal/docstore"
	"tableside/internal/money"
)

func TestDefaultsAreValid(t *testing.T) {
	require.NoError(t, Validate(Default()))
}

func TestUpdateRejectsZeroTax(t *testing.T) {
	svc := NewService(nil)
	bad := Default()
	bad.Pricing.TaxMultiplier = money.Zero()

	err := svc.Update(bad)
	require.Error(t, err)
	// The validator detail passes through as a format argument; any stray
	// verbs inside it must survive verbatim.
	assert.Contains(t, err.Error(), "settings rejected: ")
	assert.Contains(t, err.Error(), "TaxMultiplier")
	require.Equal(t, Default().Pricing.TaxMultiplier, svc.PricingConfig().TaxMultiplier)
}

func TestUpdateRejectsGratuityOverHundred(t *testing.T) {
	svc := NewService(nil)
	bad := Default()
	bad.GratuityPercents = []int64{10, 150}

	require.Error(t, svc.Update(bad))
}

func TestSetDinnerMode(t *testing.T) {
	svc := NewService(nil)
	require.False(t, svc.DinnerMode())
	svc.SetDinnerMode(true)
	require.True(t, svc.DinnerMode())
}

func TestApplyRemoteStaleVersionDropped(t *testing.T) {
	svc := NewService(nil)
	svc.SetVersion(5)

	next := Default()
	next.DinnerMode = true
	data, err := json.Marshal(next)
	require.NoError(t, err)

	require.False(t, svc.ApplyRemote(data, 3))
	require.False(t, svc.DinnerMode())

	require.True(t, svc.ApplyRemote(data, 6))
	require.True(t, svc.DinnerMode())
	require.Equal(t, int64(6), svc.Version())
}

func TestApplyRemoteInvalidDocumentDropped(t *testing.T) {
	svc := NewService(nil)
	bad := Default()
	bad.GratuityPercents = nil
	data, err := json.Marshal(bad)
	require.NoError(t, err)

	require.False(t, svc.ApplyRemote(data, 1))
}

func TestLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()

	saved := Default()
	saved.DinnerMode = true
	saved.GratuityPercents = []int64{18}
	data, err := json.Marshal(saved)
	require.NoError(t, err)
	_, err = store.Put(ctx, Collection, DocID, data)
	require.NoError(t, err)

	svc := NewService(nil)
	require.NoError(t, svc.Load(ctx, store))
	require.True(t, svc.DinnerMode())
	require.Equal(t, []int64{18}, svc.Current().GratuityPercents)
	require.Equal(t, int64(1), svc.Version())
}

func TestLoadMissingDocumentKeepsDefaults(t *testing.T) {
	svc := NewService(nil)
	require.NoError(t, svc.Load(context.Background(), docstore.NewMemory()))
	require.Equal(t, Default().GratuityPercents, svc.Current().GratuityPercents)
}
