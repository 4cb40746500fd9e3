package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tableside/internal/money"
)

func TestRegistryWithTable(t *testing.T) {
	r := NewRegistry(3)

	err := r.WithTable(2, func(tbl *Table) error {
		tbl.IncreaseGuest(Adult)
		return nil
	})
	require.NoError(t, err)

	snap := r.Snapshot()
	assert.Equal(t, 1, snap[2].AdultCount)

	err = r.WithTable(99, func(*Table) error { return nil })
	assert.Error(t, err, "unknown table number is a validation error")
}

func TestApplyRemoteVersionGuard(t *testing.T) {
	r := NewRegistry(2)
	r.SetVersion(1, 5)

	stale := New(1)
	stale.AdultCount = 7
	stale.Version = 4
	assert.False(t, r.ApplyRemote(stale), "stale snapshot must not overwrite newer local state")

	fresh := New(1)
	fresh.AdultCount = 3
	fresh.Version = 6
	assert.True(t, r.ApplyRemote(fresh))

	snap := r.Snapshot()
	assert.Equal(t, 3, snap[1].AdultCount)
	assert.Equal(t, int64(6), snap[1].Version)
}

func TestApplyRemoteSortsDrinks(t *testing.T) {
	r := NewRegistry(2)

	incoming := New(1)
	incoming.Drinks = []string{"WATER", "SODA", "TEA"}
	incoming.Version = 1
	require.True(t, r.ApplyRemote(incoming))

	// Removal binary-searches the list, so an unsorted install would make
	// present codes look absent.
	require.NoError(t, r.WithTable(1, func(tbl *Table) error {
		assert.True(t, tbl.RemoveDrink("WATER"))
		tbl.AddDrink("COLA")
		assert.Equal(t, []string{"COLA", "SODA", "TEA"}, tbl.Drinks)
		return nil
	}))
}

func TestFloorRoundTrip(t *testing.T) {
	tables := map[int]*Table{
		1: New(1),
		2: New(2),
	}
	tables[1].IncreaseGuest(Adult)
	tables[1].AddDrink("SODA")
	tables[1].SetName("window booth")
	tables[2].TotalPrice = money.MustFromString("27.79")

	data, err := MarshalFloor(tables)
	require.NoError(t, err)

	back, err := UnmarshalFloor(data)
	require.NoError(t, err)
	require.Len(t, back, 2)
	assert.Equal(t, 1, back[1].AdultCount)
	assert.Equal(t, []string{"SODA"}, back[1].Drinks)
	assert.Equal(t, "window booth", back[1].Name)
	assert.Equal(t, 0, back[2].TotalPrice.Cmp(money.MustFromString("27.79")))
}

func TestUnmarshalFloorLegacyArray(t *testing.T) {
	legacy := `[{"adultCount":2,"occupied":true},{"number":5,"bigKidCount":1}]`
	tables, err := UnmarshalFloor([]byte(legacy))
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, 2, tables[1].AdultCount, "positional entry gets 1-based number")
	assert.Equal(t, 1, tables[5].BigKidCount, "explicit number wins")
}

func TestUnmarshalFloorSortsDrinks(t *testing.T) {
	legacy := `[{"number":1,"drinks":["WATER","SODA","TEA"]}]`
	tables, err := UnmarshalFloor([]byte(legacy))
	require.NoError(t, err)
	assert.Equal(t, []string{"SODA", "TEA", "WATER"}, tables[1].Drinks)

	keyed := `{"2":{"number":2,"drinks":["ZB","AA"]}}`
	tables, err = UnmarshalFloor([]byte(keyed))
	require.NoError(t, err)
	assert.Equal(t, []string{"AA", "ZB"}, tables[2].Drinks)
}

func TestUnmarshalFloorGarbage(t *testing.T) {
	_, err := UnmarshalFloor([]byte(`"nope"`))
	assert.Error(t, err)
}
