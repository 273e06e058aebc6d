package orderdb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderState(t *testing.T) {
	disk, err := New(t.TempDir())
	require.NoError(t, err)

	for name, db := range map[string]Iface{"disk": disk, "memory": NewNoDisk()} {
		db := db
		t.Run(name, func(t *testing.T) {
			first := NewEntry()
			first.OrderID = "1001"
			first.MarketSymbol = "btcbrl"
			first.State = StatePlaced
			first.PlacedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

			second := NewEntry()
			second.OrderID = "1002"
			second.State = StatePlaced
			second.PlacedAt = first.PlacedAt.Add(time.Minute)

			require.NoError(t, db.Upsert(second))
			require.NoError(t, db.Upsert(first))

			got, has, err := db.Get(first.ID)
			require.NoError(t, err)
			require.True(t, has)
			assert.Equal(t, "1001", got.OrderID)
			assert.Equal(t, "btcbrl", got.MarketSymbol)

			cancelledAt := second.PlacedAt.Add(time.Second)
			second.State = StateCancelled
			second.CancelledAt = &cancelledAt
			require.NoError(t, db.Upsert(second))

			entries, err := db.List()
			require.NoError(t, err)
			require.Len(t, entries, 2)
			assert.Equal(t, first.ID, entries[0].ID)
			assert.Equal(t, StateCancelled, entries[1].State)
			require.NotNil(t, entries[1].CancelledAt)
			assert.True(t, cancelledAt.Equal(*entries[1].CancelledAt))

			require.NoError(t, db.Delete(first.ID))
			_, has, err = db.Get(first.ID)
			require.NoError(t, err)
			assert.False(t, has)

			assert.Error(t, db.Upsert(Entry{}))
		})
	}
}

func TestNew_ReopensJournal(t *testing.T) {
	dir := t.TempDir()

	db, err := New(dir)
	require.NoError(t, err)
	entry := NewEntry()
	entry.OrderID = "77"
	require.NoError(t, db.Upsert(entry))

	reopened, err := New(dir)
	require.NoError(t, err)
	got, has, err := reopened.Get(entry.ID)
	require.NoError(t, err)
	require.True(t, has)
	assert.Equal(t, "77", got.OrderID)
}

func TestOrderState_CorruptEntry(t *testing.T) {
	db, err := New(t.TempDir())
	require.NoError(t, err)

	entry := NewEntry()
	require.NoError(t, db.d.Write(entry.ID, []byte(`{"id":`)))

	_, has, err := db.Get(entry.ID)
	assert.Error(t, err)
	assert.False(t, has)

	_, has, err = db.Get("missing")
	assert.NoError(t, err)
	assert.False(t, has)

	_, err = db.List()
	assert.Error(t, err)
}
