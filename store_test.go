package forge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreSetGetAndSlice(t *testing.T) {
	w := NewWorld()
	store := newStore(MetaOf[Position](w), 4)

	StoreSet(store, 0, Position{X: 1})
	StoreSet(store, 2, Position{X: 3})
	StoreSetAll(store, 1, []Position{{X: 2}, {X: 9}})

	assert.Equal(t, 1.0, StoreGet[Position](store, 0).X)
	assert.Equal(t, 2.0, StoreGet[Position](store, 1).X)
	assert.Equal(t, 9.0, StoreGet[Position](store, 2).X, "SetAll overwrites")
	assert.Len(t, StoreSlice[Position](store, 0, 4), 4)
}

func TestStoreResizeCarriesValues(t *testing.T) {
	w := NewWorld()
	store := newStore(MetaOf[Health](w), 2)
	StoreSet(store, 0, Health{Current: 10, Max: 10})
	StoreSet(store, 1, Health{Current: 5, Max: 10})

	store.Resize(2, 8)

	assert.Equal(t, Health{Current: 10, Max: 10}, *StoreGet[Health](store, 0))
	assert.Equal(t, Health{Current: 5, Max: 10}, *StoreGet[Health](store, 1))
	assert.Len(t, StoreSlice[Health](store, 0, 8), 8)
}

func TestStoreSquashMovesRow(t *testing.T) {
	w := NewWorld()
	store := newStore(MetaOf[Health](w), 4)
	StoreSet(store, 0, Health{Current: 1})
	StoreSet(store, 3, Health{Current: 4})

	store.Squash(3, 0, 1)

	assert.Equal(t, 4, StoreGet[Health](store, 0).Current)
}

func TestStoreDropZeroesRows(t *testing.T) {
	w := NewWorld()
	store := newStore(MetaOf[Health](w), 2)
	StoreSet(store, 0, Health{Current: 3})

	store.Drop(0, 1)

	assert.Equal(t, Health{}, *StoreGet[Health](store, 0))
}

func TestStoreCloneAndFill(t *testing.T) {
	w := NewWorld()
	store := newStore(MetaOf[Counter](w), 4)
	StoreSet(store, 0, Counter{Value: 7})

	target := newStore(MetaOf[Counter](w), 4)
	require.NoError(t, store.CloneTo(0, target, 0, 1))
	assert.Equal(t, 7, StoreGet[Counter](target, 0).Value)
	assert.True(t, StoreGet[Counter](target, 0).Cloned, "cloner runs the type's Clone")

	require.NoError(t, target.FillFrom(store, 0, 1, 3))
	for row := 1; row < 4; row++ {
		assert.Equal(t, 7, StoreGet[Counter](target, row).Value)
		assert.True(t, StoreGet[Counter](target, row).Cloned)
	}
}

func TestStoreMissingClone(t *testing.T) {
	w := NewWorld()
	meta := MetaOf[Handle](w, NoClone())
	require.False(t, meta.CanClone())

	store := newStore(meta, 2)
	StoreSet(store, 0, Handle{ID: 1})

	err := store.CloneTo(0, store, 1, 1)
	assert.ErrorAs(t, err, &MissingCloneError{})

	_, err = store.Chunk(0, 1)
	assert.ErrorAs(t, err, &MissingCloneError{})
}

func TestStoreChunkSnapshotsRows(t *testing.T) {
	w := NewWorld()
	store := newStore(MetaOf[Position](w), 4)
	StoreSet(store, 1, Position{X: 5, Y: 6})

	chunk, err := store.Chunk(1, 1)
	require.NoError(t, err)

	StoreSet(store, 1, Position{X: 0, Y: 0})
	assert.Equal(t, Position{X: 5, Y: 6}, *StoreGet[Position](chunk, 0), "snapshot survives source mutation")
}
