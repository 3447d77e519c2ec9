package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStoreKinds(t *testing.T) {
	for kind, want := range map[string]any{
		"":       &MemoryStore{},
		"memory": &MemoryStore{},
		"sqlite": &SQLiteStore{},
		"badger": &BadgerStore{},
	} {
		store, err := NewStore(kind, t.TempDir(), nil)
		require.NoError(t, err, kind)
		assert.IsType(t, want, store, kind)
	}
	assert.Equal(t, "memory", DefaultStoreKind())
}

func TestNewStoreUnsupported(t *testing.T) {
	_, err := NewStore("unknown", "", nil)
	assert.Error(t, err)
}
