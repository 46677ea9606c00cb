package persistence

import (
	"testing"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveLoadRemove(t *testing.T) {
	s := openTestStore(t)

	conf := map[string]any{"title": "News", "start": float64(1000)}
	require.NoError(t, s.Save("abc", conf))

	got, err := s.Load("abc")
	require.NoError(t, err)
	assert.Equal(t, conf, got)

	require.NoError(t, s.Remove("abc"))
	_, err = s.Load("abc")
	assert.ErrorIs(t, err, badger.ErrKeyNotFound)

	// removing again is fine
	assert.NoError(t, s.Remove("abc"))
}

func TestEach(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Save("a", map[string]any{"title": "A"}))
	require.NoError(t, s.Save("b", map[string]any{"title": "B"}))

	seen := map[string]string{}
	require.NoError(t, s.Each(func(uuid string, conf map[string]any) {
		seen[uuid] = conf["title"].(string)
	}))
	assert.Equal(t, map[string]string{"a": "A", "b": "B"}, seen)
}
