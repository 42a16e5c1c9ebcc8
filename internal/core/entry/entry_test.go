package entry

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type player struct{ name string }

func TestResolve(t *testing.T) {
	world := NewMemoryWorld("overworld")
	id := uuid.New()
	e := world.Put(id, &player{name: "steve"})

	require.Equal(t, id, e.UniqueID())
	require.Equal(t, "overworld", e.World().Name())
	require.True(t, e.Present())

	p, ok := Resolve[*player](e)
	require.True(t, ok)
	require.Equal(t, "steve", p.name)

	_, ok = Resolve[string](e)
	require.False(t, ok, "wrong type must not resolve")
}

func TestResolveIsNeverCached(t *testing.T) {
	world := NewMemoryWorld("overworld")
	id := uuid.New()
	e := world.Put(id, &player{name: "alex"})

	world.Remove(id)
	_, ok := Resolve[*player](e)
	require.False(t, ok)
	require.False(t, e.Present())
	require.Equal(t, id, e.UniqueID(), "id is stable after the entity leaves")

	world.Put(id, &player{name: "alex-respawned"})
	p, ok := Resolve[*player](e)
	require.True(t, ok)
	require.Equal(t, "alex-respawned", p.name)
}

func TestZeroEntry(t *testing.T) {
	var e Entry
	require.False(t, e.Present())
	_, ok := Resolve[*player](e)
	require.False(t, ok)
}
