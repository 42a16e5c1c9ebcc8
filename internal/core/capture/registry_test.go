package capture

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var (
	deltaKey   = NewKey("movement.delta", 0.0)
	airTicks   = NewKey("movement.air_ticks", 0)
	lastSample = NewKey("movement.sample", "")
)

func newRegistry() *Registry {
	return NewRegistry(GameReference{World: "overworld", Entity: uuid.New()}, deltaKey, airTicks)
}

func TestRegistry(t *testing.T) {
	t.Run("LastWriteWins", func(t *testing.T) {
		r := newRegistry()
		k := NewKey("k", 0)

		Set(r, k, 5)
		Set(r, k, 7)

		v, ok := Get(r, k)
		require.True(t, ok)
		require.Equal(t, 7, v)
		require.Contains(t, r.Keys(), k.ID())
	})

	t.Run("UnknownKeyIsAbsent", func(t *testing.T) {
		r := newRegistry()
		_, ok := r.Get(lastSample)
		require.False(t, ok)
		_, ok = Get(r, lastSample)
		require.False(t, ok)
		require.Equal(t, "", Lookup(r, lastSample))
	})

	t.Run("DefaultKeysReadBeforeWrite", func(t *testing.T) {
		r := newRegistry()
		v, ok := Get(r, airTicks)
		require.True(t, ok)
		require.Equal(t, 0, v)
		require.Equal(t, []KeyID{deltaKey.ID(), airTicks.ID()}, r.DefaultKeys())
	})

	t.Run("SetReturnsPrevious", func(t *testing.T) {
		r := newRegistry()
		require.Equal(t, 0, Set(r, airTicks, 3), "first write returns the default")
		require.Equal(t, 3, Set(r, airTicks, 4))

		prev := r.Set(lastSample, lastSample.Of("a"))
		require.Equal(t, "", prev.Data(), "non-default key returns the key default")
		require.Equal(t, lastSample.ID(), prev.Key())
	})

	t.Run("KeysSupersetOfDefaults", func(t *testing.T) {
		r := newRegistry()
		require.ElementsMatch(t, r.DefaultKeys(), r.Keys())

		Set(r, lastSample, "x")
		keys := r.Keys()
		for _, d := range r.DefaultKeys() {
			require.Contains(t, keys, d)
		}
		require.Contains(t, keys, lastSample.ID())
		require.Len(t, r.Values(), 3)
	})

	t.Run("MistypedPayload", func(t *testing.T) {
		r := newRegistry()
		other := NewKey(string(airTicks.ID()), "wrong")
		Set(r, other, "text")

		_, ok := Get(r, airTicks)
		require.False(t, ok)
		require.Equal(t, 0, Lookup(r, airTicks))
	})

	t.Run("ResetKeepsDefaults", func(t *testing.T) {
		r := newRegistry()
		Set(r, airTicks, 9)
		Set(r, lastSample, "x")
		require.Equal(t, 2, r.Len())

		r.Reset()
		require.Equal(t, 0, r.Len())
		require.Equal(t, 0, Lookup(r, airTicks))
		_, ok := r.Get(lastSample)
		require.False(t, ok)
		require.ElementsMatch(t, r.DefaultKeys(), r.Keys())
	})

	t.Run("Update", func(t *testing.T) {
		r := newRegistry()
		inc := func(v int) int { return v + 1 }
		Update(r, airTicks, inc)
		require.Equal(t, 2, Update(r, airTicks, inc))
		require.Equal(t, map[KeyID]any{deltaKey.ID(): 0.0, airTicks.ID(): 2}, r.Snapshot())
	})
}
