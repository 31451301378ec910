package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStore_Scenario3_TieredOverride exercises spec.md §8 scenario 3.
func TestStore_Scenario3_TieredOverride(t *testing.T) {
	s := New(nil)
	ch, unsub := s.SubscribeChanges("")
	defer unsub()

	require.NoError(t, s.Set("feature.x", false, TierSystem))
	require.NoError(t, s.Set("feature.x", true, TierUser))

	v, ok := s.Get("feature.x")
	require.True(t, ok)
	assert.Equal(t, true, v)

	require.NoError(t, s.Delete("feature.x", TierUser))
	v, ok = s.Get("feature.x")
	require.True(t, ok)
	assert.Equal(t, false, v)

	var events []ChangeEvent
	for i := 0; i < 3; i++ {
		events = append(events, <-ch)
	}
	effective := 0
	for _, e := range events {
		if e.EffectiveChange {
			effective++
		}
	}
	assert.Equal(t, 3, effective, "system-set, user-set, user-delete are each effective")
}

func TestStore_RoundTrip(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.Set("k1", "v1", TierLocal))
	v, ok := s.Get("k1")
	require.True(t, ok)
	assert.Equal(t, "v1", v)
}

func TestStore_CommutativityOfIndependentWrites(t *testing.T) {
	s1 := New(nil)
	require.NoError(t, s1.Set("k1", "v1", TierLocal))
	require.NoError(t, s1.Set("k2", "v2", TierLocal))

	s2 := New(nil)
	require.NoError(t, s2.Set("k2", "v2", TierLocal))
	require.NoError(t, s2.Set("k1", "v1", TierLocal))

	assert.Equal(t, s1.Snapshot(), s2.Snapshot())
}

func TestStore_ShadowedWriteIsNotEffective(t *testing.T) {
	s := New(nil)
	ch, unsub := s.SubscribeChanges("")
	defer unsub()

	require.NoError(t, s.Set("k", "system", TierSystem))
	<-ch
	require.NoError(t, s.Set("k", "global", TierUser))
	<-ch

	// A lower-tier write while User still holds k must not move the
	// merged value.
	require.NoError(t, s.Set("k", "ignored", TierSystem))
	e := <-ch
	assert.False(t, e.EffectiveChange)

	v, _ := s.Get("k")
	assert.Equal(t, "global", v)
}

func TestStore_ValidatorRejectsWriteAtomically(t *testing.T) {
	s := New(nil)
	s.BindValidator("port", func(key string, value any, merged map[string]any) error {
		if n, ok := value.(int); ok && n < 0 {
			return assertErr{}
		}
		return nil
	})

	err := s.Set("port", -1, TierLocal)
	require.Error(t, err)
	_, ok := s.Get("port")
	assert.False(t, ok, "rejected write must not land")
}

func TestStore_PrefixValidator(t *testing.T) {
	s := New(nil)
	called := false
	s.BindValidator("plugins.acme.", func(key string, value any, merged map[string]any) error {
		called = true
		return nil
	})
	require.NoError(t, s.Set("plugins.acme.level", "debug", TierLocal))
	assert.True(t, called)
}

func TestStore_Namespace(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.Set("plugins.acme.level", "debug", TierLocal))
	require.NoError(t, s.Set("plugins.other.level", "info", TierLocal))

	ns := s.Namespace("plugins.acme.")
	assert.Equal(t, map[string]any{"level": "debug"}, ns)
}

func TestStore_Reload(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.Set("a", "1", TierLocal))
	ch, unsub := s.SubscribeChanges("")
	defer unsub()

	require.NoError(t, s.Reload(TierLocal, map[string]any{"a": "1", "b": "2"}))
	e := <-ch
	assert.Equal(t, "b", e.Key)
	assert.True(t, e.EffectiveChange)
}

type assertErr struct{}

func (assertErr) Error() string { return "validator rejected" }
