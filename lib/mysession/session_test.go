package mysession

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/deviceclinic/bookingbackend/lib/mystore"
)

func TestSessionStore(t *testing.T) {
	c := context.TODO()

	slots, cleanup, err := mystore.NewInMemoryStore[Slot](c)
	assert.NoError(t, err)
	defer cleanup()

	session := NewWithStore(slots)

	t.Run("Unknown key", func(t *testing.T) {
		_, exists, err := session.Get(c, "session-1", "bkp")
		assert.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("Set and get", func(t *testing.T) {
		err := session.Set(c, "session-1", "bkp", "opaque-payload")
		assert.NoError(t, err)

		got, exists, err := session.Get(c, "session-1", "bkp")
		assert.NoError(t, err)
		assert.True(t, exists)
		assert.Equal(t, "opaque-payload", got)
	})

	t.Run("Slots are scoped per session", func(t *testing.T) {
		_, exists, err := session.Get(c, "session-2", "bkp")
		assert.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("Remove", func(t *testing.T) {
		err := session.Remove(c, "session-1", "bkp")
		assert.NoError(t, err)

		_, exists, err := session.Get(c, "session-1", "bkp")
		assert.NoError(t, err)
		assert.False(t, exists)
	})
}
