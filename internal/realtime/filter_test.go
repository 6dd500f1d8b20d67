package realtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jmehdipour/pos-sync/internal/model"
)

func TestFilterDiscardsOwnWrites(t *testing.T) {
	f := NewFilter("local")

	// own write echoing back is discarded even when the payload differs
	// from whatever local state holds
	n := model.ChangeNotification{
		EntityType: model.EntityProduct,
		EntityID:   "p-1",
		Operation:  "update",
		Origin:     "local",
		Payload:    []byte(`{"price":999}`),
	}
	assert.False(t, f.ShouldApply(n))
}

func TestFilterAppliesRemoteWrites(t *testing.T) {
	f := NewFilter("local")

	for _, origin := range []string{"remote", "cloud", "terminal-2", ""} {
		n := model.ChangeNotification{Origin: origin}
		assert.True(t, f.ShouldApply(n), "origin %q should be applied", origin)
	}
}

func TestFilterDefaultOrigin(t *testing.T) {
	f := NewFilter("")
	assert.Equal(t, model.OriginLocal, f.Origin())
}

func TestDispatchSuppressesOwnWrite(t *testing.T) {
	applied := 0
	l := NewListener("ws://unused", NewFilter("local"),
		func(ctx context.Context, n model.ChangeNotification) error {
			applied++
			return nil
		}, 0)

	l.Dispatch(context.Background(), model.ChangeNotification{Origin: "local"})
	assert.Zero(t, applied)

	l.Dispatch(context.Background(), model.ChangeNotification{Origin: "cloud"})
	assert.Equal(t, 1, applied)
}

func TestDispatchNilHandler(t *testing.T) {
	l := NewListener("ws://unused", NewFilter("local"), nil, 0)

	// must not panic
	l.Dispatch(context.Background(), model.ChangeNotification{Origin: "cloud"})
}
