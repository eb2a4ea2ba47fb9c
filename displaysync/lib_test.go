package displaysync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timlee789/pos-sub000/cart"
)

func TestSyncStateRoundTrip(t *testing.T) {
	msg, err := NewSyncState(StateSnapshot{
		Mode:    ModeTipping,
		Cart:    []cart.Line{{ID: "l1", Name: "Cheeseburger", TotalPrice: 8, Quantity: 1}},
		Total:   8.8168,
		TipBase: 8.56,
	})
	require.NoError(t, err)

	raw, err := msg.Marshal()
	require.NoError(t, err)

	parsed, err := MessageFromBytes(raw)
	require.NoError(t, err)
	require.Equal(t, TypeSyncState, parsed.Type)

	snap, err := parsed.SyncState()
	require.NoError(t, err)
	assert.Equal(t, ModeTipping, snap.Mode)
	assert.InDelta(t, 8.56, snap.TipBase, 1e-9)
	require.Len(t, snap.Cart, 1)
}

func TestTipBaseOmittedOutsideTipping(t *testing.T) {
	msg, err := NewSyncState(StateSnapshot{Mode: ModeCart, Total: 8.56})
	require.NoError(t, err)
	raw, err := msg.Marshal()
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "tipBase")
}

func TestMessageFromBytesRejectsGarbage(t *testing.T) {
	_, err := MessageFromBytes([]byte("not json"))
	assert.Error(t, err)
}
