package p2p

import (
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/assert"
)

func TestConnectionGater_BlockAndExpiry(t *testing.T) {
	logger := createTestLogger(t)
	gater := NewConnectionGater(logger, 0)
	id := peer.ID("blocked-peer")

	assert.True(t, gater.InterceptPeerDial(id), "unknown peer allowed")

	gater.BlockPeer(id, time.Hour)
	assert.False(t, gater.InterceptPeerDial(id))
	assert.False(t, gater.InterceptSecured(0, id, nil))

	other := peer.ID("other-peer")
	assert.True(t, gater.InterceptPeerDial(other), "block is per peer")

	gater.UnblockPeer(id)
	assert.True(t, gater.InterceptPeerDial(id))

	// An expired block lifts itself.
	gater.BlockPeer(id, -time.Second)
	assert.True(t, gater.InterceptPeerDial(id))
}

func TestConnectionGater_DefaultLimit(t *testing.T) {
	gater := NewConnectionGater(createTestLogger(t), 0)
	assert.Equal(t, defaultMaxConnsPerPeer, gater.maxConnsPerPeer)

	gater = NewConnectionGater(createTestLogger(t), 7)
	assert.Equal(t, 7, gater.maxConnsPerPeer)
}

func TestConnectionGater_AlwaysAllowed(t *testing.T) {
	gater := NewConnectionGater(createTestLogger(t), 1)

	assert.True(t, gater.InterceptAddrDial("any", nil))
	assert.True(t, gater.InterceptAccept(nil))

	// Without a network to count against, upgraded connections pass.
	allow, _ := gater.InterceptUpgraded(nil)
	assert.True(t, allow)
}
