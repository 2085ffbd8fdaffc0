package p2p

import (
	"testing"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeerTracker_ConnectOnce(t *testing.T) {
	pt := newPeerTracker()
	id := peer.ID("peer-1")

	assert.True(t, pt.markIdentified(id), "first identify triggers Connected")
	assert.False(t, pt.markIdentified(id), "repeat identify is silent")

	since, ok := pt.connectedSince(id)
	require.True(t, ok)
	assert.False(t, since.IsZero())

	assert.Equal(t, []peer.ID{id}, pt.peers())
}

func TestPeerTracker_Disconnect(t *testing.T) {
	pt := newPeerTracker()
	id := peer.ID("peer-1")

	assert.False(t, pt.markDisconnected(id), "unknown peer was never tracked")

	pt.markIdentified(id)
	assert.True(t, pt.markDisconnected(id))
	assert.False(t, pt.markDisconnected(id), "already forgotten")

	_, ok := pt.connectedSince(id)
	assert.False(t, ok)
	assert.Empty(t, pt.peers())

	// Reconnecting after a disconnect counts as a fresh Connected.
	assert.True(t, pt.markIdentified(id))
}
