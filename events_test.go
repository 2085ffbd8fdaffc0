package p2p

import (
	"testing"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGameEvent_Constructors(t *testing.T) {
	host := AdminEvent[string](HostCommand("AB3-K9Q"))
	require.True(t, host.IsAdmin)
	assert.Equal(t, AdminHost, host.Admin.Kind)
	assert.Equal(t, "AB3-K9Q", host.Admin.RoomCode)

	quit := AdminEvent[string](QuitCommand())
	require.True(t, quit.IsAdmin)
	assert.Equal(t, AdminQuit, quit.Admin.Kind)
	assert.Empty(t, quit.Admin.RoomCode)

	game := GameCommand("jump")
	assert.False(t, game.IsAdmin)
	assert.Equal(t, "jump", game.Game)
}

func TestNetworkEvent_Notices(t *testing.T) {
	id := peer.ID("some-peer")
	maddr, err := multiaddr.NewMultiaddr("/ip4/127.0.0.1/tcp/4001")
	require.NoError(t, err)

	connected := adminNotice[string](connectedNotice(id))
	require.True(t, connected.IsAdmin)
	assert.Equal(t, NoticeConnected, connected.Admin.Kind)
	assert.Equal(t, id, connected.Admin.Peer)

	disconnected := adminNotice[string](disconnectedNotice(id))
	assert.Equal(t, NoticeDisconnected, disconnected.Admin.Kind)

	addr := adminNotice[string](newAddressNotice(maddr))
	assert.Equal(t, NoticeNewNetworkAddress, addr.Admin.Kind)
	assert.Equal(t, maddr, addr.Admin.Address)

	game := gameNotice[string]("inbound")
	assert.False(t, game.IsAdmin)
	assert.Equal(t, "inbound", game.Game)
}
