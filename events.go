package p2p

import (
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
)

// AdminKind discriminates the administrative command variants carried by
// GameEvent.
type AdminKind int

const (
	// AdminHost starts hosting a room: listen on the configured addresses,
	// dial the bootstrap relays and advertise the room's provider record.
	AdminHost AdminKind = iota
	// AdminQuit terminates the engine loop.
	AdminQuit
)

// AdminCommand is an administrative instruction for the engine, such as
// hosting a room or shutting the engine down.
type AdminCommand struct {
	Kind     AdminKind
	RoomCode string // Set for AdminHost
}

// HostCommand builds the command that starts hosting the given room.
func HostCommand(roomCode string) AdminCommand {
	return AdminCommand{Kind: AdminHost, RoomCode: roomCode}
}

// QuitCommand builds the command that stops the engine loop.
func QuitCommand() AdminCommand {
	return AdminCommand{Kind: AdminQuit}
}

// GameEvent is a command flowing from the application into the engine. It is
// a tagged union: exactly one of Admin or Game is meaningful, selected by
// IsAdmin.
type GameEvent[FromGame any] struct {
	IsAdmin bool
	Admin   AdminCommand
	Game    FromGame
}

// AdminEvent wraps an administrative command in a GameEvent.
func AdminEvent[FromGame any](cmd AdminCommand) GameEvent[FromGame] {
	return GameEvent[FromGame]{IsAdmin: true, Admin: cmd}
}

// GameCommand wraps an application payload in a GameEvent.
func GameCommand[FromGame any](payload FromGame) GameEvent[FromGame] {
	return GameEvent[FromGame]{Game: payload}
}

// NoticeKind discriminates the administrative notifications carried by
// NetworkEvent.
type NoticeKind int

const (
	// NoticeConnected reports a peer that completed the identify handshake
	// and speaks AppProtocolID.
	NoticeConnected NoticeKind = iota
	// NoticeDisconnected reports that the last connection to a peer closed.
	NoticeDisconnected
	// NoticeNewNetworkAddress reports a newly bound local listen address.
	NoticeNewNetworkAddress
)

// AdminNotice is an administrative notification from the engine: peers
// appearing and disappearing, and new reachable addresses.
type AdminNotice struct {
	Kind    NoticeKind
	Peer    peer.ID             // Set for NoticeConnected and NoticeDisconnected
	Address multiaddr.Multiaddr // Set for NoticeNewNetworkAddress
}

// NetworkEvent is a notification flowing from the engine to the application.
// It is a tagged union: exactly one of Admin or Game is meaningful, selected
// by IsAdmin.
type NetworkEvent[ToGame any] struct {
	IsAdmin bool
	Admin   AdminNotice
	Game    ToGame
}

func adminNotice[ToGame any](notice AdminNotice) NetworkEvent[ToGame] {
	return NetworkEvent[ToGame]{IsAdmin: true, Admin: notice}
}

func gameNotice[ToGame any](payload ToGame) NetworkEvent[ToGame] {
	return NetworkEvent[ToGame]{Game: payload}
}

// connectedNotice reports a fully identified peer.
func connectedNotice(id peer.ID) AdminNotice {
	return AdminNotice{Kind: NoticeConnected, Peer: id}
}

// disconnectedNotice reports a peer whose connections all closed.
func disconnectedNotice(id peer.ID) AdminNotice {
	return AdminNotice{Kind: NoticeDisconnected, Peer: id}
}

// newAddressNotice reports a freshly bound listen address.
func newAddressNotice(addr multiaddr.Multiaddr) AdminNotice {
	return AdminNotice{Kind: NoticeNewNetworkAddress, Address: addr}
}
