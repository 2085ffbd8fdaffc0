package p2p

import (
	"context"
	"errors"

	"github.com/libp2p/go-libp2p/core/peer"
)

// ErrEngineStopped is returned by SendToNetwork once the engine loop has
// exited. It is the application-visible signal that Quit completed (or that
// the engine died).
var ErrEngineStopped = errors.New("p2p: engine stopped")

// NetworkManager is the application's only handle on the network engine: one
// unbounded queue of commands in, one unbounded queue of notifications out.
// The game loop sends GameEvents as they happen and drains NetworkEvents
// once per frame; neither side ever blocks the other.
type NetworkManager[FromGame, ToGame any] struct {
	commands *queue[GameEvent[FromGame]]
	events   *queue[NetworkEvent[ToGame]]
	keys     *KeyRing
	tracker  *peerTracker
	done     chan struct{}
}

// SendToNetwork enqueues a command for the engine loop. It fails only when
// the engine has stopped; commands are otherwise accepted unconditionally
// and processed in the order sent.
func (m *NetworkManager[FromGame, ToGame]) SendToNetwork(_ context.Context, event GameEvent[FromGame]) error {
	if !m.commands.push(event) {
		return ErrEngineStopped
	}

	return nil
}

// PollEvents drains every notification accumulated since the previous call.
// It never blocks, so it is safe to call from a frame loop. Events arrive in
// the order the engine loop observed them.
func (m *NetworkManager[FromGame, ToGame]) PollEvents() []NetworkEvent[ToGame] {
	return m.events.drain()
}

// KeyRing exposes the message-encryption key ring for administrative key
// rotation. Keys added here take effect on subsequent messages without
// breaking peers still sending under an older key.
func (m *NetworkManager[FromGame, ToGame]) KeyRing() *KeyRing {
	return m.keys
}

// ConnectedPeers returns the peers currently identified as speaking our
// protocol. A convenience snapshot for UI; the authoritative signal is still
// the Connected/Disconnected notices.
func (m *NetworkManager[FromGame, ToGame]) ConnectedPeers() []peer.ID {
	return m.tracker.peers()
}

// Done is closed when the engine loop has fully exited. Callers that want a
// clean shutdown should send QuitCommand and then wait on this channel;
// waiting is optional and nothing joins the loop implicitly.
func (m *NetworkManager[FromGame, ToGame]) Done() <-chan struct{} {
	return m.done
}
