package p2p

import "context"

// NetworkBridge abstracts the command/event surface the application sees.
// NetworkManager is the real implementation; game code should depend on this
// interface so it can be tested against the mock in mocks/.
type NetworkBridge[FromGame, ToGame any] interface {
	// SendToNetwork enqueues a command for the engine loop. Fails only once
	// the engine has stopped.
	SendToNetwork(ctx context.Context, event GameEvent[FromGame]) error

	// PollEvents drains accumulated notifications without blocking.
	PollEvents() []NetworkEvent[ToGame]

	// KeyRing exposes the message-encryption keys for administrative rotation.
	KeyRing() *KeyRing

	// Done is closed when the engine loop has exited.
	Done() <-chan struct{}
}

var _ NetworkBridge[struct{}, struct{}] = (*NetworkManager[struct{}, struct{}])(nil)
