// Package mocks provides mock implementations of the network bridge for
// application-side testing.
package mocks

import (
	"context"

	p2p "github.com/favilo/bevy-libp2p-test"
	"github.com/stretchr/testify/mock"
)

// MockNetworkBridge is a testify mock of the command/event bridge the game
// loop talks to. Game code written against this surface can be tested
// without bringing up any real networking.
type MockNetworkBridge[FromGame, ToGame any] struct {
	mock.Mock
}

// SendToNetwork mocks enqueuing a command for the engine.
func (m *MockNetworkBridge[FromGame, ToGame]) SendToNetwork(ctx context.Context, event p2p.GameEvent[FromGame]) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// PollEvents mocks draining accumulated network events.
func (m *MockNetworkBridge[FromGame, ToGame]) PollEvents() []p2p.NetworkEvent[ToGame] {
	args := m.Called()
	if events := args.Get(0); events != nil {
		return events.([]p2p.NetworkEvent[ToGame])
	}
	return nil
}

// KeyRing mocks access to the encryption key ring.
func (m *MockNetworkBridge[FromGame, ToGame]) KeyRing() *p2p.KeyRing {
	args := m.Called()
	if ring := args.Get(0); ring != nil {
		return ring.(*p2p.KeyRing)
	}
	return nil
}

// Done mocks the engine-exited channel.
func (m *MockNetworkBridge[FromGame, ToGame]) Done() <-chan struct{} {
	args := m.Called()
	if ch := args.Get(0); ch != nil {
		return ch.(chan struct{})
	}
	return nil
}
