package p2p

import (
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
)

// peerTracker records which peers have completed the identify handshake for
// our protocol, and when they connected. It gates Connected notices so the
// application sees each peer appear exactly once, however many raw
// connections identify triggers.
type peerTracker struct {
	mu        sync.RWMutex
	connTimes map[peer.ID]time.Time
}

func newPeerTracker() *peerTracker {
	return &peerTracker{connTimes: make(map[peer.ID]time.Time)}
}

// markIdentified records a peer that passed identify gating. Returns true if
// the peer was not already tracked, i.e. a Connected notice should be sent.
func (pt *peerTracker) markIdentified(id peer.ID) bool {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	if _, ok := pt.connTimes[id]; ok {
		return false
	}

	pt.connTimes[id] = time.Now()

	return true
}

// markDisconnected forgets a peer. Returns true if the peer was tracked,
// i.e. a Disconnected notice should be sent.
func (pt *peerTracker) markDisconnected(id peer.ID) bool {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	if _, ok := pt.connTimes[id]; !ok {
		return false
	}

	delete(pt.connTimes, id)

	return true
}

// connectedSince returns the connection time for a tracked peer.
func (pt *peerTracker) connectedSince(id peer.ID) (time.Time, bool) {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	t, ok := pt.connTimes[id]

	return t, ok
}

// peers returns the identified peers in no particular order.
func (pt *peerTracker) peers() []peer.ID {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	ids := make([]peer.ID, 0, len(pt.connTimes))
	for id := range pt.connTimes {
		ids = append(ids, id)
	}

	return ids
}
