package p2p

import (
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/control"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
)

const defaultMaxConnsPerPeer = 3

// ConnectionGater protects a game host from connection abuse: temporarily
// blocked peers are refused outright and no peer may hold more than a fixed
// number of simultaneous connections. Installed on the session when
// Config.EnableConnGater is set.
type ConnectionGater struct {
	mu              sync.RWMutex
	blockedUntil    map[peer.ID]time.Time
	maxConnsPerPeer int
	net             network.Network
	logger          Logger
}

// NewConnectionGater creates a gater with the given per-peer connection
// limit; zero or negative means the default.
func NewConnectionGater(logger Logger, maxConnsPerPeer int) *ConnectionGater {
	if maxConnsPerPeer <= 0 {
		maxConnsPerPeer = defaultMaxConnsPerPeer
	}

	return &ConnectionGater{
		blockedUntil:    make(map[peer.ID]time.Time),
		maxConnsPerPeer: maxConnsPerPeer,
		logger:          logger,
	}
}

// BlockPeer refuses all connections to and from a peer for the given
// duration.
func (cg *ConnectionGater) BlockPeer(p peer.ID, d time.Duration) {
	cg.mu.Lock()
	defer cg.mu.Unlock()

	cg.blockedUntil[p] = time.Now().Add(d)
}

// UnblockPeer lifts a block early.
func (cg *ConnectionGater) UnblockPeer(p peer.ID) {
	cg.mu.Lock()
	defer cg.mu.Unlock()

	delete(cg.blockedUntil, p)
}

func (cg *ConnectionGater) isBlocked(p peer.ID) bool {
	cg.mu.RLock()
	until, ok := cg.blockedUntil[p]
	cg.mu.RUnlock()

	if !ok {
		return false
	}

	if time.Now().After(until) {
		cg.UnblockPeer(p)
		return false
	}

	return true
}

// InterceptPeerDial refuses outbound dials to blocked peers.
func (cg *ConnectionGater) InterceptPeerDial(p peer.ID) bool {
	if cg.isBlocked(p) {
		cg.logger.Debugf("[Gater] refusing dial to blocked peer %s", p.ShortString())
		return false
	}

	return true
}

// InterceptAddrDial allows all addresses for peers that passed
// InterceptPeerDial.
func (cg *ConnectionGater) InterceptAddrDial(peer.ID, multiaddr.Multiaddr) bool {
	return true
}

// InterceptAccept allows all inbound connections; peers are only known after
// the security handshake.
func (cg *ConnectionGater) InterceptAccept(network.ConnMultiaddrs) bool {
	return true
}

// InterceptSecured refuses authenticated connections from blocked peers.
func (cg *ConnectionGater) InterceptSecured(_ network.Direction, p peer.ID, _ network.ConnMultiaddrs) bool {
	if cg.isBlocked(p) {
		cg.logger.Debugf("[Gater] refusing secured connection from blocked peer %s", p.ShortString())
		return false
	}

	return true
}

// InterceptUpgraded enforces the per-peer connection limit once the
// connection is fully upgraded and countable.
func (cg *ConnectionGater) InterceptUpgraded(conn network.Conn) (bool, control.DisconnectReason) {
	cg.mu.RLock()
	net := cg.net
	cg.mu.RUnlock()

	if net == nil {
		return true, 0
	}

	p := conn.RemotePeer()
	if len(net.ConnsToPeer(p)) >= cg.maxConnsPerPeer {
		cg.logger.Debugf("[Gater] refusing connection %d+ from peer %s", cg.maxConnsPerPeer, p.ShortString())
		return false, 0
	}

	return true, 0
}

// SetNetwork hands the gater the live network so it can count existing
// connections. Called once the host exists; the gater allows everything
// until then.
func (cg *ConnectionGater) SetNetwork(net network.Network) {
	cg.mu.Lock()
	defer cg.mu.Unlock()

	cg.net = net
}
