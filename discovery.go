package p2p

import (
	"context"
	"errors"
	"time"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"golang.org/x/sync/errgroup"
)

const defaultDiscoveryInterval = 5 * time.Second

// discoverRoomPeers periodically resolves the room's provider record and
// connects to every other provider, so that multiple hosts of the same room
// code converge into one mesh. Runs until the room context is cancelled
// (re-host or Quit).
func (e *engine[FromGame, ToGame]) discoverRoomPeers(ctx context.Context, roomKey string) {
	interval := e.config.DiscoveryInterval
	if interval <= 0 {
		interval = defaultDiscoveryInterval
	}

	// Simultaneous connect lets two NATed peers hole-punch through the relay.
	ctx = network.WithSimultaneousConnect(ctx, true, "room discovery")

	for {
		if err := e.findRoomPeers(ctx, roomKey); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}

			e.logger.Debugf("[Engine] room discovery pass failed: %v", err)
		}

		timer := time.NewTimer(interval)
		select {
		case <-timer.C:
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}

			return
		}
	}
}

// findRoomPeers runs one discovery pass: resolve the provider record and
// dial every useful result in parallel.
func (e *engine[FromGame, ToGame]) findRoomPeers(ctx context.Context, roomKey string) error {
	peerChan, err := e.session.discovery.FindPeers(ctx, roomKey)
	if err != nil {
		return err
	}

	eg := errgroup.Group{}

	for info := range peerChan {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if e.shouldSkipPeer(info) {
			continue
		}

		info := info

		eg.Go(func() error {
			if err := e.session.host.Connect(ctx, info); err != nil {
				e.logger.Debugf("[Engine] failed to connect to room peer %s: %v", info.ID.ShortString(), err)
				return nil // a single failed dial never aborts the pass
			}

			e.logger.Infof("[Engine] connected to room peer %s", info.ID.ShortString())

			return nil
		})
	}

	return eg.Wait()
}

// shouldSkipPeer filters discovery results that cannot yield a useful
// connection.
func (e *engine[FromGame, ToGame]) shouldSkipPeer(info peer.AddrInfo) bool {
	if info.ID == e.session.host.ID() {
		return true
	}

	if e.session.host.Network().Connectedness(info.ID) == network.Connected {
		return true
	}

	return len(info.Addrs) == 0
}
