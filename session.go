package p2p

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/libp2p/go-libp2p"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	dRouting "github.com/libp2p/go-libp2p/p2p/discovery/routing"
	"github.com/libp2p/go-libp2p/p2p/muxer/yamux"
	"github.com/libp2p/go-libp2p/p2p/security/noise"
	"github.com/libp2p/go-libp2p/p2p/transport/tcp"
	ws "github.com/libp2p/go-libp2p/p2p/transport/websocket"
	"github.com/multiformats/go-multiaddr"
)

// peerSession aggregates every protocol the engine drives: the libp2p host
// (TCP and WebSocket transports, noise link security, yamux multiplexing,
// relay client, hole punching, identify, ping), the Kademlia DHT used for
// room discovery, and the gossipsub topic wrapped by the message cipher.
//
// A peerSession is owned exclusively by the engine loop; nothing else
// mutates it after construction.
type peerSession struct {
	host      host.Host
	dht       *dht.IpfsDHT
	discovery *dRouting.RoutingDiscovery
	pubSub    *pubsub.PubSub
	topic     *pubsub.Topic
	sub       *pubsub.Subscription
	cipher    *MessageCipher
	bootstrap []peer.AddrInfo
	logger    Logger
	config    Config
}

// newPeerSession composes the full protocol stack. Any failure here is
// fatal: a malformed bootstrap address, bad identity material or transport
// setup error means the engine never starts.
func newPeerSession(ctx context.Context, logger Logger, config Config, cipher *MessageCipher, gater *ConnectionGater) (*peerSession, error) {
	pk, err := loadOrGeneratePrivateKey(config.PrivateKey)
	if err != nil {
		return nil, err
	}

	bootstrap, err := parseBootstrapAddresses(config.BootstrapAddresses)
	if err != nil {
		return nil, err
	}

	opts := []libp2p.Option{
		libp2p.Identity(pk),
		// Listening starts when the application sends a Host command, not at
		// construction.
		libp2p.NoListenAddrs,
		libp2p.Transport(tcp.NewTCPTransport),
		libp2p.Transport(ws.New),
		libp2p.Security(noise.ID, noise.New),
		libp2p.Muxer(yamux.ID, yamux.DefaultTransport),
		libp2p.Ping(true),
	}

	if config.EnableRelayClient {
		opts = append(opts, libp2p.EnableRelay())

		if len(bootstrap) > 0 {
			opts = append(opts, libp2p.EnableAutoRelayWithStaticRelays(bootstrap))
		}
	}

	if config.EnableHolePunching {
		opts = append(opts, libp2p.EnableHolePunching())
	}

	if gater != nil {
		opts = append(opts, libp2p.ConnectionGater(gater))
	}

	if advertised := buildAdvertiseMultiAddrs(logger, config.AdvertiseAddresses, config.Port); len(advertised) > 0 {
		opts = append(opts, libp2p.AddrsFactory(func(_ []multiaddr.Multiaddr) []multiaddr.Multiaddr {
			return advertised
		}))
	} else if config.AdvertisePublicIP {
		opts = append(opts, libp2p.AddrsFactory(publicAddrsFactory(ctx, logger, config.Port)))
	}

	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("[Session] error creating libp2p host: %w", err)
	}

	logger.Infof("[Session] peer ID: %s", h.ID().String())

	kadDHT, err := newSessionDHT(ctx, h, bootstrap)
	if err != nil {
		_ = h.Close()
		return nil, err
	}

	ps, err := pubsub.NewGossipSub(ctx, h,
		pubsub.WithMessageSignaturePolicy(pubsub.StrictSign))
	if err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("[Session] error creating gossipsub: %w", err)
	}

	topic, err := ps.Join(GameTopicName)
	if err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("[Session] error joining topic %s: %w", GameTopicName, err)
	}

	sub, err := topic.Subscribe()
	if err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("[Session] error subscribing to topic %s: %w", GameTopicName, err)
	}

	return &peerSession{
		host:      h,
		dht:       kadDHT,
		discovery: dRouting.NewRoutingDiscovery(kadDHT),
		pubSub:    ps,
		topic:     topic,
		sub:       sub,
		cipher:    cipher,
		bootstrap: bootstrap,
		logger:    logger,
		config:    config,
	}, nil
}

// newSessionDHT creates the Kademlia DHT used for provider records. Each
// peer runs its own DHT node so the bootstrap peer can go away without
// breaking future discovery.
func newSessionDHT(ctx context.Context, h host.Host, bootstrap []peer.AddrInfo) (*dht.IpfsDHT, error) {
	options := []dht.Option{dht.Mode(dht.ModeAutoServer)}
	if len(bootstrap) > 0 {
		options = append(options, dht.BootstrapPeers(bootstrap...))
	}

	kadDHT, err := dht.New(ctx, h, options...)
	if err != nil {
		return nil, fmt.Errorf("[Session] error creating DHT: %w", err)
	}

	if err = kadDHT.Bootstrap(ctx); err != nil {
		return nil, fmt.Errorf("[Session] error bootstrapping DHT: %w", err)
	}

	return kadDHT, nil
}

// listenAddrs builds the TCP and WebSocket listen multiaddrs for the
// configured interfaces.
func (s *peerSession) listenAddrs() ([]multiaddr.Multiaddr, error) {
	addrs := make([]multiaddr.Multiaddr, 0, 2*len(s.config.ListenAddresses))

	for _, ip := range s.config.ListenAddresses {
		for _, template := range []string{multiAddrTCPTemplate, multiAddrWSTemplate} {
			maddr, err := multiaddr.NewMultiaddr(fmt.Sprintf(template, ip, s.config.Port))
			if err != nil {
				return nil, fmt.Errorf("[Session] invalid listen address %s: %w", ip, err)
			}

			addrs = append(addrs, maddr)
		}
	}

	return addrs, nil
}

// startListening binds the configured listen addresses. Called on every Host
// command; re-hosting re-issues the listens.
func (s *peerSession) startListening() error {
	addrs, err := s.listenAddrs()
	if err != nil {
		return err
	}

	if err := s.host.Network().Listen(addrs...); err != nil {
		return fmt.Errorf("[Session] error listening: %w", err)
	}

	return nil
}

// dialBootstrap connects to the configured bootstrap/relay peers. Individual
// dial failures are logged and skipped; reachability through one relay is
// enough.
func (s *peerSession) dialBootstrap(ctx context.Context) {
	for _, info := range s.bootstrap {
		if err := s.host.Connect(ctx, info); err != nil {
			s.logger.Warnf("[Session] failed to dial bootstrap peer %s: %v", info.ID.String(), err)
			continue
		}

		s.logger.Infof("[Session] connected to bootstrap peer %s", info.ID.String())
	}
}

// publishEncrypted encrypts data under the newest ring key and publishes it
// to the game topic.
func (s *peerSession) publishEncrypted(ctx context.Context, data []byte) error {
	wire, err := s.cipher.Encode(data)
	if err != nil {
		return fmt.Errorf("[Session] error encrypting message: %w", err)
	}

	if err := s.topic.Publish(ctx, wire); err != nil {
		return fmt.Errorf("[Session] publish error: %w", err)
	}

	return nil
}

// close drops the session without notifying peers. Quit semantics: in-flight
// state is simply abandoned.
func (s *peerSession) close() {
	s.sub.Cancel()

	if err := s.topic.Close(); err != nil {
		s.logger.Debugf("[Session] error closing topic: %v", err)
	}

	if err := s.dht.Close(); err != nil {
		s.logger.Debugf("[Session] error closing DHT: %v", err)
	}

	if err := s.host.Close(); err != nil {
		s.logger.Errorf("[Session] error closing host: %v", err)
		return
	}

	s.logger.Infof("[Session] host closed")
}

// publicAddrsFactory strips private addresses from the advertised set and,
// when nothing public remains, falls back to the address ifconfig.me reports.
// The lookup happens once at host construction; failure just means peers see
// the unfiltered list.
func publicAddrsFactory(ctx context.Context, logger Logger, port int) func([]multiaddr.Multiaddr) []multiaddr.Multiaddr {
	var fallback multiaddr.Multiaddr

	if ip, err := GetPublicIP(ctx); err != nil {
		logger.Debugf("[Session] error getting public IP: %v", err)
	} else if maddr, err := multiaddr.NewMultiaddr(fmt.Sprintf(multiAddrTCPTemplate, ip, port)); err != nil {
		logger.Debugf("[Session] error creating public multiaddr: %v", err)
	} else {
		fallback = maddr
	}

	return func(addrs []multiaddr.Multiaddr) []multiaddr.Multiaddr {
		var public []multiaddr.Multiaddr

		for _, addr := range addrs {
			if !isPrivateIP(addr) {
				public = append(public, addr)
			}
		}

		if len(public) == 0 && fallback != nil {
			public = append(public, fallback)
		}

		if len(public) == 0 {
			return addrs
		}

		return public
	}
}

// loadOrGeneratePrivateKey decodes a hex-encoded Ed25519 identity key, or
// generates a fresh one when none is configured. The identity is fixed for
// the life of the process.
func loadOrGeneratePrivateKey(hexKey string) (crypto.PrivKey, error) {
	if hexKey == "" {
		priv, _, err := crypto.GenerateEd25519Key(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("[Session] error generating private key: %w", err)
		}

		return priv, nil
	}

	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("[Session] error decoding private key: %w", err)
	}

	priv, err := crypto.UnmarshalEd25519PrivateKey(raw)
	if err != nil {
		return nil, fmt.Errorf("[Session] error unmarshalling private key: %w", err)
	}

	return priv, nil
}

// parseBootstrapAddresses validates the configured bootstrap multiaddrs.
// Every address must carry a /p2p peer component; a malformed address is a
// construction error, not something to discover at dial time.
func parseBootstrapAddresses(addrs []string) ([]peer.AddrInfo, error) {
	infos := make([]peer.AddrInfo, 0, len(addrs))

	for _, addr := range addrs {
		maddr, err := multiaddr.NewMultiaddr(addr)
		if err != nil {
			return nil, fmt.Errorf("[Session] invalid bootstrap address %s: %w", addr, err)
		}

		info, err := peer.AddrInfoFromP2pAddr(maddr)
		if err != nil {
			return nil, fmt.Errorf("[Session] bootstrap address %s missing peer ID: %w", addr, err)
		}

		infos = append(infos, *info)
	}

	return infos, nil
}
