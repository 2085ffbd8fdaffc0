package p2p

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/event"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	dUtil "github.com/libp2p/go-libp2p/p2p/discovery/util"
)

// engine owns the peer session and drives it from a single background
// goroutine. The application never sees this type; it talks to the engine
// exclusively through the NetworkManager queues.
type engine[FromGame, ToGame any] struct {
	session *peerSession
	manager *NetworkManager[FromGame, ToGame]
	tracker *peerTracker
	codec   GameCodec[FromGame, ToGame]
	logger  Logger
	config  Config

	state       atomic.Int32
	busSub      event.Subscription
	disconnects chan peer.ID
	inbound     chan *pubsub.Message
	cancel      context.CancelFunc
	roomCancel  context.CancelFunc // stops the previous room's discovery loop on re-host
}

// SetupNetwork constructs the network engine and starts its background loop.
// This performs the full Starting phase: identity, transports, DHT, gossip
// topic, encryption keys. Any error here is fatal and nothing is left
// running.
//
// On success the engine is Running and the returned NetworkManager is the
// application's only handle on it: SendToNetwork for commands, PollEvents
// for notifications, KeyRing for administrative key rotation.
func SetupNetwork[FromGame, ToGame any](ctx context.Context, logger Logger, config Config, codec GameCodec[FromGame, ToGame]) (*NetworkManager[FromGame, ToGame], error) {
	e, err := newEngine(ctx, logger, config, codec)
	if err != nil {
		return nil, err
	}

	return e.manager, nil
}

// newEngine builds the session and starts the loop. Split from SetupNetwork
// so in-package tests can reach the running session.
func newEngine[FromGame, ToGame any](ctx context.Context, logger Logger, config Config, codec GameCodec[FromGame, ToGame]) (*engine[FromGame, ToGame], error) {
	logger.Infof("[Engine] starting %s", config.ProcessName)

	cipher, keys, err := NewMessageCipher()
	if err != nil {
		return nil, err
	}

	var gater *ConnectionGater
	if config.EnableConnGater {
		gater = NewConnectionGater(logger, config.MaxConnsPerPeer)
	}

	engCtx, cancel := context.WithCancel(ctx)

	session, err := newPeerSession(engCtx, logger, config, cipher, gater)
	if err != nil {
		cancel()
		return nil, err
	}

	if gater != nil {
		gater.SetNetwork(session.host.Network())
	}

	busSub, err := session.host.EventBus().Subscribe([]interface{}{
		new(event.EvtPeerIdentificationCompleted),
		new(event.EvtLocalAddressesUpdated),
	})
	if err != nil {
		session.close()
		cancel()
		return nil, err
	}

	tracker := newPeerTracker()

	e := &engine[FromGame, ToGame]{
		session: session,
		manager: &NetworkManager[FromGame, ToGame]{
			commands: newQueue[GameEvent[FromGame]](),
			events:   newQueue[NetworkEvent[ToGame]](),
			keys:     keys,
			tracker:  tracker,
			done:     make(chan struct{}),
		},
		tracker:     tracker,
		codec:       codec,
		logger:      logger,
		config:      config,
		busSub:      busSub,
		disconnects: make(chan peer.ID, 256),
		inbound:     make(chan *pubsub.Message, 256),
		cancel:      cancel,
	}

	// Registering the app protocol makes identify advertise it, which is what
	// remote peers gate their Connected notices on. Game traffic itself rides
	// the gossip topic, so inbound streams are just acknowledged and closed.
	session.host.SetStreamHandler(protocol.ID(AppProtocolID), func(st network.Stream) {
		logger.Debugf("[Engine] app stream from %s", st.Conn().RemotePeer().ShortString())
		_ = st.Close()
	})

	session.host.Network().Notify(&network.NotifyBundle{
		DisconnectedF: func(_ network.Network, conn network.Conn) {
			id := conn.RemotePeer()
			if session.host.Network().Connectedness(id) == network.Connected {
				// Other connections to this peer remain open.
				return
			}

			select {
			case e.disconnects <- id:
			default:
				// The loop has stopped draining; dropping here beats blocking
				// a libp2p notify goroutine.
				logger.Debugf("[Engine] dropped disconnect notification for %s", id.String())
			}
		},
	})

	go e.readLoop(engCtx)
	go e.run(engCtx)

	e.state.Store(int32(EngineRunning))

	return e, nil
}

// State reports the engine lifecycle phase.
func (e *engine[FromGame, ToGame]) State() EngineState {
	return EngineState(e.state.Load())
}

// run is the engine loop. It waits on the command queue and every session
// event source at once and handles whichever is ready first. Per-event
// failures are logged and the loop continues; only Quit (or context
// cancellation) ends it.
func (e *engine[FromGame, ToGame]) run(ctx context.Context) {
	defer e.shutdown()

	for {
		select {
		case <-ctx.Done():
			return

		case <-e.manager.commands.wake:
			for {
				cmd, ok := e.manager.commands.pop()
				if !ok {
					break
				}

				if quit := e.handleCommand(ctx, cmd); quit {
					return
				}
			}

		case ev, ok := <-e.busSub.Out():
			if !ok {
				continue
			}

			e.handleBusEvent(ev)

		case id := <-e.disconnects:
			e.tracker.markDisconnected(id)
			e.logger.Infof("[Engine] peer disconnected: %s", id.String())
			e.manager.events.push(adminNotice[ToGame](disconnectedNotice(id)))

		case msg := <-e.inbound:
			e.handleGossip(msg)
		}
	}
}

// handleCommand dispatches one application command. Returns true when the
// engine should stop.
func (e *engine[FromGame, ToGame]) handleCommand(ctx context.Context, cmd GameEvent[FromGame]) bool {
	if !cmd.IsAdmin {
		e.dispatchGame(ctx, cmd.Game)
		return false
	}

	switch cmd.Admin.Kind {
	case AdminQuit:
		e.logger.Infof("[Engine] quit requested")
		return true

	case AdminHost:
		e.hostRoom(ctx, cmd.Admin.RoomCode)

	default:
		e.logger.Warnf("[Engine] unhandled admin command kind: %d", cmd.Admin.Kind)
	}

	return false
}

// hostRoom starts hosting: bind listeners, dial the bootstrap relays and
// advertise the room's provider record. Deliberately not idempotent: a
// second Host command re-issues all of it.
func (e *engine[FromGame, ToGame]) hostRoom(ctx context.Context, roomCode string) {
	if !ValidateRoomCode(roomCode) {
		e.logger.Warnf("[Engine] hosting with non-standard room code: %q", roomCode)
	}

	if err := e.session.startListening(); err != nil {
		e.logger.Errorf("[Engine] error starting listeners: %v", err)
	}

	e.session.dialBootstrap(ctx)

	key := RoomProviderKey(roomCode)
	dUtil.Advertise(ctx, e.session.discovery, key)
	e.logger.Infof("[Engine] advertising room %s", roomCode)

	if e.roomCancel != nil {
		e.roomCancel()
	}

	roomCtx, cancel := context.WithCancel(ctx)
	e.roomCancel = cancel

	go e.discoverRoomPeers(roomCtx, key)
}

// dispatchGame forwards a Game command to the configured handler, or failing
// that encodes it and publishes it to the encrypted game topic.
func (e *engine[FromGame, ToGame]) dispatchGame(ctx context.Context, payload FromGame) {
	if e.codec.Handler != nil {
		if err := e.codec.Handler(ctx, payload); err != nil {
			e.logger.Errorf("[Engine] game handler error: %v", err)
		}

		return
	}

	if e.codec.Encode != nil {
		data, err := e.codec.Encode(payload)
		if err != nil {
			e.logger.Errorf("[Engine] error encoding game payload: %v", err)
			return
		}

		if err := e.session.publishEncrypted(ctx, data); err != nil {
			e.logger.Errorf("[Engine] error publishing game payload: %v", err)
		}

		return
	}

	e.logger.Warnf("[Engine] game command dropped: no handler or encoder configured")
}

// handleBusEvent translates libp2p event-bus events into admin notices.
func (e *engine[FromGame, ToGame]) handleBusEvent(ev interface{}) {
	switch ev := ev.(type) {
	case event.EvtPeerIdentificationCompleted:
		e.handleIdentified(ev.Peer, ev.Protocols)

	case event.EvtLocalAddressesUpdated:
		for _, updated := range ev.Current {
			if updated.Action != event.Added {
				continue
			}

			e.logger.Infof("[Engine] new listen address: %s", updated.Address.String())
			e.manager.events.push(adminNotice[ToGame](newAddressNotice(updated.Address)))
		}
	}
}

// handleIdentified applies identify gating: a peer only counts as Connected
// once its advertised protocols include ours. Connections that never finish
// identify, or identify as something else entirely, stay invisible to the
// application.
func (e *engine[FromGame, ToGame]) handleIdentified(id peer.ID, protocols []protocol.ID) {
	if !supportsProtocol(protocols, AppProtocolID) {
		e.logger.Debugf("[Engine] peer %s does not speak %s", id.ShortString(), AppProtocolID)
		return
	}

	if supportsProtocol(protocols, RelayProtocolID) {
		e.logger.Debugf("[Engine] peer %s offers relay service", id.ShortString())
	}

	if !e.tracker.markIdentified(id) {
		return
	}

	e.logger.Infof("[Engine] peer connected: %s", id.String())
	e.manager.events.push(adminNotice[ToGame](connectedNotice(id)))
}

// handleGossip decrypts one inbound gossip message and surfaces it as a Game
// event. Undecryptable messages are the normal background noise of foreign
// rooms and are dropped quietly.
func (e *engine[FromGame, ToGame]) handleGossip(msg *pubsub.Message) {
	plaintext, err := e.session.cipher.Decode(msg.Data)
	if err != nil {
		e.logger.Debugf("[Engine] dropping message from %s: %v", msg.ReceivedFrom.ShortString(), err)
		return
	}

	if e.codec.Decode == nil {
		e.logger.Debugf("[Engine] no game decoder configured, dropping %d byte payload", len(plaintext))
		return
	}

	payload, err := e.codec.Decode(plaintext)
	if err != nil {
		e.logger.Debugf("[Engine] error decoding game payload from %s: %v", msg.ReceivedFrom.ShortString(), err)
		return
	}

	e.manager.events.push(gameNotice[ToGame](payload))
}

// readLoop feeds inbound gossip messages into the engine loop. It is the
// only reader of the topic subscription.
func (e *engine[FromGame, ToGame]) readLoop(ctx context.Context) {
	for {
		msg, err := e.session.sub.Next(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, pubsub.ErrSubscriptionCancelled) {
				e.logger.Errorf("[Engine] error reading subscription: %v", err)
			}

			return
		}

		if msg.ReceivedFrom == e.session.host.ID() {
			continue
		}

		select {
		case e.inbound <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// shutdown tears the engine down: stop discovery, refuse further commands,
// drop the session. Queued events stay drainable so the application can
// observe the tail of the run.
func (e *engine[FromGame, ToGame]) shutdown() {
	e.state.Store(int32(EngineStopped))

	if e.roomCancel != nil {
		e.roomCancel()
	}

	e.manager.commands.close()

	if err := e.busSub.Close(); err != nil {
		e.logger.Debugf("[Engine] error closing event subscription: %v", err)
	}

	e.session.close()
	e.cancel()
	close(e.manager.done)

	e.logger.Infof("[Engine] stopped")
}

func supportsProtocol(protocols []protocol.ID, id string) bool {
	return slices.Contains(protocols, protocol.ID(id))
}
