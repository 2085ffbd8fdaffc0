package p2p

import (
	"context"
	"time"
)

const (
	// AppProtocolID identifies this application on the wire. A remote peer is
	// only reported Connected after identify confirms it speaks this protocol.
	AppProtocolID = "/bevy-p2p-demo/v1"

	// RelayProtocolID is the circuit relay hop protocol advertised by peers
	// willing to relay traffic for others.
	RelayProtocolID = "/libp2p/circuit/relay/0.2.0/hop"

	// RoomNamespace prefixes every DHT provider-record key published for a
	// room. The full key is RoomNamespace + room code.
	RoomNamespace = "/bevy-libp2p-demo/room/"

	// GameTopicName is the gossipsub topic carrying encrypted game payloads.
	GameTopicName = "bevy-libp2p-demo/game"

	multiAddrTCPTemplate = "/ip4/%s/tcp/%d"
	multiAddrWSTemplate  = "/ip4/%s/tcp/%d/ws"
)

// EngineState tracks the lifecycle of the background network engine.
type EngineState int32

const (
	// EngineStarting means the engine is constructing its identity, transports
	// and session. Failures here are fatal and returned from SetupNetwork.
	EngineStarting EngineState = iota
	// EngineRunning means the engine loop is dispatching commands and session
	// events. Per-event failures are logged and the loop continues.
	EngineRunning
	// EngineStopped means the engine loop has exited. All subsequent
	// SendToNetwork calls fail.
	EngineStopped
)

// Config defines the configuration parameters for the network engine.
// It encapsulates all settings needed to establish and maintain a
// functional peer-to-peer presence for a game session.
type Config struct {
	ProcessName        string   // Identifier for this node in logs
	PrivateKey         string   // Hex-encoded Ed25519 identity key; generated when empty
	ListenAddresses    []string // Local IPs to listen on when hosting a room
	Port               int      // TCP port for listening; 0 picks a free port
	BootstrapAddresses []string // Bootstrap/relay multiaddrs dialed when hosting
	AdvertiseAddresses []string // Addresses to advertise instead of discovered ones
	AdvertisePublicIP  bool     // Detect the public IP at startup and advertise it instead of private addresses

	EnableHolePunching bool // Whether to attempt direct-connection upgrades through NATs
	EnableRelayClient  bool // Whether to accept relayed connectivity via the bootstrap relays
	EnableConnGater    bool // Whether to install the connection gater
	MaxConnsPerPeer    int  // Connection gater per-peer limit (default: 3)

	DiscoveryInterval time.Duration // How often to re-run same-room peer discovery (default: 5s)
}

// GameHandler processes a command the application sent with GameEvent.Game.
// The core only guarantees dispatch; interpretation of the payload belongs to
// the game.
type GameHandler[FromGame any] func(ctx context.Context, payload FromGame) error

// GameEncoder serializes an outbound game payload before it is encrypted and
// published to the game topic.
type GameEncoder[FromGame any] func(payload FromGame) ([]byte, error)

// GameDecoder turns a decrypted gossip payload into the application's inbound
// message type. A decode error drops the message.
type GameDecoder[ToGame any] func(data []byte) (ToGame, error)

// GameCodec bundles the application-supplied hooks for game payloads. All
// fields are optional: a Game command with neither Handler nor Encode set is
// logged and dropped, and inbound gossip without Decode never surfaces as a
// Game event.
type GameCodec[FromGame, ToGame any] struct {
	// Handler, when set, receives every Game command the application sends.
	Handler GameHandler[FromGame]
	// Encode, when set and Handler is nil, serializes Game commands which the
	// engine then encrypts and publishes to the game topic.
	Encode GameEncoder[FromGame]
	// Decode deserializes decrypted inbound gossip into ToGame events.
	Decode GameDecoder[ToGame]
}

// Logger defines the interface for logging within the network engine.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}
