// Package p2p provides peer-to-peer networking for a multiplayer game built on
// libp2p: room-based peer discovery over the Kademlia DHT, relay-assisted NAT
// traversal with hole punching, and gossipsub messaging encrypted end-to-end
// with a rotatable ring of AES-256-GCM keys.
//
// The package exposes the network to the rest of the application through a
// single NetworkManager value holding two one-directional queues: game code
// sends GameEvent commands in and drains NetworkEvent notifications out once
// per frame. A dedicated background goroutine owns the whole libp2p session
// and is the only code that ever touches it.
package p2p
