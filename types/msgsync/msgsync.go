// Package msgsync contains the synchronization wire message definitions
// and parsing methods, exchanged between a pair of Synchronizers over a
// framed transport.
//
// Wire layout of every message:
//
//	Version (1) + Type (1) + message-specific data
//
// All integers are big-endian; strings carry a uint32 length prefix. This
// layout, together with the type tag enumeration the application
// registers, is the versioned contract between peers.
package msgsync

type VersionMarker byte

const v1 = VersionMarker(0x1)

type MessageType byte

const (
	// CreateMessage announces a new object: type tag, identifier, and a
	// full snapshot of every field.
	CreateMessage = MessageType(0x00)

	// DeltaMessage carries an incremental update for a known identifier:
	// a presence bitmask and the due field values.
	DeltaMessage = MessageType(0x01)

	// DestroyMessage tears down the peer's mirror of an identifier.
	DestroyMessage = MessageType(0x02)
)

// SyncMessage is one decoded synchronization message.
type SyncMessage interface {
	MarshalSyncMessage() []byte

	Debug() string
}
