package msgsync

import (
	"fmt"

	"github.com/Edgaru089/SFNUL/types/message"
	"github.com/Edgaru089/SFNUL/types/synced"
)

// Create announces an object newly visible to the peer. The receiver looks
// Tag up in its factory registry, builds a mirror carrying ID, and applies
// Snapshot as a full deserialization pass.
//
// A peer must always receive an object's Create before any Delta
// referencing its identifier.
type Create struct {
	Tag string

	ID synced.ID

	// Snapshot is the full-pass serialization of every field, produced by
	// Object.FullSerialize. Opaque at this layer.
	Snapshot []byte
}

func (c *Create) MarshalSyncMessage() []byte {
	m := &message.Message{}
	m.AppendUint8(uint8(v1))
	m.AppendUint8(uint8(CreateMessage))
	m.AppendString(c.Tag)
	m.AppendUint64(uint64(c.ID))
	m.AppendBytes(c.Snapshot)
	return m.Bytes()
}

func (c *Create) Debug() string {
	return fmt.Sprintf("create tag=%q id=%d snapshot=%dB", c.Tag, c.ID, len(c.Snapshot))
}
