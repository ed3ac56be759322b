package msgsync

import (
	"fmt"

	"github.com/Edgaru089/SFNUL/types/message"
	"github.com/Edgaru089/SFNUL/types/synced"
)

// Delta carries an incremental update for a known identifier.
type Delta struct {
	ID synced.ID

	// Payload is the presence bitmask followed by the due field values,
	// produced by Object.DeltaSerialize. Its width depends on the object
	// schema, which only the endpoints know, so it is opaque here.
	Payload []byte
}

func (d *Delta) MarshalSyncMessage() []byte {
	m := &message.Message{}
	m.AppendUint8(uint8(v1))
	m.AppendUint8(uint8(DeltaMessage))
	m.AppendUint64(uint64(d.ID))
	m.AppendBytes(d.Payload)
	return m.Bytes()
}

func (d *Delta) Debug() string {
	return fmt.Sprintf("delta id=%d payload=%dB", d.ID, len(d.Payload))
}
