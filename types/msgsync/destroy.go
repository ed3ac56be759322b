package msgsync

import (
	"fmt"

	"github.com/Edgaru089/SFNUL/types/message"
	"github.com/Edgaru089/SFNUL/types/synced"
)

// Destroy tells the peer to remove and forget its mirror of ID.
type Destroy struct {
	ID synced.ID
}

func (d *Destroy) MarshalSyncMessage() []byte {
	m := &message.Message{}
	m.AppendUint8(uint8(v1))
	m.AppendUint8(uint8(DestroyMessage))
	m.AppendUint64(uint64(d.ID))
	return m.Bytes()
}

func (d *Destroy) Debug() string {
	return fmt.Sprintf("destroy id=%d", d.ID)
}
