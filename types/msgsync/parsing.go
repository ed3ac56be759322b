package msgsync

import (
	"errors"
	"fmt"

	"github.com/Edgaru089/SFNUL/types/message"
	"github.com/Edgaru089/SFNUL/types/synced"
)

var errTooSmall = errors.New("sync message too small")

// ParseSyncMessage decodes one framed unit received from the transport.
func ParseSyncMessage(pkt []byte) (SyncMessage, error) {
	if len(pkt) < 2 {
		return nil, errTooSmall
	}

	version := pkt[0]
	msgType := pkt[1]

	if VersionMarker(version) != v1 {
		return nil, fmt.Errorf("invalid version: %x", version)
	}

	m := message.FromBytes(pkt[2:])

	switch MessageType(msgType) {
	case CreateMessage:
		return parseCreate(m)
	case DeltaMessage:
		return parseDelta(m)
	case DestroyMessage:
		return parseDestroy(m)
	default:
		return nil, fmt.Errorf("invalid message type: %x", msgType)
	}
}

func parseCreate(m *message.Message) (*Create, error) {
	tag, err := m.ReadString()
	if err != nil {
		return nil, fmt.Errorf("create: reading tag: %w", err)
	}
	id, err := m.ReadUint64()
	if err != nil {
		return nil, fmt.Errorf("create: reading id: %w", err)
	}
	snap, err := m.ReadBytes()
	if err != nil {
		return nil, fmt.Errorf("create: reading snapshot: %w", err)
	}

	return &Create{Tag: tag, ID: synced.ID(id), Snapshot: snap}, nil
}

func parseDelta(m *message.Message) (*Delta, error) {
	id, err := m.ReadUint64()
	if err != nil {
		return nil, fmt.Errorf("delta: reading id: %w", err)
	}
	payload, err := m.ReadBytes()
	if err != nil {
		return nil, fmt.Errorf("delta: reading payload: %w", err)
	}

	return &Delta{ID: synced.ID(id), Payload: payload}, nil
}

func parseDestroy(m *message.Message) (*Destroy, error) {
	id, err := m.ReadUint64()
	if err != nil {
		return nil, fmt.Errorf("destroy: reading id: %w", err)
	}

	return &Destroy{ID: synced.ID(id)}, nil
}
