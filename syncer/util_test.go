package syncer

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Edgaru089/SFNUL/types/msgsync"
	"github.com/Edgaru089/SFNUL/types/synced"
)

var testEpoch = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ent matches the canonical two-field scenario: one Static, one Dynamic.
type ent struct {
	obj *synced.Object

	x *synced.Field[uint32] // Static
	y *synced.Field[int32]  // Dynamic
}

func declareEnt(o *synced.Object) *ent {
	return &ent{
		obj: o,

		x: synced.NewField(o, synced.Static, uint32(0)),
		y: synced.NewField(o, synced.Dynamic, int32(0)),
	}
}

func newEnt(c *synced.Context) *ent {
	return declareEnt(c.NewObject("ent"))
}

// pulse carries a single Stream field.
type pulse struct {
	obj *synced.Object

	v *synced.Field[float32]
}

func declarePulse(o *synced.Object) *pulse {
	return &pulse{
		obj: o,

		v: synced.NewField(o, synced.Stream, float32(0)),
	}
}

func newPulse(c *synced.Context) *pulse {
	return declarePulse(c.NewObject("pulse"))
}

// testRegistry registers mirror factories for both test types, recording
// the mirrors it builds so tests can read their fields back.
func testRegistry(t *testing.T) (*Registry, map[synced.ID]*ent, map[synced.ID]*pulse) {
	t.Helper()

	ents := make(map[synced.ID]*ent)
	pulses := make(map[synced.ID]*pulse)

	reg := NewRegistry()
	require.NoError(t, reg.Register("ent", func(id synced.ID) *synced.Object {
		e := declareEnt(synced.MirrorObject("ent", id))
		ents[id] = e
		return e.obj
	}))
	require.NoError(t, reg.Register("pulse", func(id synced.ID) *synced.Object {
		p := declarePulse(synced.MirrorObject("pulse", id))
		pulses[id] = p
		return p.obj
	}))

	return reg, ents, pulses
}

// captureTransport records outbound frames and serves queued inbound
// ones, with switchable backpressure.
type captureTransport struct {
	sent    [][]byte
	inbound [][]byte

	backpressure bool
}

func (c *captureTransport) Send(b []byte) bool {
	if c.backpressure {
		return false
	}
	frame := make([]byte, len(b))
	copy(frame, b)
	c.sent = append(c.sent, frame)
	return true
}

func (c *captureTransport) Receive() ([]byte, bool) {
	if len(c.inbound) == 0 {
		return nil, false
	}
	b := c.inbound[0]
	c.inbound = c.inbound[1:]
	return b, true
}

func (c *captureTransport) PeerClosedWrite() bool  { return false }
func (c *captureTransport) LocalClosedWrite() bool { return false }
func (c *captureTransport) Close() error           { return nil }

func (c *captureTransport) push(m msgsync.SyncMessage) {
	c.inbound = append(c.inbound, m.MarshalSyncMessage())
}

// drainParsed decodes and clears the frames captured so far.
func (c *captureTransport) drainParsed(t *testing.T) []msgsync.SyncMessage {
	t.Helper()

	var out []msgsync.SyncMessage
	for _, b := range c.sent {
		m, err := msgsync.ParseSyncMessage(b)
		require.NoError(t, err)
		out = append(out, m)
	}
	c.sent = nil
	return out
}
