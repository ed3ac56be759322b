// Package syncer implements the per-link scheduler and codec: it tracks a
// set of synced Objects, decides on each tick what must reach the peer
// (full snapshots for new objects, deltas for dirty or stream-due ones,
// destroy notices for removed ones), and applies inbound traffic to a set
// of mirror objects built through a type registry.
//
// All methods must be called from a single goroutine, the one driving
// Tick; the transport underneath may run its own I/O concurrently.
package syncer

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/exp/maps"

	"github.com/Edgaru089/SFNUL/types/message"
	"github.com/Edgaru089/SFNUL/types/msgsync"
	"github.com/Edgaru089/SFNUL/types/synced"
	"github.com/Edgaru089/SFNUL/types/transport"
)

// ErrDuplicateIdentifier is returned when an object is added under an
// identifier the Synchronizer already tracks. A programming error,
// surfaced rather than silently ignored.
var ErrDuplicateIdentifier = errors.New("duplicate object identifier")

type objectState byte

const (
	// statePending: added, full snapshot not yet handed to the transport.
	statePending objectState = iota
	// stateLive: snapshot sent; eligible for delta and stream traffic.
	stateLive
)

type tracked struct {
	obj   *synced.Object
	state objectState
}

// Synchronizer replicates local objects to one peer and mirrors the
// peer's objects locally.
//
// Local objects (added with Add, or Object.Attach) and mirrors
// (reconstructed from inbound Creates) live in separate identifier
// spaces: each side numbers only the objects it originates, so the
// counters of independent processes cannot collide.
//
// Object storage is owned by the application throughout; the
// Synchronizer holds non-owning references and never decides when an
// object dies.
type Synchronizer struct {
	sctx *synced.Context
	tr   transport.Transport
	reg  *Registry
	log  *slog.Logger

	local map[synced.ID]*tracked
	dirty map[synced.ID]struct{}

	pendingDestroy []synced.ID

	mirrors map[synced.ID]*synced.Object

	// OnMirrorCreated, if set, is called after an inbound Create has
	// built and snapshotted a new mirror.
	OnMirrorCreated func(*synced.Object)

	// OnMirrorRemoved, if set, is called after an inbound Destroy has
	// removed a mirror, so the application can drop its own references.
	OnMirrorRemoved func(*synced.Object)
}

// New builds a Synchronizer for one link. The Context supplies identifier
// allocation and the stream period; the Registry supplies mirror
// factories for inbound Creates.
func New(sctx *synced.Context, tr transport.Transport, reg *Registry, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{
		sctx: sctx,
		tr:   tr,
		reg:  reg,
		log:  logger,

		local:   make(map[synced.ID]*tracked),
		dirty:   make(map[synced.ID]struct{}),
		mirrors: make(map[synced.ID]*synced.Object),
	}
}

// Add attaches o to this Synchronizer, detaching it from any previous
// one. The peer receives a full snapshot on the next Tick, before any
// delta referencing the identifier.
func (s *Synchronizer) Add(o *synced.Object) error {
	return o.Attach(s)
}

// Remove detaches o. If the peer has seen the object, a destroy notice
// goes out on the next Tick; an object removed before its first snapshot
// is coalesced away without any wire traffic.
func (s *Synchronizer) Remove(o *synced.Object) {
	if o.Host() == synced.Host(s) {
		o.Detach()
		return
	}
	s.RemoveObject(o)
}

// NumTracked returns the number of local objects currently tracked.
func (s *Synchronizer) NumTracked() int { return len(s.local) }

// NumMirrors returns the number of peer objects currently mirrored.
func (s *Synchronizer) NumMirrors() int { return len(s.mirrors) }

// Mirror returns the mirror tracked under a peer identifier, if any.
func (s *Synchronizer) Mirror(id synced.ID) (*synced.Object, bool) {
	o, ok := s.mirrors[id]
	return o, ok
}

// AddObject implements synced.Host. Application code normally calls
// Object.Attach (or Add) instead, which keeps the object's own back
// reference consistent.
func (s *Synchronizer) AddObject(o *synced.Object) error {
	id := o.ID()
	if _, ok := s.local[id]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateIdentifier, id)
	}
	s.local[id] = &tracked{obj: o, state: statePending}
	return nil
}

// RemoveObject implements synced.Host. Safe to call for objects that were
// never snapshotted, including from teardown paths of the object itself.
func (s *Synchronizer) RemoveObject(o *synced.Object) {
	id := o.ID()
	t, ok := s.local[id]
	if !ok || t.obj != o {
		return
	}

	delete(s.local, id)
	delete(s.dirty, id)

	// The peer only knows about the object once a snapshot went out;
	// removing a Pending object needs no traffic at all.
	if t.state == stateLive {
		s.pendingDestroy = append(s.pendingDestroy, id)
	}
}

// MoveObject implements synced.Host: storage relocation. Tracking is
// repointed; schedule state is untouched and nothing is emitted.
func (s *Synchronizer) MoveObject(from, to *synced.Object) {
	if t, ok := s.local[to.ID()]; ok && t.obj == from {
		t.obj = to
	}
}

// UpdateObject implements synced.Host: marks the object as having dirty
// work this tick. Idempotent; serialization happens on Tick.
func (s *Synchronizer) UpdateObject(o *synced.Object) {
	if _, ok := s.local[o.ID()]; ok {
		s.dirty[o.ID()] = struct{}{}
	}
}

// Shutdown detaches every tracked local object and forgets all mirrors,
// without emitting any traffic. Scheduling stops structurally: there are
// no in-flight operations to cancel, sends are fire-and-forget handoffs.
func (s *Synchronizer) Shutdown() {
	for _, t := range s.local {
		if t.obj.Host() == synced.Host(s) {
			t.obj.Detach()
		}
	}
	s.local = make(map[synced.ID]*tracked)
	s.dirty = make(map[synced.ID]struct{})
	s.pendingDestroy = nil
	s.mirrors = make(map[synced.ID]*synced.Object)
}

// Tick drains and applies inbound traffic, then emits pending destroys,
// first-time snapshots and due deltas, in that order. Never blocks; work
// is bounded by inbound frames plus dirty and stream-due objects.
//
// An error means decoding went out of step with the peer (schema mismatch
// or framing bug); the link should be torn down, no further Ticks called.
func (s *Synchronizer) Tick() error {
	return s.tick(time.Now())
}

func (s *Synchronizer) tick(now time.Time) error {
	if err := s.applyInbound(); err != nil {
		return err
	}

	s.flushDestroys()
	s.flushCreates(now)
	s.flushDeltas(now)

	return nil
}

func (s *Synchronizer) applyInbound() error {
	for {
		pkt, ok := s.tr.Receive()
		if !ok {
			return nil
		}

		msg, err := msgsync.ParseSyncMessage(pkt)
		if err != nil {
			return fmt.Errorf("parsing inbound message: %w", err)
		}

		switch m := msg.(type) {
		case *msgsync.Create:
			if err := s.applyCreate(m); err != nil {
				return err
			}
		case *msgsync.Delta:
			if err := s.applyDelta(m); err != nil {
				return err
			}
		case *msgsync.Destroy:
			s.applyDestroy(m)
		}
	}
}

func (s *Synchronizer) applyCreate(m *msgsync.Create) error {
	obj, known := s.mirrors[m.ID]
	if !known {
		var err error
		obj, err = s.reg.New(m.Tag, m.ID)
		if err != nil {
			// Not fatal: the peer may simply be newer than us. Drop.
			s.log.Error("dropping create for unregistered type", "tag", m.Tag, "id", m.ID, "err", err)
			return nil
		}
	}

	if err := obj.FullDeserialize(message.FromBytes(m.Snapshot)); err != nil {
		return fmt.Errorf("applying %s: %w", m.Debug(), err)
	}

	if !known {
		s.mirrors[m.ID] = obj
		s.log.Debug("mirror created", "tag", m.Tag, "id", m.ID)
		if s.OnMirrorCreated != nil {
			s.OnMirrorCreated(obj)
		}
	}
	return nil
}

func (s *Synchronizer) applyDelta(m *msgsync.Delta) error {
	obj, ok := s.mirrors[m.ID]
	if !ok {
		// Expected race: the peer sent this before seeing our destroy,
		// or before we ever saw the create. Ignore.
		s.log.Debug("ignoring delta for unknown identifier", "id", m.ID)
		return nil
	}

	if err := obj.DeltaDeserialize(message.FromBytes(m.Payload)); err != nil {
		return fmt.Errorf("applying %s: %w", m.Debug(), err)
	}
	return nil
}

func (s *Synchronizer) applyDestroy(m *msgsync.Destroy) {
	obj, ok := s.mirrors[m.ID]
	if !ok {
		s.log.Debug("ignoring destroy for unknown identifier", "id", m.ID)
		return
	}

	delete(s.mirrors, m.ID)
	s.log.Debug("mirror destroyed", "id", m.ID)
	if s.OnMirrorRemoved != nil {
		s.OnMirrorRemoved(obj)
	}
}

func (s *Synchronizer) flushDestroys() {
	for len(s.pendingDestroy) > 0 {
		id := s.pendingDestroy[0]
		if !s.tr.Send((&msgsync.Destroy{ID: id}).MarshalSyncMessage()) {
			// Backpressure; keep the queue (and its order) for next tick.
			s.log.Debug("transport backpressure on destroy", "id", id)
			return
		}
		s.pendingDestroy = s.pendingDestroy[1:]
	}
}

// sortedLocalIDs returns the tracked local identifiers in increasing
// order, so emission order is deterministic across runs.
func (s *Synchronizer) sortedLocalIDs() []synced.ID {
	ids := maps.Keys(s.local)
	slices.Sort(ids)
	return ids
}

func (s *Synchronizer) flushCreates(now time.Time) {
	for _, id := range s.sortedLocalIDs() {
		t := s.local[id]
		if t.state != statePending {
			continue
		}

		snap := &message.Message{}
		t.obj.FullSerialize(snap)

		m := &msgsync.Create{Tag: t.obj.TypeTag(), ID: id, Snapshot: snap.Bytes()}
		if !s.tr.Send(m.MarshalSyncMessage()) {
			// Still Pending; retried next tick. Flags stay set, so
			// nothing is lost.
			s.log.Debug("transport backpressure on create", "id", id)
			return
		}

		t.obj.CommitFull(now)
		t.state = stateLive
		delete(s.dirty, id)
		s.log.Debug("object snapshotted", "tag", t.obj.TypeTag(), "id", id)
	}
}

func (s *Synchronizer) flushDeltas(now time.Time) {
	period := s.sctx.StreamPeriod()

	for _, id := range s.sortedLocalIDs() {
		t := s.local[id]
		if t.state != stateLive {
			continue
		}
		_, isDirty := s.dirty[id]
		if !isDirty && !t.obj.HasStream() {
			continue
		}

		payload := &message.Message{}
		due := t.obj.DeltaSerialize(payload, now, period)
		if due == nil {
			// Dirty in name only (e.g. a Static field was written, or a
			// snapshot this tick already carried the change).
			delete(s.dirty, id)
			t.obj.ClearChanged()
			continue
		}

		m := &msgsync.Delta{ID: id, Payload: payload.Bytes()}
		if !s.tr.Send(m.MarshalSyncMessage()) {
			// Nothing was committed; the same delta regenerates next tick.
			s.log.Debug("transport backpressure on delta", "id", id)
			return
		}

		t.obj.CommitDelta(due, now)
		delete(s.dirty, id)
	}
}
