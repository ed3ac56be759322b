package synced

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Edgaru089/SFNUL/types/message"
)

func TestFullRoundTrip(t *testing.T) {
	c := NewContext()
	src := newThing(c)
	src.name.Set("alpha")
	src.count.Set(42)
	src.heading.Set(1.5)

	m := &message.Message{}
	src.obj.FullSerialize(m)

	dst := mirrorThing(src.obj.ID())
	require.NoError(t, dst.obj.FullDeserialize(m))

	// Consumed exactly what was produced.
	assert.Zero(t, m.Remaining())

	assert.Equal(t, "alpha", dst.name.Get())
	assert.Equal(t, int32(42), dst.count.Get())
	assert.Equal(t, 1.5, dst.heading.Get())
}

func TestDeltaClearsDirtyAndGoesQuiet(t *testing.T) {
	c := NewContext()
	th := newThing(c)
	now := testEpoch
	th.obj.CommitFull(now)

	th.count.Set(7)
	assert.True(t, th.count.Modified())

	m := &message.Message{}
	due := th.obj.DeltaSerialize(m, now, c.StreamPeriod())
	require.NotNil(t, due)
	th.obj.CommitDelta(due, now)

	assert.False(t, th.count.Modified())

	// No mutation in between: the next delta has nothing to say.
	m2 := &message.Message{}
	assert.Nil(t, th.obj.DeltaSerialize(m2, now, c.StreamPeriod()))
	assert.Zero(t, m2.Len())
}

func TestDeltaRoundTripSelectsOnlyDueFields(t *testing.T) {
	c := NewContext()
	src := newThing(c)
	src.name.Set("alpha")
	now := testEpoch
	src.obj.CommitFull(now)

	dst := mirrorThing(src.obj.ID())
	dst.heading.Set(99.0) // must survive a delta that does not carry it

	src.count.Set(9)

	m := &message.Message{}
	due := src.obj.DeltaSerialize(m, now, c.StreamPeriod())
	require.Equal(t, []int{1}, due, "only the dynamic count slot should be due")
	src.obj.CommitDelta(due, now)

	require.NoError(t, dst.obj.DeltaDeserialize(m))
	assert.Zero(t, m.Remaining())

	assert.Equal(t, int32(9), dst.count.Get())
	assert.Equal(t, "", dst.name.Get(), "static field must not travel in a delta")
	assert.Equal(t, 99.0, dst.heading.Get())
}

func TestStaticWriteProducesNoDelta(t *testing.T) {
	c := NewContext()
	th := newThing(c)
	now := testEpoch
	th.obj.CommitFull(now)

	th.name.Set("renamed")
	assert.True(t, th.obj.Changed())

	m := &message.Message{}
	assert.Nil(t, th.obj.DeltaSerialize(m, now, c.StreamPeriod()))
}

func TestStreamDuePeriod(t *testing.T) {
	c := NewContext()
	th := newThing(c)
	now := testEpoch
	th.obj.CommitFull(now)

	period := 100 * time.Millisecond

	m := &message.Message{}
	assert.Nil(t, th.obj.DeltaSerialize(m, now.Add(50*time.Millisecond), period),
		"stream field must not be due before the period elapses")

	due := th.obj.DeltaSerialize(m, now.Add(100*time.Millisecond), period)
	assert.Equal(t, []int{2}, due, "stream field is due once the period elapsed, dirty or not")
}

func TestStreamDueAfterPeriodDecrease(t *testing.T) {
	c := NewContext()
	th := newThing(c)
	now := testEpoch
	th.obj.CommitFull(now)

	at := now.Add(50 * time.Millisecond)

	m := &message.Message{}
	assert.Nil(t, th.obj.DeltaSerialize(m, at, 100*time.Millisecond))

	// A shorter period makes the same moment eligible.
	due := th.obj.DeltaSerialize(m, at, 25*time.Millisecond)
	assert.Equal(t, []int{2}, due)
}

func TestStreamTimerResetOnCommit(t *testing.T) {
	c := NewContext()
	th := newThing(c)
	now := testEpoch
	th.obj.CommitFull(now)

	period := 100 * time.Millisecond
	at := now.Add(period)

	m := &message.Message{}
	due := th.obj.DeltaSerialize(m, at, period)
	require.Equal(t, []int{2}, due)
	th.obj.CommitDelta(due, at)

	m2 := &message.Message{}
	assert.Nil(t, th.obj.DeltaSerialize(m2, at.Add(period/2), period))
}

func TestIdentifiersStrictlyIncreasing(t *testing.T) {
	c := NewContext()

	var last ID
	for i := 0; i < 1000; i++ {
		o := c.NewObject("thing")
		assert.Greater(t, o.ID(), last)
		last = o.ID()
	}
}

func TestSetEqualValueIsNoop(t *testing.T) {
	c := NewContext()
	th := newThing(c)
	th.obj.CommitFull(testEpoch)

	th.count.Set(0) // already 0
	assert.False(t, th.count.Modified())
	assert.False(t, th.obj.Changed())

	// Stream fields skip the comparison; transmission does not depend on
	// the value changing.
	th.heading.Set(0.0)
	assert.True(t, th.obj.Changed())
}

func TestDeserializeDoesNotMarkDirty(t *testing.T) {
	c := NewContext()
	src := newThing(c)
	src.count.Set(3)

	m := &message.Message{}
	src.obj.FullSerialize(m)

	dst := mirrorThing(src.obj.ID())
	dst.obj.CommitFull(testEpoch)

	require.NoError(t, dst.obj.FullDeserialize(m))
	assert.False(t, dst.obj.Changed(), "applying received values must not re-mark dirty")
	assert.False(t, dst.count.Modified())
}

func TestFullDeserializeUnderrun(t *testing.T) {
	c := NewContext()
	dst := mirrorThing(c.NewID())

	err := dst.obj.FullDeserialize(message.FromBytes([]byte{1, 2}))
	assert.ErrorIs(t, err, message.ErrUnderrun)
}

func TestAttachDetach(t *testing.T) {
	c := NewContext()
	th := newThing(c)

	h1 := &fakeHost{}
	require.NoError(t, th.obj.Attach(h1))
	assert.Equal(t, []*Object{th.obj}, h1.added)

	// Attaching again to the same host is a no-op.
	require.NoError(t, th.obj.Attach(h1))
	assert.Len(t, h1.added, 1)

	// Reattachment removes from the old host first.
	h2 := &fakeHost{}
	require.NoError(t, th.obj.Attach(h2))
	assert.Equal(t, []*Object{th.obj}, h1.removed)
	assert.Equal(t, []*Object{th.obj}, h2.added)

	th.obj.Detach()
	assert.Equal(t, []*Object{th.obj}, h2.removed)
	assert.Nil(t, th.obj.Host())
}

func TestAttachErrorLeavesDetached(t *testing.T) {
	c := NewContext()
	th := newThing(c)

	h := &fakeHost{addErr: assert.AnError}
	assert.ErrorIs(t, th.obj.Attach(h), assert.AnError)
	assert.Nil(t, th.obj.Host())
}

func TestNotifyReachesHost(t *testing.T) {
	c := NewContext()
	th := newThing(c)
	h := &fakeHost{}
	require.NoError(t, th.obj.Attach(h))

	th.count.Set(5)
	assert.Equal(t, []*Object{th.obj}, h.updated)
}

func TestMoveRelocation(t *testing.T) {
	c := NewContext()
	th := newThing(c)
	h := &fakeHost{}
	require.NoError(t, th.obj.Attach(h))

	th.count.Set(11)
	id := th.obj.ID()

	dst := &Object{}
	Move(dst, th.obj)

	// Identity, dirty state and host association carried over.
	assert.Equal(t, id, dst.ID())
	assert.Equal(t, "thing", dst.TypeTag())
	assert.True(t, dst.Changed())
	assert.Equal(t, h, dst.Host())
	assert.Equal(t, [][2]*Object{{th.obj, dst}}, h.moved)

	// The source is left empty and detached.
	assert.Nil(t, th.obj.Host())
	assert.Zero(t, th.obj.NumFields())

	// Fields now notify through the new storage.
	before := len(h.updated)
	th.count.Set(12)
	assert.Equal(t, dst, h.updated[len(h.updated)-1])
	assert.Len(t, h.updated, before+1)
}
