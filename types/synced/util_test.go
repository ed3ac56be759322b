package synced

import "time"

// Test fixture: one field per synchronization policy.
type thing struct {
	obj *Object

	name    *Field[string]  // Static
	count   *Field[int32]   // Dynamic
	heading *Field[float64] // Stream
}

func declareThing(o *Object) *thing {
	return &thing{
		obj: o,

		name:    NewField(o, Static, ""),
		count:   NewField(o, Dynamic, int32(0)),
		heading: NewField(o, Stream, 0.0),
	}
}

func newThing(c *Context) *thing {
	return declareThing(c.NewObject("thing"))
}

func mirrorThing(id ID) *thing {
	return declareThing(MirrorObject("thing", id))
}

var testEpoch = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

// fakeHost records the bookkeeping calls an Object makes into its host.
type fakeHost struct {
	added   []*Object
	removed []*Object
	updated []*Object
	moved   [][2]*Object

	addErr error
}

func (h *fakeHost) AddObject(o *Object) error {
	if h.addErr != nil {
		return h.addErr
	}
	h.added = append(h.added, o)
	return nil
}

func (h *fakeHost) RemoveObject(o *Object) {
	h.removed = append(h.removed, o)
}

func (h *fakeHost) MoveObject(from, to *Object) {
	h.moved = append(h.moved, [2]*Object{from, to})
}

func (h *fakeHost) UpdateObject(o *Object) {
	h.updated = append(h.updated, o)
}
