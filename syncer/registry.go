package syncer

import (
	"errors"
	"fmt"

	"github.com/Edgaru089/SFNUL/types/synced"
)

// ErrUnknownTypeTag is wrapped by Registry.New when a Create message
// references a tag no factory was registered for. The message is dropped
// and the error logged; it is not fatal to the link.
var ErrUnknownTypeTag = errors.New("unknown type tag")

// Factory builds a mirror object for an inbound Create: an Object carrying
// the peer-assigned identifier, with the exact field schema the local
// application declares for this tag. Use synced.MirrorObject inside.
type Factory func(id synced.ID) *synced.Object

// Registry maps type tags to mirror factories. The tag set, like the wire
// layout, is part of the contract between peers: both sides must register
// the same tags with matching field schemas.
type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register binds a factory to a tag. Registering a tag twice is a
// programming error.
func (r *Registry) Register(tag string, f Factory) error {
	if _, ok := r.factories[tag]; ok {
		return fmt.Errorf("type tag %q registered twice", tag)
	}
	r.factories[tag] = f
	return nil
}

// New builds a mirror for tag carrying id.
func (r *Registry) New(tag string, id synced.ID) (*synced.Object, error) {
	f, ok := r.factories[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTypeTag, tag)
	}
	return f(id), nil
}
