package transport

import (
	"github.com/LukaGiorgadze/gonull"
)

// Info is exchanged, JSON-encoded, in the hello frame when a framed TCP
// link is established. Everything beyond the session ID is advisory: the
// engine does not negotiate, each peer applies its own configuration.
type Info struct {
	// SessionID identifies this end of the link in logs, freshly
	// generated per connection.
	SessionID string

	// Name of the application, for log correlation.
	Name gonull.Nullable[string]

	// StreamPeriodMillis is the stream synchronization period this peer
	// applies to its own Stream fields. Informational only; there is no
	// enforced consistency between peers.
	StreamPeriodMillis gonull.Nullable[int64]
}
