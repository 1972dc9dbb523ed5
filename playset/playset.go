// Package playset defines the external deterministic game-logic contract
// and a process-startup registry for named playsets. The core
// treats a registered playset as opaque: it calls Advance and, for the
// optional capabilities, falls back to the package defaults.
package playset

import (
	"fmt"
	"sync"

	"github.com/horizonrelay/horizon/event"
)

// Input is one controller's last-known frame input, in the ascending
// controller-ID order the advancer builds inputs in.
type Input struct {
	Controller int
	Input      string
}

// Playset is the required+optional capability surface a game-logic module
// must implement. Optional capabilities that a module does not need can be
// satisfied by embedding Defaults, which supplies the fallbacks.
type Playset interface {
	// Name is the unique identifier used in snapshots and logins.
	Name() string

	// Advance mutates state according to one frame's canonically ordered
	// event partitions. This is the only required capability; it may only
	// mutate state, never read external clocks or randomness.
	Advance(state interface{}, connects, commands []event.Event, inputs []Input, disconnects []event.Event) (interface{}, error)

	// Serialize/Deserialize convert between the opaque in-memory state and
	// its wire/file form. Default: structural JSON (jsonplayset).
	Serialize(state interface{}) (string, error)
	Deserialize(data string) (interface{}, error)

	// Copy duplicates state. Default: round-trip through Serialize/Deserialize.
	Copy(state interface{}) (interface{}, error)

	// Hash computes the structural hash of state for divergence detection.
	// Default: structhash over the serializable form.
	Hash(state interface{}) (int64, error)

	// CommandRateLimit returns the per-second cap for verb, and whether the
	// verb is accepted at all. Default: no commands accepted.
	CommandRateLimit(verb string) (ratePerSecond float64, ok bool)

	// MaxArgLength is the per-verb argument length cap.
	MaxArgLength(verb string) int

	// MaxInputLength is the per-frame input string length cap.
	MaxInputLength() int
}

// Registry holds playsets registered at process startup, replacing the
// ambient-global registerPlayset pattern with an explicit, passed-around
// object.
type Registry struct {
	mu       sync.RWMutex
	playsets map[string]Playset
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{playsets: make(map[string]Playset)}
}

// Register adds a playset, keyed by its Name(). Intended for process
// startup only; it is safe to call concurrently but playsets should not be
// registered after the server starts serving connections.
func (r *Registry) Register(p Playset) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.playsets[p.Name()] = p
}

// Lookup returns the playset registered under name, if any.
func (r *Registry) Lookup(name string) (Playset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.playsets[name]
	if !ok {
		return nil, fmt.Errorf("playset: %q is not registered", name)
	}
	return p, nil
}

// Names returns the registered playset names, for prelogin instance lists.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.playsets))
	for n := range r.playsets {
		names = append(names, n)
	}
	return names
}
