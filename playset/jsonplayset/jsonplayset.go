// Package jsonplayset implements the default capabilities a playset gets
// for free when it doesn't supply its own: structural JSON
// serialize/deserialize, round-trip copy, and the structural hash. Concrete
// playsets embed Defaults and only need to implement Name and Advance.
package jsonplayset

import (
	"encoding/json"
	"fmt"

	"github.com/horizonrelay/horizon/playset/structhash"
)

// Defaults supplies the default capabilities over an opaque state of any
// JSON-marshalable Go type. Embed it in a concrete playset struct.
type Defaults struct{}

// Serialize marshals state to its JSON text form.
func (Defaults) Serialize(state interface{}) (string, error) {
	b, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("jsonplayset: serialize: %w", err)
	}
	return string(b), nil
}

// Deserialize parses data into a generic JSON value (map/slice/scalar).
// Concrete playsets with a typed state should override this.
func (Defaults) Deserialize(data string) (interface{}, error) {
	var v interface{}
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return nil, fmt.Errorf("jsonplayset: deserialize: %w", err)
	}
	return v, nil
}

// Copy round-trips state through Serialize/Deserialize by default.
// Concrete playsets with a typed state should override this to avoid
// losing the concrete type through the generic Deserialize.
func (d Defaults) Copy(state interface{}) (interface{}, error) {
	s, err := d.Serialize(state)
	if err != nil {
		return nil, err
	}
	return d.Deserialize(s)
}

// Hash computes the structural hash of the JSON-decoded form of state. If
// state is already a generic JSON value (map/slice/scalar) it is
// hashed directly; otherwise it is round-tripped through JSON first so
// typed Go structs hash the same way a client's plain-JSON reconstruction
// would.
func (d Defaults) Hash(state interface{}) (int64, error) {
	switch state.(type) {
	case nil, bool, float64, string, []interface{}, map[string]interface{}:
		return structhash.Hash(state), nil
	}
	b, err := json.Marshal(state)
	if err != nil {
		return 0, fmt.Errorf("jsonplayset: hash: %w", err)
	}
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return 0, fmt.Errorf("jsonplayset: hash: %w", err)
	}
	return structhash.Hash(v), nil
}

// NoCommands implements CommandRateLimit for playsets that accept no
// commands at all.
func NoCommands(verb string) (float64, bool) { return 0, false }
