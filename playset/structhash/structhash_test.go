package structhash

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHash_Deterministic(t *testing.T) {
	v := map[string]interface{}{"a": 1.0, "b": []interface{}{"x", "y"}}
	assert.Equal(t, Hash(v), Hash(v))
}

func TestHash_KeyOrderIndependent(t *testing.T) {
	a := map[string]interface{}{"a": 1.0, "b": 2.0, "c": 3.0}
	b := map[string]interface{}{"c": 3.0, "a": 1.0, "b": 2.0}
	assert.Equal(t, Hash(a), Hash(b))
}

func TestHash_NegativeZeroCoercedToZero(t *testing.T) {
	// The constant -0.0 is plain zero in Go; Copysign yields a real negative zero.
	assert.Equal(t, Hash(0.0), Hash(math.Copysign(0, -1)))
}

func TestHash_DifferentValuesDiffer(t *testing.T) {
	assert.NotEqual(t, Hash("a"), Hash("b"))
	assert.NotEqual(t, Hash(1.0), Hash(2.0))
	assert.NotEqual(t, Hash(true), Hash(false))
}

func TestHash_TypeDistinctAcrossShapes(t *testing.T) {
	assert.NotEqual(t, Hash(nil), Hash(false))
	assert.NotEqual(t, Hash([]interface{}{}), Hash(map[string]interface{}{}))
}

func TestHash_ArrayOrderSensitive(t *testing.T) {
	a := []interface{}{"x", "y"}
	b := []interface{}{"y", "x"}
	assert.NotEqual(t, Hash(a), Hash(b))
}

func TestHash_NestedStructures(t *testing.T) {
	v := map[string]interface{}{
		"players": []interface{}{
			map[string]interface{}{"name": "alice", "score": 3.0},
			map[string]interface{}{"name": "bob", "score": 5.0},
		},
	}
	h1 := Hash(v)
	h2 := Hash(v)
	assert.Equal(t, h1, h2)
}
