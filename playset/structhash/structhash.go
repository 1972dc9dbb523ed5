// Package structhash implements the default structural hash over a
// JSON-shaped value, used for divergence detection between the server's
// past-horizon state and a client's reconstruction.
package structhash

import (
	"math"
	"sort"
)

const modulus = 2147483647

// combine folds two hash values into one.
func combine(a, b int64) int64 {
	return (a*65537 + b*8191 + 127) % modulus
}

// Hash computes the structural hash of a decoded JSON value. v must be one
// of: nil, bool, float64, string, []interface{}, map[string]interface{} —
// the shapes produced by encoding/json's default unmarshal-into-interface{}.
func Hash(v interface{}) int64 {
	switch x := v.(type) {
	case nil:
		return 100
	case bool:
		if x {
			return 102
		}
		return 103
	case float64:
		return hashNumber(x)
	case string:
		return hashString(x)
	case []interface{}:
		return hashArray(x)
	case map[string]interface{}:
		return hashObject(x)
	default:
		return 109
	}
}

func hashNumber(n float64) int64 {
	if n == 0 && math.Signbit(n) {
		n = 0 // coerce negative zero to zero
	}
	bits := int64(n)
	if float64(bits) != n {
		// Non-integral: fold the integer part and the fraction scaled by
		// 1e9 (truncated) instead of the float's bit pattern.
		whole := int64(n)
		frac := int64((n - float64(whole)) * 1e9)
		return combine(combine(int64(106), whole), frac)
	}
	return combine(int64(106), bits)
}

func hashString(s string) int64 {
	h := int64(107)
	for _, r := range s {
		h = combine(h, int64(r))
	}
	return combine(h, 300)
}

func hashArray(a []interface{}) int64 {
	h := int64(105)
	for _, elem := range a {
		h = combine(h, Hash(elem))
	}
	return combine(h, 200)
}

func hashObject(o map[string]interface{}) int64 {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := int64(108)
	for _, k := range keys {
		h = combine(h, hashString(k))
		h = combine(h, Hash(o[k]))
	}
	return combine(h, 200)
}
