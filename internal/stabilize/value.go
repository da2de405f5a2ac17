package stabilize

import (
	"encoding/json"
	"math"
	"strconv"
)

// Value is a stabilised coordinate or feature. The zero Value is Unavailable,
// meaning the window does not yet hold enough history; it is never treated as 0.
type Value struct {
	v  float64
	ok bool
}

// Unavailable is the "not enough history yet" result.
var Unavailable = Value{}

// Available wraps a computed number.
func Available(v float64) Value {
	return Value{v: v, ok: true}
}

// Float returns the number and whether it is available.
func (v Value) Float() (float64, bool) {
	return v.v, v.ok
}

// IsAvailable reports whether v holds a number.
func (v Value) IsAvailable() bool {
	return v.ok
}

// Finite returns the number if it is available and neither NaN nor infinite.
// A tilt slope is infinite when the eyes' dx cancels the epsilon exactly.
func (v Value) Finite() (float64, bool) {
	if !v.ok || math.IsNaN(v.v) || math.IsInf(v.v, 0) {
		return 0, false
	}
	return v.v, true
}

func (v Value) String() string {
	if !v.ok {
		return "unavailable"
	}
	return strconv.FormatFloat(v.v, 'g', -1, 64)
}

// MarshalJSON encodes Unavailable as null. Non-finite results are also null
// since JSON has no representation for them.
func (v Value) MarshalJSON() ([]byte, error) {
	f, ok := v.Finite()
	if !ok {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

// UnmarshalJSON decodes null as Unavailable.
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Unavailable
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = Available(f)
	return nil
}
