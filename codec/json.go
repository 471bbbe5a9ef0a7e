package codec

import (
	"encoding/json"
)

// JSON is the standard-library JSON codec.
//
// Notes:
// - JSON is portable and easy to inspect when debugging swap contents.
// - Time, complex numbers, funcs, channels, etc may not be supported.
// - Unexported fields are not encoded; payload types must export their state.
type JSON struct{}

// Marshal encodes the value to JSON.
func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal decodes the JSON data into v.
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name returns the unique name of the codec ("json").
func (JSON) Name() string { return "json" }

// Default is the codec used by NewSerializer when none is given.
var Default Codec = MsgPack{}
