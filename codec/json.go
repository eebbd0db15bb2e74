package codec

import "encoding/json"

// JSON serializes with encoding/json. []byte fields travel as base64 strings,
// which keeps entries readable by non-Go handlers sharing the store.
type JSON[V any] struct{}

var _ Codec[struct{}] = JSON[struct{}]{}

func (JSON[V]) Format() Format             { return FormatJSON }
func (JSON[V]) Encode(v V) ([]byte, error) { return json.Marshal(v) }
func (JSON[V]) Decode(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}
