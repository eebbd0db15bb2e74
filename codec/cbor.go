package codec

import (
	"github.com/fxamacker/cbor/v2"
)

// maxCBORNesting bounds decode depth. A stored entry nests at most a few
// levels (entry, value, fetch data, header map), so anything deeper in the
// shared store was not written by a cache handler.
const maxCBORNesting = 16

// CBOR is the compact binary codec for entries. Construct with NewCBOR.
//
// Field names come from the `json` tags, which fxamacker/cbor honors when a
// field has no `cbor` tag, so a CBOR entry carries the same keys as its JSON
// form and the two stay interchangeable after a CACHE_CODEC switch.
type CBOR[V any] struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var _ Codec[struct{}] = CBOR[struct{}]{}

// NewCBOR builds the codec. canonical selects RFC 8949 core deterministic
// encoding, which sorts map keys so header and segment maps encode to the
// same bytes on every write.
func NewCBOR[V any](canonical bool) (CBOR[V], error) {
	eo := cbor.PreferredUnsortedEncOptions()
	if canonical {
		eo = cbor.CoreDetEncOptions()
	}
	em, err := eo.EncMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	dm, err := cbor.DecOptions{MaxNestedLevels: maxCBORNesting}.DecMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	return CBOR[V]{enc: em, dec: dm}, nil
}

func (CBOR[V]) Format() Format { return FormatCBOR }

func (c CBOR[V]) Encode(v V) ([]byte, error) {
	return c.enc.Marshal(v)
}

func (c CBOR[V]) Decode(b []byte) (V, error) {
	var v V
	err := c.dec.Unmarshal(b, &v)
	return v, err
}
