package codec

import "fmt"

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// Format identifies a serialization on the wire. Entries record the format
// they were written with so a reader can reject foreign payloads.
type Format byte

const (
	FormatJSON    Format = 1
	FormatMsgpack Format = 2
	FormatCBOR    Format = 3
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatMsgpack:
		return "msgpack"
	case FormatCBOR:
		return "cbor"
	default:
		return fmt.Sprintf("format(%d)", byte(f))
	}
}

// Formatted is implemented by codecs that know their wire format.
type Formatted interface {
	Format() Format
}

// FormatOf returns the wire format of c, or 0 when c does not report one.
func FormatOf[V any](c Codec[V]) Format {
	if f, ok := c.(Formatted); ok {
		return f.Format()
	}
	return 0
}

// ByName returns the codec registered under name: "json" (default when empty),
// "msgpack" or "cbor".
func ByName[V any](name string) (Codec[V], error) {
	switch name {
	case "", "json":
		return JSON[V]{}, nil
	case "msgpack":
		return Msgpack[V]{}, nil
	case "cbor":
		return NewCBOR[V](false)
	default:
		return nil, fmt.Errorf("codec: unknown codec %q", name)
	}
}
