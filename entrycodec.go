package tagcache

import (
	"encoding/base64"
	"fmt"

	"github.com/unkn0wn-root/tagcache/codec"
	"github.com/unkn0wn-root/tagcache/internal/wire"
)

// storedEntry is the document inside the wire envelope. Binary fields of the
// value travel as base64 strings so the text codecs can carry them; the
// envelope header itself is binary, so only handlers that strip it can read
// an entry.
type storedEntry struct {
	Value        *storedValue `json:"value"`
	Tags         []string     `json:"tags"`
	LastModified int64        `json:"lastModified"`
	Lifespan     *Lifespan    `json:"lifespan,omitempty"`
}

type storedValue struct {
	Kind           Kind              `json:"kind"`
	Status         int               `json:"status,omitempty"`
	Headers        map[string]string `json:"headers,omitempty"`
	Body           string            `json:"body,omitempty"`
	HTML           string            `json:"html,omitempty"`
	RSCData        string            `json:"rscData,omitempty"`
	SegmentData    map[string]string `json:"segmentData,omitempty"`
	PostponedState string            `json:"postponed,omitempty"`
	PageData       string            `json:"pageData,omitempty"`
	Data           *FetchData        `json:"data,omitempty"`
	Revalidate     int               `json:"revalidate,omitempty"`
	Props          string            `json:"props,omitempty"`
	ETag           string            `json:"etag,omitempty"`
	Buffer         string            `json:"buffer,omitempty"`
	Extension      string            `json:"extension,omitempty"`
}

// EntryCodec converts entries to and from the bytes kept in a store. The zero
// value encodes JSON.
type EntryCodec struct {
	inner  codec.Codec[storedEntry]
	format codec.Format
}

// NewEntryCodec returns a codec by name ("json", "msgpack", "cbor"; empty means
// json). maxBytes > 0 rejects larger payloads on decode.
func NewEntryCodec(name string, maxBytes int) (EntryCodec, error) {
	inner, err := codec.ByName[storedEntry](name)
	if err != nil {
		return EntryCodec{}, err
	}
	format := codec.FormatOf(inner)
	if maxBytes > 0 {
		inner = codec.LimitCodec[storedEntry]{Inner: inner, MaxDecode: maxBytes}
	}
	return EntryCodec{inner: inner, format: format}, nil
}

func (c EntryCodec) resolve() (codec.Codec[storedEntry], codec.Format) {
	if c.inner == nil {
		return codec.JSON[storedEntry]{}, codec.FormatJSON
	}
	return c.inner, c.format
}

// Format is the serialization recorded in every envelope this codec writes.
func (c EntryCodec) Format() codec.Format {
	_, f := c.resolve()
	return f
}

// Encode serializes e. Unknown value kinds are rejected.
func (c EntryCodec) Encode(e *Entry) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("tagcache: encode nil entry")
	}
	inner, format := c.resolve()
	sv, err := toStoredValue(e.Value)
	if err != nil {
		return nil, err
	}
	payload, err := inner.Encode(storedEntry{
		Value:        sv,
		Tags:         e.Tags,
		LastModified: e.LastModified,
		Lifespan:     e.Lifespan,
	})
	if err != nil {
		return nil, err
	}
	return wire.Encode(byte(format), payload), nil
}

// Decode parses b and restores binary fields for the value's kind.
func (c EntryCodec) Decode(b []byte) (*Entry, error) {
	inner, format := c.resolve()
	f, payload, err := wire.Decode(b)
	if err != nil {
		return nil, err
	}
	if codec.Format(f) != format {
		return nil, fmt.Errorf("tagcache: entry written as %v, codec reads %v", codec.Format(f), format)
	}
	se, err := inner.Decode(payload)
	if err != nil {
		return nil, err
	}
	v, err := fromStoredValue(se.Value)
	if err != nil {
		return nil, err
	}
	tags := se.Tags
	if tags == nil {
		tags = []string{}
	}
	return &Entry{
		Value:        v,
		Tags:         tags,
		LastModified: se.LastModified,
		Lifespan:     se.Lifespan,
	}, nil
}

var b64 = base64.StdEncoding

func toStoredValue(v *Value) (*storedValue, error) {
	if v == nil {
		return nil, nil
	}
	sv := &storedValue{Kind: v.Kind}
	switch v.Kind {
	case KindAppRoute:
		sv.Status = v.Status
		sv.Headers = v.Headers
		sv.Body = b64.EncodeToString(v.Body)
	case KindAppPage:
		sv.Status = v.Status
		sv.Headers = v.Headers
		sv.HTML = v.HTML
		sv.RSCData = b64.EncodeToString(v.RSCData)
		sv.PostponedState = v.PostponedState
		if v.SegmentData != nil {
			sv.SegmentData = make(map[string]string, len(v.SegmentData))
			for seg, b := range v.SegmentData {
				sv.SegmentData[seg] = b64.EncodeToString(b)
			}
		}
	case KindPage:
		sv.Status = v.Status
		sv.Headers = v.Headers
		sv.HTML = v.HTML
		sv.PageData = string(v.PageData)
	case KindFetch:
		sv.Data = v.Data
		sv.Revalidate = v.Revalidate
	case KindRedirect:
		sv.Props = string(v.Props)
	case KindImage:
		sv.ETag = v.ETag
		sv.Buffer = b64.EncodeToString(v.Buffer)
		sv.Extension = v.Extension
		sv.Revalidate = v.Revalidate
	default:
		return nil, fmt.Errorf("tagcache: unknown value kind %q", v.Kind)
	}
	return sv, nil
}

func fromStoredValue(sv *storedValue) (*Value, error) {
	if sv == nil {
		return nil, nil
	}
	v := &Value{Kind: sv.Kind}
	var err error
	switch sv.Kind {
	case KindAppRoute:
		v.Status = sv.Status
		v.Headers = sv.Headers
		v.Body, err = decodeB64("body", sv.Body)
	case KindAppPage:
		v.Status = sv.Status
		v.Headers = sv.Headers
		v.HTML = sv.HTML
		v.PostponedState = sv.PostponedState
		if v.RSCData, err = decodeB64("rscData", sv.RSCData); err != nil {
			return nil, err
		}
		if sv.SegmentData != nil {
			v.SegmentData = make(map[string][]byte, len(sv.SegmentData))
			for seg, s := range sv.SegmentData {
				if v.SegmentData[seg], err = decodeB64("segmentData["+seg+"]", s); err != nil {
					return nil, err
				}
			}
		}
	case KindPage:
		v.Status = sv.Status
		v.Headers = sv.Headers
		v.HTML = sv.HTML
		if sv.PageData != "" {
			v.PageData = []byte(sv.PageData)
		}
	case KindFetch:
		v.Data = sv.Data
		v.Revalidate = sv.Revalidate
	case KindRedirect:
		if sv.Props != "" {
			v.Props = []byte(sv.Props)
		}
	case KindImage:
		v.ETag = sv.ETag
		v.Extension = sv.Extension
		v.Revalidate = sv.Revalidate
		v.Buffer, err = decodeB64("buffer", sv.Buffer)
	default:
		return nil, fmt.Errorf("tagcache: unknown value kind %q", sv.Kind)
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func decodeB64(field, s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	b, err := b64.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("tagcache: %s: %w", field, err)
	}
	return b, nil
}
