package tagcache

import (
	"encoding/json"
	"time"
)

// Kind discriminates the payload carried by a Value.
type Kind string

const (
	KindAppRoute Kind = "APP_ROUTE"
	KindAppPage  Kind = "APP_PAGE"
	KindPage     Kind = "PAGE"
	KindFetch    Kind = "FETCH"
	KindRedirect Kind = "REDIRECT"
	KindImage    Kind = "IMAGE"
)

// Value is the framework payload. Only the fields of its Kind are meaningful
// and only those survive encoding.
type Value struct {
	Kind Kind

	// APP_ROUTE, APP_PAGE, PAGE
	Status  int
	Headers map[string]string

	// APP_ROUTE
	Body []byte

	// APP_PAGE, PAGE
	HTML string

	// APP_PAGE
	RSCData        []byte
	SegmentData    map[string][]byte
	PostponedState string

	// PAGE: serialized page props.
	PageData json.RawMessage

	// FETCH
	Data *FetchData

	// FETCH, IMAGE: revalidate window in seconds.
	Revalidate int

	// REDIRECT
	Props json.RawMessage

	// IMAGE
	ETag      string
	Buffer    []byte
	Extension string
}

// FetchData is a cached upstream response.
type FetchData struct {
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body"`
	Status  int               `json:"status,omitempty"`
	URL     string            `json:"url"`
}

// Lifespan describes when an entry goes stale and expires. Times are unix
// seconds, ages are seconds.
type Lifespan struct {
	LastModifiedAt int64 `json:"lastModifiedAt,omitempty"`
	StaleAt        int64 `json:"staleAt,omitempty"`
	ExpireAt       int64 `json:"expireAt"`
	StaleAge       int64 `json:"staleAge,omitempty"`
	ExpireAge      int64 `json:"expireAge,omitempty"`
	Revalidate     int64 `json:"revalidate,omitempty"`
}

// Entry is one cached item.
type Entry struct {
	Value *Value
	// Tags are the explicit tags assigned by the writer. Implicit tags are
	// never stored here.
	Tags []string
	// LastModified is the write time in epoch milliseconds.
	LastModified int64
	// Lifespan is nil for entries without automatic expiry.
	Lifespan *Lifespan
}

// expireAt returns the absolute expiry, zero when the entry never expires.
func (e *Entry) expireAt() time.Time {
	if e.Lifespan == nil || e.Lifespan.ExpireAt <= 0 {
		return time.Time{}
	}
	return time.Unix(e.Lifespan.ExpireAt, 0)
}

// expired reports whether the entry's lifespan has run out at now.
func (e *Entry) expired(now time.Time) bool {
	at := e.expireAt()
	return !at.IsZero() && !now.Before(at)
}
