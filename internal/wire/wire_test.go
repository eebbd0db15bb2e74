package wire

import (
	"bytes"
	"encoding/binary"
	"testing"
)

const (
	fmtJSON    byte = 1
	fmtMsgpack byte = 2
	fmtCBOR    byte = 3
)

func mustDecode(t *testing.T, b []byte) (byte, []byte) {
	t.Helper()
	codec, p, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	return codec, p
}

func TestRoundTripEmptyAndNonEmpty(t *testing.T) {
	cases := []struct {
		codec   byte
		payload []byte
	}{
		{fmtJSON, nil},
		{fmtMsgpack, []byte("hello")},
		{fmtCBOR, []byte{0, 1, 2, 3, 4, 0xFF}},
	}
	for _, tc := range cases {
		enc := Encode(tc.codec, tc.payload)
		codec, p := mustDecode(t, enc)
		if codec != tc.codec {
			t.Fatalf("codec mismatch: got %d want %d", codec, tc.codec)
		}
		if !bytes.Equal(p, tc.payload) {
			t.Fatalf("payload mismatch: got %x want %x", p, tc.payload)
		}
	}
}

func TestRejectsTrailingBytes(t *testing.T) {
	enc := Encode(fmtJSON, []byte("x"))
	enc = append(enc, 0xDE, 0xAD)
	if _, _, err := Decode(enc); err == nil {
		t.Fatalf("expected error on trailing bytes")
	}
}

func TestCorruptHeadersAndLengths(t *testing.T) {
	enc := Encode(fmtJSON, []byte("abc"))

	badMagic := append([]byte(nil), enc...)
	badMagic[0] = 'X'
	if _, _, err := Decode(badMagic); err == nil {
		t.Fatalf("expected error on bad magic")
	}

	badVer := append([]byte(nil), enc...)
	badVer[4] = version + 1
	if _, _, err := Decode(badVer); err == nil {
		t.Fatalf("expected error on bad version")
	}

	noCodec := append([]byte(nil), enc...)
	noCodec[5] = 0
	if _, _, err := Decode(noCodec); err == nil {
		t.Fatalf("expected error on zero codec id")
	}

	// vlen is at offset 6..9 (4 magic +1 ver +1 codec)
	tooLong := append([]byte(nil), enc...)
	binary.BigEndian.PutUint32(tooLong[6:10], uint32(len("abc")+1))
	if _, _, err := Decode(tooLong); err == nil {
		t.Fatalf("expected error on vlen beyond buffer")
	}

	trunc := enc[:len(enc)-1]
	if _, _, err := Decode(trunc); err == nil {
		t.Fatalf("expected error on truncated buffer")
	}

	if _, _, err := Decode([]byte(`{"value":null}`)); err == nil {
		t.Fatalf("expected error on unframed json")
	}
}

func TestZeroCopyPayload(t *testing.T) {
	enc := Encode(fmtJSON, []byte("Z"))
	_, p := mustDecode(t, enc)
	p[0] = 'Q'
	_, p2 := mustDecode(t, enc)
	if p2[0] != 'Q' {
		t.Fatalf("expected zero-copy slice into enc buffer")
	}
}
