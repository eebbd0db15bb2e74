package bigcache

import (
	"bytes"
	"context"
	"testing"
)

func TestRoundTripIsByteExact(t *testing.T) {
	ctx := context.Background()
	p, err := New(Config{MaxEntriesInWindow: 16, MaxEntrySize: 64})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close(ctx)

	want := []byte{0x00, 0xff, 0x10, 'a'}
	if _, err := p.Set(ctx, "k", want, 1, 0); err != nil {
		t.Fatal(err)
	}
	got, ok, err := p.Get(ctx, "k")
	if err != nil || !ok || !bytes.Equal(got, want) {
		t.Fatalf("get=%v ok=%v err=%v", got, ok, err)
	}
}

func TestMissAndDeleteMissing(t *testing.T) {
	ctx := context.Background()
	p, err := New(Config{MaxEntriesInWindow: 16})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close(ctx)

	if _, ok, err := p.Get(ctx, "nope"); ok || err != nil {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if err := p.Del(ctx, "nope"); err != nil {
		t.Fatalf("deleting a missing key should not fail: %v", err)
	}
}
