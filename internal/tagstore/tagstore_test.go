package tagstore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/unkn0wn-root/tagcache/internal/storetest"
)

const ledgerKey = "nextjs:_sharedTags_"

func TestLedgerPutWritesJSONArray(t *testing.T) {
	ctx := context.Background()
	st := storetest.New()
	l := NewLedger(st, ledgerKey, 0)

	if err := l.Put(ctx, "page/a", []string{"x", "y"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok := st.HashField(ledgerKey, "page/a")
	if !ok || got != `["x","y"]` {
		t.Fatalf("ledger field=%q ok=%v", got, ok)
	}
}

func TestLedgerPagesWalksUntilCursorZero(t *testing.T) {
	ctx := context.Background()
	st := storetest.New()
	l := NewLedger(st, ledgerKey, 3)

	for i := 0; i < 10; i++ {
		if err := l.Put(ctx, fmt.Sprintf("k%02d", i), []string{"t"}); err != nil {
			t.Fatal(err)
		}
	}

	var pages, records int
	for page, err := range l.Pages(ctx) {
		if err != nil {
			t.Fatalf("page error: %v", err)
		}
		pages++
		records += len(page)
	}
	if pages != 4 || records != 10 {
		t.Fatalf("pages=%d records=%d want 4/10", pages, records)
	}
	if got := st.Calls(storetest.OpHScan); got != 4 {
		t.Fatalf("hscan calls=%d want 4", got)
	}

	// restartable: a second range starts from cursor zero again
	again := 0
	for page, err := range l.Pages(ctx) {
		if err != nil {
			t.Fatal(err)
		}
		again += len(page)
	}
	if again != 10 {
		t.Fatalf("second scan saw %d records", again)
	}
}

func TestLedgerPagesStopsOnBreak(t *testing.T) {
	ctx := context.Background()
	st := storetest.New()
	l := NewLedger(st, ledgerKey, 1)
	for i := 0; i < 5; i++ {
		_ = l.Put(ctx, fmt.Sprintf("k%d", i), nil)
	}
	for range l.Pages(ctx) {
		break
	}
	if got := st.Calls(storetest.OpHScan); got != 1 {
		t.Fatalf("hscan calls=%d want 1 after early break", got)
	}
}

func TestLedgerPagesYieldsStoreError(t *testing.T) {
	st := storetest.New()
	boom := errors.New("boom")
	st.Fail(storetest.OpHScan, boom)
	l := NewLedger(st, ledgerKey, 10)

	if _, err := l.KeysWithTag(context.Background(), "x"); !errors.Is(err, boom) {
		t.Fatalf("expected scan error, got %v", err)
	}
}

func TestKeysWithTag(t *testing.T) {
	ctx := context.Background()
	st := storetest.New()
	l := NewLedger(st, ledgerKey, 2)

	_ = l.Put(ctx, "a", []string{"x"})
	_ = l.Put(ctx, "b", []string{"y", "x"})
	_ = l.Put(ctx, "c", []string{"y"})
	st.PutField(ledgerKey, "d", "not json")

	keys, err := l.KeysWithTag(ctx, "x")
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"a", "b", "d"}; !slices.Equal(keys, want) {
		t.Fatalf("keys=%v want %v (corrupt field included)", keys, want)
	}

	if err := l.Remove(ctx, "a", "b"); err != nil {
		t.Fatal(err)
	}
	if st.HashLen(ledgerKey) != 2 {
		t.Fatalf("remove left %d fields", st.HashLen(ledgerKey))
	}
}

func TestClockMarkNeverDecreases(t *testing.T) {
	ctx := context.Background()
	st := storetest.New()
	c := NewClock(st, "nextjs:__revalidated_tags__")

	t2 := time.UnixMilli(2000)
	if err := c.Mark(ctx, "_N_T_/a", t2); err != nil {
		t.Fatal(err)
	}
	if err := c.Mark(ctx, "_N_T_/a", time.UnixMilli(1500)); err != nil {
		t.Fatal(err)
	}
	got, err := c.Times(ctx, []string{"_N_T_/a", "_N_T_/b"})
	if err != nil {
		t.Fatal(err)
	}
	if got["_N_T_/a"] != 2000 {
		t.Fatalf("clock went backwards: %d", got["_N_T_/a"])
	}
	if _, ok := got["_N_T_/b"]; ok {
		t.Fatalf("unrevalidated tag should be absent")
	}

	if err := c.Mark(ctx, "_N_T_/a", time.UnixMilli(3000)); err != nil {
		t.Fatal(err)
	}
	got, _ = c.Times(ctx, []string{"_N_T_/a"})
	if got["_N_T_/a"] != 3000 {
		t.Fatalf("clock did not advance: %d", got["_N_T_/a"])
	}
}

func TestClockTimesSkipsGarbage(t *testing.T) {
	st := storetest.New()
	c := NewClock(st, "clock")
	st.PutField("clock", "t", "NaN")
	got, err := c.Times(context.Background(), []string{"t"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("garbage value should be treated as absent: %v", got)
	}
}
