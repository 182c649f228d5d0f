package ondb

import (
	"bytes"
	"os"
	"testing"
)

func newTestHashStore(t *testing.T) *hashStore {
	t.Helper()

	f, err := os.CreateTemp(t.TempDir(), "ondb-hashstore-*.db")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}

	hs, err := createHashStore(f, 17, 4, 4, false)
	if err != nil {
		t.Fatalf("createHashStore: %v", err)
	}

	t.Cleanup(func() { f.Close() })
	return hs
}

func TestHashStorePutGet(t *testing.T) {
	hs := newTestHashStore(t)

	if err := hs.put([]byte("hello"), []byte("world"), false); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := hs.get([]byte("hello"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if !bytes.Equal(got, []byte("world")) {
		t.Fatalf("get = %q, want %q", got, "world")
	}
}

func TestHashStoreGetMissing(t *testing.T) {
	hs := newTestHashStore(t)

	if _, err := hs.get([]byte("nope")); codeOf(err) != ErrNoRecord {
		t.Fatalf("expected ErrNoRecord, got %v", err)
	}
}

func TestHashStoreOverwrite(t *testing.T) {
	hs := newTestHashStore(t)

	if err := hs.put([]byte("k"), []byte("v1"), false); err != nil {
		t.Fatalf("put v1: %v", err)
	}
	if err := hs.put([]byte("k"), []byte("v2-longer-value"), false); err != nil {
		t.Fatalf("put v2: %v", err)
	}

	got, err := hs.get([]byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got, []byte("v2-longer-value")) {
		t.Fatalf("get = %q, want v2-longer-value", got)
	}
}

func TestHashStoreOut(t *testing.T) {
	hs := newTestHashStore(t)

	if err := hs.put([]byte("a"), []byte("1"), false); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := hs.put([]byte("b"), []byte("2"), false); err != nil {
		t.Fatalf("put: %v", err)
	}

	if err := hs.out([]byte("a")); err != nil {
		t.Fatalf("out: %v", err)
	}

	if _, err := hs.get([]byte("a")); codeOf(err) != ErrNoRecord {
		t.Fatalf("expected a to be gone, got %v", err)
	}

	got, err := hs.get([]byte("b"))
	if err != nil || !bytes.Equal(got, []byte("2")) {
		t.Fatalf("get(b) = %q, %v", got, err)
	}
}

func TestHashStoreManyKeysChainTree(t *testing.T) {
	hs := newTestHashStore(t)

	keys := []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf", "hotel"}

	for i, k := range keys {
		if err := hs.put([]byte(k), []byte{byte(i)}, false); err != nil {
			t.Fatalf("put(%s): %v", k, err)
		}
	}

	for i, k := range keys {
		got, err := hs.get([]byte(k))
		if err != nil {
			t.Fatalf("get(%s): %v", k, err)
		}
		if len(got) != 1 || got[0] != byte(i) {
			t.Fatalf("get(%s) = %v, want [%d]", k, got, i)
		}
	}
}

func TestHashStoreCloseReopen(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/store.db"

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	hs, err := createHashStore(f, 17, 4, 4, false)
	if err != nil {
		t.Fatalf("createHashStore: %v", err)
	}

	if err := hs.put([]byte("persisted"), []byte("value"), false); err != nil {
		t.Fatalf("put: %v", err)
	}

	if err := hs.close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	f.Close()

	f2, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer f2.Close()

	hs2, err := openHashStore(f2, nil)
	if err != nil {
		t.Fatalf("openHashStore: %v", err)
	}

	got, err := hs2.get([]byte("persisted"))
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}

	if !bytes.Equal(got, []byte("value")) {
		t.Fatalf("get = %q, want value", got)
	}
}

func TestHashStoreAsyncAppendFlushesOnRead(t *testing.T) {
	hs := newTestHashStore(t)

	if err := hs.put([]byte("buffered"), []byte("v1"), true); err != nil {
		t.Fatalf("async put: %v", err)
	}

	idx := hs.bucketIndex([]byte("buffered"))
	if _, ok := hs.pending[idx]; !ok {
		t.Fatalf("expected async put to sit in the pending buffer")
	}

	got, err := hs.get([]byte("buffered"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got, []byte("v1")) {
		t.Fatalf("get = %q, want v1", got)
	}

	if _, ok := hs.pending[idx]; ok {
		t.Fatalf("conflicting read should have flushed the pending append")
	}
}

func TestHashStoreIterFileOrder(t *testing.T) {
	hs := newTestHashStore(t)

	want := map[string]bool{"one": true, "two": true, "three": true}
	for k := range want {
		if err := hs.put([]byte(k), []byte("v"), false); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	it := hs.iterInit()
	seen := map[string]bool{}

	for {
		rec, err := hs.iterNext(it)
		if err != nil {
			t.Fatalf("iterNext: %v", err)
		}
		if rec == nil {
			break
		}
		seen[string(rec.key)] = true
	}

	if len(seen) != len(want) {
		t.Fatalf("iterated %d records, want %d (%v)", len(seen), len(want), seen)
	}
}
