package ondb

import "testing"

func TestFreeListAllocateReuse(t *testing.T) {
	fl := newFreeList(4)

	fl.release(100, 50)
	fl.release(200, 30)

	offset, ok := fl.allocate(20)
	if !ok || offset != 200 {
		t.Fatalf("allocate(20) = (%d, %v), want (200, true)", offset, ok)
	}

	// surplus of 10 bytes at 220 should have been reinserted
	offset2, ok2 := fl.allocate(10)
	if !ok2 || offset2 != 220 {
		t.Fatalf("allocate(10) = (%d, %v), want (220, true)", offset2, ok2)
	}
}

func TestFreeListAllocateNoFit(t *testing.T) {
	fl := newFreeList(4)
	fl.release(0, 10)

	if _, ok := fl.allocate(20); ok {
		t.Fatalf("allocate(20) should fail, pool only has a 10 byte block")
	}
}

func TestFreeListCompactMergesAdjacent(t *testing.T) {
	fl := newFreeList(1)

	fl.release(0, 10)
	fl.release(10, 10)
	fl.release(30, 10)

	total := 0
	for _, b := range fl.blocks {
		total += int(b.size)
	}

	if total != 30 {
		t.Fatalf("expected 30 total free bytes after compaction, got %d (blocks=%v)", total, fl.blocks)
	}
}

func TestFreeListSerializeRoundTrip(t *testing.T) {
	fl := newFreeList(8)
	fl.release(10, 5)
	fl.release(100, 50)
	fl.release(500, 8)

	data := fl.serialize()

	restored, err := deserializeFreeList(data, 8)
	if err != nil {
		t.Fatalf("deserializeFreeList: %v", err)
	}

	if len(restored.blocks) != len(fl.blocks) {
		t.Fatalf("got %d blocks, want %d", len(restored.blocks), len(fl.blocks))
	}

	if _, ok := restored.allocate(5); !ok {
		t.Fatalf("restored pool should still satisfy a 5 byte allocation")
	}
}
