package ondb

import (
	"bytes"
	"fmt"
	"testing"
)

func TestCursorFirstLastEmpty(t *testing.T) {
	tree := newTestBTree(t, defaultLmemb, defaultNmemb)

	cur := newCursor(tree)
	if err := cur.First(); codeOf(err) != ErrNoRecord {
		t.Fatalf("First on empty tree: expected ErrNoRecord, got %v", err)
	}
	if err := cur.Last(); codeOf(err) != ErrNoRecord {
		t.Fatalf("Last on empty tree: expected ErrNoRecord, got %v", err)
	}
}

func TestCursorFirstLast(t *testing.T) {
	tree := newTestBTree(t, 4, 4)

	for _, k := range []string{"delta", "alpha", "echo", "charlie", "bravo"} {
		if err := tree.Put([]byte(k), []byte(k)); err != nil {
			t.Fatalf("Put(%s): %v", k, err)
		}
	}

	cur := newCursor(tree)
	if err := cur.First(); err != nil {
		t.Fatalf("First: %v", err)
	}
	k, err := cur.Key()
	if err != nil || string(k) != "alpha" {
		t.Fatalf("First key = %q, %v, want alpha", k, err)
	}

	if err := cur.Last(); err != nil {
		t.Fatalf("Last: %v", err)
	}
	k, err = cur.Key()
	if err != nil || string(k) != "echo" {
		t.Fatalf("Last key = %q, %v, want echo", k, err)
	}
}

func TestCursorJumpMissing(t *testing.T) {
	tree := newTestBTree(t, defaultLmemb, defaultNmemb)

	if err := tree.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	cur := newCursor(tree)
	if err := cur.Jump([]byte("nope")); codeOf(err) != ErrNoRecord {
		t.Fatalf("Jump(missing): expected ErrNoRecord, got %v", err)
	}
}

// TestCursorNextPrevAcrossLeaves forces several leaf splits with a small member cap, then
// checks Next/Prev walk the full key range in both directions across the sibling chain.
func TestCursorNextPrevAcrossLeaves(t *testing.T) {
	tree := newTestBTree(t, 4, 4)

	const n = 40
	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("key-%03d", i))
		if err := tree.Put(key, key); err != nil {
			t.Fatalf("Put(%s): %v", key, err)
		}
	}

	cur := newCursor(tree)
	if err := cur.First(); err != nil {
		t.Fatalf("First: %v", err)
	}

	var forward []string
	for {
		k, err := cur.Key()
		if err != nil {
			t.Fatalf("Key: %v", err)
		}
		forward = append(forward, string(k))
		if err := cur.Next(); err != nil {
			break
		}
	}

	if len(forward) != n {
		t.Fatalf("walked %d keys forward, want %d", len(forward), n)
	}
	for i := 0; i < n-1; i++ {
		if forward[i] >= forward[i+1] {
			t.Fatalf("forward walk out of order at %d: %s >= %s", i, forward[i], forward[i+1])
		}
	}

	if err := cur.Last(); err != nil {
		t.Fatalf("Last: %v", err)
	}

	var backward []string
	for {
		k, err := cur.Key()
		if err != nil {
			t.Fatalf("Key: %v", err)
		}
		backward = append(backward, string(k))
		if err := cur.Prev(); err != nil {
			break
		}
	}

	if len(backward) != n {
		t.Fatalf("walked %d keys backward, want %d", len(backward), n)
	}
	for i := 0; i < n; i++ {
		if backward[i] != forward[n-1-i] {
			t.Fatalf("backward[%d] = %s, want %s", i, backward[i], forward[n-1-i])
		}
	}
}

func TestCursorPutCurrentModes(t *testing.T) {
	tree := newTestBTree(t, defaultLmemb, defaultNmemb)
	tree.dup = DupBackward

	if err := tree.PutWithMode([]byte("k"), []byte("mid"), DupBackward); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cur := newCursor(tree)
	if err := cur.Jump([]byte("k")); err != nil {
		t.Fatalf("Jump: %v", err)
	}

	if err := cur.PutCurrent([]byte("after"), CursorPutAfter); err != nil {
		t.Fatalf("PutCurrent after: %v", err)
	}
	if err := cur.Jump([]byte("k")); err != nil {
		t.Fatalf("Jump: %v", err)
	}
	if err := cur.PutCurrent([]byte("before"), CursorPutBefore); err != nil {
		t.Fatalf("PutCurrent before: %v", err)
	}

	vals, err := tree.GetAll([]byte("k"))
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}

	want := []string{"before", "mid", "after"}
	if len(vals) != len(want) {
		t.Fatalf("got %d values %v, want %v", len(vals), vals, want)
	}
	for i, w := range want {
		if string(vals[i]) != w {
			t.Fatalf("vals[%d] = %q, want %q", i, vals[i], w)
		}
	}

	if err := cur.Jump([]byte("k")); err != nil {
		t.Fatalf("Jump: %v", err)
	}
	if err := cur.PutCurrent([]byte("replaced"), CursorPutCurrent); err != nil {
		t.Fatalf("PutCurrent current: %v", err)
	}
	v, err := cur.Value()
	if err != nil || !bytes.Equal(v, []byte("replaced")) {
		t.Fatalf("Value = %q, %v, want replaced", v, err)
	}
}

func TestCursorOutCurrentLastValueAdvances(t *testing.T) {
	tree := newTestBTree(t, 4, 4)

	for i := 0; i < 10; i++ {
		key := []byte(fmt.Sprintf("k%02d", i))
		if err := tree.Put(key, key); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	cur := newCursor(tree)
	if err := cur.Jump([]byte("k05")); err != nil {
		t.Fatalf("Jump: %v", err)
	}

	if err := cur.OutCurrent(); err != nil {
		t.Fatalf("OutCurrent: %v", err)
	}

	if _, err := tree.Get([]byte("k05")); codeOf(err) != ErrNoRecord {
		t.Fatalf("k05 should be gone, got %v", err)
	}

	k, err := cur.Key()
	if err != nil {
		t.Fatalf("Key after OutCurrent: %v", err)
	}
	if string(k) != "k06" {
		t.Fatalf("cursor should land on k06, got %q", k)
	}
}

// TestCursorOutCurrentEmptiesLeaf deletes every value in a leaf through the cursor one at a
// time and checks advancePastLeaf lands on the first key of the next surviving leaf once the
// leaf the cursor started in is left with nothing.
func TestCursorOutCurrentEmptiesLeaf(t *testing.T) {
	tree := newTestBTree(t, 4, 4)

	const n = 30
	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("k%03d", i))
		if err := tree.Put(key, key); err != nil {
			t.Fatalf("Put(%s): %v", key, err)
		}
	}

	cur := newCursor(tree)
	if err := cur.First(); err != nil {
		t.Fatalf("First: %v", err)
	}

	firstLeaf := cur.leafID
	leaf, err := tree.loadLeaf(firstLeaf)
	if err != nil {
		t.Fatalf("loadLeaf: %v", err)
	}
	keysInLeaf := len(leaf.recs)

	for i := 0; i < keysInLeaf; i++ {
		if err := cur.OutCurrent(); err != nil {
			t.Fatalf("OutCurrent[%d]: %v", i, err)
		}
	}

	if cur.leafID == firstLeaf {
		t.Fatalf("cursor should have advanced past the emptied leaf")
	}

	k, err := cur.Key()
	if err != nil {
		t.Fatalf("Key after emptying leaf: %v", err)
	}
	if string(k) != fmt.Sprintf("k%03d", keysInLeaf) {
		t.Fatalf("cursor landed on %q, want k%03d", k, keysInLeaf)
	}
}

// TestCursorDuplicatesAtSplitBoundary puts several values under one key, forces a leaf split
// by filling the tree around it, and checks the cursor still walks every duplicate value in
// order when that key sits exactly on the boundary between two leaves after the split.
func TestCursorDuplicatesAtSplitBoundary(t *testing.T) {
	tree := newTestBTree(t, 4, 4)
	tree.dup = DupBackward

	for _, v := range []string{"v1", "v2", "v3", "v4"} {
		if err := tree.PutWithMode([]byte("mid"), []byte(v), DupBackward); err != nil {
			t.Fatalf("put %s: %v", v, err)
		}
	}

	for i := 0; i < 16; i++ {
		key := []byte(fmt.Sprintf("k%02d", i))
		if err := tree.Put(key, key); err != nil {
			t.Fatalf("Put(%s): %v", key, err)
		}
	}
	for i := 0; i < 16; i++ {
		key := []byte(fmt.Sprintf("z%02d", i))
		if err := tree.Put(key, key); err != nil {
			t.Fatalf("Put(%s): %v", key, err)
		}
	}

	if tree.meta.lnum <= 1 {
		t.Fatalf("expected the tree to have split, got lnum=%d", tree.meta.lnum)
	}

	vals, err := tree.GetAll([]byte("mid"))
	if err != nil {
		t.Fatalf("GetAll(mid): %v", err)
	}

	want := []string{"v1", "v2", "v3", "v4"}
	if len(vals) != len(want) {
		t.Fatalf("got %d values %v, want %v", len(vals), vals, want)
	}
	for i, w := range want {
		if string(vals[i]) != w {
			t.Fatalf("vals[%d] = %q, want %q", i, vals[i], w)
		}
	}

	cur := newCursor(tree)
	if err := cur.Jump([]byte("mid")); err != nil {
		t.Fatalf("Jump(mid): %v", err)
	}

	var got []string
	for i := 0; i < len(want); i++ {
		v, err := cur.Value()
		if err != nil {
			t.Fatalf("Value[%d]: %v", i, err)
		}
		got = append(got, string(v))

		if i < len(want)-1 {
			if err := cur.Next(); err != nil {
				t.Fatalf("Next[%d]: %v", i, err)
			}
		}
	}

	for i, w := range want {
		if got[i] != w {
			t.Fatalf("cursor vals[%d] = %q, want %q", i, got[i], w)
		}
	}
}
