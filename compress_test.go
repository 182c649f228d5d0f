package ondb

import (
	"bytes"
	"testing"
)

func TestDeflateCompressorRoundTrip(t *testing.T) {
	c := NewDeflateCompressor()
	data := []byte("the quick brown fox jumps over the lazy dog, repeated, the quick brown fox jumps over the lazy dog")

	compressed, err := c.Compress(data)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}

	restored, err := c.Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}

	if !bytes.Equal(restored, data) {
		t.Fatalf("round trip mismatch: got %q", restored)
	}
}

func TestTCBSCompressorRoundTrip(t *testing.T) {
	c := NewTCBSCompressor()

	cases := [][]byte{
		[]byte(""),
		[]byte("a"),
		[]byte("aaaaaaaaaaaaaaaaaaaa"),
		[]byte("banana banana banana"),
		[]byte("the quick brown fox jumps over the lazy dog"),
	}

	for _, data := range cases {
		compressed, err := c.Compress(data)
		if err != nil {
			t.Fatalf("Compress(%q): %v", data, err)
		}

		restored, err := c.Decompress(compressed)
		if err != nil {
			t.Fatalf("Decompress(%q): %v", data, err)
		}

		if !bytes.Equal(restored, data) {
			t.Fatalf("round trip mismatch for %q: got %q", data, restored)
		}
	}
}

func TestBWTRoundTrip(t *testing.T) {
	data := []byte("mississippi")

	encoded, primary := bwtEncode(data)
	decoded := bwtDecode(encoded, primary)

	if !bytes.Equal(decoded, data) {
		t.Fatalf("bwt round trip: got %q, want %q", decoded, data)
	}
}

func TestMTFRoundTrip(t *testing.T) {
	data := []byte("banana")

	encoded := mtfEncode(data)
	decoded := mtfDecode(encoded)

	if !bytes.Equal(decoded, data) {
		t.Fatalf("mtf round trip: got %q, want %q", decoded, data)
	}
}
