package ondb

import (
	"bytes"
	"io"
	"sort"

	"github.com/klauspost/compress/flate"
)


//============================================= Compression hook (section 9, 4.4)


// Compressor
//	The optional pair of functions wrapping a record's payload (key+value bytes, not the
//	record header) before it is written and after it is read. Absent (nil) means passthrough.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// deflateCompressor
//	Compresses record payloads with DEFLATE (section 6's "deflate" tuning option).
type deflateCompressor struct{}

// NewDeflateCompressor returns a Compressor backed by klauspost/compress's flate implementation.
func NewDeflateCompressor() Compressor { return deflateCompressor{} }

func (deflateCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	w, newErr := flate.NewWriter(&buf, flate.DefaultCompression)
	if newErr != nil {
		return nil, newErr
	}

	if _, writeErr := w.Write(data); writeErr != nil {
		return nil, writeErr
	}

	if closeErr := w.Close(); closeErr != nil {
		return nil, closeErr
	}

	return buf.Bytes(), nil
}

func (deflateCompressor) Decompress(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()

	out, readErr := io.ReadAll(r)
	if readErr != nil {
		return nil, readErr
	}

	return out, nil
}

// tcbsCompressor
//	A from-scratch Burrows-Wheeler + move-to-front + run-length transform, matching the legacy
//	"tcbs" tuning option from section 6. No library in the retrieval pack implements this
//	transform (see SPEC_FULL.md Domain Stack), so it is hand-rolled here.
type tcbsCompressor struct{}

// NewTCBSCompressor returns a Compressor implementing the BWT+MTF+RLE transform.
func NewTCBSCompressor() Compressor { return tcbsCompressor{} }

func (tcbsCompressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return []byte{}, nil
	}

	bwtOut, primaryIndex := bwtEncode(data)
	mtfOut := mtfEncode(bwtOut)
	rleOut := rleEncode(mtfOut)

	out := make([]byte, 0, len(rleOut)+4)
	out = putVarint64(out, uint64(primaryIndex))
	out = putVarint64(out, uint64(len(data)))
	out = append(out, rleOut...)

	return out, nil
}

func (tcbsCompressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return []byte{}, nil
	}

	primaryIndex, n1 := getVarint64(data)
	if n1 == 0 {
		return nil, newErr("tcbsCompressor.Decompress", ErrMetaCorruption, nil)
	}

	origLen, n2 := getVarint64(data[n1:])
	if n2 == 0 {
		return nil, newErr("tcbsCompressor.Decompress", ErrMetaCorruption, nil)
	}

	mtfOut := rleDecode(data[n1+n2:], int(origLen))
	bwtOut := mtfDecode(mtfOut)
	out := bwtDecode(bwtOut, int(primaryIndex))

	return out, nil
}

// bwtEncode
//	Naive suffix-rotation Burrows-Wheeler transform: builds all n rotations of data, sorts them,
//	and takes the last column. Quadratic in the worst case; acceptable for record-sized payloads.
func bwtEncode(data []byte) ([]byte, int) {
	n := len(data)
	rotations := make([]int, n)
	for i := range rotations {
		rotations[i] = i
	}

	doubled := append(append([]byte{}, data...), data...)

	sort.Slice(rotations, func(a, b int) bool {
		ra := doubled[rotations[a] : rotations[a]+n]
		rb := doubled[rotations[b] : rotations[b]+n]
		return bytes.Compare(ra, rb) < 0
	})

	out := make([]byte, n)
	primaryIndex := 0

	for i, start := range rotations {
		out[i] = doubled[start+n-1]
		if start == 0 {
			primaryIndex = i
		}
	}

	return out, primaryIndex
}

// bwtDecode
//	Inverse Burrows-Wheeler transform via the standard last-column/first-column permutation walk.
func bwtDecode(last []byte, primaryIndex int) []byte {
	n := len(last)
	count := make(map[byte]int, 256)
	rank := make([]int, n)

	for i, b := range last {
		rank[i] = count[b]
		count[b]++
	}

	first := append([]byte{}, last...)
	sort.Slice(first, func(a, b int) bool { return first[a] < first[b] })

	base := make(map[byte]int, 256)
	seen := make(map[byte]int, 256)
	for _, b := range first {
		if _, ok := seen[b]; !ok {
			base[b] = sort.Search(len(first), func(i int) bool { return first[i] >= b })
			seen[b] = 1
		}
	}

	next := make([]int, n)
	for i, b := range last {
		next[i] = base[b] + rank[i]
	}

	out := make([]byte, n)
	idx := primaryIndex

	for i := n - 1; i >= 0; i-- {
		out[i] = last[idx]
		idx = next[idx]
	}

	return out
}

// mtfEncode / mtfDecode
//	Move-to-front transform over the byte alphabet, run on the BWT output to cluster repeats
//	near zero for the run-length stage.
func mtfEncode(data []byte) []byte {
	table := make([]byte, 256)
	for i := range table {
		table[i] = byte(i)
	}

	out := make([]byte, len(data))
	for i, b := range data {
		pos := 0
		for table[pos] != b {
			pos++
		}

		out[i] = byte(pos)
		copy(table[1:pos+1], table[:pos])
		table[0] = b
	}

	return out
}

func mtfDecode(data []byte) []byte {
	table := make([]byte, 256)
	for i := range table {
		table[i] = byte(i)
	}

	out := make([]byte, len(data))
	for i, pos := range data {
		b := table[pos]
		out[i] = b
		copy(table[1:int(pos)+1], table[:pos])
		table[0] = b
	}

	return out
}

// rleEncode / rleDecode
//	A simple byte + count run-length pass over the MTF output (gamma-coded counts in the
//	original tcbs; a varint-coded count serves the same purpose here).
func rleEncode(data []byte) []byte {
	var out []byte

	for i := 0; i < len(data); {
		run := 1
		for i+run < len(data) && data[i+run] == data[i] && run < 1<<32-1 {
			run++
		}

		out = append(out, data[i])
		out = putVarint64(out, uint64(run))
		i += run
	}

	return out
}

func rleDecode(data []byte, origLen int) []byte {
	out := make([]byte, 0, origLen)
	pos := 0

	for pos < len(data) {
		b := data[pos]
		pos++

		run, n := getVarint64(data[pos:])
		if n == 0 {
			break
		}

		pos += n

		for j := uint64(0); j < run; j++ {
			out = append(out, b)
		}
	}

	return out
}
