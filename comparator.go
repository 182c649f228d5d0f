package ondb

import (
	"bytes"
	"encoding/binary"
	"math"
)


//============================================= Key comparator (section 4.7, 3)


// Comparator
//	Orders two keys for B+ tree placement. The zero value of Options selects Lexical; callers
//	may substitute Decimal, Int32Comparator, Int64Comparator, or any custom function matching
//	this signature (mirrors tcbdb.h's BDBCMP typedef and its four built-in comparators).
type Comparator func(a, b []byte) int

// Lexical orders keys by raw byte comparison. The default comparator.
func Lexical(a, b []byte) int {
	return bytes.Compare(a, b)
}

// Decimal parses both keys as little-endian IEEE754 float64 and orders numerically. Keys that
// fail to parse (wrong length) fall back to Lexical, matching tcbdbcmpdecimal's leniency.
// tcbdbcmpint32/64 compare in "native byte order" (little-endian on every platform this store
// targets); section 3 fixes every multibyte integer in the file format as little-endian, so the
// built-in numeric comparators follow suit rather than the host's actual native order.
func Decimal(a, b []byte) int {
	fa, aok := decodeFloat64(a)
	fb, bok := decodeFloat64(b)

	if !aok || !bok {
		return Lexical(a, b)
	}

	switch {
	case fa < fb:
		return -1
	case fa > fb:
		return 1
	default:
		return 0
	}
}

func decodeFloat64(k []byte) (float64, bool) {
	if len(k) != 8 {
		return 0, false
	}

	return math.Float64frombits(binary.LittleEndian.Uint64(k)), true
}

// Int32Comparator orders keys as little-endian 32-bit signed integers (tcbdbcmpint32).
func Int32Comparator(a, b []byte) int {
	if len(a) != 4 || len(b) != 4 {
		return Lexical(a, b)
	}

	ia := int32(binary.LittleEndian.Uint32(a))
	ib := int32(binary.LittleEndian.Uint32(b))

	switch {
	case ia < ib:
		return -1
	case ia > ib:
		return 1
	default:
		return 0
	}
}

// Int64Comparator orders keys as little-endian 64-bit signed integers (tcbdbcmpint64).
func Int64Comparator(a, b []byte) int {
	if len(a) != 8 || len(b) != 8 {
		return Lexical(a, b)
	}

	ia := int64(binary.LittleEndian.Uint64(a))
	ib := int64(binary.LittleEndian.Uint64(b))

	switch {
	case ia < ib:
		return -1
	case ia > ib:
		return 1
	default:
		return 0
	}
}
