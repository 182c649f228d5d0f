package ondb

import "encoding/binary"


//============================================= Fixed-width encoding


// putUint16 / putUint32 / putUint64
//	Write a fixed-width little-endian integer.
func putUint16(dst []byte, v uint16) { binary.LittleEndian.PutUint16(dst, v) }
func putUint32(dst []byte, v uint32) { binary.LittleEndian.PutUint32(dst, v) }
func putUint64(dst []byte, v uint64) { binary.LittleEndian.PutUint64(dst, v) }

func getUint16(src []byte) uint16 { return binary.LittleEndian.Uint16(src) }
func getUint32(src []byte) uint32 { return binary.LittleEndian.Uint32(src) }
func getUint64(src []byte) uint64 { return binary.LittleEndian.Uint64(src) }


//============================================= Varint encoding (section 4.1)


// maxVarint64Len / maxVarint32Len
//	Worst case byte length of an encoded varint: 10 bytes of 7 data bits each cover 64 bits.
const maxVarint64Len = 10
const maxVarint32Len = 5

// putVarint64
//	Encode a uint64 length/ID using the sign-biased base-128 scheme from section 4.1:
//	a byte in [-128..-1] (two's complement) carries 7 data bits and signals "more bytes follow";
//	a non-negative terminating byte ends the sequence. Appends to dst and returns the new slice.
func putVarint64(dst []byte, v uint64) []byte {
	for v >= 128 {
		dst = append(dst, byte(int8(-(int(v&0x7f) + 1))))
		v >>= 7
	}

	return append(dst, byte(v))
}

// putVarint32
//	32-bit accumulator variant of putVarint64.
func putVarint32(dst []byte, v uint32) []byte {
	for v >= 128 {
		dst = append(dst, byte(int8(-(int(v&0x7f) + 1))))
		v >>= 7
	}

	return append(dst, byte(v))
}

// getVarint64
//	Decode a varint written by putVarint64. Accumulates base * (byte+1) * -1 for continuation
//	bytes and base * byte for the terminator, base starting at 1 and shifting left 7 each step.
//	Returns the decoded value and the number of bytes consumed, or (0, 0) if src is truncated.
func getVarint64(src []byte) (uint64, int) {
	var acc uint64
	var base uint64 = 1

	for i := 0; i < len(src) && i < maxVarint64Len; i++ {
		b := int8(src[i])

		if b >= 0 {
			acc += base * uint64(b)
			return acc, i + 1
		}

		acc += base * uint64(-int(b)-1)
		base <<= 7
	}

	return 0, 0
}

// getVarint32
//	32-bit accumulator variant of getVarint64.
func getVarint32(src []byte) (uint32, int) {
	var acc uint32
	var base uint32 = 1

	for i := 0; i < len(src) && i < maxVarint32Len; i++ {
		b := int8(src[i])

		if b >= 0 {
			acc += base * uint32(b)
			return acc, i + 1
		}

		acc += base * uint32(-int(b)-1)
		base <<= 7
	}

	return 0, 0
}

// varintLen64 / varintLen32
//	Number of bytes putVarint64/putVarint32 would emit for v, without allocating.
func varintLen64(v uint64) int {
	n := 1
	for v >= 128 {
		v >>= 7
		n++
	}

	return n
}

func varintLen32(v uint32) int {
	n := 1
	for v >= 128 {
		v >>= 7
		n++
	}

	return n
}
