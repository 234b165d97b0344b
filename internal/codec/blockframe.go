package codec

import "encoding/binary"

// Block-framed codecs (clz4.go, clzo.go) share the 4-byte
// chunk header: bit 31 marks end-of-data, bit 30 marks "this block is
// actually compressed" (vs. stored verbatim when compression didn't
// shrink it), and bits 0-29 carry the block's on-wire length.
const (
	blockEndOfData   = uint32(1) << 31
	blockCompressed  = uint32(1) << 30
	blockLengthMask  = uint32(1)<<30 - 1
	blockRawCapacity = 64 * 1024
)

func encodeBlockHeader(length int, compressed, endOfData bool) uint32 {
	h := uint32(length) & blockLengthMask
	if compressed {
		h |= blockCompressed
	}
	if endOfData {
		h |= blockEndOfData
	}
	return h
}

func decodeBlockHeader(h uint32) (length int, compressed, endOfData bool) {
	return int(h & blockLengthMask), h&blockCompressed != 0, h&blockEndOfData != 0
}

func appendBlockHeader(dst []byte, h uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], h)
	return append(dst, b[:]...)
}

func readBlockHeader(b []byte) uint32 {
	return binary.BigEndian.Uint32(b)
}
