package codec

import (
	"bytes"

	"github.com/pierrec/lz4/v4"
)

func init() {
	RegisterAlgorithm("lz4", newLZ4Stream)
}

// lz4Stream implements the block-framed LZ4 family directly
// on pierrec/lz4/v4's block API (lz4 already speaks block-oriented
// compression, unlike the stream-oriented libraries above, so no
// streaming wrapper is needed). Each 64KiB raw block is compressed; if
// the result isn't smaller, the block is stored verbatim instead. Wire
// shape per block:
// [4-byte header][4-byte raw length, only when COMPRESSED is set][payload].
type lz4Stream struct {
	encode   bool
	level    int
	in       bytes.Buffer
	out      bytes.Buffer
	ht       []int32
	inBytes  uint64
	outBytes uint64
	done     bool
}

func newLZ4Stream(level int, encode bool) (Stream, error) {
	s := &lz4Stream{encode: encode, level: level}
	if encode {
		s.ht = make([]int32, 1<<16)
	}
	return s, nil
}

func (s *lz4Stream) Feed(p []byte) (int, error) {
	s.inBytes += uint64(len(p))
	if s.encode {
		s.in.Write(p)
		s.encodeReadyBlocks(false)
		return len(p), nil
	}
	return s.in.Write(p)
}

func (s *lz4Stream) encodeReadyBlocks(final bool) {
	for s.in.Len() >= blockRawCapacity || (final && s.in.Len() > 0) {
		n := blockRawCapacity
		if s.in.Len() < n {
			n = s.in.Len()
		}
		raw := s.in.Next(n)
		s.writeBlock(raw, final && s.in.Len() == 0)
	}
}

func (s *lz4Stream) writeBlock(raw []byte, last bool) {
	comp := make([]byte, lz4.CompressBlockBound(len(raw)))
	nw, err := lz4.CompressBlock(raw, comp, s.ht)
	if err != nil || nw == 0 || nw >= len(raw) {
		s.out.Write(appendBlockHeader(nil, encodeBlockHeader(len(raw), false, last)))
		s.out.Write(raw)
		return
	}
	comp = comp[:nw]
	s.out.Write(appendBlockHeader(nil, encodeBlockHeader(len(comp), true, last)))
	s.out.Write(appendBlockHeader(nil, uint32(len(raw))))
	s.out.Write(comp)
}

func (s *lz4Stream) Drain() ([]byte, bool) {
	if s.encode {
		if s.out.Len() == 0 {
			return nil, false
		}
		b := append([]byte(nil), s.out.Bytes()...)
		s.out.Reset()
		s.outBytes += uint64(len(b))
		return b, true
	}

	for {
		buf := s.in.Bytes()
		if len(buf) < 4 {
			return nil, false
		}
		length, compressed, endOfData := decodeBlockHeader(readBlockHeader(buf))
		if compressed {
			if len(buf) < 8 {
				return nil, false
			}
			rawLen := int(readBlockHeader(buf[4:8]))
			if len(buf) < 8+length {
				return nil, false
			}
			payload := buf[8 : 8+length]
			raw := make([]byte, rawLen)
			n, err := lz4.UncompressBlock(payload, raw)
			if err != nil {
				return nil, false
			}
			s.in.Next(8 + length)
			s.outBytes += uint64(n)
			s.done = s.done || endOfData
			return raw[:n], true
		}
		if len(buf) < 4+length {
			return nil, false
		}
		raw := append([]byte(nil), buf[4:4+length]...)
		s.in.Next(4 + length)
		s.outBytes += uint64(len(raw))
		s.done = s.done || endOfData
		return raw, true
	}
}

func (s *lz4Stream) Flush() error {
	if s.encode {
		s.encodeReadyBlocks(true)
	}
	return nil
}

func (s *lz4Stream) Reset() {
	s.in.Reset()
	s.out.Reset()
	s.inBytes = 0
	s.outBytes = 0
	s.done = false
}

func (s *lz4Stream) InputBytes() uint64  { return s.inBytes }
func (s *lz4Stream) OutputBytes() uint64 { return s.outBytes }
