package codec

import "bytes"

func init() {
	RegisterAlgorithm("lzo", newLZOStream)
}

// lzoStream is a from-scratch minimal LZ77 matcher behind a
// block-framed header, standing in for LZO — no maintained LZO codec
// exists for Go (see DESIGN.md). Token stream: a literal
// run length (varint) followed by that many literal bytes, then a
// match (offset varint, length varint); a zero match length ends the
// block. Matches are found by keying each position on its next 4 bytes,
// keeping only the most recent position per key, within a 64KiB
// window, which is enough to beat storing incompressible data
// without licensing or porting an external format.
type lzoStream struct {
	encode   bool
	in       bytes.Buffer
	out      bytes.Buffer
	inBytes  uint64
	outBytes uint64
}

func newLZOStream(level int, encode bool) (Stream, error) {
	return &lzoStream{encode: encode}, nil
}

func (s *lzoStream) Feed(p []byte) (int, error) {
	s.inBytes += uint64(len(p))
	if s.encode {
		s.in.Write(p)
		s.encodeReadyBlocks(false)
		return len(p), nil
	}
	return s.in.Write(p)
}

func (s *lzoStream) encodeReadyBlocks(final bool) {
	for s.in.Len() >= blockRawCapacity || (final && s.in.Len() > 0) {
		n := blockRawCapacity
		if s.in.Len() < n {
			n = s.in.Len()
		}
		raw := s.in.Next(n)
		s.writeBlock(raw, final && s.in.Len() == 0)
	}
}

const (
	minMatch  = 4
	maxOffset = 1 << 16
)

func lz77Compress(raw []byte) []byte {
	var out bytes.Buffer
	hashTable := make(map[uint32]int, len(raw)/4+1)

	hashAt := func(i int) uint32 {
		return uint32(raw[i]) | uint32(raw[i+1])<<8 | uint32(raw[i+2])<<16 | uint32(raw[i+3])<<24
	}

	litStart := 0
	i := 0
	for i+minMatch <= len(raw) {
		h := hashAt(i)
		bestLen, bestOff := 0, 0
		if cand, ok := hashTable[h]; ok && i-cand <= maxOffset {
			l := matchLen(raw, cand, i)
			if l >= minMatch {
				bestLen, bestOff = l, i-cand
			}
		}
		hashTable[h] = i

		if bestLen >= minMatch {
			writeLiteralRun(&out, raw[litStart:i])
			writeVarint(&out, uint64(bestOff))
			writeVarint(&out, uint64(bestLen))
			i += bestLen
			litStart = i
			continue
		}
		i++
	}
	writeLiteralRun(&out, raw[litStart:])
	writeVarint(&out, 0)
	writeVarint(&out, 0)
	return out.Bytes()
}

func matchLen(raw []byte, a, b int) int {
	n := 0
	for b+n < len(raw) && raw[a+n] == raw[b+n] {
		n++
	}
	return n
}

func writeLiteralRun(out *bytes.Buffer, lit []byte) {
	writeVarint(out, uint64(len(lit)))
	out.Write(lit)
}

func writeVarint(out *bytes.Buffer, v uint64) {
	var buf [10]byte
	n := 0
	for v >= 0x80 {
		buf[n] = byte(v) | 0x80
		v >>= 7
		n++
	}
	buf[n] = byte(v)
	out.Write(buf[:n+1])
}

func readVarint(b []byte) (uint64, int) {
	var v uint64
	var shift uint
	for i, c := range b {
		v |= uint64(c&0x7f) << shift
		if c&0x80 == 0 {
			return v, i + 1
		}
		shift += 7
	}
	return 0, 0
}

func lz77Decompress(enc []byte, rawLen int) []byte {
	out := make([]byte, 0, rawLen)
	pos := 0
	for pos < len(enc) {
		litLen, n := readVarint(enc[pos:])
		pos += n
		if litLen > 0 {
			out = append(out, enc[pos:pos+int(litLen)]...)
			pos += int(litLen)
		}
		off, n := readVarint(enc[pos:])
		pos += n
		length, n := readVarint(enc[pos:])
		pos += n
		if off == 0 && length == 0 {
			break
		}
		start := len(out) - int(off)
		for k := uint64(0); k < length; k++ {
			out = append(out, out[start+int(k)])
		}
	}
	return out
}

func (s *lzoStream) writeBlock(raw []byte, last bool) {
	comp := lz77Compress(raw)
	if len(comp) >= len(raw) {
		s.out.Write(appendBlockHeader(nil, encodeBlockHeader(len(raw), false, last)))
		s.out.Write(raw)
		return
	}
	s.out.Write(appendBlockHeader(nil, encodeBlockHeader(len(comp), true, last)))
	s.out.Write(appendBlockHeader(nil, uint32(len(raw))))
	s.out.Write(comp)
}

func (s *lzoStream) Drain() ([]byte, bool) {
	if s.encode {
		if s.out.Len() == 0 {
			return nil, false
		}
		b := append([]byte(nil), s.out.Bytes()...)
		s.out.Reset()
		s.outBytes += uint64(len(b))
		return b, true
	}

	buf := s.in.Bytes()
	if len(buf) < 4 {
		return nil, false
	}
	length, compressed, _ := decodeBlockHeader(readBlockHeader(buf))
	if compressed {
		if len(buf) < 8 {
			return nil, false
		}
		rawLen := int(readBlockHeader(buf[4:8]))
		if len(buf) < 8+length {
			return nil, false
		}
		payload := buf[8 : 8+length]
		raw := lz77Decompress(payload, rawLen)
		s.in.Next(8 + length)
		s.outBytes += uint64(len(raw))
		return raw, true
	}
	if len(buf) < 4+length {
		return nil, false
	}
	raw := append([]byte(nil), buf[4:4+length]...)
	s.in.Next(4 + length)
	s.outBytes += uint64(len(raw))
	return raw, true
}

func (s *lzoStream) Flush() error {
	if s.encode {
		s.encodeReadyBlocks(true)
	}
	return nil
}

func (s *lzoStream) Reset() {
	s.in.Reset()
	s.out.Reset()
	s.inBytes = 0
	s.outBytes = 0
}

func (s *lzoStream) InputBytes() uint64  { return s.inBytes }
func (s *lzoStream) OutputBytes() uint64 { return s.outBytes }
