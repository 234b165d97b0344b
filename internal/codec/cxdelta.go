package codec

import "bytes"

// SourceGetBlock fetches the block of source-file bytes at [offset,
// offset+length) that a delta entry was encoded against.
type SourceGetBlock func(offset uint64, length int) ([]byte, error)

// xdeltaStream is the idiomatic Go equivalent of xdelta's COPY/ADD
// instruction stream: an FNV hash of every 16-byte source window, indexed
// at every source offset, finds matching runs, emitted as COPY(sourceOffset, length)
// instructions, with unmatched bytes emitted as ADD(literal bytes). No
// maintained xdelta/vcdiff library exists for Go (see DESIGN.md), so
// this is hand-rolled rather than fabricated.
type xdeltaStream struct {
	encode    bool
	getSource SourceGetBlock
	source    []byte              // full source content, encode mode only
	index     map[uint32][]uint64 // rolling-hash value -> source offsets
	in        bytes.Buffer
	out       bytes.Buffer
	inBytes   uint64
	outBytes  uint64
}

const (
	xdeltaWindow = 16
	opCopy       = byte(1)
	opAdd        = byte(2)
	opEnd        = byte(0)
)

// NewXDeltaEncoder builds an encode-mode xdelta Stream that matches
// input against src, the full source content to diff against.
func NewXDeltaEncoder(src []byte) Stream {
	s := &xdeltaStream{encode: true, index: make(map[uint32][]uint64)}
	s.buildIndex(src)
	s.source = src
	return s
}

// NewXDeltaDecoder builds a decode-mode xdelta Stream that resolves
// COPY instructions via getSource.
func NewXDeltaDecoder(getSource SourceGetBlock) Stream {
	return &xdeltaStream{encode: false, getSource: getSource}
}

func (s *xdeltaStream) buildIndex(src []byte) {
	for i := 0; i+xdeltaWindow <= len(src); i++ {
		h := rollingHash(src[i : i+xdeltaWindow])
		s.index[h] = append(s.index[h], uint64(i))
	}
}

func rollingHash(window []byte) uint32 {
	var h uint32 = 2166136261
	for _, b := range window {
		h ^= uint32(b)
		h *= 16777619
	}
	return h
}

func (s *xdeltaStream) Feed(p []byte) (int, error) {
	s.inBytes += uint64(len(p))
	s.in.Write(p)
	return len(p), nil
}

func (s *xdeltaStream) Flush() error {
	if s.encode {
		s.encodeAll()
	} else {
		if err := s.decodeAll(); err != nil {
			return err
		}
	}
	return nil
}

func (s *xdeltaStream) encodeAll() {
	data := s.in.Bytes()
	litStart := 0
	i := 0
	for i+xdeltaWindow <= len(data) {
		h := rollingHash(data[i : i+xdeltaWindow])
		bestOff, bestLen := -1, 0
		for _, off := range s.index[h] {
			l := matchLenSrcDst(s.source, data, int(off), i)
			if l > bestLen {
				bestLen, bestOff = l, int(off)
			}
		}
		if bestLen >= xdeltaWindow {
			s.emitAdd(data[litStart:i])
			s.emitCopy(uint64(bestOff), bestLen)
			i += bestLen
			litStart = i
			continue
		}
		i++
	}
	s.emitAdd(data[litStart:])
	s.out.WriteByte(opEnd)
	s.in.Reset()
}

func matchLenSrcDst(src, dst []byte, srcOff, dstOff int) int {
	n := 0
	for srcOff+n < len(src) && dstOff+n < len(dst) && src[srcOff+n] == dst[dstOff+n] {
		n++
	}
	return n
}

func (s *xdeltaStream) emitAdd(lit []byte) {
	if len(lit) == 0 {
		return
	}
	s.out.WriteByte(opAdd)
	writeVarint(&s.out, uint64(len(lit)))
	s.out.Write(lit)
}

func (s *xdeltaStream) emitCopy(offset uint64, length int) {
	s.out.WriteByte(opCopy)
	writeVarint(&s.out, offset)
	writeVarint(&s.out, uint64(length))
}

func (s *xdeltaStream) decodeAll() error {
	data := s.in.Bytes()
	pos := 0
	for pos < len(data) {
		op := data[pos]
		pos++
		switch op {
		case opEnd:
			s.in.Reset()
			return nil
		case opAdd:
			n, consumed := readVarint(data[pos:])
			pos += consumed
			s.out.Write(data[pos : pos+int(n)])
			pos += int(n)
		case opCopy:
			off, c1 := readVarint(data[pos:])
			pos += c1
			length, c2 := readVarint(data[pos:])
			pos += c2
			block, err := s.getSource(off, int(length))
			if err != nil {
				return err
			}
			s.out.Write(block)
		default:
			return nil
		}
	}
	s.in.Reset()
	return nil
}

func (s *xdeltaStream) Drain() ([]byte, bool) {
	if s.out.Len() == 0 {
		return nil, false
	}
	b := append([]byte(nil), s.out.Bytes()...)
	s.out.Reset()
	s.outBytes += uint64(len(b))
	return b, true
}

func (s *xdeltaStream) Reset() {
	s.in.Reset()
	s.out.Reset()
	s.inBytes = 0
	s.outBytes = 0
}

func (s *xdeltaStream) InputBytes() uint64  { return s.inBytes }
func (s *xdeltaStream) OutputBytes() uint64 { return s.outBytes }
