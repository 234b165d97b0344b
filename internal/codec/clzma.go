package codec

import (
	"bytes"
	"io"

	"github.com/ulikunitz/xz/lzma"
)

func init() {
	RegisterAlgorithm("lzma", newLZMAStream)
}

// lzmaStream wraps ulikunitz/xz/lzma for the "LZMA" family.
// Levels 1-9 are mapped onto the library's dictionary-size presets: the
// library has no direct level knob, so level selects a dictionary size
// from a small ladder, trading memory for ratio.
type lzmaStream struct {
	encode   bool
	level    int
	in       bytes.Buffer
	out      bytes.Buffer
	w        *lzma.Writer
	r        *lzma.Reader
	inBytes  uint64
	outBytes uint64
}

func dictSizeForLevel(level int) uint32 {
	switch {
	case level <= 0:
		return 1 << 20
	case level <= 3:
		return 1 << 20
	case level <= 6:
		return 8 << 20
	default:
		return 32 << 20
	}
}

func newLZMAStream(level int, encode bool) (Stream, error) {
	s := &lzmaStream{encode: encode, level: level}
	if encode {
		cfg := lzma.WriterConfig{DictCap: int(dictSizeForLevel(level))}
		w, err := cfg.NewWriter(&s.out)
		if err != nil {
			return nil, err
		}
		s.w = w
	}
	return s, nil
}

func (s *lzmaStream) Feed(p []byte) (int, error) {
	s.inBytes += uint64(len(p))
	if s.encode {
		return s.w.Write(p)
	}
	return s.in.Write(p)
}

func (s *lzmaStream) Drain() ([]byte, bool) {
	if s.encode {
		if s.out.Len() == 0 {
			return nil, false
		}
		b := append([]byte(nil), s.out.Bytes()...)
		s.out.Reset()
		s.outBytes += uint64(len(b))
		return b, true
	}

	var err error
	if s.r == nil {
		s.r, err = lzma.NewReader(&s.in)
		if err != nil {
			return nil, false
		}
	}
	buf := make([]byte, 64*1024)
	n, err := s.r.Read(buf)
	if n == 0 || (err != nil && err != io.EOF) {
		return nil, false
	}
	s.outBytes += uint64(n)
	return buf[:n], true
}

func (s *lzmaStream) Flush() error {
	if s.encode {
		return s.w.Close()
	}
	return nil
}

func (s *lzmaStream) Reset() {
	s.in.Reset()
	s.out.Reset()
	s.r = nil
	s.inBytes = 0
	s.outBytes = 0
	if s.encode {
		cfg := lzma.WriterConfig{DictCap: int(dictSizeForLevel(s.level))}
		w, _ := cfg.NewWriter(&s.out)
		s.w = w
	}
}

func (s *lzmaStream) InputBytes() uint64  { return s.inBytes }
func (s *lzmaStream) OutputBytes() uint64 { return s.outBytes }
