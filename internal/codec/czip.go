package codec

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/flate"
)

func init() {
	RegisterAlgorithm("zip", newZipStream)
}

// zipStream wraps klauspost/compress/flate, the DOMAIN STACK's deflate
// implementation, for the "Zip" algorithm family (levels 0-9
// map directly onto flate's compression levels).
type zipStream struct {
	encode   bool
	level    int
	in       bytes.Buffer
	out      bytes.Buffer
	w        *flate.Writer
	r        io.ReadCloser
	inBytes  uint64
	outBytes uint64
}

func newZipStream(level int, encode bool) (Stream, error) {
	s := &zipStream{encode: encode, level: level}
	if encode {
		w, err := flate.NewWriter(&s.out, clampFlateLevel(level))
		if err != nil {
			return nil, err
		}
		s.w = w
	}
	return s, nil
}

func clampFlateLevel(level int) int {
	if level <= 0 {
		return flate.DefaultCompression
	}
	if level > 9 {
		return 9
	}
	return level
}

func (s *zipStream) Feed(p []byte) (int, error) {
	s.inBytes += uint64(len(p))
	if s.encode {
		n, err := s.w.Write(p)
		return n, err
	}
	return s.in.Write(p)
}

func (s *zipStream) Drain() ([]byte, bool) {
	if s.encode {
		if s.out.Len() == 0 {
			return nil, false
		}
		b := append([]byte(nil), s.out.Bytes()...)
		s.out.Reset()
		s.outBytes += uint64(len(b))
		return b, true
	}

	if s.r == nil {
		s.r = flate.NewReader(&s.in)
	}
	buf := make([]byte, 64*1024)
	n, err := s.r.Read(buf)
	if n == 0 || (err != nil && err != io.EOF) {
		return nil, false
	}
	s.outBytes += uint64(n)
	return buf[:n], true
}

func (s *zipStream) Flush() error {
	if s.encode {
		return s.w.Flush()
	}
	return nil
}

func (s *zipStream) Reset() {
	s.in.Reset()
	s.out.Reset()
	s.r = nil
	s.inBytes = 0
	s.outBytes = 0
	if s.encode {
		s.w.Reset(&s.out)
	}
}

func (s *zipStream) InputBytes() uint64  { return s.inBytes }
func (s *zipStream) OutputBytes() uint64 { return s.outBytes }
