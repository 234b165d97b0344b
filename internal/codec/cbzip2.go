package codec

import (
	"bytes"
	"io"

	"github.com/dsnet/compress/bzip2"
)

func init() {
	RegisterAlgorithm("bzip2", newBzip2Stream)
}

// bzip2Stream wraps dsnet/compress/bzip2, which offers both bzip2 read
// AND write support (stdlib compress/bzip2 is decode-only), for the
// "BZip2" algorithm family.
type bzip2Stream struct {
	encode   bool
	level    int
	in       bytes.Buffer
	out      bytes.Buffer
	w        *bzip2.Writer
	r        *bzip2.Reader
	inBytes  uint64
	outBytes uint64
}

func newBzip2Stream(level int, encode bool) (Stream, error) {
	s := &bzip2Stream{encode: encode, level: level}
	if encode {
		w, err := bzip2.NewWriter(&s.out, &bzip2.WriterConfig{Level: clampBzip2Level(level)})
		if err != nil {
			return nil, err
		}
		s.w = w
	}
	return s, nil
}

func clampBzip2Level(level int) int {
	if level <= 0 {
		return 6
	}
	if level > 9 {
		return 9
	}
	return level
}

func (s *bzip2Stream) Feed(p []byte) (int, error) {
	s.inBytes += uint64(len(p))
	if s.encode {
		return s.w.Write(p)
	}
	return s.in.Write(p)
}

func (s *bzip2Stream) Drain() ([]byte, bool) {
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
		s.r, err = bzip2.NewReader(&s.in, nil)
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

func (s *bzip2Stream) Flush() error {
	if s.encode {
		return s.w.Close()
	}
	return nil
}

func (s *bzip2Stream) Reset() {
	s.in.Reset()
	s.out.Reset()
	s.r = nil
	s.inBytes = 0
	s.outBytes = 0
	if s.encode {
		w, _ := bzip2.NewWriter(&s.out, &bzip2.WriterConfig{Level: clampBzip2Level(s.level)})
		s.w = w
	}
}

func (s *bzip2Stream) InputBytes() uint64  { return s.inBytes }
func (s *bzip2Stream) OutputBytes() uint64 { return s.outBytes }
