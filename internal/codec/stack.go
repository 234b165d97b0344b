package codec

// Options selects which stages a Stack composes, per a job's codec
// configuration.
type Options struct {
	DeltaAlgorithm   string // "" disables delta compression
	DeltaSource      []byte // full source content, encode mode only
	DeltaSourceBlock SourceGetBlock

	CompressAlgorithm string // "" or "none" disables byte compression
	CompressLevel     int

	CryptPassword []byte
	CryptSalt     [16]byte
	CryptEnabled  bool
}

// Stack composes the codec pipeline stages in the encode
// order (delta -> byte-compress -> crypt); decode reverses it. Feed is
// called once per bounded window of an entry's body rather than once
// for the whole body, so delta and crypt -- whose Flush only drains
// what's buffered and leaves the stage reusable -- persist across
// windows, while the byte-compress stage is rebuilt fresh every window:
// some of its wrapped libraries (bzip2, lzma) finalize and close their
// writer on Flush and can't take a second window afterward.
type Stack struct {
	encode bool

	delta Stream // persists across windows, nil if disabled

	compressName  string
	compressLevel int

	crypt Stream // persists across windows, nil if disabled

	final []byte
}

// NewEncodeStack builds the write-side pipeline for opts.
func NewEncodeStack(opts Options) (*Stack, error) {
	st := &Stack{encode: true, compressName: opts.CompressAlgorithm, compressLevel: opts.CompressLevel}
	if opts.DeltaAlgorithm != "" {
		st.delta = NewXDeltaEncoder(opts.DeltaSource)
	}
	if opts.CryptEnabled {
		s, err := NewCryptStage(opts.CryptPassword, opts.CryptSalt, true)
		if err != nil {
			return nil, err
		}
		st.crypt = s
	}
	return st, nil
}

// NewDecodeStack builds the read-side pipeline for opts, in reverse
// stage order.
func NewDecodeStack(opts Options) (*Stack, error) {
	st := &Stack{encode: false, compressName: opts.CompressAlgorithm, compressLevel: opts.CompressLevel}
	if opts.CryptEnabled {
		s, err := NewCryptStage(opts.CryptPassword, opts.CryptSalt, false)
		if err != nil {
			return nil, err
		}
		st.crypt = s
	}
	if opts.DeltaAlgorithm != "" {
		st.delta = NewXDeltaDecoder(opts.DeltaSourceBlock)
	}
	return st, nil
}

func (st *Stack) compressEnabled() bool {
	return st.compressName != "" && st.compressName != "none"
}

// stagesFor builds this window's ordered stage list.
func (st *Stack) stagesFor() ([]Stream, error) {
	var compress Stream
	if st.compressEnabled() {
		s, err := Get(st.compressName, st.compressLevel, st.encode)
		if err != nil {
			return nil, err
		}
		compress = s
	}

	var stages []Stream
	if st.encode {
		if st.delta != nil {
			stages = append(stages, st.delta)
		}
		if compress != nil {
			stages = append(stages, compress)
		}
		if st.crypt != nil {
			stages = append(stages, st.crypt)
		}
		return stages, nil
	}

	if st.crypt != nil {
		stages = append(stages, st.crypt)
	}
	if compress != nil {
		stages = append(stages, compress)
	}
	if st.delta != nil {
		stages = append(stages, st.delta)
	}
	return stages, nil
}

func runStage(s Stream, in []byte) ([]byte, error) {
	if _, err := s.Feed(in); err != nil {
		return nil, err
	}
	if err := s.Flush(); err != nil {
		return nil, err
	}
	var out []byte
	for {
		chunk, ok := s.Drain()
		if !ok {
			break
		}
		out = append(out, chunk...)
	}
	return out, nil
}

// Feed pushes one window of an entry's body through every configured
// stage, draining and re-feeding between stages so a stage's buffered
// output becomes the next stage's input. The result of this window is
// available from Result until the next Feed call.
func (st *Stack) Feed(p []byte) error {
	stages, err := st.stagesFor()
	if err != nil {
		return err
	}

	cur := p
	for _, stage := range stages {
		out, err := runStage(stage, cur)
		if err != nil {
			return err
		}
		cur = out
	}
	st.final = cur
	return nil
}

// Result returns the fully-transformed bytes from the most recent Feed.
func (st *Stack) Result() []byte { return st.final }
