package driver

import (
	"fmt"
	"io"

	"github.com/vaultarc/vaultarc/internal/archive"
	"github.com/vaultarc/vaultarc/internal/codec"
	"github.com/vaultarc/vaultarc/internal/core"
	"github.com/vaultarc/vaultarc/internal/log"
	"github.com/vaultarc/vaultarc/internal/storage"
)

const defaultBodyWindow = 64 * 1024

// bodyWindowSize is the buffer size the body pipeline reads/writes in:
// job.Config.Options.FragmentSize if set, else 64KiB.
func bodyWindowSize(job *Job) uint64 {
	if n := job.Config.Options.FragmentSize; n != 0 {
		return n
	}
	return defaultBodyWindow
}

func compressEnabled(algorithm string) bool {
	return algorithm != "" && algorithm != "none"
}

// readEntryBody reads cur's body one archive data chunk at a time (a
// zero-size fragment marks end-of-data) and feeds each chunk through
// the read-side codec stack as it arrives, so decoding a multi-gigabyte
// file or device image only ever holds the window in flight plus the
// plaintext accumulated so far, not the whole compressed body at once.
//
// When neither a delta source, byte compression, nor encryption is
// configured, the bytes on the wire equal the plaintext bytes
// one-for-one, so this also tracks the running raw byte count against
// the entry's declared size:
// a data chunk that pushes the count past that size before the
// eof_data marker arrives means the archive carries trailing bytes
// that don't belong to this entry, which is warned about rather than
// failing the entry outright.
func readEntryBody(w *Worker, deltaSourceName string, crypt core.CryptHeader, cur *archive.Cursor) ([]byte, error) {
	stack, err := decodeStackFor(w, deltaSourceName, crypt)
	if err != nil {
		return nil, err
	}

	identity := deltaSourceName == "" && !compressEnabled(w.Job.Config.Compress.Algorithm) && crypt.Mode == core.CryptModeNone
	total := cur.TotalSize()
	name := cur.Name()
	kind := cur.Kind()

	var plaintext []byte
	var rawSeen uint64
	warned := false

	for !cur.EOFData() {
		if w.Job.checkpoint() {
			return nil, fmt.Errorf("driver: aborted while reading %q", name)
		}

		frag, data, err := cur.ReadData()
		if err != nil {
			return nil, err
		}
		if frag.Size == 0 {
			continue
		}

		rawSeen += uint64(len(data))
		if identity && !warned && rawSeen > total {
			warned = true
			msg := fmt.Sprintf("Warning: unexpected data at end of %s entry '%s'", kind, name)
			w.Job.recordWarning(msg)
			if l := log.GetLogger(); l != nil {
				l.Warn(msg)
			}
		}

		if err := stack.Feed(data); err != nil {
			return nil, err
		}
		plaintext = append(plaintext, stack.Result()...)

		if w.Job.Progress != nil {
			w.Job.Progress(name, uint64(len(plaintext)), total)
		}
	}
	return plaintext, nil
}

// writeEntryBody streams src through stack in bodyWindowSize windows,
// emitting one archive data chunk per window plus a final eof_data
// marker. Each window's chunk declares the logical (plaintext) byte
// range it covers, independent of the codec's output length for that
// window -- the fragment ledger reasons about logical position, not
// physical bytes on the wire.
func writeEntryBody(job *Job, name string, total uint64, stack *codec.Stack, src io.Reader, frag core.Fragment, cur *archive.Cursor) error {
	window := make([]byte, bodyWindowSize(job))
	pos := uint64(0)

	for {
		if job.checkpoint() {
			return fmt.Errorf("driver: aborted while writing %q", name)
		}

		n, readErr := io.ReadFull(src, window)
		if n > 0 {
			if err := stack.Feed(window[:n]); err != nil {
				return err
			}
			wfrag := core.Fragment{Offset: frag.Offset + pos, Size: uint64(n)}
			if err := cur.WriteData(wfrag, stack.Result()); err != nil {
				return err
			}
			pos += uint64(n)
			if job.Progress != nil {
				job.Progress(name, pos, total)
			}
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			return readErr
		}
	}
	return cur.WriteData(core.Fragment{Offset: frag.Offset + pos, Size: 0}, nil)
}

// encodeStackFor builds the write-side codec stack for a new entry,
// generating a fresh crypt salt when the job has encryption enabled so
// each entry's header carries independent key-derivation material. A
// non-empty deltaSource enables the xdelta encode stage against it
// (Create's delta-source backup case); convert.go always passes nil,
// since it re-encodes without re-chaining a delta relationship (see
// convert.go's doc comment).
func encodeStackFor(job *Job, deltaSource []byte) (*codec.Stack, core.CryptHeader, error) {
	opts := codec.Options{
		CompressAlgorithm: job.Config.Compress.Algorithm,
		CompressLevel:     job.Config.Compress.Level,
	}
	var crypt core.CryptHeader
	if job.Config.Crypt.Enabled {
		pw, err := resolvePassword(job, storage.PasswordModeEncrypt)
		if err != nil {
			return nil, crypt, err
		}
		salt, err := codec.GenerateSalt()
		if err != nil {
			return nil, crypt, err
		}
		opts.CryptEnabled = true
		opts.CryptPassword = pw
		opts.CryptSalt = salt
		crypt = core.CryptHeader{Salt: salt, Mode: core.CryptModeAES256CBC}
	}
	if len(deltaSource) > 0 {
		opts.DeltaAlgorithm = "xdelta"
		opts.DeltaSource = deltaSource
	}
	stack, err := codec.NewEncodeStack(opts)
	return stack, crypt, err
}
