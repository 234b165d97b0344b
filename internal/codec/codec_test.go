package codec

import (
	"bytes"
	"math/rand"
	"testing"
)

func drainAll(s Stream) []byte {
	var out []byte
	for {
		chunk, ok := s.Drain()
		if !ok {
			break
		}
		out = append(out, chunk...)
	}
	return out
}

func roundTrip(t *testing.T, algorithm string, level int, data []byte) {
	t.Helper()

	enc, err := Get(algorithm, level, true)
	if err != nil {
		t.Fatalf("%s: new encoder: %v", algorithm, err)
	}
	if _, err := enc.Feed(data); err != nil {
		t.Fatalf("%s: feed: %v", algorithm, err)
	}
	if err := enc.Flush(); err != nil {
		t.Fatalf("%s: flush: %v", algorithm, err)
	}
	compressed := drainAll(enc)

	dec, err := Get(algorithm, level, false)
	if err != nil {
		t.Fatalf("%s: new decoder: %v", algorithm, err)
	}
	if _, err := dec.Feed(compressed); err != nil {
		t.Fatalf("%s: feed decode: %v", algorithm, err)
	}
	if err := dec.Flush(); err != nil {
		t.Fatalf("%s: flush decode: %v", algorithm, err)
	}
	got := drainAll(dec)

	if !bytes.Equal(got, data) {
		t.Fatalf("%s: round-trip mismatch: got %d bytes, want %d bytes", algorithm, len(got), len(data))
	}
}

func TestRoundTripLaw(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	text := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 2000)
	random := make([]byte, 50000)
	rnd.Read(random)

	for _, algorithm := range []string{"none", "zip", "bzip2", "lzma", "lz4", "lzo"} {
		for _, data := range [][]byte{text, random, {}, []byte("x")} {
			roundTrip(t, algorithm, 6, data)
		}
	}
}

func TestUnsupportedAlgorithmError(t *testing.T) {
	if _, err := Get("does-not-exist", 1, true); err == nil {
		t.Fatal("expected error for unregistered algorithm")
	}
}

func TestRegisterAlgorithmPanicsOnDuplicate(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	RegisterAlgorithm("none", newNoneStream)
}

// TestBlockFramedHeaderEncodesLengthAndFlags checks that a block-framed
// codec header encodes the raw length and the compressed and
// end-of-data flags so that decoding returns them unchanged. The
// incompressible-block path is exercised by
// TestIncompressibleBlockStoredVerbatim.
func TestBlockFramedHeaderEncodesLengthAndFlags(t *testing.T) {
	h := encodeBlockHeader(1234, true, true)
	length, compressed, end := decodeBlockHeader(h)
	if length != 1234 || !compressed || !end {
		t.Fatalf("got length=%d compressed=%v end=%v", length, compressed, end)
	}
}

// TestIncompressibleBlockStoredVerbatim feeds one full block of random
// bytes, which lz4 and lzo store verbatim, through both codecs and
// checks that it decodes back unchanged; it does not inspect the
// stored block's header flags.
func TestIncompressibleBlockStoredVerbatim(t *testing.T) {
	rnd := rand.New(rand.NewSource(2))
	random := make([]byte, blockRawCapacity)
	rnd.Read(random)
	roundTrip(t, "lz4", 1, random)
	roundTrip(t, "lzo", 1, random)
}

func TestXDeltaRoundTrip(t *testing.T) {
	source := bytes.Repeat([]byte("abcdefghijklmnopqrstuvwxyz0123456789"), 100)
	target := append(append([]byte{}, source...), []byte("EXTRA TAIL DATA")...)

	enc := NewXDeltaEncoder(source)
	if _, err := enc.Feed(target); err != nil {
		t.Fatal(err)
	}
	if err := enc.Flush(); err != nil {
		t.Fatal(err)
	}
	encoded := drainAll(enc)

	dec := NewXDeltaDecoder(func(offset uint64, length int) ([]byte, error) {
		return source[offset : offset+uint64(length)], nil
	})
	if _, err := dec.Feed(encoded); err != nil {
		t.Fatal(err)
	}
	if err := dec.Flush(); err != nil {
		t.Fatal(err)
	}
	got := drainAll(dec)
	if !bytes.Equal(got, target) {
		t.Fatalf("xdelta round-trip mismatch: got %d bytes want %d", len(got), len(target))
	}
}
