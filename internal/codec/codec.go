// Package codec implements the archive's byte-compression, delta-
// compression, and encryption stages, composed into an encode/decode
// stack. The per-algorithm factory registry is a package-level map
// guarded by a mutex, with RegisterAlgorithm panicking on an empty
// name, a nil factory, or a duplicate registration.
package codec

import (
	"fmt"
	"sync"

	"github.com/vaultarc/vaultarc/internal/core"
)

// Stream is the common interface every compression algorithm
// implements, per the Feed/Drain/Flush state machine.
type Stream interface {
	// Feed supplies more input bytes to be compressed/decompressed.
	Feed(p []byte) (int, error)
	// Drain returns the next chunk of produced output, or (nil, false)
	// if no output is currently available without more input.
	Drain() ([]byte, bool)
	// Flush forces any buffered input through to output (end-of-data).
	Flush() error
	// Reset clears internal state so the Stream can be reused.
	Reset()
	InputBytes() uint64
	OutputBytes() uint64
}

// Factory constructs a fresh Stream for one algorithm at the given
// level (1-9; meaning is algorithm-specific) in either encode or
// decode mode.
type Factory func(level int, encode bool) (Stream, error)

var (
	mu        sync.Mutex
	factories = make(map[string]Factory)
)

// RegisterAlgorithm adds a named codec factory to the package registry.
// Called from each algorithm file's init(). Panics on programmer error
// (empty name, nil factory, duplicate name) -- these are compile-time
// invariants, not runtime conditions a caller can recover from.
func RegisterAlgorithm(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if name == "" {
		panic("codec: RegisterAlgorithm called with empty name")
	}
	if f == nil {
		panic("codec: RegisterAlgorithm(" + name + ") called with nil factory")
	}
	if _, exists := factories[name]; exists {
		panic("codec: algorithm already registered: " + name)
	}
	factories[name] = f
}

// Get constructs a Stream for the named algorithm. An algorithm this
// build doesn't have compiled in yields ErrUnsupportedAlgorithm; in
// decode mode (an archive naming such an algorithm) the error also
// wraps ErrInitDecompress, per the "optional capability" contract.
func Get(name string, level int, encode bool) (Stream, error) {
	mu.Lock()
	f, ok := factories[name]
	mu.Unlock()

	if !ok {
		if !encode {
			return nil, fmt.Errorf("%w: %w: %s", core.ErrInitDecompress, core.ErrUnsupportedAlgorithm, name)
		}
		return nil, fmt.Errorf("%w: %s", core.ErrUnsupportedAlgorithm, name)
	}
	s, err := f(level, encode)
	if err != nil {
		if encode {
			return nil, fmt.Errorf("%w: %s: %v", core.ErrInitCompress, name, err)
		}
		return nil, fmt.Errorf("%w: %s: %v", core.ErrInitDecompress, name, err)
	}
	return s, nil
}

// Registered reports the names of every algorithm compiled into this
// build, in no particular order.
func Registered() []string {
	mu.Lock()
	defer mu.Unlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	return names
}
