// Package core defines sentinel errors.
package core

import "errors"

// Sentinel errors shared across the engine, grouped by 
// error-kind taxonomy.
var (
	// Input invalid
	ErrInvalidPattern         = errors.New("vaultarc: invalid pattern")
	ErrInvalidDeviceBlockSize = errors.New("vaultarc: invalid device block size")
	ErrInvalidSignature       = errors.New("vaultarc: invalid signature")

	// Missing data
	ErrFileNotFound       = errors.New("vaultarc: file not found")
	ErrWrongEntryType     = errors.New("vaultarc: wrong entry type")
	ErrDeltaSourceNotFound = errors.New("vaultarc: delta source not found")

	// Content mismatch
	ErrEntriesDiffer   = errors.New("vaultarc: entries differ")
	ErrEntryIncomplete = errors.New("vaultarc: entry incomplete")

	// Codec
	ErrInitCompress   = errors.New("vaultarc: compressor init failed")
	ErrInitDecompress = errors.New("vaultarc: decompressor init failed")
	ErrDeflateFail    = errors.New("vaultarc: deflate failed")
	ErrInflateFail    = errors.New("vaultarc: inflate failed")
	ErrUnsupportedAlgorithm = errors.New("vaultarc: unsupported compress algorithm")

	// Plugin/algorithm registry
	ErrPluginNotFound = errors.New("vaultarc: plugin not found")

	// Cancellation
	ErrAborted = errors.New("vaultarc: aborted")

	// Configuration
	ErrConfigInvalid = errors.New("vaultarc: invalid configuration")
)
