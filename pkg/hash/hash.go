// Package hash computes content digests of whole files by streaming them in
// fixed-size chunks.
package hash

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	gohash "hash"
	"io"
	"os"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/sdejongh/offload/pkg/logging"
)

// Algorithm names a digest function
type Algorithm string

const (
	// MD5 is the default; fast and sufficient for detecting corruption
	MD5 Algorithm = "md5"
	// SHA256 is slower but collision resistant
	SHA256 Algorithm = "sha256"
	// XXH64 is xxHash64, the common choice of offload tools on set
	XXH64 Algorithm = "xxh64"
)

// DefaultChunkSize is the read size used when streaming a file
const DefaultChunkSize = 1 << 20

// MaxChunkSize bounds the read buffer
const MaxChunkSize = 64 << 20

// ErrUnknownAlgorithm is returned for an algorithm name that is not supported
var ErrUnknownAlgorithm = errors.New("unknown hash algorithm")

// ParseAlgorithm validates an algorithm name
func ParseAlgorithm(s string) (Algorithm, error) {
	switch a := Algorithm(s); a {
	case MD5, SHA256, XXH64:
		return a, nil
	case "":
		return MD5, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
	}
}

func (a Algorithm) new() gohash.Hash {
	switch a {
	case SHA256:
		return sha256.New()
	case XXH64:
		return xxhash.New()
	default:
		return md5.New()
	}
}

// ReaderWrapper wraps a reader opened for hashing (e.g., for rate limiting)
type ReaderWrapper func(io.Reader) io.Reader

// Hasher streams files through a digest function
type Hasher struct {
	algorithm     Algorithm
	bufferPool    *sync.Pool
	logger        logging.Logger
	readerWrapper ReaderWrapper
}

// NewHasher creates a hasher. chunkSize is clamped to [4096, MaxChunkSize].
func NewHasher(algorithm Algorithm, chunkSize int, logger logging.Logger) *Hasher {
	chunkSize = max(4096, min(chunkSize, MaxChunkSize))
	if algorithm == "" {
		algorithm = MD5
	}
	return &Hasher{
		algorithm: algorithm,
		logger:    logging.Component(logger, "hash"),
		bufferPool: &sync.Pool{
			New: func() interface{} {
				buf := make([]byte, chunkSize)
				return &buf
			},
		},
	}
}

// SetReaderWrapper sets a function to wrap readers
func (h *Hasher) SetReaderWrapper(wrapper ReaderWrapper) {
	h.readerWrapper = wrapper
}

// Algorithm returns the digest function in use
func (h *Hasher) Algorithm() Algorithm {
	return h.algorithm
}

// Sum returns the lowercase hex digest of the file at path.
// Any failure, cancellation included, is logged and reported as ok == false.
func (h *Hasher) Sum(ctx context.Context, path string) (string, bool) {
	digest, err := h.Digest(ctx, path)
	if err != nil {
		h.logger.Warn(ctx, "hash unavailable", logging.Fields{
			"path":      path,
			"algorithm": string(h.algorithm),
			"error":     err.Error(),
		})
		return "", false
	}
	return digest, true
}

// Digest returns the lowercase hex digest of the file at path
func (h *Hasher) Digest(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return h.DigestReader(ctx, file)
}

// DigestReader returns the lowercase hex digest of everything r yields
func (h *Hasher) DigestReader(ctx context.Context, r io.Reader) (string, error) {
	if h.readerWrapper != nil {
		r = h.readerWrapper(r)
	}

	digest := h.algorithm.new()

	bufPtr := h.bufferPool.Get().(*[]byte)
	defer h.bufferPool.Put(bufPtr)
	buf := *bufPtr

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		n, err := r.Read(buf)
		if n > 0 {
			digest.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read file: %w", err)
		}
	}

	return hex.EncodeToString(digest.Sum(nil)), nil
}
