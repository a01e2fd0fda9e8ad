// Package ratelimit caps the read bandwidth of file transfers.
package ratelimit

import (
	"context"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"
)

// minBurst keeps reads reasonably sized at low limits
const minBurst = 64 * 1024

// Limiter controls the rate of data transfer across multiple readers.
// A nil *Limiter means no limiting.
type Limiter struct {
	bytesPerSecond int64
	limiter        *rate.Limiter
}

// NewLimiter creates a limiter allowing bytesPerSecond, with a burst of one
// second of data (at least 64KB). Zero or negative means no limiting.
func NewLimiter(bytesPerSecond int64) *Limiter {
	if bytesPerSecond <= 0 {
		return nil
	}

	burst := bytesPerSecond
	if burst < minBurst {
		burst = minBurst
	}

	return &Limiter{
		bytesPerSecond: bytesPerSecond,
		limiter:        rate.NewLimiter(rate.Limit(bytesPerSecond), int(burst)),
	}
}

// ParseLimit parses a bandwidth such as "80MB" or "1.5 GiB" as bytes per
// second. An empty string or "0" means unlimited.
func ParseLimit(s string) (*Limiter, error) {
	if s == "" || s == "0" {
		return nil, nil
	}

	n, err := humanize.ParseBytes(s)
	if err != nil {
		return nil, fmt.Errorf("invalid bandwidth limit %q: %w", s, err)
	}
	return NewLimiter(int64(n)), nil
}

// BytesPerSecond returns the configured rate
func (l *Limiter) BytesPerSecond() int64 {
	if l == nil {
		return 0
	}
	return l.bytesPerSecond
}

// String renders the rate as "80 MB/s"
func (l *Limiter) String() string {
	if l == nil {
		return "unlimited"
	}
	return humanize.Bytes(uint64(l.bytesPerSecond)) + "/s"
}

// Wrap returns a function that wraps readers with this limiter under ctx
func (l *Limiter) Wrap(ctx context.Context) func(io.Reader) io.Reader {
	return func(r io.Reader) io.Reader {
		return NewReader(ctx, r, l)
	}
}

// Reader wraps an io.Reader with bandwidth limiting
type Reader struct {
	reader  io.Reader
	limiter *Limiter
	ctx     context.Context
}

// NewReader wraps an io.Reader with rate limiting
func NewReader(ctx context.Context, reader io.Reader, limiter *Limiter) io.Reader {
	if limiter == nil {
		return reader
	}
	return &Reader{
		reader:  reader,
		limiter: limiter,
		ctx:     ctx,
	}
}

// Read reads at most one burst and waits until the limiter admits the bytes read
func (r *Reader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}

	if burst := r.limiter.limiter.Burst(); len(p) > burst {
		p = p[:burst]
	}

	n, err := r.reader.Read(p)
	if n > 0 {
		if waitErr := r.limiter.limiter.WaitN(r.ctx, n); waitErr != nil {
			return n, waitErr
		}
	}
	return n, err
}

// ReadCloser wraps an io.ReadCloser with rate limiting
type ReadCloser struct {
	Reader
	closer io.Closer
}

// NewReadCloser wraps an io.ReadCloser with rate limiting
func NewReadCloser(ctx context.Context, rc io.ReadCloser, limiter *Limiter) io.ReadCloser {
	if limiter == nil {
		return rc
	}
	return &ReadCloser{
		Reader: Reader{
			reader:  rc,
			limiter: limiter,
			ctx:     ctx,
		},
		closer: rc,
	}
}

// Close implements io.Closer
func (rc *ReadCloser) Close() error {
	return rc.closer.Close()
}
