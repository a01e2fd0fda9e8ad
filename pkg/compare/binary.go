package compare

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

const defaultBufferSize = 1 << 20

var bufferPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, defaultBufferSize)
		return &buf
	},
}

// FirstDifference compares two files byte by byte and returns the offset of
// the first differing byte, or -1 when the contents are identical. When one
// file is a prefix of the other the offset is the length of the shorter one.
func FirstDifference(ctx context.Context, sourcePath, destPath string) (int64, error) {
	source, err := os.Open(sourcePath)
	if err != nil {
		return 0, fmt.Errorf("failed to open source file: %w", err)
	}
	defer source.Close()

	dest, err := os.Open(destPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open destination file: %w", err)
	}
	defer dest.Close()

	sourceBufPtr := bufferPool.Get().(*[]byte)
	defer bufferPool.Put(sourceBufPtr)
	sourceBuf := *sourceBufPtr

	destBufPtr := bufferPool.Get().(*[]byte)
	defer bufferPool.Put(destBufPtr)
	destBuf := *destBufPtr

	var offset int64
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		sourceN, sourceErr := io.ReadFull(source, sourceBuf)
		destN, destErr := io.ReadFull(dest, destBuf)

		if sourceErr != nil && !isShortRead(sourceErr) {
			return 0, fmt.Errorf("failed to read source: %w", sourceErr)
		}
		if destErr != nil && !isShortRead(destErr) {
			return 0, fmt.Errorf("failed to read destination: %w", destErr)
		}

		n := min(sourceN, destN)
		if !bytes.Equal(sourceBuf[:n], destBuf[:n]) {
			for i := 0; i < n; i++ {
				if sourceBuf[i] != destBuf[i] {
					return offset + int64(i), nil
				}
			}
		}
		if sourceN != destN {
			return offset + int64(n), nil
		}

		// Both files ended at the same point
		if sourceErr != nil {
			return -1, nil
		}
		offset += int64(n)
	}
}

// isShortRead reports whether err only signals the end of the file
func isShortRead(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
