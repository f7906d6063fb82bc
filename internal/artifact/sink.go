// Package artifact stores downloaded compressed images somewhere durable: a
// local directory or an S3 compatible bucket.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrInvalidName rejects names that would land outside the sink.
var ErrInvalidName = errors.New("artifact: invalid name")

// Sink receives a downloaded artifact and reports where it ended up.
type Sink interface {
	Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error)
}

// FileSink writes artifacts into Dir.
type FileSink struct {
	Dir string
}

// NewFileSink creates dir if needed.
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}
	return &FileSink{Dir: dir}, nil
}

// Put streams r into Dir/name through a temp file renamed into place, so a
// failed download never leaves a truncated image behind.
func (s *FileSink) Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error) {
	base := filepath.Base(name)
	if base == "." || base == ".." || base == string(filepath.Separator) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	tmp, err := os.CreateTemp(s.Dir, "."+base+".*.part")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	cleanup := func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}
	written, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r})
	if err != nil {
		cleanup()
		return "", fmt.Errorf("write %s: %w", base, err)
	}
	if size >= 0 && written != size {
		cleanup()
		return "", fmt.Errorf("write %s: short body (%d of %d bytes)", base, written, size)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close %s: %w", base, err)
	}
	dst := filepath.Join(s.Dir, base)
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("move %s into place: %w", base, err)
	}
	return dst, nil
}

// ctxReader stops a copy once ctx is cancelled.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
