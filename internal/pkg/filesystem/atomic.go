package filesystem

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
)

const copyBufferSize = 64 << 10

// WriteAtomic streams r into dest via a temp file in the same directory and a
// rename, so dest either holds the complete content or does not exist.
func WriteAtomic(ctx context.Context, dest string, r io.Reader, perm os.FileMode) (int64, error) {
	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return 0, err
	}
	tmpPath := tmp.Name()
	_ = os.Chmod(tmpPath, perm)

	fail := func(err error) (int64, error) {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return 0, err
	}

	bw := bufio.NewWriterSize(tmp, copyBufferSize)
	n, err := io.Copy(bw, contextReader{ctx: ctx, r: r})
	if err != nil {
		return fail(err)
	}
	if err := bw.Flush(); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return 0, err
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return 0, err
	}
	return n, nil
}

// CheckWritable creates and removes a scratch file in dir, creating dir if needed.
func CheckWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".wcheck-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

// contextReader checks ctx before every read.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
